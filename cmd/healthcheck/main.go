// Package main is a lightweight health probe for the learning-mentor bot.
//
// Two modes:
//
//	healthcheck          validates configuration and exits non-zero on error
//	healthcheck -probe   additionally hits the running bot's /healthz endpoint
//
// Designed for container HEALTHCHECK directives and deploy-time config
// linting, so it prints one line per problem and nothing on success
// unless -v is set.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mentor-hub/learning-mentor/config"
)

func main() {
	probe := flag.Bool("probe", false, "also probe the running bot's health endpoint")
	verbose := flag.Bool("v", false, "print configuration summary on success")
	timeout := flag.Duration("timeout", 5*time.Second, "probe timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("config ok: env=%s tz=%s tracked_users=%d scheduler=%v health_port=%d\n",
			cfg.App.Environment, cfg.App.Timezone, len(cfg.Tracking.UserIDs),
			cfg.Scheduler.Enabled, cfg.Observability.HealthPort)
	}

	if *probe {
		if !cfg.Observability.HealthEnabled {
			fmt.Fprintln(os.Stderr, "probe requested but the health endpoint is disabled")
			os.Exit(1)
		}
		if err := probeHealth(cfg.Observability.HealthPort, *timeout); err != nil {
			fmt.Fprintf(os.Stderr, "probe: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Println("probe ok")
		}
	}
}

func probeHealth(port int, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
