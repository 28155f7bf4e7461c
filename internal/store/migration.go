package store

import (
	"encoding/json"
	"fmt"

	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
)

// Migrator upgrades raw decoded state to the current schema and converts
// it to the typed document. Migration works on the raw map so it can
// tolerate legacy quirks (numeric user IDs, missing sections) that the
// typed document would reject.
type Migrator struct{}

// NewMigrator returns a Migrator.
func NewMigrator() *Migrator { return &Migrator{} }

// Migrate normalizes and upgrades raw state, returning the typed document
// and whether anything changed. Migration is idempotent: re-running it on
// current-version state reports no change.
func (m *Migrator) Migrate(raw map[string]any) (*state.Document, bool, error) {
	changed := false

	version := intField(raw, "state_version", 0)
	if version == 0 {
		version = 1
		raw["state_version"] = 1
		changed = true
	}
	if version > state.CurrentVersion {
		return nil, false, shared.WrapError("store", "Migrate", shared.ErrInvalidFormat,
			fmt.Sprintf("state_version %d is newer than supported %d", version, state.CurrentVersion), nil)
	}

	if ensureSection(raw, "users") {
		changed = true
	}
	if ensureSection(raw, "daily_flags") {
		changed = true
	}
	if _, ok := raw["bot_metadata"].(map[string]any); !ok {
		raw["bot_metadata"] = map[string]any{"version": "", "total_evaluations": 0}
		changed = true
	}

	if normalizeUsers(raw) {
		changed = true
	}

	if version < 2 {
		migrateV1ToV2(raw)
		raw["state_version"] = 2
		version = 2
		changed = true
	}

	doc, err := toDocument(raw)
	if err != nil {
		return nil, false, err
	}
	// The storage format strips empty maps, so refilling them is part of
	// decoding rather than a migration change.
	fillUserDefaults(doc)

	if err := doc.Validate(); err != nil {
		return nil, false, shared.WrapError("store", "Migrate", shared.ErrCorruption, "migrated state invalid", err)
	}
	return doc, changed, nil
}

// ensureSection guarantees a top-level map section exists.
func ensureSection(raw map[string]any, key string) bool {
	if _, ok := raw[key].(map[string]any); ok {
		return false
	}
	raw[key] = map[string]any{}
	return true
}

// normalizeUsers repairs legacy user entries: numeric user_id fields
// become strings matching their map key.
func normalizeUsers(raw map[string]any) bool {
	users, ok := raw["users"].(map[string]any)
	if !ok {
		return false
	}

	changed := false
	for id, v := range users {
		u, ok := v.(map[string]any)
		if !ok {
			continue
		}
		switch uid := u["user_id"].(type) {
		case string:
			if uid != id {
				u["user_id"] = id
				changed = true
			}
		case float64:
			u["user_id"] = id
			changed = true
		case nil:
			u["user_id"] = id
			changed = true
		}
	}
	return changed
}

// migrateV1ToV2 adds the fields introduced in schema version 2:
// per-user concept_frequency, streak_health and evaluation_count, plus
// the top-level evaluation_cache.
func migrateV1ToV2(raw map[string]any) {
	if _, ok := raw["evaluation_cache"].(map[string]any); !ok {
		raw["evaluation_cache"] = map[string]any{}
	}

	users, _ := raw["users"].(map[string]any)
	for _, v := range users {
		u, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := u["concept_frequency"]; !ok {
			u["concept_frequency"] = map[string]any{}
		}
		if _, ok := u["streak_health"]; !ok {
			u["streak_health"] = state.HealthSafe
		}
		if _, ok := u["evaluation_count"]; !ok {
			u["evaluation_count"] = 0
		}
	}
}

// toDocument converts the normalized raw map into the typed document.
func toDocument(raw map[string]any) (*state.Document, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, shared.WrapError("store", "Migrate", shared.ErrCorruption, "raw state re-marshal failed", err)
	}
	var doc state.Document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, shared.WrapError("store", "Migrate", shared.ErrCorruption, "state does not match schema", err)
	}
	return &doc, nil
}

// fillUserDefaults repairs nil maps and empty enum fields the stripped
// storage format omits.
func fillUserDefaults(doc *state.Document) bool {
	changed := false

	if doc.Users == nil {
		doc.Users = make(map[string]*state.UserRecord)
		changed = true
	}
	if doc.DailyFlags == nil {
		doc.DailyFlags = make(map[string]map[string]map[string]bool)
		changed = true
	}
	if doc.EvaluationCache == nil {
		doc.EvaluationCache = make(map[string]map[string]*state.Evaluation)
		changed = true
	}

	for _, u := range doc.Users {
		if u == nil {
			continue
		}
		if u.ConceptFrequency == nil {
			u.ConceptFrequency = make(map[string]int)
			changed = true
		}
		if u.TopicCoverage == nil {
			u.TopicCoverage = map[string]float64{"AI": 0, "ML": 0, "DL": 0, "DS": 0}
			changed = true
		}
		if u.StreakHealth == "" {
			u.StreakHealth = state.HealthSafe
			changed = true
		}
	}
	return changed
}

func intField(raw map[string]any, key string, fallback int) int {
	switch v := raw[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
