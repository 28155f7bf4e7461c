package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"user mention", "hey <@123456> check this", "hey check this"},
		{"nickname mention", "hey <@!123456> check this", "hey check this"},
		{"channel link", "posted in <#987654> today", "posted in today"},
		{"role mention", "<@&555> announcement", "announcement"},
		{"custom emoji", "done <:party:111222>", "done"},
		{"animated emoji", "done <a:spin:111222>", "done"},
		{"whitespace collapse", "a   b\n\nc", "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanContent(tt.input))
		})
	}
}

func TestQualifies(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"valid log", "Today I learned about gradient descent and how learning rates affect convergence", true},
		{"too short", "learned stuff", false},
		{"punctuation only", "!!!???...---===+++***&&&%%%$$$###@@@", false},
		{"url dump", "https://example.com/a https://example.com/b https://example.com/c ok", false},
		{"exactly thirty chars", "abcdefghij abcdefghij abcdefgh", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Qualifies(tt.content, 30)
			assert.Equal(t, tt.want, got, "reason: %s", reason)
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("hello world", "hello world"))
	assert.Equal(t, 1.0, Similarity("Hello World", "hello world"))
	assert.Equal(t, 0.0, Similarity("", "hello"))
	assert.Less(t, Similarity("learned about CNNs today", "studied databases and SQL"), 0.6)
}

func TestIsDuplicate(t *testing.T) {
	recent := []string{
		"today i studied convolutional neural networks and pooling layers",
	}

	assert.True(t, IsDuplicate("today i studied convolutional neural networks and pooling layers", recent))
	assert.True(t, IsDuplicate("Today I studied convolutional neural networks and pooling layers!", recent))
	assert.False(t, IsDuplicate("implemented a transformer from scratch with multi-head attention", recent))
	assert.False(t, IsDuplicate("anything", nil))
}

func TestDetectDepth(t *testing.T) {
	t.Run("no technical content", func(t *testing.T) {
		depth, terms := DetectDepth("went for a walk and had lunch with friends today nothing else")
		assert.Equal(t, 0, depth)
		assert.Empty(t, terms)
	})

	t.Run("keyword rich", func(t *testing.T) {
		depth, terms := DetectDepth(
			"studied backpropagation and gradient descent, tuned the learning rate, " +
				"compared adam vs sgd optimizers, added dropout and batch normalization")
		assert.GreaterOrEqual(t, depth, 3)
		assert.NotEmpty(t, terms)
		assert.LessOrEqual(t, len(terms), 10)
	})

	t.Run("code block adds depth", func(t *testing.T) {
		plain, _ := DetectDepth("reviewed my notes on neural network")
		withCode, _ := DetectDepth("reviewed my notes on neural network\n```\ndef train(model):\n    return model\n```")
		assert.Greater(t, withCode, plain)
	})

	t.Run("capped at five", func(t *testing.T) {
		text := strings.Join(technicalKeywords[:40], " ") + "\n```\ndef f(x):\n    y = f(1)\n    return y\n```"
		depth, _ := DetectDepth(text)
		assert.Equal(t, MaxDepthScore, depth)
	})
}

func TestClassifyTopic(t *testing.T) {
	t.Run("clear deep learning", func(t *testing.T) {
		topic, conf := ClassifyTopic(
			"implemented a cnn with convolution layers in pytorch, debugged backpropagation on the gpu with cuda kernels")
		assert.Equal(t, "DL", topic)
		assert.Greater(t, conf["DL"], conf["DS"])
	})

	t.Run("no keywords is mixed", func(t *testing.T) {
		topic, conf := ClassifyTopic("wrote in my journal about the weather")
		assert.Equal(t, TopicMixed, topic)
		for _, c := range conf {
			assert.Equal(t, 0.25, c)
		}
	})

	t.Run("close scores are mixed", func(t *testing.T) {
		topic, _ := ClassifyTopic("machine learning and data science with pandas")
		assert.Equal(t, TopicMixed, topic)
	})
}

func TestExtractConcepts(t *testing.T) {
	concepts := ExtractConcepts(
		"studied transformer attention mechanism, then transformer again, plus tokenization and embedding layers", 10)

	require.NotEmpty(t, concepts)
	assert.Contains(t, concepts, "transformer")
	assert.Contains(t, concepts, "tokenization")

	seen := make(map[string]bool)
	for _, c := range concepts {
		assert.False(t, seen[c], "concept %q extracted twice", c)
		seen[c] = true
	}

	capped := ExtractConcepts(strings.Join(technicalKeywords[:30], " "), 10)
	assert.Len(t, capped, 10)
}

func TestRepetitionPenalty(t *testing.T) {
	freq := map[string]int{
		"transformer": 5,
		"attention":   4,
		"rag":         1,
	}

	t.Run("no concepts", func(t *testing.T) {
		penalty, repeated := RepetitionPenalty(nil, freq)
		assert.Equal(t, 1.0, penalty)
		assert.Empty(t, repeated)
	})

	t.Run("all fresh", func(t *testing.T) {
		penalty, repeated := RepetitionPenalty([]string{"rag", "fine-tuning"}, freq)
		assert.Equal(t, 1.0, penalty)
		assert.Empty(t, repeated)
	})

	t.Run("half repeated", func(t *testing.T) {
		penalty, repeated := RepetitionPenalty([]string{"transformer", "fine-tuning"}, freq)
		assert.Equal(t, 0.75, penalty)
		assert.Equal(t, []string{"transformer"}, repeated)
	})

	t.Run("floor at half", func(t *testing.T) {
		penalty, repeated := RepetitionPenalty([]string{"transformer", "attention"}, freq)
		assert.Equal(t, 0.5, penalty)
		assert.Len(t, repeated, 2)
	})
}

func TestSummarizeLogs(t *testing.T) {
	t.Run("short logs joined", func(t *testing.T) {
		out := SummarizeLogs([]string{"log one", "log two"}, 2000)
		assert.Equal(t, "log one\n---\nlog two", out)
	})

	t.Run("long logs truncated on boundary", func(t *testing.T) {
		logs := []string{
			strings.Repeat("a", 900),
			strings.Repeat("b", 900),
			strings.Repeat("c", 900),
		}
		out := SummarizeLogs(logs, 2000)
		assert.LessOrEqual(t, len(out), 2000+len("\n[... additional logs truncated ...]"))
		assert.True(t, strings.HasSuffix(out, "[... additional logs truncated ...]"))
		assert.NotContains(t, out, "ccc")
	})
}

func TestAnalyze(t *testing.T) {
	t.Run("full pipeline on valid log", func(t *testing.T) {
		res := Analyze(
			"<@123> today I implemented a transformer with multi-head attention in pytorch and tuned the learning rate",
			nil, 30)

		assert.True(t, res.Qualifies)
		assert.False(t, res.IsDuplicate)
		assert.Greater(t, res.DepthScore, 0)
		assert.NotEmpty(t, res.Concepts)
		assert.Greater(t, res.WordCount, 10)
	})

	t.Run("duplicate disqualifies", func(t *testing.T) {
		content := "today i implemented a transformer with multi-head attention in pytorch"
		res := Analyze(content, []string{content}, 30)

		assert.False(t, res.Qualifies)
		assert.True(t, res.IsDuplicate)
		assert.Equal(t, "duplicate of a recent log", res.Reason)
	})
}
