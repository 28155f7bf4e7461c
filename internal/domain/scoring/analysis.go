// Package scoring implements the local (non-AI) message analysis: log
// qualification, duplicate detection, technical depth scoring, topic
// classification, concept extraction and the repetition penalty.
// The AI evaluator layers on top of these heuristics and falls back to
// them entirely when the Gemini API is unavailable.
package scoring

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// MaxDepthScore caps the local depth heuristic.
const MaxDepthScore = 5

// DuplicateThreshold is the similarity ratio at or above which a message
// counts as a duplicate of a recent log.
const DuplicateThreshold = 0.85

// TopicMixed is the classification when no topic clearly dominates.
const TopicMixed = "Mixed"

// technicalKeywords drives depth scoring and concept extraction. Ordered
// so extraction is deterministic.
var technicalKeywords = []string{
	// AI general
	"artificial intelligence", "neural network", "deep learning", "machine learning",
	"reinforcement learning", "supervised learning", "unsupervised learning",
	"natural language processing", "computer vision", "generative ai",

	// ML algorithms
	"linear regression", "logistic regression", "decision tree", "random forest",
	"gradient boosting", "xgboost", "lightgbm", "catboost", "svm", "support vector",
	"naive bayes", "k-means", "clustering", "classification", "regression",
	"ensemble", "bagging", "boosting", "cross-validation", "hyperparameter",

	// Deep learning
	"cnn", "rnn", "lstm", "gru", "transformer", "attention mechanism",
	"self-attention", "multi-head attention", "encoder", "decoder",
	"autoencoder", "variational autoencoder", "vae", "gan", "generative adversarial",
	"diffusion model", "stable diffusion", "convolution", "pooling", "dropout",
	"batch normalization", "layer normalization", "residual connection",
	"skip connection", "feedforward", "backpropagation", "gradient descent",
	"optimizer", "adam", "sgd", "learning rate", "loss function", "activation function",
	"relu", "sigmoid", "softmax", "tanh", "gelu",

	// NLP
	"tokenization", "embedding", "word2vec", "glove", "fasttext", "bert", "gpt",
	"llm", "large language model", "fine-tuning", "prompt engineering",
	"rag", "retrieval augmented", "semantic search", "text classification",
	"named entity recognition", "ner", "sentiment analysis", "summarization",

	// Computer vision
	"image classification", "object detection", "segmentation", "yolo",
	"resnet", "vgg", "inception", "efficientnet", "feature extraction",
	"data augmentation", "transfer learning",

	// Data science
	"exploratory data analysis", "eda", "feature engineering", "feature selection",
	"data preprocessing", "data cleaning", "missing values", "outlier detection",
	"normalization", "standardization", "one-hot encoding", "label encoding",
	"train test split", "overfitting", "underfitting", "bias variance",
	"confusion matrix", "precision", "recall", "f1 score", "roc auc",
	"accuracy", "cross entropy", "mse", "mae", "rmse",

	// Frameworks and libraries
	"tensorflow", "pytorch", "keras", "scikit-learn", "sklearn", "pandas",
	"numpy", "matplotlib", "seaborn", "huggingface", "transformers",
	"langchain", "llamaindex", "opencv", "spacy", "nltk",

	// MLOps
	"mlflow", "wandb", "tensorboard", "model deployment", "inference",
	"model serving", "containerization", "docker", "kubernetes",
	"feature store", "model registry", "a/b testing", "canary deployment",

	// Mathematics
	"linear algebra", "matrix", "vector", "tensor", "gradient", "derivative",
	"partial derivative", "chain rule", "jacobian", "hessian", "eigenvalue",
	"eigenvector", "probability", "statistics", "bayesian", "prior", "posterior",
	"likelihood", "distribution", "gaussian", "normal distribution",
	"cost function", "objective function", "optimization",
}

// topicKeywords classifies the primary topic of a log.
var topicKeywords = map[string][]string{
	"AI": {
		"artificial intelligence", "ai", "intelligent systems", "expert systems",
		"knowledge representation", "reasoning", "planning", "agents",
		"multi-agent", "cognitive", "symbolic ai", "neural-symbolic",
	},
	"ML": {
		"machine learning", "ml", "supervised", "unsupervised", "semi-supervised",
		"classification", "regression", "clustering", "dimensionality reduction",
		"feature engineering", "model selection", "hyperparameter tuning",
		"ensemble methods", "cross-validation", "bias-variance",
	},
	"DL": {
		"deep learning", "neural network", "cnn", "rnn", "lstm", "transformer",
		"attention", "encoder", "decoder", "autoencoder", "gan", "vae",
		"convolution", "backpropagation", "gpu", "cuda", "pytorch", "tensorflow",
	},
	"DS": {
		"data science", "data analysis", "exploratory", "eda", "visualization",
		"pandas", "statistics", "hypothesis testing", "a/b test",
		"data cleaning", "data wrangling", "etl", "sql", "data pipeline",
	},
}

var (
	urlPattern         = regexp.MustCompile(`https?://\S+`)
	userMentionPattern = regexp.MustCompile(`<@!?\d+>`)
	channelPattern     = regexp.MustCompile(`<#\d+>`)
	rolePattern        = regexp.MustCompile(`<@&\d+>`)
	emojiPattern       = regexp.MustCompile(`<a?:\w+:\d+>`)

	// Code indicators each add one depth point.
	codePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(def|class|import|from|return)\b`),
		regexp.MustCompile(`\b(function|const|let|var|async)\b`),
		regexp.MustCompile(`\w+\s*\([^)]*\)`),
		regexp.MustCompile(`\w+\s*=\s*[\w\[{]`),
		regexp.MustCompile("```[\\s\\S]*?```"),
	}
)

// CleanContent strips Discord formatting (mentions, channel links, roles,
// custom emojis) and collapses whitespace.
func CleanContent(content string) string {
	content = userMentionPattern.ReplaceAllString(content, "")
	content = channelPattern.ReplaceAllString(content, "")
	content = rolePattern.ReplaceAllString(content, "")
	content = emojiPattern.ReplaceAllString(content, "")
	return strings.Join(strings.Fields(content), " ")
}

// Qualifies checks whether a message counts as a learning log: long
// enough, mostly alphabetic, and not just a URL dump. Returns the reason
// when it does not qualify.
func Qualifies(content string, minLength int) (bool, string) {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minLength {
		return false, "too short"
	}

	alpha := 0
	for _, r := range content {
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if alpha < minLength/2 {
		return false, "insufficient alphabetic content"
	}

	withoutURLs := strings.TrimSpace(urlPattern.ReplaceAllString(content, ""))
	if len(withoutURLs) < minLength/2 {
		return false, "mostly URLs"
	}

	return true, "qualified"
}

// Similarity returns the ratio (0-1) between two texts, case-insensitive.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	t1 := strings.Split(strings.ToLower(strings.TrimSpace(a)), "")
	t2 := strings.Split(strings.ToLower(strings.TrimSpace(b)), "")
	return difflib.NewMatcher(t1, t2).Ratio()
}

// IsDuplicate reports whether content is too similar to any recent log.
func IsDuplicate(content string, recent []string) bool {
	for _, existing := range recent {
		if Similarity(content, existing) >= DuplicateThreshold {
			return true
		}
	}
	return false
}

// DetectDepth scores technical depth 0-5 from keyword density and code
// indicators, returning up to ten matched terms.
func DetectDepth(text string) (int, []string) {
	lower := strings.ToLower(text)

	var found []string
	for _, kw := range technicalKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}

	codeScore := 0
	for _, p := range codePatterns {
		if p.MatchString(text) {
			codeScore++
		}
	}

	keywordScore := len(found)
	if keywordScore > 10 {
		keywordScore = 10
	}
	keywordScore /= 2

	depth := keywordScore + codeScore
	if depth > MaxDepthScore {
		depth = MaxDepthScore
	}

	if len(found) > 10 {
		found = found[:10]
	}
	return depth, found
}

// ClassifyTopic determines the primary topic and per-topic confidences.
// Ambiguous results (no keywords, or the top two topics within one hit of
// each other) classify as Mixed.
func ClassifyTopic(text string) (string, map[string]float64) {
	lower := strings.ToLower(text)

	scores := make(map[string]int, len(topicKeywords))
	total := 0
	for topic, keywords := range topicKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		scores[topic] = score
		total += score
	}

	if total == 0 {
		conf := make(map[string]float64, len(topicKeywords))
		for topic := range topicKeywords {
			conf[topic] = 0.25
		}
		return TopicMixed, conf
	}

	conf := make(map[string]float64, len(scores))
	for topic, score := range scores {
		conf[topic] = float64(score) / float64(total)
	}

	topics := make([]string, 0, len(scores))
	for topic := range scores {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool {
		if scores[topics[i]] != scores[topics[j]] {
			return scores[topics[i]] > scores[topics[j]]
		}
		return topics[i] < topics[j]
	})

	primary := topics[0]
	if len(topics) >= 2 && scores[topics[0]]-scores[topics[1]] <= 1 {
		primary = TopicMixed
	}
	return primary, conf
}

// ExtractConcepts returns up to max deduplicated technical concepts found
// in the text, in keyword-table order.
func ExtractConcepts(text string, max int) []string {
	lower := strings.ToLower(text)

	seen := make(map[string]bool)
	var concepts []string
	for _, kw := range technicalKeywords {
		if seen[kw] || !strings.Contains(lower, kw) {
			continue
		}
		seen[kw] = true
		concepts = append(concepts, kw)
		if len(concepts) >= max {
			break
		}
	}
	return concepts
}

// RepetitionPenalty computes the point multiplier (0.5-1.0) for a set of
// concepts given how often each has been logged before. Concepts seen
// three or more times count as repeated.
func RepetitionPenalty(concepts []string, frequency map[string]int) (float64, []string) {
	const threshold = 3

	var repeated []string
	for _, c := range concepts {
		if frequency[c] >= threshold {
			repeated = append(repeated, c)
		}
	}

	if len(concepts) == 0 {
		return 1.0, nil
	}

	ratio := float64(len(repeated)) / float64(len(concepts))
	penalty := 1.0 - ratio*0.5
	if penalty < 0.5 {
		penalty = 0.5
	}
	return penalty, repeated
}

// SummarizeLogs joins logs for AI processing, truncating at maxLength on
// a log boundary when possible.
func SummarizeLogs(logs []string, maxLength int) string {
	const sep = "\n---\n"

	combined := strings.Join(logs, sep)
	if len(combined) <= maxLength {
		return combined
	}

	truncated := combined[:maxLength]
	if cut := strings.LastIndex(truncated, sep); cut > maxLength/2 {
		truncated = truncated[:cut]
	}
	return truncated + "\n[... additional logs truncated ...]"
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// FormatConcepts renders concepts for an embed field, showing up to
// maxDisplay inline.
func FormatConcepts(concepts []string, maxDisplay int) string {
	if len(concepts) == 0 {
		return "None detected"
	}

	shown := concepts
	if len(shown) > maxDisplay {
		shown = shown[:maxDisplay]
	}
	parts := make([]string, len(shown))
	for i, c := range shown {
		parts[i] = "`" + c + "`"
	}
	out := strings.Join(parts, ", ")
	if extra := len(concepts) - maxDisplay; extra > 0 {
		out += fmt.Sprintf(" +%d more", extra)
	}
	return out
}

// Result is the full local analysis of one message.
type Result struct {
	Qualifies        bool
	Reason           string
	IsDuplicate      bool
	DepthScore       int
	TechnicalTerms   []string
	PrimaryTopic     string
	TopicConfidences map[string]float64
	Concepts         []string
	WordCount        int
}

// Analyze runs the complete local analysis pipeline on a raw message
// against the user's recent logs.
func Analyze(content string, recent []string, minLength int) Result {
	cleaned := CleanContent(content)

	qualifies, reason := Qualifies(cleaned, minLength)
	dup := IsDuplicate(cleaned, recent)
	depth, terms := DetectDepth(cleaned)
	topic, confidences := ClassifyTopic(cleaned)
	concepts := ExtractConcepts(cleaned, 10)

	if qualifies && dup {
		reason = "duplicate of a recent log"
	}

	return Result{
		Qualifies:        qualifies && !dup,
		Reason:           reason,
		IsDuplicate:      dup,
		DepthScore:       depth,
		TechnicalTerms:   terms,
		PrimaryTopic:     topic,
		TopicConfidences: confidences,
		Concepts:         concepts,
		WordCount:        CountWords(cleaned),
	}
}
