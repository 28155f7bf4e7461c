package config

// Career pathway tables: milestones keyed by skill level plus per-topic
// roadmaps. Used by the mentor and the !pathway command to ground advice
// in where the student actually is.

// CareerPath describes a long-term career direction.
type CareerPath struct {
	ID          string
	Name        string
	Emoji       string
	Description string
	Skills      []string
}

// Career path IDs.
const (
	PathMLEngineer   = "ml_engineer"
	PathAIResearcher = "ai_researcher"
)

// CareerPaths maps path ID to its definition.
var CareerPaths = map[string]CareerPath{
	PathMLEngineer: {
		ID:          PathMLEngineer,
		Name:        "Machine Learning Engineer",
		Emoji:       "⚙️",
		Description: "Build and deploy ML systems in production",
		Skills: []string{
			"Python Programming", "Data Preprocessing", "Model Training",
			"Model Deployment", "MLOps", "Cloud Platforms",
			"API Development", "System Design",
		},
	},
	PathAIResearcher: {
		ID:          PathAIResearcher,
		Name:        "AI Researcher",
		Emoji:       "🔬",
		Description: "Push boundaries of AI through research",
		Skills: []string{
			"Mathematics", "Deep Learning Theory", "Research Methods",
			"Paper Reading", "Experimentation", "Novel Architectures",
			"Writing Papers", "Theoretical Analysis",
		},
	},
}

// Milestone describes one stage of the learning pathway.
type Milestone struct {
	ID                  string
	Level               int
	Name                string
	MinPoints           int
	MaxPoints           int // -1 means unbounded
	FocusAreas          []string
	MLEngineerGoals     []string
	ResearcherGoals     []string
	RecommendedProjects []string
}

// Milestones is ordered by level ascending.
var Milestones = []Milestone{
	{
		ID:        "foundations",
		Level:     0,
		Name:      "🌱 Foundations",
		MinPoints: 0,
		MaxPoints: 500,
		FocusAreas: []string{
			"Python basics and data structures",
			"NumPy and Pandas fundamentals",
			"Basic statistics and linear algebra",
			"Introduction to ML concepts",
			"Data visualization with Matplotlib/Seaborn",
		},
		MLEngineerGoals: []string{
			"Master Python fundamentals",
			"Learn data manipulation with Pandas",
			"Understand basic ML algorithms (Linear Regression, Decision Trees)",
		},
		ResearcherGoals: []string{
			"Build strong mathematical foundation",
			"Read introductory ML papers",
			"Understand basic neural network theory",
		},
		RecommendedProjects: []string{
			"Iris flower classification",
			"House price prediction",
			"Titanic survival prediction",
		},
	},
	{
		ID:        "intermediate",
		Level:     1,
		Name:      "📚 Intermediate Practitioner",
		MinPoints: 500,
		MaxPoints: 2000,
		FocusAreas: []string{
			"Supervised learning algorithms",
			"Model evaluation and validation",
			"Feature engineering techniques",
			"Introduction to deep learning",
			"CNNs and computer vision basics",
		},
		MLEngineerGoals: []string{
			"Build end-to-end ML pipelines",
			"Learn model deployment with Flask/FastAPI",
			"Understand Docker basics",
			"Practice feature engineering",
		},
		ResearcherGoals: []string{
			"Read foundational papers (AlexNet, ResNet, Attention)",
			"Implement papers from scratch",
			"Experiment with different architectures",
			"Learn PyTorch/TensorFlow deeply",
		},
		RecommendedProjects: []string{
			"Image classifier with CNNs",
			"Sentiment analysis with NLP",
			"Deploy ML model as REST API",
		},
	},
	{
		ID:        "advanced",
		Level:     2,
		Name:      "🚀 Advanced Specialist",
		MinPoints: 2000,
		MaxPoints: 5000,
		FocusAreas: []string{
			"Advanced deep learning (Transformers, GANs)",
			"NLP with large language models",
			"Reinforcement learning",
			"MLOps and production systems",
			"Advanced optimization techniques",
		},
		MLEngineerGoals: []string{
			"Build scalable ML systems",
			"Implement CI/CD for ML models",
			"Master Kubernetes and cloud deployment",
			"Design robust data pipelines",
			"A/B testing and model monitoring",
		},
		ResearcherGoals: []string{
			"Read and implement recent papers (< 1 year old)",
			"Design novel architectures",
			"Conduct ablation studies",
			"Write technical blog posts/papers",
			"Reproduce SOTA results",
		},
		RecommendedProjects: []string{
			"Build a chatbot with transformers",
			"Image generation with GANs or Diffusion Models",
			"Deploy production ML system with monitoring",
		},
	},
	{
		ID:        "researcher",
		Level:     3,
		Name:      "🎓 Research Expert",
		MinPoints: 5000,
		MaxPoints: -1,
		FocusAreas: []string{
			"Cutting-edge research areas",
			"Novel model architectures",
			"Theoretical foundations",
			"Research paper writing",
			"Open source contributions",
		},
		MLEngineerGoals: []string{
			"Architect ML platforms",
			"Lead ML teams",
			"Contribute to open-source ML tools",
			"Design custom training frameworks",
			"Optimize large-scale systems",
		},
		ResearcherGoals: []string{
			"Publish papers at top conferences",
			"Propose novel research directions",
			"Mentor other researchers",
			"Review papers for conferences",
			"Push state-of-the-art forward",
		},
		RecommendedProjects: []string{
			"Implement novel research idea",
			"Reproduce and improve SOTA results",
			"Contribute to major ML framework (PyTorch, JAX)",
		},
	},
}

// TopicRoadmaps lists study items per topic per proficiency band.
var TopicRoadmaps = map[string]map[string][]string{
	"AI": {
		"beginner":     {"Search algorithms", "Planning", "Knowledge representation"},
		"intermediate": {"Expert systems", "Logic and reasoning", "Intelligent agents"},
		"advanced":     {"Multi-agent systems", "Game AI", "Automated planning"},
	},
	"ML": {
		"beginner":     {"Linear regression", "Logistic regression", "Decision trees"},
		"intermediate": {"Random forests", "SVM", "Ensemble methods", "Feature selection"},
		"advanced":     {"AutoML", "Transfer learning", "Meta-learning"},
	},
	"DL": {
		"beginner":     {"Neural networks", "Backpropagation", "CNNs"},
		"intermediate": {"RNNs", "LSTMs", "Attention mechanisms", "Transformers"},
		"advanced":     {"GANs", "Diffusion models", "Vision transformers", "Few-shot learning"},
	},
	"DS": {
		"beginner":     {"Data cleaning", "EDA", "Statistics", "Visualization"},
		"intermediate": {"A/B testing", "Time series", "Dimensionality reduction"},
		"advanced":     {"Causal inference", "Bayesian methods", "Large-scale data processing"},
	},
}

// MilestoneForPoints returns the milestone covering the given point total.
func MilestoneForPoints(points int) Milestone {
	for _, m := range Milestones {
		if points >= m.MinPoints && (m.MaxPoints < 0 || points < m.MaxPoints) {
			return m
		}
	}
	return Milestones[len(Milestones)-1]
}

// NextMilestone returns the next milestone to reach, or nil at the top.
func NextMilestone(points int) *Milestone {
	for i := range Milestones {
		if points < Milestones[i].MinPoints {
			return &Milestones[i]
		}
	}
	return nil
}

// ProgressSummary summarizes pathway progress for a user.
type ProgressSummary struct {
	Current             Milestone
	Next                *Milestone
	ProgressPercent     float64
	FocusAreas          []string
	RecommendedProjects []string
}

// PathwayProgress computes milestone progress for a point total.
func PathwayProgress(points int) ProgressSummary {
	current := MilestoneForPoints(points)
	next := NextMilestone(points)

	pct := 100.0
	if next != nil {
		span := next.MinPoints - current.MinPoints
		if span > 0 {
			pct = float64(points-current.MinPoints) / float64(span) * 100
		}
	}

	return ProgressSummary{
		Current:             current,
		Next:                next,
		ProgressPercent:     pct,
		FocusAreas:          current.FocusAreas,
		RecommendedProjects: current.RecommendedProjects,
	}
}

// Recommendations builds up to five study suggestions from the user's
// milestone goals and their weakest topics (coverage below 5).
func Recommendations(skillLevel int, topicCoverage map[string]float64, careerPath string) []string {
	var recs []string

	if skillLevel >= 0 && skillLevel < len(Milestones) {
		m := Milestones[skillLevel]
		if careerPath == PathAIResearcher {
			recs = append(recs, m.ResearcherGoals...)
		} else {
			recs = append(recs, m.MLEngineerGoals...)
		}
	}

	band := "beginner"
	switch {
	case skillLevel >= 2:
		band = "advanced"
	case skillLevel == 1:
		band = "intermediate"
	}

	for _, topic := range Topics {
		if topicCoverage[topic] >= 5 {
			continue
		}
		items := TopicRoadmaps[topic][band]
		for i, item := range items {
			if i >= 2 {
				break
			}
			recs = append(recs, "Study "+topic+": "+item)
		}
	}

	if len(recs) > 5 {
		recs = recs[:5]
	}
	return recs
}
