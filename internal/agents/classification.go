package agents

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/observability"
)

// maxTopicsPerPaper bounds the labels returned for a single paper.
const maxTopicsPerPaper = 4

// fallbackTopics is the generic label pair used when no keyword matches.
var fallbackTopics = []string{"Computer Science", "Research"}

// topicDefinitions maps each research topic to its signal keywords.
var topicDefinitions = map[string][]string{
	"Artificial Intelligence": {
		"artificial intelligence", "ai", "machine intelligence", "cognitive computing",
		"intelligent systems", "ai algorithms", "artificial neural networks",
	},
	"Machine Learning": {
		"machine learning", "ml", "deep learning", "neural networks", "supervised learning",
		"unsupervised learning", "reinforcement learning", "gradient descent", "backpropagation",
		"random forest", "support vector machine", "clustering", "classification algorithms",
	},
	"Natural Language Processing": {
		"natural language processing", "nlp", "text mining", "language models",
		"text classification", "sentiment analysis", "named entity recognition",
		"machine translation", "text generation", "language understanding",
	},
	"Computer Vision": {
		"computer vision", "image processing", "image recognition", "object detection",
		"image classification", "convolutional neural networks", "cnn", "visual recognition",
		"image segmentation", "face recognition",
	},
	"Data Science": {
		"data science", "data analysis", "data mining", "big data", "analytics",
		"statistical analysis", "data visualization", "predictive modeling",
		"business intelligence", "data engineering",
	},
	"Robotics": {
		"robotics", "autonomous systems", "robot control", "robot navigation",
		"robotic systems", "automation", "mechatronics", "robot learning",
	},
	"Cybersecurity": {
		"cybersecurity", "information security", "network security", "encryption",
		"malware detection", "intrusion detection", "security protocols", "cyber threats",
	},
	"Blockchain": {
		"blockchain", "cryptocurrency", "distributed ledger", "smart contracts",
		"bitcoin", "ethereum", "decentralized systems", "consensus algorithms",
	},
	"Quantum Computing": {
		"quantum computing", "quantum algorithms", "quantum mechanics", "qubits",
		"quantum entanglement", "quantum cryptography", "quantum simulation",
	},
	"Software Engineering": {
		"software engineering", "software development", "programming", "software architecture",
		"code quality", "software testing", "agile development", "devops",
	},
	"Human-Computer Interaction": {
		"human-computer interaction", "hci", "user interface", "user experience",
		"usability", "interface design", "interaction design", "ux research",
	},
	"Bioinformatics": {
		"bioinformatics", "computational biology", "genomics", "proteomics",
		"biological data analysis", "sequence analysis", "molecular biology",
	},
}

// ClassificationAgent assigns topic labels by keyword scoring over the
// paper's title and abstract. It reads only the paper's text fields and
// never mutates shared state, so a single instance is safe to share across
// concurrent pipeline runs.
type ClassificationAgent struct {
	logger zerolog.Logger
}

var _ Classifier = (*ClassificationAgent)(nil)

// NewClassificationAgent creates a keyword-based classifier.
func NewClassificationAgent(logger zerolog.Logger) *ClassificationAgent {
	return &ClassificationAgent{
		logger: observability.WithStageContext(logger, "classification"),
	}
}

// Process returns one to four topic labels, strongest signal first. Papers
// with no keyword signal receive the generic fallback pair.
func (a *ClassificationAgent) Process(_ context.Context, paper *domain.Paper) []string {
	text := strings.ToLower(paper.Title + " " + paper.Abstract)

	type topicScore struct {
		topic string
		score float64
	}

	var scored []topicScore
	for topic, keywords := range topicDefinitions {
		score := keywordScore(text, keywords)
		if score > 0 {
			scored = append(scored, topicScore{topic: topic, score: score})
		}
	}

	if len(scored) == 0 {
		a.logger.Debug().Str("title", paper.Title).Msg("no topic signal, using fallback labels")
		return append([]string(nil), fallbackTopics...)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].topic < scored[j].topic
	})

	if len(scored) > maxTopicsPerPaper {
		scored = scored[:maxTopicsPerPaper]
	}

	topics := make([]string, len(scored))
	for i, s := range scored {
		topics[i] = s.topic
	}
	return topics
}

// keywordScore counts keyword occurrences in text, weighting multi-word
// keywords higher, normalized by the topic's keyword count.
func keywordScore(text string, keywords []string) float64 {
	var score float64
	for _, keyword := range keywords {
		count := strings.Count(text, keyword)
		if count == 0 {
			continue
		}
		weight := 1.0
		if strings.Contains(keyword, " ") {
			weight = 1.5
		}
		score += float64(count) * weight
	}
	if len(keywords) == 0 {
		return 0
	}
	return score / float64(len(keywords))
}
