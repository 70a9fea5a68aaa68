package domain

// TopicCount pairs a topic label with its frequency across a batch.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// TopicAnalysis is the cross-paper topic structure computed once per
// workflow run. Immutable after synthesis.
type TopicAnalysis struct {
	// Distribution maps each topic label to the number of papers
	// carrying it.
	Distribution map[string]int `json:"topic_distribution"`

	// TotalUniqueTopics is the number of distinct topics observed.
	TotalUniqueTopics int `json:"total_unique_topics"`

	// MostCommon lists the top topics by frequency, highest first.
	MostCommon []TopicCount `json:"most_common_topics"`

	// Cooccurrence counts unordered topic pairs, counted once per paper
	// that carries both topics. Keys are "topicA|topicB" with the pair
	// in lexical order.
	Cooccurrence map[string]int `json:"topic_cooccurrence"`
}

// Synthesis is the aggregate narrative produced from the full batch of
// classification and summarization results.
type Synthesis struct {
	// Narrative is the synthesized cross-paper text.
	Narrative string `json:"synthesis"`

	// TopicAnalysis holds the topic frequency structures. Nil for the
	// zero-paper degenerate case.
	TopicAnalysis *TopicAnalysis `json:"topic_analysis,omitempty"`

	// PaperCount is the number of papers the synthesis covers.
	PaperCount int `json:"paper_count"`

	// Methodology tags the synthesis generation approach.
	Methodology string `json:"methodology,omitempty"`
}
