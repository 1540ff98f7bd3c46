package dto

// SummaryResult is the structured output of the summarization collaborator.
type SummaryResult struct {
	Text        string   `json:"text"`
	BulletTexts []string `json:"bullet_texts,omitempty"`
	WordCount   int      `json:"word_count"`
	ModelID     string   `json:"model_id"`
	LatencyMs   int64    `json:"latency_ms"`
}

// RawTag is one (label, confidence) pair as returned by the tagging
// collaborator, before resolution against the canonical taxonomy.
type RawTag struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// GeminiSummaryResponse is the JSON shape the summarization prompt asks the
// model to produce.
type GeminiSummaryResponse struct {
	Summary     string   `json:"summary"`
	BulletTexts []string `json:"bullet_texts,omitempty"`
}

// GeminiTagResponse is the JSON shape the tagging prompt asks the model to
// produce.
type GeminiTagResponse struct {
	Tags []RawTag `json:"tags"`
}
