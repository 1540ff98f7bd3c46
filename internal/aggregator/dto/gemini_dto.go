package dto

// GeminiAPIRequest is the request body for the generateContent endpoint.
type GeminiAPIRequest struct {
	Contents []Content `json:"contents"`
}

// Content is one conversation turn.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is one piece of a turn.
type Part struct {
	Text string `json:"text"`
}

// GeminiAPIResponse is the response body of the generateContent endpoint.
type GeminiAPIResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}
