// Package qa implements the question answering engine: filter inference,
// retrieval, context assembly, generation, and answer post-processing.
package qa

import "time"

// AskOptions controls one question. Explicit values win over filters
// inferred from question phrasing.
type AskOptions struct {
	// ContextSize is the number of messages given to the model. Zero means 10.
	ContextSize int
	// ChannelFilter restricts retrieval to one channel when non-empty.
	ChannelFilter string
	// DaysBack restricts retrieval to the last N days. Zero means unset.
	DaysBack int
}

// Source is one cited message backing an answer, ordered by relevance.
type Source struct {
	// ReferenceNumber is the 1-based citation number, stable within one
	// answer and matching the message's position in the generation context.
	ReferenceNumber int       `json:"reference_number"`
	SourceTS        string    `json:"source_ts"`
	ChannelName     string    `json:"channel_name"`
	UserName        string    `json:"user_name"`
	Excerpt         string    `json:"excerpt"`
	Permalink       string    `json:"permalink,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	// Distance is the similarity distance from the query, lower is closer.
	Distance float64 `json:"distance"`
}

// ProjectLink is a repository or documentation URL surfaced from cited
// messages.
type ProjectLink struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	// SourceChannel is the channel of the message the URL was found in.
	SourceChannel string `json:"source_channel,omitempty"`
}

// Answer is the complete response to a question.
type Answer struct {
	Text string `json:"answer"`
	// Confidence is a 0 to 100 score of how well the context supports
	// the answer.
	Confidence int `json:"confidence"`
	// ConfidenceExplanation is the model's own rationale for the score,
	// empty when the score came from the hedge-phrase fallback.
	ConfidenceExplanation string        `json:"confidence_explanation,omitempty"`
	Sources               []Source      `json:"sources"`
	Links                 []ProjectLink `json:"project_links,omitempty"`
	// ContextUsed is the number of messages given to the model.
	ContextUsed int `json:"context_used"`
	// ChannelFilter and DaysBack echo the filters actually applied,
	// whether explicit or inferred.
	ChannelFilter string `json:"channel_filter,omitempty"`
	DaysBack      int    `json:"days_back,omitempty"`
}
