package model

import "time"

// Result is the structure handed back to the caller of a fact-check run
type Result struct {
	ID          string          `json:"id"`
	Source      string          `json:"source,omitempty"` // URL, file path or "text"
	RawText     string          `json:"raw_text"`
	CreatedAt   time.Time       `json:"created_at"`
	Summary     Summary         `json:"summary"`
	ClaimDetail []Claim         `json:"claim_detail"`
	Usage       []ResourceUsage `json:"usage,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
}

// Summary aggregates per-claim outcomes of one document
type Summary struct {
	NumClaims        int     `json:"num_claims"`
	NumCheckworthy   int     `json:"num_checkworthy_claims"`
	NumVerified      int     `json:"num_verified_claims"`
	NumSupported     int     `json:"num_supported_claims"`
	NumRefuted       int     `json:"num_refuted_claims"`
	NumControversial int     `json:"num_controversial_claims"`
	Factuality       float64 `json:"factuality"`
}

// ResourceUsage reports how one credential was used during a run.
// The credential itself is never included, only its label.
type ResourceUsage struct {
	Resource  string  `json:"resource"`
	Requests  int     `json:"requests"`
	DailyUsed int     `json:"daily_used"`
	Successes int     `json:"successes"`
	Failures  int     `json:"failures"`
	Tokens    float64 `json:"bucket_tokens"` // Tokens left in the rate bucket
	LLMTokens int64   `json:"llm_tokens,omitempty"`
}
