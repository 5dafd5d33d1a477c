package model

import "strings"

// Evidence is one retrieved snippet tied to exactly one claim
type Evidence struct {
	Claim        string       `json:"claim"`
	Query        string       `json:"query,omitempty"` // Search query that surfaced it
	Text         string       `json:"text"`
	URL          string       `json:"url"`
	Relationship Relationship `json:"relationship,omitempty"` // Empty until verified
	Reasoning    string       `json:"reasoning,omitempty"`
}

// Relationship classifies how a piece of evidence bears on a claim
type Relationship string

const (
	RelationshipSupports   Relationship = "SUPPORTS"
	RelationshipRefutes    Relationship = "REFUTES"
	RelationshipIrrelevant Relationship = "IRRELEVANT"
)

// ParseRelationship normalizes model output; anything unknown is IRRELEVANT.
func ParseRelationship(s string) Relationship {
	switch Relationship(strings.ToUpper(strings.TrimSpace(s))) {
	case RelationshipSupports:
		return RelationshipSupports
	case RelationshipRefutes:
		return RelationshipRefutes
	default:
		return RelationshipIrrelevant
	}
}

// Valid reports whether r is one of the three enumerated values
func (r Relationship) Valid() bool {
	return r == RelationshipSupports || r == RelationshipRefutes || r == RelationshipIrrelevant
}
