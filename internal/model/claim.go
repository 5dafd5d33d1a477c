package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Claim is an atomic factual statement produced by decomposition, carried
// through every later stage and frozen at finalize.
type Claim struct {
	Text              string     `json:"claim"`
	Checkworthy       bool       `json:"checkworthy"`
	CheckworthyReason string     `json:"checkworthy_reason"`
	OriginText        string     `json:"origin_text"`
	Start             int        `json:"start"`
	End               int        `json:"end"`
	Queries           []string   `json:"queries"`
	Evidences         []Evidence `json:"evidences"`
	Factuality        Factuality `json:"factuality"`
}

// Factuality sentinels used when no score can be computed
const (
	FactualityNoEvidence     = "no evidence"
	FactualityNotCheckworthy = "not checkworthy"
)

// Factuality is either a score in [0,1] or a sentinel label.
type Factuality struct {
	Score float64
	Label string // empty when Score is meaningful
}

// Scored returns a numeric factuality
func Scored(score float64) Factuality {
	return Factuality{Score: score}
}

// Sentinel returns a label-only factuality
func Sentinel(label string) Factuality {
	return Factuality{Label: label}
}

// Verified reports whether the factuality carries a score
func (f Factuality) Verified() bool {
	return f.Label == ""
}

func (f Factuality) String() string {
	if f.Verified() {
		return strconv.FormatFloat(f.Score, 'f', 2, 64)
	}
	return f.Label
}

// MarshalJSON encodes a score as a number and a sentinel as a string
func (f Factuality) MarshalJSON() ([]byte, error) {
	if f.Verified() {
		return json.Marshal(f.Score)
	}
	return json.Marshal(f.Label)
}

// UnmarshalJSON accepts either form
func (f *Factuality) UnmarshalJSON(data []byte) error {
	var score float64
	if err := json.Unmarshal(data, &score); err == nil {
		*f = Scored(score)
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("factuality: expected number or string, got %s", string(data))
	}
	*f = Sentinel(label)
	return nil
}
