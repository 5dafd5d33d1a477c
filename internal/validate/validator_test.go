package validate

import (
	"errors"
	"math"
	"testing"

	"github.com/ppiankov/claimcheck/internal/model"
)

const doc = "Mary is five. She likes piano."

func claim(start, end int) model.Claim {
	return model.Claim{
		Text:        doc[start:end],
		Checkworthy: true,
		OriginText:  doc[start:end],
		Start:       start,
		End:         end,
		Factuality:  model.Sentinel(model.FactualityNoEvidence),
	}
}

func TestConsistency_Valid(t *testing.T) {
	first := claim(0, 13)
	first.Evidences = []model.Evidence{{Text: "x", Relationship: model.RelationshipSupports}}
	first.Factuality = model.Scored(1)

	skipped := claim(13, 13)
	skipped.Checkworthy = false
	skipped.Factuality = model.Sentinel(model.FactualityNotCheckworthy)

	claims := []model.Claim{first, skipped, claim(13, len(doc))}

	if err := Consistency(doc, claims); err != nil {
		t.Errorf("Expected consistent result, got %v", err)
	}
}

func TestConsistency_Violations(t *testing.T) {
	tests := []struct {
		name   string
		claims func() []model.Claim
	}{
		{"past end", func() []model.Claim {
			c := claim(0, 13)
			c.End = len(doc) + 1
			return []model.Claim{c}
		}},
		{"negative start", func() []model.Claim {
			c := claim(0, 13)
			c.Start = -1
			return []model.Claim{c}
		}},
		{"overlap", func() []model.Claim {
			return []model.Claim{claim(0, 13), claim(10, len(doc))}
		}},
		{"text mismatch", func() []model.Claim {
			c := claim(0, 13)
			c.OriginText = "Mary is six."
			return []model.Claim{c}
		}},
		{"empty relationship", func() []model.Claim {
			c := claim(0, 13)
			c.Evidences = []model.Evidence{{Text: "x"}}
			return []model.Claim{c}
		}},
		{"score out of range", func() []model.Claim {
			c := claim(0, 13)
			c.Factuality = model.Scored(1.5)
			return []model.Claim{c}
		}},
		{"nan score", func() []model.Claim {
			c := claim(0, 13)
			c.Factuality = model.Scored(math.NaN())
			return []model.Claim{c}
		}},
		{"unknown label", func() []model.Claim {
			c := claim(0, 13)
			c.Factuality = model.Sentinel("Nothing to check.")
			return []model.Claim{c}
		}},
		{"not checkworthy but scored", func() []model.Claim {
			c := claim(0, 13)
			c.Checkworthy = false
			c.Factuality = model.Scored(1)
			return []model.Claim{c}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Consistency(doc, tt.claims())
			if !errors.Is(err, ErrInconsistent) {
				t.Errorf("Expected ErrInconsistent, got %v", err)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	valid := model.Summary{NumClaims: 3, NumCheckworthy: 2, NumVerified: 2, NumSupported: 1, NumRefuted: 1, Factuality: 0.5}
	if err := Summary(valid); err != nil {
		t.Errorf("Expected valid summary, got %v", err)
	}

	broken := []model.Summary{
		{NumClaims: 1, NumCheckworthy: 2},
		{NumClaims: 2, NumCheckworthy: 1, NumVerified: 2},
		{NumClaims: 2, NumCheckworthy: 2, NumVerified: 2, NumSupported: 1},
		{Factuality: 1.2},
	}
	for i, s := range broken {
		if err := Summary(s); !errors.Is(err, ErrInconsistent) {
			t.Errorf("case %d: expected ErrInconsistent, got %v", i, err)
		}
	}
}
