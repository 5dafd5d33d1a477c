package validate

import (
	"errors"
	"fmt"
	"math"

	"github.com/ppiankov/claimcheck/internal/model"
)

// ErrInconsistent marks a finalized result that breaks a structural invariant.
// It indicates a bug, never a collaborator failure.
var ErrInconsistent = errors.New("inconsistent result")

// Consistency checks finalized claims against the document they came from:
// spans lie within the document, start where the previous one ended or later,
// never overlap, and carry exactly the text they cover. Verified evidence must
// carry one of the three relationships and scores must lie in [0,1].
func Consistency(doc string, claims []model.Claim) error {
	prevEnd := 0
	for i, c := range claims {
		if c.Start < 0 || c.End > len(doc) || c.Start > c.End {
			return fmt.Errorf("%w: claim %d span [%d,%d) outside document of %d bytes", ErrInconsistent, i, c.Start, c.End, len(doc))
		}
		if c.Start < prevEnd {
			return fmt.Errorf("%w: claim %d starts at %d before previous end %d", ErrInconsistent, i, c.Start, prevEnd)
		}
		if c.OriginText != doc[c.Start:c.End] {
			return fmt.Errorf("%w: claim %d origin text does not match span [%d,%d)", ErrInconsistent, i, c.Start, c.End)
		}
		prevEnd = c.End

		for j, ev := range c.Evidences {
			if !ev.Relationship.Valid() {
				return fmt.Errorf("%w: claim %d evidence %d has relationship %q", ErrInconsistent, i, j, ev.Relationship)
			}
		}

		f := c.Factuality
		if f.Verified() {
			if math.IsNaN(f.Score) || f.Score < 0 || f.Score > 1 {
				return fmt.Errorf("%w: claim %d factuality %v outside [0,1]", ErrInconsistent, i, f.Score)
			}
		} else if f.Label != model.FactualityNoEvidence && f.Label != model.FactualityNotCheckworthy {
			return fmt.Errorf("%w: claim %d factuality label %q", ErrInconsistent, i, f.Label)
		}
		if !c.Checkworthy && f.Label != model.FactualityNotCheckworthy {
			return fmt.Errorf("%w: claim %d is not checkworthy but has factuality %s", ErrInconsistent, i, f)
		}
	}
	return nil
}

// Summary checks the aggregate counts against each other
func Summary(s model.Summary) error {
	switch {
	case s.NumCheckworthy > s.NumClaims:
		return fmt.Errorf("%w: %d checkworthy of %d claims", ErrInconsistent, s.NumCheckworthy, s.NumClaims)
	case s.NumVerified > s.NumCheckworthy:
		return fmt.Errorf("%w: %d verified of %d checkworthy claims", ErrInconsistent, s.NumVerified, s.NumCheckworthy)
	case s.NumSupported+s.NumRefuted+s.NumControversial != s.NumVerified:
		return fmt.Errorf("%w: verdict counts do not add up to %d verified claims", ErrInconsistent, s.NumVerified)
	case s.Factuality < 0 || s.Factuality > 1:
		return fmt.Errorf("%w: factuality %v outside [0,1]", ErrInconsistent, s.Factuality)
	}
	return nil
}
