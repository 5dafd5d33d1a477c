package score

import (
	"log/slog"

	"github.com/montanaflynn/stats"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Verdict labels a claim by its factuality
type Verdict string

const (
	VerdictSupported      Verdict = "supported"
	VerdictRefuted        Verdict = "refuted"
	VerdictControversial  Verdict = "controversial"
	VerdictNoEvidence     Verdict = "no evidence"
	VerdictNotCheckworthy Verdict = "not checkworthy"
)

// Scorer computes per-claim factuality and the document summary
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Factuality returns S/(S+R) over the verified evidence of a claim, where S
// counts SUPPORTS and R counts REFUTES. Without any decisive evidence the
// claim has no evidence.
func (s *Scorer) Factuality(evidence []model.Evidence) model.Factuality {
	var supports, refutes int
	for _, ev := range evidence {
		switch ev.Relationship {
		case model.RelationshipSupports:
			supports++
		case model.RelationshipRefutes:
			refutes++
		}
	}
	if supports+refutes == 0 {
		return model.Sentinel(model.FactualityNoEvidence)
	}
	return model.Scored(float64(supports) / float64(supports+refutes))
}

// Calculate aggregates finalized claims into a summary.
//
// A claim counts as checkworthy unless its factuality is "not checkworthy",
// and as verified when its factuality carries a score. Supported and refuted
// claims are the verified ones scoring exactly 1 and 0; the rest of the
// verified claims are controversial. The document factuality is the mean score
// of verified claims, 0 when there are none.
func (s *Scorer) Calculate(claims []model.Claim) model.Summary {
	summary := model.Summary{NumClaims: len(claims)}

	var scores stats.Float64Data
	for _, c := range claims {
		if c.Factuality.Label != model.FactualityNotCheckworthy {
			summary.NumCheckworthy++
		}
		if !c.Factuality.Verified() {
			continue
		}
		scores = append(scores, c.Factuality.Score)
		switch c.Factuality.Score {
		case 1:
			summary.NumSupported++
		case 0:
			summary.NumRefuted++
		}
	}

	summary.NumVerified = len(scores)
	summary.NumControversial = summary.NumVerified - summary.NumSupported - summary.NumRefuted

	if len(scores) > 0 {
		mean, err := stats.Mean(scores)
		if err != nil {
			slog.Warn("factuality mean", "error", err)
		} else {
			summary.Factuality = mean
		}
	}

	return summary
}

// Classify names the verdict behind a factuality
func (s *Scorer) Classify(f model.Factuality) Verdict {
	if !f.Verified() {
		if f.Label == model.FactualityNotCheckworthy {
			return VerdictNotCheckworthy
		}
		return VerdictNoEvidence
	}
	switch f.Score {
	case 1:
		return VerdictSupported
	case 0:
		return VerdictRefuted
	default:
		return VerdictControversial
	}
}

// Spread reports the median and standard deviation of verified claim scores.
// ok is false when fewer than two claims were verified.
func (s *Scorer) Spread(claims []model.Claim) (median, stddev float64, ok bool) {
	var scores stats.Float64Data
	for _, c := range claims {
		if c.Factuality.Verified() {
			scores = append(scores, c.Factuality.Score)
		}
	}
	if len(scores) < 2 {
		return 0, 0, false
	}
	median, err := scores.Median()
	if err != nil {
		return 0, 0, false
	}
	stddev, err = scores.StandardDeviation()
	if err != nil {
		return 0, 0, false
	}
	return median, stddev, true
}
