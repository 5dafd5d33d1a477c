package prompt

import (
	"strings"
	"testing"
)

func TestVerify_NumbersEvidence(t *testing.T) {
	p := Verify("Paris is in France.", []string{"Paris is the capital of France.", "Lyon is a city."})

	for _, want := range []string{
		"Claim: Paris is in France.",
		"[Evidence 1]: Paris is the capital of France.",
		"[Evidence 2]: Lyon is a city.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "{{") {
		t.Error("unreplaced placeholder in prompt")
	}
}

func TestRestore_QuotesClaims(t *testing.T) {
	p := Restore("Mary is five.", []string{`Mary is "five".`})
	if !strings.Contains(p, `Claims: ["Mary is \"five\"."]`) {
		t.Errorf("claims not JSON encoded:\n%s", p)
	}
}

func TestQueriesAndCheckworthy_LabelEveryClaim(t *testing.T) {
	claims := []string{"A is B.", "C is D."}

	q := Queries(claims, 5)
	if !strings.Contains(q, "claim_1: A is B.") || !strings.Contains(q, "claim_2: C is D.") {
		t.Errorf("query prompt missing labels:\n%s", q)
	}
	if !strings.Contains(q, "At most 5 questions") {
		t.Error("query prompt missing limit")
	}

	c := Checkworthy(claims)
	if !strings.Contains(c, "1. A is B.\n2. C is D.") {
		t.Errorf("checkworthy prompt missing statements:\n%s", c)
	}
}

func TestDecompose(t *testing.T) {
	if p := Decompose("The sky is blue."); !strings.Contains(p, "Text: The sky is blue.\nAnswer:") {
		t.Errorf("document not embedded:\n%s", p)
	}
}
