package extract

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ppiankov/claimcheck/internal/llm"
)

// scriptedClient answers calls from a fixed list, recording seed hints
type scriptedClient struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	seeds   []int
	calls   int
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Call(ctx context.Context, messages []llm.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.calls
	c.calls++
	if seed, ok := llm.SeedFrom(ctx); ok {
		c.seeds = append(c.seeds, seed)
	}
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.answers) {
		return c.answers[i], nil
	}
	return "", errors.New("no scripted answer")
}

func TestDecomposer_ModelClaims(t *testing.T) {
	client := &scriptedClient{answers: []string{
		"```json\n{\"claims\": [\"Mary is five.\", \" Mary likes piano. \", \"mary is five.\", \"\"]}\n```",
	}}
	d := NewDecomposer(client, 3, 3)

	claims, fellBack := d.Decompose(context.Background(), "Mary is five. She likes piano.")
	if fellBack {
		t.Fatal("Expected model claims, got fallback")
	}
	if len(claims) != 2 || claims[0] != "Mary is five." || claims[1] != "Mary likes piano." {
		t.Errorf("Unexpected claims: %q", claims)
	}
	if client.calls != 1 {
		t.Errorf("Expected 1 call, got %d", client.calls)
	}
}

func TestDecomposer_RetriesWithNewSeed(t *testing.T) {
	client := &scriptedClient{
		answers: []string{"not json", `{"claims": []}`, `{"claims": ["Water boils at 100C."]}`},
	}
	d := NewDecomposer(client, 3, 3)

	claims, fellBack := d.Decompose(context.Background(), "Water boils at 100C.")
	if fellBack || len(claims) != 1 {
		t.Fatalf("Expected one model claim, got %q (fallback=%v)", claims, fellBack)
	}
	want := []int{42, 43, 44}
	if len(client.seeds) != len(want) {
		t.Fatalf("Expected seeds %v, got %v", want, client.seeds)
	}
	for i := range want {
		if client.seeds[i] != want[i] {
			t.Errorf("Attempt %d: expected seed %d, got %d", i, want[i], client.seeds[i])
		}
	}
}

func TestDecomposer_FallsBackToSentences(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("boom"), errors.New("boom")}}
	d := NewDecomposer(client, 2, 3)

	claims, fellBack := d.Decompose(context.Background(), "Paris is in France. Ok. Hi! The Nile is long.")
	if !fellBack {
		t.Fatal("Expected fallback")
	}
	want := []string{"Paris is in France.", "Ok.", "Hi!", "The Nile is long."}
	if len(claims) != len(want) {
		t.Fatalf("Expected %q, got %q", want, claims)
	}
	for i := range want {
		if claims[i] != want[i] {
			t.Errorf("Sentence %d: expected %q, got %q", i, want[i], claims[i])
		}
	}
	if client.calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", client.calls)
	}
}

func TestDecomposer_NilClientAndEmptyDoc(t *testing.T) {
	d := NewDecomposer(nil, 3, 3)

	claims, fellBack := d.Decompose(context.Background(), "One sentence here.")
	if !fellBack || len(claims) != 1 {
		t.Errorf("Expected fallback with one sentence, got %q", claims)
	}

	claims, fellBack = d.Decompose(context.Background(), "   ")
	if fellBack || claims != nil {
		t.Errorf("Expected no claims for blank doc, got %q", claims)
	}
}

func TestDedupeClaims_CaseInsensitive(t *testing.T) {
	got := dedupeClaims([]string{"A fact.", "a FACT.", " Another. ", ""})
	if len(got) != 2 || got[0] != "A fact." || got[1] != "Another." {
		t.Errorf("Unexpected result: %q", got)
	}
}
