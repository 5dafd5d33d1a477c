package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when a model answer holds no parsable JSON value
var ErrNoJSON = errors.New("no JSON object in model response")

// Pair is one key/value entry of a JSON object, in document order
type Pair struct {
	Key   string
	Value gjson.Result
}

// CleanJSON strips markdown fences and surrounding prose from a model answer
// and returns the outermost JSON object or array.
func CleanJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			// language tag on the fence line
			if !strings.ContainsAny(s[:nl], "{[") {
				s = s[nl+1:]
			}
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	if gjson.Valid(s) && (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) {
		return s, nil
	}

	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(s, pair[0])
		end := strings.LastIndexByte(s, pair[1])
		if start >= 0 && end > start {
			candidate := s[start : end+1]
			if gjson.Valid(candidate) {
				return candidate, nil
			}
		}
	}
	return "", ErrNoJSON
}

// DecodeJSON cleans a model answer and unmarshals it into v
func DecodeJSON(text string, v any) error {
	clean, err := CleanJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}

// ObjectPairs parses a model answer as a JSON object and returns its entries
// in the order the model wrote them.
func ObjectPairs(text string) ([]Pair, error) {
	clean, err := CleanJSON(text)
	if err != nil {
		return nil, err
	}
	root := gjson.Parse(clean)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: got %s", ErrNoJSON, root.Type)
	}
	var pairs []Pair
	root.ForEach(func(key, value gjson.Result) bool {
		pairs = append(pairs, Pair{Key: key.String(), Value: value})
		return true
	})
	return pairs, nil
}

// Lookup returns the value at a gjson path in a cleaned model answer
func Lookup(text, path string) (gjson.Result, error) {
	clean, err := CleanJSON(text)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.Get(clean, path), nil
}
