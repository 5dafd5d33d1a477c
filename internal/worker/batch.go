package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Document is one input to a fact-check run. Either Text or URL is set.
type Document struct {
	Source string // label shown in reports (file:line, feed item, URL)
	Text   string
	URL    string
}

// Checker runs the full pipeline over one document
type Checker interface {
	CheckDocument(ctx context.Context, doc Document) (*model.Result, error)
}

// CheckJob checks a single document
type CheckJob struct {
	Doc     Document
	Checker Checker
}

// Execute runs the check
func (j *CheckJob) Execute(ctx context.Context) Result {
	result, err := j.Checker.CheckDocument(ctx, j.Doc)
	return &CheckResult{
		Source: j.Doc.Source,
		Result: result,
		Error:  err,
	}
}

// CheckResult is the outcome of one CheckJob
type CheckResult struct {
	Source string
	Result *model.Result
	Error  error
}

// GetError returns the job error
func (r *CheckResult) GetError() error {
	return r.Error
}

// BatchProcessor checks many documents with bounded concurrency. Every
// document's LLM calls still go through the shared Scheduler, so raising
// concurrency only overlaps search and fetch latency.
type BatchProcessor struct {
	checker     Checker
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(checker Checker, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		checker:     checker,
		concurrency: concurrency,
	}
}

// ProcessDocuments checks docs and returns one result per document in input order
func (b *BatchProcessor) ProcessDocuments(ctx context.Context, docs []Document) []*CheckResult {
	if len(docs) == 0 {
		return []*CheckResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, doc := range docs {
		pool.Submit(&CheckJob{Doc: doc, Checker: b.checker})
	}

	results := pool.Wait()
	out := make([]*CheckResult, len(docs))
	for i := range out {
		if i < len(results) && results[i] != nil {
			out[i] = results[i].(*CheckResult)
			continue
		}
		out[i] = &CheckResult{Source: docs[i].Source, Error: fmt.Errorf("not processed: %w", context.Cause(ctx))}
	}
	return out
}

// ReadDocumentsFromFile reads documents separated by blank lines. Lines
// starting with '#' are comments.
func ReadDocumentsFromFile(filePath string) ([]Document, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var docs []Document
	var current []string
	startLine := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		docs = append(docs, Document{
			Source: fmt.Sprintf("%s:%d", filePath, startLine),
			Text:   strings.Join(current, " "),
		})
		current = nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "" {
			flush()
			continue
		}
		if len(current) == 0 {
			startLine = lineNo
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	flush()

	return docs, nil
}

// ReadURLsFromFile reads URLs (one per line), skipping comments and duplicates
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return urls, nil
}
