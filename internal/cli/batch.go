package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/worker"
)

var (
	concurrency int
	outputDir   string
	urlsFile    string
	feedURLs    []string
	feedLimit   int
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Fact-check many documents",
	Long: `Batch checks several documents and writes one report per document.

Documents come from any combination of:
- a text file, documents separated by blank lines ('#' starts a comment)
- --urls, a file with one URL per line
- --feed, an RSS/Atom feed whose item links are fetched

Every document shares the same API keys and quota, so raising --concurrency
overlaps search and fetch latency but never exceeds the configured rates.

Example:
  claimcheck batch statements.txt
  claimcheck batch --urls urls.txt --concurrency 4 --output-dir ./reports
  claimcheck batch --feed https://example.com/rss.xml --feed-limit 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 2, "documents checked at the same time")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./claimcheck-reports", "output directory for reports")
	batchCmd.Flags().StringVar(&urlsFile, "urls", "", "file with one URL per line")
	batchCmd.Flags().StringSliceVar(&feedURLs, "feed", nil, "RSS/Atom feed URL (repeatable)")
	batchCmd.Flags().IntVar(&feedLimit, "feed-limit", 10, "max items taken from each feed")
	addRunFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && urlsFile == "" && len(feedURLs) == 0 {
		return fmt.Errorf("no input: pass a documents file, --urls or --feed")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := finishConfig(cfg); err != nil {
		return err
	}

	ctx, cancel := runContext(cmd)
	defer cancel()

	docs, err := collectDocuments(ctx, args, cfg.HTTP.UserAgent)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents found in input")
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  claimcheck Batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Documents:    %d\n", len(docs))
	fmt.Fprintf(os.Stderr, "  Concurrency:  %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  LLM:          %s/%s (%d keys)\n", cfg.LLM.Provider, cfg.LLM.Model, max(1, len(cfg.LLM.APIKeys)))
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	processor := worker.NewBatchProcessor(rt.pipeline, concurrency)
	results := processor.ProcessDocuments(ctx, docs)

	successCount := 0
	failureCount := 0
	var factualitySum float64

	for i, res := range results {
		if res.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", res.Source, res.Error)
			continue
		}

		slug := fmt.Sprintf("%03d-%s", i+1, sanitizeFilename(res.Source))
		if err := writeBatchReports(rt.renderer, res.Result, slug); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", res.Source, err)
			continue
		}

		successCount++
		s := res.Result.Summary
		factualitySum += s.Factuality
		fmt.Fprintf(os.Stderr, "✓ %s (claims: %d, verified: %d, factuality: %.2f)\n",
			res.Source, s.NumClaims, s.NumVerified, s.Factuality)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:        %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:      %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:     %d\n", failureCount)
	if successCount > 0 {
		fmt.Fprintf(os.Stderr, "  Factuality:   %.2f (mean)\n", factualitySum/float64(successCount))
	}
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", outputDir)
	rt.printDiagnostics(os.Stderr)
	fmt.Fprintf(os.Stderr, "\n")

	if successCount == 0 {
		return fmt.Errorf("all %d documents failed", len(results))
	}
	return nil
}

// collectDocuments gathers documents from the file argument, --urls and --feed
func collectDocuments(ctx context.Context, args []string, userAgent string) ([]worker.Document, error) {
	var docs []worker.Document

	if len(args) > 0 {
		fileDocs, err := worker.ReadDocumentsFromFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("read documents: %w", err)
		}
		docs = append(docs, fileDocs...)
	}

	if urlsFile != "" {
		urls, err := worker.ReadURLsFromFile(urlsFile)
		if err != nil {
			return nil, fmt.Errorf("read urls: %w", err)
		}
		for _, u := range urls {
			docs = append(docs, worker.Document{Source: u, URL: u})
		}
	}

	if len(feedURLs) > 0 {
		parser := gofeed.NewParser()
		parser.UserAgent = userAgent
		for _, feedURL := range feedURLs {
			feedDocs, err := feedDocuments(ctx, parser, feedURL, feedLimit)
			if err != nil {
				// one broken feed should not sink the others
				slog.Warn("feed skipped", "url", feedURL, "error", err)
				fmt.Fprintf(os.Stderr, "✗ feed %s: %v\n", feedURL, err)
				continue
			}
			docs = append(docs, feedDocs...)
		}
	}

	return docs, nil
}

// feedDocuments turns up to limit feed items into documents. Items with a
// link are fetched; items without one are checked on their own content.
func feedDocuments(ctx context.Context, parser *gofeed.Parser, feedURL string, limit int) ([]worker.Document, error) {
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	var docs []worker.Document
	for _, item := range feed.Items {
		if limit > 0 && len(docs) >= limit {
			break
		}
		if doc, ok := feedItemDocument(item); ok {
			docs = append(docs, doc)
		}
	}
	slog.Debug("parsed feed", "url", feedURL, "title", feed.Title, "items", len(docs))
	return docs, nil
}

func feedItemDocument(item *gofeed.Item) (worker.Document, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" && strings.HasPrefix(item.GUID, "http") {
		link = item.GUID
	}
	if link != "" {
		return worker.Document{Source: link, URL: link}, true
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}
	text, err := documentText("<html><body>" + content + "</body></html>")
	if err != nil || strings.TrimSpace(text) == "" {
		return worker.Document{}, false
	}
	source := strings.TrimSpace(item.Title)
	if source == "" {
		source = "feed item"
	}
	return worker.Document{Source: source, Text: text}, true
}

// writeBatchReports writes slug.json and slug.md into outputDir
func writeBatchReports(rd *pipeline.Renderer, r *model.Result, slug string) error {
	for _, out := range []struct {
		ext    string
		format string
	}{
		{".json", pipeline.FormatJSON},
		{".md", pipeline.FormatMarkdown},
	} {
		path := filepath.Join(outputDir, slug+out.ext)
		if err := writeFile(path, func(f *os.File) error { return rd.Render(f, r, out.format) }); err != nil {
			return fmt.Errorf("failed to write %s: %w", out.format, err)
		}
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return write(f)
}

// sanitizeFilename turns a document source into a file name
func sanitizeFilename(s string) string {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "https://"), "http://")

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = strings.Trim(replacer.Replace(s), "._-")
	if s == "" {
		return "document"
	}

	// Limit length without splitting a rune
	if len(s) > 100 {
		s = s[:100]
		for !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
	}
	return s
}
