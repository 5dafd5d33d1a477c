package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/worker"
)

var (
	inputFile  string
	inputURL   string
	format     string
	outputPath string
	xlsxPath   string
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [text | -]",
	Short: "Fact-check one document",
	Long: `Check decomposes a document into claims and verifies each checkworthy
claim against web evidence.

The document is read from exactly one of:
- the positional argument (the text itself)
- stdin, when the argument is "-"
- --file (plain text or HTML)
- --url (fetched with robots.txt respected, article text extracted)

Example:
  claimcheck check "Mary is a five-year-old girl who likes to play piano."
  cat article.txt | claimcheck check -
  claimcheck check --file notes.md --format md --output report.md
  claimcheck check --url https://example.com/post --format json --xlsx claims.xlsx`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&inputFile, "file", "f", "", "read the document from a file")
	checkCmd.Flags().StringVarP(&inputURL, "url", "u", "", "fetch the document from a URL")
	checkCmd.Flags().StringVar(&format, "format", "text", "output format (text, json, md, html)")
	checkCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the report to a file instead of stdout")
	checkCmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also export claims and evidence to an Excel workbook")
	addRunFlags(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	doc, err := resolveDocument(args, inputFile, inputURL, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := finishConfig(cfg); err != nil {
		return err
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	ctx, cancel := runContext(cmd)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s\n", doc.Source)
		fmt.Fprintf(os.Stderr, "LLM:      %s/%s (%d keys)\n", cfg.LLM.Provider, cfg.LLM.Model, max(1, len(cfg.LLM.APIKeys)))
		fmt.Fprintf(os.Stderr, "Search:   %s\n", cfg.Search.Provider)
		fmt.Fprintln(os.Stderr)
	}

	result, err := rt.pipeline.CheckDocument(ctx, doc)
	if err != nil {
		return fmt.Errorf("check %s: %w", doc.Source, err)
	}

	if err := writeReport(cmd.OutOrStdout(), outputPath, format, rt.renderer, result); err != nil {
		return err
	}
	if xlsxPath != "" {
		if err := rt.renderer.RenderXLSX(xlsxPath, result); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Claims exported: %s\n", xlsxPath)
	}
	if cfg.Output.Verbose {
		fmt.Fprintln(os.Stderr)
		rt.printDiagnostics(os.Stderr)
	}
	return nil
}

// runContext bounds a run by --timeout and cancels it on interrupt. The
// --seed flag travels with the context to the providers.
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if cmd.Flags().Changed("seed") {
		ctx = llm.WithSeed(ctx, runOpts.seed)
	}
	if runOpts.timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, runOpts.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// resolveDocument picks the single input source given on the command line
func resolveDocument(args []string, file, rawURL string, stdin io.Reader) (worker.Document, error) {
	sources := 0
	if len(args) > 0 {
		sources++
	}
	if file != "" {
		sources++
	}
	if rawURL != "" {
		sources++
	}
	switch {
	case sources == 0:
		return worker.Document{}, errors.New("no input: pass text, \"-\" for stdin, --file or --url")
	case sources > 1:
		return worker.Document{}, errors.New("give exactly one input: text, \"-\", --file or --url")
	}

	switch {
	case rawURL != "":
		if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
			return worker.Document{}, fmt.Errorf("--url must be http or https: %s", rawURL)
		}
		return worker.Document{Source: rawURL, URL: rawURL}, nil

	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return worker.Document{}, fmt.Errorf("read input: %w", err)
		}
		text, err := documentText(string(data))
		if err != nil {
			return worker.Document{}, fmt.Errorf("read %s: %w", file, err)
		}
		return worker.Document{Source: file, Text: text}, nil

	case args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return worker.Document{}, fmt.Errorf("read stdin: %w", err)
		}
		text, err := documentText(string(data))
		if err != nil {
			return worker.Document{}, fmt.Errorf("read stdin: %w", err)
		}
		return worker.Document{Source: "stdin", Text: text}, nil

	default:
		return worker.Document{Source: "text", Text: args[0]}, nil
	}
}

// documentText strips markup from HTML input and passes prose through
func documentText(s string) (string, error) {
	if !extract.LooksLikeHTML(s) {
		return s, nil
	}
	return extract.VisibleText(s)
}

// writeReport renders result to path, or to stdout when path is empty
func writeReport(stdout io.Writer, path, format string, rd *pipeline.Renderer, result *model.Result) (err error) {
	if path == "" {
		return rd.Render(stdout, result, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close report: %w", closeErr)
		}
	}()

	if err := rd.Render(f, result, format); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Report written: %s\n", path)
	return nil
}
