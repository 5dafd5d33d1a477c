package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/score"
)

// Output formats accepted by Render
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// Renderer writes results in the supported output formats
type Renderer struct {
	scorer *score.Scorer
	md     goldmark.Markdown
}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{
		scorer: score.NewScorer(),
		md:     goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// Render writes r to w in format
func (rd *Renderer) Render(w io.Writer, r *model.Result, format string) error {
	switch format {
	case FormatText, "":
		return rd.RenderSummary(w, r)
	case FormatJSON:
		return rd.RenderJSON(w, r)
	case FormatMarkdown, "markdown":
		return rd.RenderMarkdown(w, r)
	case FormatHTML:
		return rd.RenderHTML(w, r)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// RenderJSON writes the result as indented JSON
func (rd *Renderer) RenderJSON(w io.Writer, r *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// RenderSummary writes a short terminal summary
func (rd *Renderer) RenderSummary(w io.Writer, r *model.Result) error {
	s := r.Summary
	var b strings.Builder

	fmt.Fprintf(&b, "\n═══ claimcheck %s ═══\n", shortID(r.ID))
	if r.Source != "" {
		fmt.Fprintf(&b, "Source:        %s\n", r.Source)
	}
	fmt.Fprintf(&b, "Factuality:    %.0f%%\n", s.Factuality*100)
	fmt.Fprintf(&b, "Claims:        %d (%d checkworthy, %d verified)\n", s.NumClaims, s.NumCheckworthy, s.NumVerified)
	fmt.Fprintf(&b, "Verdicts:      %d supported, %d refuted, %d controversial\n", s.NumSupported, s.NumRefuted, s.NumControversial)
	if median, stddev, ok := rd.scorer.Spread(r.ClaimDetail); ok {
		fmt.Fprintf(&b, "Spread:        median %.2f, stddev %.2f\n", median, stddev)
	}

	if len(r.ClaimDetail) > 0 {
		b.WriteString("\n")
	}
	for i, c := range r.ClaimDetail {
		fmt.Fprintf(&b, "%s %2d. %s  [%s]\n", verdictMark(rd.scorer.Classify(c.Factuality)), i+1, c.Text, c.Factuality)
	}

	for _, u := range r.Usage {
		if u.Requests == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %d requests (%d ok, %d failed), %d today", u.Resource, u.Requests, u.Successes, u.Failures, u.DailyUsed)
		if u.LLMTokens > 0 {
			fmt.Fprintf(&b, ", %d tokens", u.LLMTokens)
		}
	}
	if len(r.Usage) > 0 {
		b.WriteString("\n")
	}

	for _, warning := range r.Warnings {
		fmt.Fprintf(&b, "⚠ %s\n", warning)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderMarkdown writes a full report with per-claim evidence
func (rd *Renderer) RenderMarkdown(w io.Writer, r *model.Result) error {
	_, err := io.WriteString(w, rd.markdown(r))
	return err
}

// RenderHTML converts the Markdown report into a standalone HTML page
func (rd *Renderer) RenderHTML(w io.Writer, r *model.Result) error {
	var body bytes.Buffer
	if err := rd.md.Convert([]byte(rd.markdown(r)), &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}

	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>claimcheck %s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; vertical-align: top; }
blockquote { color: #555; border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; }
</style>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(shortID(r.ID)), body.String())
	return err
}

func (rd *Renderer) markdown(r *model.Result) string {
	s := r.Summary
	var b strings.Builder

	b.WriteString("# Fact-check report\n\n")
	fmt.Fprintf(&b, "- **Run:** `%s`\n", r.ID)
	if r.Source != "" {
		fmt.Fprintf(&b, "- **Source:** %s\n", mdInline(r.Source))
	}
	fmt.Fprintf(&b, "- **Checked:** %s\n", r.CreatedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "- **Factuality:** %.1f%%\n\n", s.Factuality*100)

	b.WriteString("| Claims | Checkworthy | Verified | Supported | Refuted | Controversial |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d |\n\n",
		s.NumClaims, s.NumCheckworthy, s.NumVerified, s.NumSupported, s.NumRefuted, s.NumControversial)

	if len(r.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, warning := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", mdInline(warning))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Claims\n\n")
	for i, c := range r.ClaimDetail {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, mdInline(c.Text))
		fmt.Fprintf(&b, "- **Verdict:** %s (%s)\n", rd.scorer.Classify(c.Factuality), c.Factuality)
		if c.OriginText != "" {
			fmt.Fprintf(&b, "- **Source text** [%d, %d): %s\n", c.Start, c.End, mdInline(c.OriginText))
		}
		fmt.Fprintf(&b, "- **Checkworthy:** %s\n", mdInline(c.CheckworthyReason))
		if len(c.Queries) > 0 {
			quoted := make([]string, len(c.Queries))
			for j, q := range c.Queries {
				quoted[j] = "`" + strings.ReplaceAll(q, "`", "'") + "`"
			}
			fmt.Fprintf(&b, "- **Queries:** %s\n", strings.Join(quoted, ", "))
		}
		b.WriteString("\n")

		if len(c.Evidences) == 0 {
			continue
		}
		b.WriteString("| # | Relationship | Evidence | Reasoning |\n")
		b.WriteString("|---|---|---|---|\n")
		for j, ev := range c.Evidences {
			evidence := mdCell(ev.Text)
			if ev.URL != "" {
				evidence = fmt.Sprintf("%s ([source](%s))", evidence, ev.URL)
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", j+1, ev.Relationship, evidence, mdCell(ev.Reasoning))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// RenderXLSX writes claims and evidence to two sheets of a workbook
func (rd *Renderer) RenderXLSX(path string, r *model.Result) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	claims := "Claims"
	if err := f.SetSheetName("Sheet1", claims); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	claimRows := [][]any{{"#", "Claim", "Verdict", "Factuality", "Checkworthy", "Reason", "Start", "End", "Origin text", "Queries", "Evidences"}}
	for i, c := range r.ClaimDetail {
		var factuality any = c.Factuality.Label
		if c.Factuality.Verified() {
			factuality = c.Factuality.Score
		}
		claimRows = append(claimRows, []any{
			i + 1, c.Text, string(rd.scorer.Classify(c.Factuality)), factuality,
			c.Checkworthy, c.CheckworthyReason, c.Start, c.End, c.OriginText,
			strings.Join(c.Queries, "\n"), len(c.Evidences),
		})
	}
	if err := writeRows(f, claims, claimRows); err != nil {
		return err
	}

	evidence := "Evidence"
	if _, err := f.NewSheet(evidence); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	evidenceRows := [][]any{{"Claim #", "Claim", "Query", "Relationship", "Evidence", "URL", "Reasoning"}}
	for i, c := range r.ClaimDetail {
		for _, ev := range c.Evidences {
			evidenceRows = append(evidenceRows, []any{i + 1, c.Text, ev.Query, string(ev.Relationship), ev.Text, ev.URL, ev.Reasoning})
		}
	}
	if err := writeRows(f, evidence, evidenceRows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func verdictMark(v score.Verdict) string {
	switch v {
	case score.VerdictSupported:
		return "✓"
	case score.VerdictRefuted:
		return "✗"
	case score.VerdictControversial:
		return "±"
	default:
		return "·"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func mdInline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func mdCell(s string) string {
	return strings.ReplaceAll(mdInline(s), "|", `\|`)
}
