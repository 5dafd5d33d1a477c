package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// VisibleText returns the readable text of an HTML document. Block elements
// become line breaks so sentence splitting keeps paragraph boundaries.
func VisibleText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}
	return collapseLines(extractVisibleText(doc)), nil
}

// LooksLikeHTML reports whether s appears to be markup rather than prose
func LooksLikeHTML(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		(strings.HasPrefix(head, "<") && strings.Contains(head, "<body"))
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg", "template":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) {
			buf.WriteString("\n")
		}
	}

	walk(n)
	return buf.String()
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6",
		"section", "article", "blockquote", "tr", "pre", "header", "footer":
		return true
	}
	return false
}

func collapseLines(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// SplitSentences splits text on '.', '!' and '?' followed by whitespace, and
// on line breaks. Sentences shorter than minLen characters are dropped.
func SplitSentences(text string, minLen int) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		current.Reset()
		if utf8.RuneCountInString(sentence) >= minLen {
			sentences = append(sentences, sentence)
		}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// closing quotes and brackets stay with their sentence
		for i+1 < len(runes) && strings.ContainsRune(`"')]”’`, runes[i+1]) {
			i++
			current.WriteRune(runes[i])
		}
		if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
			flush()
		}
	}
	flush()

	return sentences
}
