// Package docs renders workflow documentation entries from markdown and
// serves the OpenAPI description of the HTTP API.
package docs

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AntiPatternNote is an anti-pattern as it appears in a write-up
type AntiPatternNote struct {
	Name     string
	Severity string
	Solution string
}

// Record is everything a resolved workflow contributes to its write-up
type Record struct {
	SessionID        string
	Developer        string
	Component        string
	FileName         string
	ErrorMessage     string
	ErrorType        string
	Category         string
	PatternName      string
	Confidence       float64
	Complexity       string
	EstimatedMinutes int
	Approach         string
	Steps            []string
	Prevention       []string
	AntiPatterns     []AntiPatternNote
	QualityScore     float64
	Recommendations  []string
	CreatedAt        time.Time
}

// Section is a heading and the plain text below it
type Section struct {
	Level   int
	Title   string
	Content string
}

// Renderer turns records into markdown and markdown into HTML
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer with GitHub flavoured markdown enabled
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Title builds the entry title, e.g. "Hydration Mismatch in UserProfile"
func Title(errorType, component string) string {
	name := strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(errorType))
	if name == "" {
		name = "unknown error"
	}
	title := cases.Title(language.English).String(name)
	if component != "" {
		title += " in " + component
	}
	return title
}

// Compose writes the markdown body of a record
func (r *Renderer) Compose(rec Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", Title(rec.ErrorType, rec.Component))

	b.WriteString("## Error\n\n")
	fmt.Fprintf(&b, "```text\n%s\n```\n\n", strings.TrimSpace(rec.ErrorMessage))
	if rec.FileName != "" {
		fmt.Fprintf(&b, "File: `%s`\n\n", rec.FileName)
	}

	b.WriteString("## Analysis\n\n")
	b.WriteString("| Field | Value |\n|---|---|\n")
	writeRow(&b, "Pattern", orNone(rec.PatternName))
	writeRow(&b, "Category", orNone(rec.Category))
	writeRow(&b, "Confidence", fmt.Sprintf("%.0f%%", rec.Confidence))
	writeRow(&b, "Complexity", orNone(rec.Complexity))
	writeRow(&b, "Estimated time", fmt.Sprintf("%d min", rec.EstimatedMinutes))
	writeRow(&b, "Approach", orNone(rec.Approach))
	writeRow(&b, "Quality score", fmt.Sprintf("%.0f", rec.QualityScore))
	b.WriteString("\n")

	if len(rec.AntiPatterns) > 0 {
		b.WriteString("## Anti-patterns\n\n")
		for _, ap := range rec.AntiPatterns {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", ap.Name, ap.Severity, ap.Solution)
		}
		b.WriteString("\n")
	}

	if len(rec.Steps) > 0 {
		b.WriteString("## Fix\n\n")
		for i, step := range rec.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		b.WriteString("\n")
	}

	if len(rec.Prevention) > 0 {
		b.WriteString("## Prevention\n\n")
		for _, p := range rec.Prevention {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}

	if len(rec.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, rc := range rec.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rc)
		}
		b.WriteString("\n")
	}

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	fmt.Fprintf(&b, "_Session %s, resolved by %s on %s_\n", rec.SessionID, orNone(rec.Developer), created.UTC().Format(time.RFC3339))

	return b.String()
}

// Render converts markdown to HTML. Raw HTML in the source is not passed through.
func (r *Renderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// Sections splits markdown into its headed sections
func (r *Renderer) Sections(markdown string) ([]Section, error) {
	source := []byte(markdown)
	doc := r.md.Parser().Parse(text.NewReader(source))

	sections := make([]Section, 0)
	var current *Section
	var content bytes.Buffer

	flush := func() {
		if current != nil {
			current.Content = strings.TrimSpace(content.String())
			sections = append(sections, *current)
			content.Reset()
		}
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if heading, ok := n.(*ast.Heading); ok {
			flush()
			current = &Section{Level: heading.Level, Title: nodeText(heading, source)}
			return ast.WalkSkipChildren, nil
		}

		if current != nil {
			if t, ok := n.(*ast.Text); ok {
				content.Write(t.Segment.Value(source))
				content.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk markdown: %w", err)
	}
	flush()

	return sections, nil
}

func nodeText(n ast.Node, source []byte) string {
	var b bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	return strings.TrimSpace(b.String())
}

func writeRow(b *strings.Builder, field, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", field, strings.ReplaceAll(value, "|", "\\|"))
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
