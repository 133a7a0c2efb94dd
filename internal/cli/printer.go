package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"bugx/internal/analysis"
	"bugx/internal/database"
	"bugx/internal/docs"
	"bugx/internal/patterns"
	"bugx/internal/workflow"
)

// printer renders results as colored text and tables
type printer struct {
	out    io.Writer
	errOut io.Writer

	title   *color.Color
	success *color.Color
	failure *color.Color
	warning *color.Color
	muted   *color.Color
}

func newPrinter(out, errOut io.Writer) *printer {
	return &printer{
		out:     out,
		errOut:  errOut,
		title:   color.New(color.FgCyan, color.Bold),
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		warning: color.New(color.FgYellow),
		muted:   color.New(color.Faint),
	}
}

func (p *printer) json(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) linef(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) heading(text string) {
	_, _ = p.title.Fprintf(p.out, "\n%s\n", text)
}

func (p *printer) errorf(format string, args ...interface{}) {
	_, _ = p.failure.Fprintf(p.errOut, format+"\n", args...)
}

func (p *printer) severity(s patterns.Severity) string {
	switch s {
	case patterns.SeverityCritical:
		return p.failure.Sprint(s.String())
	case patterns.SeverityHigh:
		return p.warning.Sprint(s.String())
	default:
		return s.String()
	}
}

func (p *printer) quality(score float64) string {
	text := fmt.Sprintf("%.0f/100", score)
	switch {
	case score >= 80:
		return p.success.Sprint(text)
	case score >= 60:
		return p.warning.Sprint(text)
	default:
		return p.failure.Sprint(text)
	}
}

// workflowResult prints a quick fix result
func (p *printer) workflowResult(result workflow.Result) error {
	status := p.success.Sprint("completed")
	if !result.Success {
		status = p.failure.Sprintf("failed in %s", result.FailedPhase)
	}

	table := tablewriter.NewWriter(p.out)
	table.Header("Field", "Value")
	_ = table.Append([]string{"Session", result.SessionID})
	_ = table.Append([]string{"Status", status})
	_ = table.Append([]string{"Quality", p.quality(result.QualityScore)})
	_ = table.Append([]string{"Template", orDash(result.TemplateUsed)})
	_ = table.Append([]string{"Documented", strconv.FormatBool(result.DocumentationCreated)})
	_ = table.Append([]string{"Team notified", strconv.FormatBool(result.TeamNotified)})
	if result.Error != "" {
		_ = table.Append([]string{"Error", result.Error})
	}
	if err := table.Render(); err != nil {
		return err
	}

	if err := p.patternAnalysis(result.PatternAnalysis); err != nil {
		return err
	}
	if result.ContextAnalysis != nil {
		if err := p.contextAnalysis(*result.ContextAnalysis); err != nil {
			return err
		}
	}

	if result.Implementation != nil && len(result.Implementation.Steps) > 0 {
		p.heading("Fix steps")
		for _, step := range result.Implementation.Steps {
			p.linef("%2d. %s", step.Order, step.Action)
			if step.Detail != "" {
				_, _ = p.muted.Fprintf(p.out, "    %s\n", step.Detail)
			}
		}
		if len(result.Implementation.PreventionMeasures) > 0 {
			p.heading("Prevention")
			for _, measure := range result.Implementation.PreventionMeasures {
				p.linef("  - %s", measure)
			}
		}
	}

	p.list("Recommendations", result.Recommendations, nil)
	p.list("Warnings", result.Warnings, p.warning)
	return nil
}

func (p *printer) list(title string, items []string, c *color.Color) {
	if len(items) == 0 {
		return
	}
	p.heading(title)
	for _, item := range items {
		if c != nil {
			_, _ = c.Fprintf(p.out, "  - %s\n", item)
			continue
		}
		p.linef("  - %s", item)
	}
}

func (p *printer) patternAnalysis(found workflow.PatternAnalysis) error {
	p.heading("Pattern matches")
	if len(found.Matches) == 0 {
		p.linef("  no known pattern matched")
	} else {
		table := tablewriter.NewWriter(p.out)
		table.Header("Pattern", "Category", "Template", "Confidence")
		for _, m := range found.Matches {
			_ = table.Append([]string{
				m.Signature.Name,
				m.Signature.Category,
				m.Signature.TemplateKey,
				fmt.Sprintf("%.0f%%", m.Confidence),
			})
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	if len(found.AntiPatterns) == 0 {
		return nil
	}
	p.heading("Anti-patterns")
	table := tablewriter.NewWriter(p.out)
	table.Header("Anti-pattern", "Severity", "Count", "Excerpt")
	for _, ap := range found.AntiPatterns {
		_ = table.Append([]string{ap.Name, p.severity(ap.Severity), strconv.Itoa(ap.Occurrences), ap.Excerpt})
	}
	return table.Render()
}

func (p *printer) contextAnalysis(res analysis.Result) error {
	p.heading("Context analysis")
	table := tablewriter.NewWriter(p.out)
	table.Header("Field", "Value")
	_ = table.Append([]string{"Complexity", fmt.Sprintf("%s (%d points)", res.Complexity, res.ComplexityPoints)})
	_ = table.Append([]string{"Estimate", fmt.Sprintf("%d min", res.EstimatedMinutes)})
	_ = table.Append([]string{"Approach", res.Approach})
	_ = table.Append([]string{"Category", orDash(res.ErrorCategory)})
	if err := table.Render(); err != nil {
		return err
	}
	if res.ApproachDetail != "" {
		_, _ = p.muted.Fprintf(p.out, "%s\n", res.ApproachDetail)
	}
	return nil
}

func (p *printer) templates(views []workflow.TemplateView) error {
	table := tablewriter.NewWriter(p.out)
	table.Header("Error type", "Name", "Steps", "Used", "Success")
	for _, v := range views {
		_ = table.Append([]string{
			v.ErrorType,
			v.Name,
			strconv.Itoa(len(v.Steps)),
			strconv.Itoa(v.Usage.UsageCount),
			fmt.Sprintf("%.0f%%", v.Usage.SuccessRate()*100),
		})
	}
	return table.Render()
}

func (p *printer) template(view workflow.TemplateView) error {
	p.heading(view.Name)
	if view.Description != "" {
		p.linef("%s", view.Description)
	}
	p.heading("Steps")
	for i, step := range view.Steps {
		p.linef("%2d. %s", i+1, step.Action)
		if step.Detail != "" {
			_, _ = p.muted.Fprintf(p.out, "    %s\n", step.Detail)
		}
	}
	p.list("Prevention", view.Prevention, nil)
	return nil
}

func (p *printer) setupReport(report database.Report) error {
	table := tablewriter.NewWriter(p.out)
	table.Header("Field", "Value")
	_ = table.Append([]string{"Driver", report.Driver})
	_ = table.Append([]string{"Tables", strings.Join(report.Tables, ", ")})
	_ = table.Append([]string{"Indexes", strings.Join(report.Indexes, ", ")})
	_ = table.Append([]string{"Demo user created", strconv.FormatBool(report.DemoUserCreated)})
	if err := table.Render(); err != nil {
		return err
	}
	_, _ = p.success.Fprintln(p.out, "Datastore ready")
	return nil
}

func (p *printer) metrics(snapshot workflow.MetricsSnapshot) error {
	s := snapshot.Sessions
	table := tablewriter.NewWriter(p.out)
	table.Header("Metric", "Value")
	_ = table.Append([]string{"Sessions", strconv.Itoa(s.TotalSessions)})
	_ = table.Append([]string{"Active", strconv.Itoa(s.ActiveSessions)})
	_ = table.Append([]string{"Successful", strconv.Itoa(s.SuccessfulSessions)})
	_ = table.Append([]string{"Failed", strconv.Itoa(s.FailedSessions)})
	_ = table.Append([]string{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate*100)})
	_ = table.Append([]string{"Avg resolution", fmt.Sprintf("%.1f min", s.AverageResolutionMinutes)})
	_ = table.Append([]string{"Avg quality", fmt.Sprintf("%.1f", s.AverageQualityScore)})
	_ = table.Append([]string{"Knowledge entries", strconv.Itoa(snapshot.KnowledgeEntries)})
	_ = table.Append([]string{"Documentation", strconv.Itoa(s.DocumentationCount)})
	if err := table.Render(); err != nil {
		return err
	}

	if len(s.ApproachBreakdown) > 0 {
		p.heading("Approaches")
		keys := make([]string, 0, len(s.ApproachBreakdown))
		for k := range s.ApproachBreakdown {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p.linef("  %-24s %d", k, s.ApproachBreakdown[k])
		}
	}

	for _, entry := range snapshot.Documentation {
		if err := p.documentation(entry.Title, entry.Markdown); err != nil {
			return err
		}
	}
	return nil
}

// documentation prints the headed sections of a markdown entry
func (p *printer) documentation(title, markdown string) error {
	sections, err := docs.NewRenderer().Sections(markdown)
	if err != nil {
		return err
	}
	p.heading(title)
	for _, section := range sections {
		if section.Level == 1 {
			continue
		}
		_, _ = p.title.Fprintf(p.out, "%s%s\n", strings.Repeat("#", section.Level)+" ", section.Title)
		if section.Content != "" {
			p.linef("%s", section.Content)
		}
	}
	return nil
}

func (p *printer) health(report workflow.HealthReport) error {
	status := p.success.Sprint(report.Status)
	if report.Status != workflow.HealthHealthy {
		status = p.failure.Sprint(report.Status)
	}
	p.linef("Status: %s (%d passed, %d failed, %d expected)", status, report.Passed, report.Failed, report.ExpectedFailures)

	table := tablewriter.NewWriter(p.out)
	table.Header("Diagnostic", "Result", "Message")
	for _, d := range report.Diagnostics {
		result := p.success.Sprint("pass")
		switch {
		case !d.Passed && d.ExpectedFailure:
			result = p.warning.Sprint("expected failure")
		case !d.Passed:
			result = p.failure.Sprint("fail")
		}
		_ = table.Append([]string{d.Name, result, d.Message})
	}
	return table.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
