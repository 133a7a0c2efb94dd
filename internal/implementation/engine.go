// Package implementation turns a context analysis and an optional fix
// template into an ordered list of concrete steps and prevention measures.
package implementation

import (
	"fmt"
	"strings"

	"bugx/internal/analysis"
	"bugx/internal/logging"
	"bugx/internal/patterns"
	"bugx/internal/templates"
)

// Step sources
const (
	SourceTemplate     = "template"
	SourceGeneric      = "generic"
	SourceVerification = "verification"
)

// Request carries everything Generate needs. Template is nil when no
// template is registered for the error type.
type Request struct {
	Analysis           analysis.Result
	Template           *templates.PatternTemplate
	CodeContext        string
	FileName           string
	Component          string
	ErrorMessage       string
	Matches            []patterns.PatternMatch
	AntiPatterns       []patterns.DetectedAntiPattern
	PreventionRequired bool
}

// Step is one concrete action
type Step struct {
	Order  int    `json:"order"`
	Action string `json:"action"`
	Detail string `json:"detail"`
	Source string `json:"source"`
}

// Result is the generated implementation plan
type Result struct {
	Steps              []Step   `json:"steps"`
	PreventionMeasures []string `json:"prevention_measures"`
	Source             string   `json:"source"`
}

// Engine generates implementation plans. It holds no mutable state.
type Engine struct {
	registry *templates.Registry
	logger   logging.Logger
}

// NewEngine creates an engine that expands templates through registry
func NewEngine(registry *templates.Registry, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Engine{registry: registry, logger: logger}
}

// Generate builds the plan for req
func (e *Engine) Generate(req Request) (Result, error) {
	result := Result{
		Steps:              make([]Step, 0),
		PreventionMeasures: make([]string, 0),
	}

	if req.Template != nil {
		expanded, err := e.registry.Expand(*req.Template, templates.Variables{
			FileName:     req.FileName,
			Component:    req.Component,
			ErrorMessage: req.ErrorMessage,
			Category:     req.Analysis.ErrorCategory,
		})
		if err != nil {
			return Result{}, fmt.Errorf("failed to expand template: %w", err)
		}
		for _, step := range expanded {
			result.Steps = append(result.Steps, Step{Action: step.Action, Detail: step.Detail, Source: SourceTemplate})
		}
		result.Source = SourceTemplate
	} else {
		result.Steps = append(result.Steps, genericSteps(req)...)
		result.Source = SourceGeneric
	}

	if len(req.Matches) > 0 && req.Matches[0].Signature.Recommendation != "" {
		result.Steps = append(result.Steps, Step{
			Action: "Verify against the recognised pattern",
			Detail: req.Matches[0].Signature.Recommendation,
			Source: SourceVerification,
		})
	}

	for i := range result.Steps {
		result.Steps[i].Order = i + 1
	}

	if req.PreventionRequired {
		result.PreventionMeasures = preventionMeasures(req)
	}

	e.logger.Debug("Implementation generated",
		"source", result.Source,
		"steps", len(result.Steps),
		"prevention_measures", len(result.PreventionMeasures))

	return result, nil
}

func genericSteps(req Request) []Step {
	target := req.FileName
	if target == "" {
		target = "the failing code"
	}

	steps := []Step{
		{Action: "Reproduce the error", Detail: fmt.Sprintf("Trigger the error reliably and capture the full message and stack trace for %s.", target), Source: SourceGeneric},
	}

	defaults, ok := categoryDefaults[req.Analysis.ErrorCategory]
	if ok {
		steps = append(steps, Step{Action: defaults.action, Detail: defaults.detail, Source: SourceGeneric})
	} else {
		steps = append(steps, Step{Action: "Isolate the failure", Detail: "Reduce the failing path to a minimal reproduction and bisect recent changes.", Source: SourceGeneric})
	}

	if len(req.AntiPatterns) > 0 {
		names := make([]string, 0, len(req.AntiPatterns))
		for _, ap := range req.AntiPatterns {
			names = append(names, ap.Name)
		}
		steps = append(steps, Step{
			Action: "Remove detected anti-patterns",
			Detail: "Address " + strings.Join(names, ", ") + " before applying the fix.",
			Source: SourceGeneric,
		})
	}

	steps = append(steps,
		Step{Action: "Apply and test the fix", Detail: "Change the smallest amount of code that removes the root cause and add a regression test.", Source: SourceGeneric},
	)
	return steps
}

// preventionMeasures merges template, category and anti-pattern measures in
// that order, without duplicates
func preventionMeasures(req Request) []string {
	measures := make([]string, 0)
	seen := make(map[string]bool)
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m == "" || seen[strings.ToLower(m)] {
			return
		}
		seen[strings.ToLower(m)] = true
		measures = append(measures, m)
	}

	if req.Template != nil {
		for _, m := range req.Template.Prevention {
			add(m)
		}
	}
	if defaults, ok := categoryDefaults[req.Analysis.ErrorCategory]; ok {
		for _, m := range defaults.prevention {
			add(m)
		}
	}
	for _, ap := range req.AntiPatterns {
		add(ap.Solution)
	}
	return measures
}
