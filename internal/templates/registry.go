// Package templates maps error types to fix templates and tracks how often
// each template is applied and how often it worked.
package templates

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	bugxerrors "bugx/internal/errors"
)

// ErrTemplateNotFound matches (via errors.Is) the error GetTemplate returns
// for an error type without a registered template.
var ErrTemplateNotFound = bugxerrors.NewStandardError(bugxerrors.ErrorCodeNotFound, "template not found", nil)

// FixStep is one step of a template. Action and Detail are text/template
// strings expanded with Variables.
type FixStep struct {
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// PatternTemplate is a reusable fix for one error type
type PatternTemplate struct {
	Name        string    `json:"name"`
	ErrorType   string    `json:"error_type"`
	Description string    `json:"description"`
	Steps       []FixStep `json:"steps"`
	Prevention  []string  `json:"prevention"`
}

// Usage is the usage record of one template
type Usage struct {
	ErrorType    string    `json:"error_type"`
	UsageCount   int       `json:"usage_count"`
	SuccessCount int       `json:"success_count"`
	LastUsed     time.Time `json:"last_used,omitempty"`
}

// SuccessRate is SuccessCount over UsageCount, or zero when unused
func (u Usage) SuccessRate() float64 {
	if u.UsageCount == 0 {
		return 0
	}
	return float64(u.SuccessCount) / float64(u.UsageCount)
}

// Variables are the values a template step can reference
type Variables struct {
	FileName     string
	Component    string
	ErrorMessage string
	Category     string
}

// ExpandedStep is a FixStep with its templates executed
type ExpandedStep struct {
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// Registry holds fix templates keyed by error type together with their usage
// counters. All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]PatternTemplate
	order     []string
	usage     map[string]*Usage
	funcMap   template.FuncMap
	now       func() time.Time
}

// NewRegistry creates a registry preloaded with the builtin templates
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	for _, tmpl := range BuiltinTemplates() {
		if err := r.Register(tmpl); err != nil {
			panic(fmt.Sprintf("builtin template %s is invalid: %v", tmpl.ErrorType, err))
		}
	}
	return r
}

// NewEmptyRegistry creates a registry without templates
func NewEmptyRegistry() *Registry {
	return &Registry{
		templates: make(map[string]PatternTemplate),
		usage:     make(map[string]*Usage),
		funcMap:   createTemplateFuncMap(),
		now:       time.Now,
	}
}

// createTemplateFuncMap creates the helper functions available to step text
func createTemplateFuncMap() template.FuncMap {
	titler := cases.Title(language.English)
	return template.FuncMap{
		"title": titler.String,
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
		"orDefault": func(def, value string) string {
			if strings.TrimSpace(value) == "" {
				return def
			}
			return value
		},
		"truncate": func(n int, value string) string {
			value = strings.Join(strings.Fields(value), " ")
			runes := []rune(value)
			if len(runes) <= n {
				return value
			}
			return string(runes[:n]) + "..."
		},
	}
}

// ValidateTemplate returns the problems found in tmpl
func (r *Registry) ValidateTemplate(tmpl *PatternTemplate) []string {
	var errors []string

	if tmpl.ErrorType == "" {
		errors = append(errors, "template error type is required")
	}
	if tmpl.Name == "" {
		errors = append(errors, "template name is required")
	}
	if len(tmpl.Steps) == 0 {
		errors = append(errors, "template must have at least one step")
	}

	for i, step := range tmpl.Steps {
		if step.Action == "" {
			errors = append(errors, fmt.Sprintf("step %d: action is required", i+1))
		}
		for _, text := range []string{step.Action, step.Detail} {
			if _, err := template.New("step").Funcs(r.funcMap).Parse(text); err != nil {
				errors = append(errors, fmt.Sprintf("step %d: %v", i+1, err))
			}
		}
	}

	return errors
}

// Register adds or replaces the template for tmpl.ErrorType. Usage counters
// of a replaced template are kept.
func (r *Registry) Register(tmpl PatternTemplate) error {
	if validationErrors := r.ValidateTemplate(&tmpl); len(validationErrors) > 0 {
		return bugxerrors.NewValidationError("template", strings.Join(validationErrors, "; "), tmpl.ErrorType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[tmpl.ErrorType]; !exists {
		r.order = append(r.order, tmpl.ErrorType)
		r.usage[tmpl.ErrorType] = &Usage{ErrorType: tmpl.ErrorType}
	}
	r.templates[tmpl.ErrorType] = tmpl
	return nil
}

// GetTemplate returns the template registered for errorType
func (r *Registry) GetTemplate(errorType string) (PatternTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, exists := r.templates[errorType]
	if !exists {
		return PatternTemplate{}, bugxerrors.NewNotFoundError("template", errorType)
	}
	return tmpl, nil
}

// RecordTemplateUsage counts one application of the template for errorType
func (r *Registry) RecordTemplateUsage(errorType string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	usage, exists := r.usage[errorType]
	if !exists {
		return bugxerrors.NewNotFoundError("template", errorType)
	}
	usage.UsageCount++
	if success {
		usage.SuccessCount++
	}
	usage.LastUsed = r.now()
	return nil
}

// List returns the templates in registration order
func (r *Registry) List() []PatternTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]PatternTemplate, 0, len(r.order))
	for _, errorType := range r.order {
		templates = append(templates, r.templates[errorType])
	}
	return templates
}

// Usage returns a snapshot of the usage counters, most used first
func (r *Registry) Usage() []Usage {
	r.mu.RLock()
	snapshot := make([]Usage, 0, len(r.order))
	for _, errorType := range r.order {
		snapshot = append(snapshot, *r.usage[errorType])
	}
	r.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].UsageCount > snapshot[j].UsageCount
	})
	return snapshot
}

// Expand executes the step templates of tmpl with vars
func (r *Registry) Expand(tmpl PatternTemplate, vars Variables) ([]ExpandedStep, error) {
	steps := make([]ExpandedStep, 0, len(tmpl.Steps))
	for i, step := range tmpl.Steps {
		action, err := r.processTemplateString(step.Action, vars)
		if err != nil {
			return nil, fmt.Errorf("template %s step %d: %w", tmpl.ErrorType, i+1, err)
		}
		detail, err := r.processTemplateString(step.Detail, vars)
		if err != nil {
			return nil, fmt.Errorf("template %s step %d: %w", tmpl.ErrorType, i+1, err)
		}
		steps = append(steps, ExpandedStep{Action: action, Detail: detail})
	}
	return steps, nil
}

// processTemplateString processes a template string with variables
func (r *Registry) processTemplateString(templateStr string, vars Variables) (string, error) {
	if templateStr == "" {
		return "", nil
	}

	tmpl, err := template.New("step").Funcs(r.funcMap).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return templateStr, fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return templateStr, fmt.Errorf("template execution error: %w", err)
	}

	return buf.String(), nil
}
