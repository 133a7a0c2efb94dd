package templates

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bugxerrors "bugx/internal/errors"
)

func TestNewRegistry_Builtins(t *testing.T) {
	registry := NewRegistry()

	listed := registry.List()
	require.Len(t, listed, len(BuiltinTemplates()))
	assert.Equal(t, "hydration-mismatch", listed[0].ErrorType)

	for _, tmpl := range listed {
		assert.NotEmpty(t, tmpl.Steps, tmpl.ErrorType)
		assert.NotEmpty(t, tmpl.Prevention, tmpl.ErrorType)
		_, err := registry.Expand(tmpl, Variables{})
		assert.NoError(t, err, tmpl.ErrorType)
	}
}

func TestGetTemplate_NotFound(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.GetTemplate("module-resolution")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
	assert.True(t, errors.Is(err, bugxerrors.ErrNotFound))
	assert.Contains(t, err.Error(), "module-resolution")
}

func TestRecordTemplateUsage(t *testing.T) {
	registry := NewRegistry()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return fixed }

	require.NoError(t, registry.RecordTemplateUsage("null-reference", true))
	require.NoError(t, registry.RecordTemplateUsage("null-reference", false))
	require.NoError(t, registry.RecordTemplateUsage("auth-session", true))

	usage := registry.Usage()
	assert.Equal(t, "null-reference", usage[0].ErrorType)
	assert.Equal(t, 2, usage[0].UsageCount)
	assert.Equal(t, 1, usage[0].SuccessCount)
	assert.InDelta(t, 0.5, usage[0].SuccessRate(), 0.0001)
	assert.Equal(t, fixed, usage[0].LastUsed)

	err := registry.RecordTemplateUsage("unknown", true)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestRecordTemplateUsage_Concurrent(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(success bool) {
			defer wg.Done()
			_ = registry.RecordTemplateUsage("hydration-mismatch", success)
		}(i%2 == 0)
	}
	wg.Wait()

	usage := registry.Usage()
	assert.Equal(t, 50, usage[0].UsageCount)
	assert.Equal(t, 25, usage[0].SuccessCount)
}

func TestRegister(t *testing.T) {
	registry := NewEmptyRegistry()

	err := registry.Register(PatternTemplate{ErrorType: "x"})
	require.Error(t, err)
	var stdErr *bugxerrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.True(t, bugxerrors.IsValidationError(stdErr))

	err = registry.Register(PatternTemplate{Name: "Broken", ErrorType: "x", Steps: []FixStep{{Action: "{{.Nope"}}})
	assert.Error(t, err)

	custom := PatternTemplate{
		Name:      "Deadline Parsing",
		ErrorType: "date-parsing",
		Steps:     []FixStep{{Action: "Parse deadlines as UTC", Detail: "Check {{.FileName}}"}},
	}
	require.NoError(t, registry.Register(custom))
	require.NoError(t, registry.RecordTemplateUsage("date-parsing", true))

	custom.Name = "Deadline Parsing v2"
	require.NoError(t, registry.Register(custom))

	got, err := registry.GetTemplate("date-parsing")
	require.NoError(t, err)
	assert.Equal(t, "Deadline Parsing v2", got.Name)
	assert.Len(t, registry.List(), 1)
	assert.Equal(t, 1, registry.Usage()[0].UsageCount, "replacing a template keeps its counters")
}

func TestExpand(t *testing.T) {
	registry := NewRegistry()
	tmpl, err := registry.GetTemplate("hydration-mismatch")
	require.NoError(t, err)

	steps, err := registry.Expand(tmpl, Variables{
		FileName:     "app/scholarships/card.tsx",
		Component:    "ScholarshipCard",
		ErrorMessage: "Hydration failed because the server rendered text didn't match the client",
	})
	require.NoError(t, err)
	require.Len(t, steps, len(tmpl.Steps))

	assert.Contains(t, steps[0].Detail, "app/scholarships/card.tsx")
	assert.Contains(t, steps[1].Detail, "ScholarshipCard")
	assert.Contains(t, steps[3].Detail, "Hydration failed because")
	assert.Contains(t, steps[3].Detail, "...")

	defaults, err := registry.Expand(tmpl, Variables{})
	require.NoError(t, err)
	assert.Contains(t, defaults[0].Detail, "the component")
}

func TestExpand_TitleFunc(t *testing.T) {
	registry := NewEmptyRegistry()
	tmpl := PatternTemplate{
		Name:      "Titled",
		ErrorType: "titled",
		Steps:     []FixStep{{Action: "Fix {{.Category | title}}"}},
	}

	steps, err := registry.Expand(tmpl, Variables{Category: "react state"})

	require.NoError(t, err)
	assert.Equal(t, "Fix React State", steps[0].Action)
}
