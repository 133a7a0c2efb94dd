// Package knowledge keeps the team-knowledge entries shared after resolved
// errors, with usage tracking and peer feedback on their effectiveness.
package knowledge

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	bugxerrors "bugx/internal/errors"
	"bugx/internal/logging"
)

const (
	// DefaultEffectiveness is the starting score of an entry shared without one
	DefaultEffectiveness = 50.0
	// FeedbackStep is how far one piece of feedback moves effectiveness
	FeedbackStep = 10.0

	MinEffectiveness = 0.0
	MaxEffectiveness = 100.0
)

// Tally counts peer feedback
type Tally struct {
	Helpful    int `json:"helpful"`
	NotHelpful int `json:"not_helpful"`
}

// Entry is one shared resolution
type Entry struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	ErrorSignature string    `json:"error_signature"`
	Solution       string    `json:"solution"`
	Prevention     string    `json:"prevention"`
	SharedBy       string    `json:"shared_by"`
	Timestamp      time.Time `json:"timestamp"`
	UsageCount     int       `json:"usage_count"`
	Effectiveness  float64   `json:"effectiveness"`
	Feedback       Tally     `json:"feedback"`
}

// ShareRequest is the input of Share
type ShareRequest struct {
	Title          string  `json:"title" mapstructure:"title"`
	ErrorSignature string  `json:"error_signature" mapstructure:"error_signature"`
	Solution       string  `json:"solution" mapstructure:"solution"`
	Prevention     string  `json:"prevention" mapstructure:"prevention"`
	SharedBy       string  `json:"shared_by" mapstructure:"shared_by"`
	Effectiveness  float64 `json:"effectiveness,omitempty" mapstructure:"effectiveness"`
}

// Store is the in-process knowledge list. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries []*Entry
	byID    map[string]*Entry
	logger  logging.Logger
	now     func() time.Time
}

// NewStore creates an empty store
func NewStore(logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Store{
		byID:   make(map[string]*Entry),
		logger: logger,
		now:    time.Now,
	}
}

// Clamp limits an effectiveness score to [0,100]
func Clamp(score float64) float64 {
	switch {
	case score < MinEffectiveness:
		return MinEffectiveness
	case score > MaxEffectiveness:
		return MaxEffectiveness
	default:
		return score
	}
}

// Share validates req and appends a new entry
func (s *Store) Share(req ShareRequest) (Entry, error) {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return Entry{}, bugxerrors.NewRequiredFieldError("title")
	case strings.TrimSpace(req.ErrorSignature) == "":
		return Entry{}, bugxerrors.NewRequiredFieldError("error_signature")
	case strings.TrimSpace(req.Solution) == "":
		return Entry{}, bugxerrors.NewRequiredFieldError("solution")
	}

	effectiveness := req.Effectiveness
	if effectiveness <= 0 {
		effectiveness = DefaultEffectiveness
	}
	sharedBy := req.SharedBy
	if sharedBy == "" {
		sharedBy = "anonymous"
	}

	entry := &Entry{
		ID:             uuid.New().String(),
		Title:          strings.TrimSpace(req.Title),
		ErrorSignature: strings.TrimSpace(req.ErrorSignature),
		Solution:       req.Solution,
		Prevention:     req.Prevention,
		SharedBy:       sharedBy,
		Timestamp:      s.now(),
		Effectiveness:  Clamp(effectiveness),
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.byID[entry.ID] = entry
	s.mu.Unlock()

	s.logger.Info("Knowledge shared", "entry_id", entry.ID, "error_signature", entry.ErrorSignature, "shared_by", sharedBy)
	return *entry, nil
}

// Get returns the entry with id
func (s *Store) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byID[id]
	if !ok {
		return Entry{}, bugxerrors.NewNotFoundError("knowledge entry", id)
	}
	return *entry, nil
}

// List returns every entry, newest first
func (s *Store) List() []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		entries = append(entries, *s.entries[i])
	}
	s.mu.RUnlock()
	return entries
}

// Search returns entries whose error signature equals signature (case
// insensitive), most effective first
func (s *Store) Search(signature string) []Entry {
	signature = strings.TrimSpace(signature)
	matches := make([]Entry, 0)
	if signature == "" {
		return matches
	}

	s.mu.RLock()
	for _, entry := range s.entries {
		if strings.EqualFold(entry.ErrorSignature, signature) {
			matches = append(matches, *entry)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Effectiveness > matches[j].Effectiveness
	})
	return matches
}

// RecordUsage counts one reuse of the entry
func (s *Store) RecordUsage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byID[id]
	if !ok {
		return bugxerrors.NewNotFoundError("knowledge entry", id)
	}
	entry.UsageCount++
	return nil
}

// Feedback records whether the entry helped and moves its effectiveness by
// FeedbackStep, clamped to [0,100]
func (s *Store) Feedback(id string, helpful bool) (Entry, error) {
	s.mu.Lock()
	entry, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return Entry{}, bugxerrors.NewNotFoundError("knowledge entry", id)
	}
	if helpful {
		entry.Feedback.Helpful++
		entry.Effectiveness = Clamp(entry.Effectiveness + FeedbackStep)
	} else {
		entry.Feedback.NotHelpful++
		entry.Effectiveness = Clamp(entry.Effectiveness - FeedbackStep)
	}
	updated := *entry
	s.mu.Unlock()

	s.logger.Debug("Knowledge feedback recorded", "entry_id", id, "helpful", helpful, "effectiveness", updated.Effectiveness)
	return updated, nil
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
