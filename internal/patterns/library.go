package patterns

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Library is an immutable, compiled catalog of signatures and anti-pattern
// rules. It is safe for concurrent use.
type Library struct {
	signatures   []PatternSignature
	antiPatterns []AntiPatternRule
}

// LibraryFile is the YAML shape accepted by LoadLibraryFile
type LibraryFile struct {
	Signatures   []PatternSignature `yaml:"signatures"`
	AntiPatterns []AntiPatternRule  `yaml:"anti_patterns"`
}

// NewLibrary compiles signatures and rules into a Library. Duplicate IDs
// are rejected.
func NewLibrary(signatures []PatternSignature, rules []AntiPatternRule) (*Library, error) {
	lib := &Library{
		signatures:   make([]PatternSignature, 0, len(signatures)),
		antiPatterns: make([]AntiPatternRule, 0, len(rules)),
	}

	seen := make(map[string]bool, len(signatures))
	for _, sig := range signatures {
		if seen[sig.ID] {
			return nil, fmt.Errorf("duplicate signature id %q", sig.ID)
		}
		seen[sig.ID] = true
		if err := sig.compile(); err != nil {
			return nil, err
		}
		lib.signatures = append(lib.signatures, sig)
	}

	seen = make(map[string]bool, len(rules))
	for _, rule := range rules {
		if seen[rule.ID] {
			return nil, fmt.Errorf("duplicate anti-pattern id %q", rule.ID)
		}
		seen[rule.ID] = true
		if err := rule.compile(); err != nil {
			return nil, err
		}
		lib.antiPatterns = append(lib.antiPatterns, rule)
	}

	return lib, nil
}

// BuiltinLibrary returns the catalog shipped with the toolkit
func BuiltinLibrary() *Library {
	lib, err := NewLibrary(builtinSignatures(), builtinAntiPatterns())
	if err != nil {
		panic(fmt.Sprintf("builtin pattern library is invalid: %v", err))
	}
	return lib
}

// Extend returns a new library where entries from extra replace entries
// with the same ID and new entries are appended in their given order.
func (l *Library) Extend(extra LibraryFile) (*Library, error) {
	signatures := make([]PatternSignature, len(l.signatures))
	copy(signatures, l.signatures)
	index := make(map[string]int, len(signatures))
	for i, sig := range signatures {
		index[sig.ID] = i
	}
	for _, sig := range extra.Signatures {
		if i, ok := index[sig.ID]; ok {
			signatures[i] = sig
			continue
		}
		index[sig.ID] = len(signatures)
		signatures = append(signatures, sig)
	}

	rules := make([]AntiPatternRule, len(l.antiPatterns))
	copy(rules, l.antiPatterns)
	ruleIndex := make(map[string]int, len(rules))
	for i, rule := range rules {
		ruleIndex[rule.ID] = i
	}
	for _, rule := range extra.AntiPatterns {
		if i, ok := ruleIndex[rule.ID]; ok {
			rules[i] = rule
			continue
		}
		ruleIndex[rule.ID] = len(rules)
		rules = append(rules, rule)
	}

	return NewLibrary(signatures, rules)
}

// LoadLibraryFile extends base with the YAML catalog at path
func LoadLibraryFile(base *Library, path string) (*Library, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied catalog path
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern library %s: %w", path, err)
	}

	var file LibraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pattern library %s: %w", path, err)
	}

	lib, err := base.Extend(file)
	if err != nil {
		return nil, fmt.Errorf("pattern library %s: %w", path, err)
	}
	return lib, nil
}

// Signatures returns a copy of the signatures in catalog order
func (l *Library) Signatures() []PatternSignature {
	out := make([]PatternSignature, len(l.signatures))
	copy(out, l.signatures)
	return out
}

// AntiPatterns returns the anti-patterns in catalog order
func (l *Library) AntiPatterns() []AntiPattern {
	out := make([]AntiPattern, len(l.antiPatterns))
	for i, rule := range l.antiPatterns {
		out[i] = rule.AntiPattern
	}
	return out
}

// Signature looks up a signature by ID
func (l *Library) Signature(id string) (PatternSignature, bool) {
	for _, sig := range l.signatures {
		if sig.ID == id {
			return sig, true
		}
	}
	return PatternSignature{}, false
}
