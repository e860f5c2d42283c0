// Package interp substitutes {name} and {sha256:name} placeholders in crew
// templates from layered variable scopes.
package interp

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
)

// Scope names, in lookup precedence order.
const (
	ScopeContext         = "context"
	ScopeUserInputs      = "user_inputs"
	ScopePreviousResults = "previous_results"
)

// Scope is one named layer of variables.
type Scope struct {
	Name   string
	Values map[string]string
}

// Scopes is an ordered list of layers; earlier layers win on lookup.
type Scopes []Scope

// NewScopes builds the standard three layers. Nil maps are allowed.
func NewScopes(context, userInputs, previousResults map[string]string) Scopes {
	return Scopes{
		{Name: ScopeContext, Values: context},
		{Name: ScopeUserInputs, Values: userInputs},
		{Name: ScopePreviousResults, Values: previousResults},
	}
}

// Lookup resolves name against the layers in order. It returns the value
// and the name of the layer that supplied it.
func (s Scopes) Lookup(name string) (value, scope string, ok bool) {
	for _, layer := range s {
		if v, found := layer.Values[name]; found {
			return v, layer.Name, true
		}
	}
	return "", "", false
}

// MissingVariableError reports a placeholder with no value in any scope.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing variable %q", e.Name)
}

func (e *MissingVariableError) Unwrap() error { return crewerr.ErrConfiguration }

// ScopeConflictError reports keys defined in every scope at once.
type ScopeConflictError struct {
	Keys []string
}

func (e *ScopeConflictError) Error() string {
	return fmt.Sprintf("context, user inputs and previous results must not share keys: %s",
		strings.Join(e.Keys, ", "))
}

func (e *ScopeConflictError) Unwrap() error { return crewerr.ErrConfiguration }

// Conflicts returns the keys present in every layer, sorted. Fewer than two
// layers never conflict.
func Conflicts(s Scopes) []string {
	if len(s) < 2 {
		return nil
	}
	var keys []string
	for key := range s[0].Values {
		shared := true
		for _, layer := range s[1:] {
			if _, ok := layer.Values[key]; !ok {
				shared = false
				break
			}
		}
		if shared {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// CheckConflicts returns a *ScopeConflictError when Conflicts is non-empty.
func CheckConflicts(s Scopes) error {
	if keys := Conflicts(s); len(keys) > 0 {
		return &ScopeConflictError{Keys: keys}
	}
	return nil
}

// A name is any run of characters other than braces, colons and whitespace,
// so unit names like fetch-data resolve.
const namePattern = `[^{}:\s]+`

var (
	// The escape alternatives are matched first so "{{name}}" stays literal.
	hashedPlaceholder = regexp.MustCompile(`\{\{|\}\}|\{sha256:(` + namePattern + `)\}`)
	plainPlaceholder  = regexp.MustCompile(`\{\{|\}\}|\{(` + namePattern + `)\}`)
)

// Interpolate replaces every placeholder in tmpl. {sha256:name} is resolved
// in a pre-pass to the lowercase hex SHA-256 of the value; {name} is then
// replaced by the value. "{{" and "}}" produce literal braces, and brace
// text that is not a placeholder is kept as is.
func Interpolate(tmpl string, s Scopes) (string, error) {
	if !strings.ContainsAny(tmpl, "{}") {
		return tmpl, nil
	}

	var missing string
	lookup := func(name string) string {
		v, _, ok := s.Lookup(name)
		if !ok && missing == "" {
			missing = name
		}
		return v
	}

	// Hashed pass. Digests are hex so they can't introduce new placeholders.
	out := hashedPlaceholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		if m == "{{" || m == "}}" {
			return m
		}
		name := hashedPlaceholder.FindStringSubmatch(m)[1]
		sum := sha256.Sum256([]byte(lookup(name)))
		return hex.EncodeToString(sum[:])
	})
	if missing != "" {
		return "", &MissingVariableError{Name: missing}
	}

	out = plainPlaceholder.ReplaceAllStringFunc(out, func(m string) string {
		switch m {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		return lookup(m[1 : len(m)-1])
	})
	if missing != "" {
		return "", &MissingVariableError{Name: missing}
	}
	return out, nil
}
