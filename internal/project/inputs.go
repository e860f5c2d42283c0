package project

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

// InputError reports a missing or invalid external input.
type InputError struct {
	Name    string
	Value   string
	Allowed []string
}

func (e *InputError) Error() string {
	if len(e.Allowed) > 0 {
		return fmt.Sprintf("invalid %s entered: %q, please enter one of %v", e.Name, e.Value, e.Allowed)
	}
	return fmt.Sprintf("%s is required", e.Name)
}

func (e *InputError) Unwrap() error { return crewerr.ErrConfiguration }

// ValidateInput checks one value against its declaration.
func ValidateInput(name string, spec models.InputSpec, value string) error {
	if value == "" {
		if spec.Optional {
			return nil
		}
		return &InputError{Name: name}
	}
	if len(spec.Enum) > 0 && !contains(spec.Enum, value) {
		return &InputError{Name: name, Value: value, Allowed: spec.Enum}
	}
	return nil
}

// ValidateInputs checks supplied inputs against the declarations and
// returns the effective inputs: declared inputs first in declaration order
// (missing optional ones set to ""), then any undeclared extras as supplied.
func ValidateInputs(decls models.OrderedMap[models.InputSpec], supplied models.Inputs) (models.Inputs, error) {
	out := models.NewOrderedMap[string]()
	for _, name := range decls.Keys() {
		spec, _ := decls.Get(name)
		value, _ := supplied.Get(name)
		if err := ValidateInput(name, spec, value); err != nil {
			return out, err
		}
		out.Set(name, value)
	}
	for _, name := range supplied.Keys() {
		if !out.Has(name) {
			value, _ := supplied.Get(name)
			out.Set(name, value)
		}
	}
	return out, nil
}

// ParseParams parses key=value pairs. Later pairs override earlier ones.
func ParseParams(params []string) (models.Inputs, error) {
	out := models.NewOrderedMap[string]()
	for _, p := range params {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return out, crewerr.New(crewerr.ErrConfiguration, fmt.Sprintf("invalid parameter %q, expected key=value", p))
		}
		out.Set(key, value)
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
