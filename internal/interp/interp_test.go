package interp

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"testing"

	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
)

func TestInterpolate(t *testing.T) {
	scopes := NewScopes(
		map[string]string{"readme": "# Title"},
		map[string]string{"repo": "api", "owner": "acme"},
		map[string]string{"fetch": "fetched data", "fetch-data": "RESULT", "v1.2": "old"},
	)

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"no placeholders", "plain text", "plain text"},
		{"single", "repo {repo}", "repo api"},
		{"every scope", "{readme}|{owner}|{fetch}", "# Title|acme|fetched data"},
		{"repeated", "{repo}/{repo}", "api/api"},
		{"escaped braces", "{{repo}} is {repo}", "{repo} is api"},
		{"json left alone", `{"key": "{repo}"}`, `{"key": "api"}`},
		{"hyphenated unit name", "use {fetch-data}", "use RESULT"},
		{"dotted name", "from {v1.2}", "from old"},
		{"hashed hyphenated name", "{{sha256:fetch-data}}", "{sha256:fetch-data}"},
		{"whitespace or colon is not a name", "{ repo } {a: 1} {x y}", "{ repo } {a: 1} {x y}"},
		{"empty braces", "{}", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Interpolate(tt.tmpl, scopes)
			if err != nil {
				t.Fatalf("Interpolate(%q) error: %v", tt.tmpl, err)
			}
			if got != tt.want {
				t.Errorf("Interpolate(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestInterpolate_IdempotentWithoutPlaceholders(t *testing.T) {
	inputs := []string{"", "hello", `{"a": [1, 2]}`, "a } b { c", "path/to/file.md"}
	for _, in := range inputs {
		once, err := Interpolate(in, nil)
		if err != nil {
			t.Fatalf("Interpolate(%q) error: %v", in, err)
		}
		twice, err := Interpolate(once, nil)
		if err != nil {
			t.Fatalf("second Interpolate(%q) error: %v", once, err)
		}
		if once != in || twice != in {
			t.Errorf("Interpolate(%q) = %q then %q", in, once, twice)
		}
	}
}

func TestInterpolate_SHA256(t *testing.T) {
	hexPattern := regexp.MustCompile(`^[0-9a-f]{64}$`)

	for _, value := range []string{"", "x", "a longer value with {braces}"} {
		scopes := NewScopes(nil, map[string]string{"x": value}, nil)
		got, err := Interpolate("{sha256:x}", scopes)
		if err != nil {
			t.Fatalf("Interpolate error: %v", err)
		}
		if !hexPattern.MatchString(got) {
			t.Errorf("digest %q is not 64 lowercase hex chars", got)
		}
		sum := sha256.Sum256([]byte(value))
		if want := hex.EncodeToString(sum[:]); got != want {
			t.Errorf("digest of %q = %s, want %s", value, got, want)
		}
	}
}

func TestInterpolate_SHA256BeforePlain(t *testing.T) {
	scopes := NewScopes(nil, map[string]string{"x": "value"}, nil)
	got, err := Interpolate("{sha256:x}-{x}", scopes)
	if err != nil {
		t.Fatalf("Interpolate error: %v", err)
	}
	sum := sha256.Sum256([]byte("value"))
	if want := hex.EncodeToString(sum[:]) + "-value"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// An escaped hashed placeholder stays literal.
	got, err = Interpolate("{{sha256:x}}", scopes)
	if err != nil {
		t.Fatalf("Interpolate error: %v", err)
	}
	if got != "{sha256:x}" {
		t.Errorf("got %q, want literal", got)
	}
}

func TestInterpolate_Missing(t *testing.T) {
	scopes := NewScopes(nil, map[string]string{"repo": "api"}, nil)

	for _, tmpl := range []string{"{repo} {nope}", "{sha256:nope}", "{repo}-{nope}"} {
		_, err := Interpolate(tmpl, scopes)
		var missing *MissingVariableError
		if !errors.As(err, &missing) {
			t.Fatalf("Interpolate(%q) error = %v, want MissingVariableError", tmpl, err)
		}
		if missing.Name != "nope" {
			t.Errorf("missing name = %q", missing.Name)
		}
		if !errors.Is(err, crewerr.ErrConfiguration) {
			t.Error("missing variable should be a configuration error")
		}
	}
}

func TestScopes_LookupPrecedence(t *testing.T) {
	scopes := NewScopes(
		map[string]string{"a": "ctx"},
		map[string]string{"a": "input", "b": "input"},
		map[string]string{"b": "prev", "c": "prev"},
	)

	tests := []struct {
		name      string
		wantValue string
		wantScope string
	}{
		{"a", "ctx", ScopeContext},
		{"b", "input", ScopeUserInputs},
		{"c", "prev", ScopePreviousResults},
	}
	for _, tt := range tests {
		v, scope, ok := scopes.Lookup(tt.name)
		if !ok || v != tt.wantValue || scope != tt.wantScope {
			t.Errorf("Lookup(%q) = %q, %q, %v", tt.name, v, scope, ok)
		}
	}

	if _, _, ok := scopes.Lookup("zzz"); ok {
		t.Error("Lookup of unknown name should fail")
	}
}

func TestConflicts(t *testing.T) {
	scopes := NewScopes(
		map[string]string{"target": "1", "only_ctx": "1", "pair": "1"},
		map[string]string{"target": "2", "pair": "2"},
		map[string]string{"target": "3"},
	)

	keys := Conflicts(scopes)
	if len(keys) != 1 || keys[0] != "target" {
		t.Errorf("Conflicts = %v, want [target]", keys)
	}

	err := CheckConflicts(scopes)
	var conflict *ScopeConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("CheckConflicts error = %v", err)
	}
	if !errors.Is(err, crewerr.ErrConfiguration) {
		t.Error("scope conflict should be a configuration error")
	}

	if err := CheckConflicts(NewScopes(nil, map[string]string{"a": "1"}, nil)); err != nil {
		t.Errorf("unexpected conflict: %v", err)
	}
}

func TestInterpolate_MissingNonIdentifier(t *testing.T) {
	for _, name := range []string{"repo-name", "1abc", "a.b"} {
		_, err := Interpolate("use {"+name+"}", NewScopes(nil, nil, nil))
		var missing *MissingVariableError
		if !errors.As(err, &missing) || missing.Name != name {
			t.Errorf("Interpolate({%s}) error = %v, want MissingVariableError", name, err)
		}
	}
}
