package crewerr

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"configuration", New(ErrConfiguration, "bad"), ErrConfiguration},
		{"wrapped graph", fmt.Errorf("build: %w", New(ErrGraph, "cycle")), ErrGraph},
		{"cache io with cause", Wrap(ErrCacheIO, "write", os.ErrPermission), ErrCacheIO},
		{"plain", errors.New("plain"), nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	err := Wrap(ErrCacheIO, "read output", os.ErrNotExist)

	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected cause to be reachable with errors.Is")
	}
	if !errors.Is(err, ErrCacheIO) {
		t.Error("expected kind to be reachable with errors.Is")
	}
	if err.Error() != "read output: "+os.ErrNotExist.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(New(ErrPathSafety, "escape")) {
		t.Error("path safety errors must be fatal")
	}
	if !IsFatal(New(ErrGraph, "cycle")) {
		t.Error("graph errors must be fatal")
	}
	if IsFatal(New(ErrRemote, "boom")) {
		t.Error("remote errors are not fatal by themselves")
	}
}
