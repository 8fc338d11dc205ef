package diagnostics

import (
	"errors"
	"testing"
)

func TestDiagnosticErrorFormat(t *testing.T) {
	tests := []struct {
		err  *DiagnosticError
		want string
	}{
		{NewError(ErrD001, "def.yaml", "unknown sort SortFoo"), "def.yaml: [D001] unknown sort SortFoo"},
		{NewError(ErrD003, "t.yaml", "unbound variable y").At("switch(x)/case[0]"), "t.yaml: [D003] switch(x)/case[0]: unbound variable y"},
		{NewError(ErrD005, "", "disk full"), "[D005] disk full"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrD004, "f.yaml", cause)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(%v, cause) = false", err)
	}
	at := err.At("leaf")
	if at.Path != "leaf" || err.Path != "" {
		t.Errorf("At must copy: got %q / %q", at.Path, err.Path)
	}
}
