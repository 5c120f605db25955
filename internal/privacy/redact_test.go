package privacy

import (
	"testing"
)

func TestNew_Valid(t *testing.T) {
	r, err := New([]string{`(?i)token`, `\bsecret\b`})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if r == nil || len(r.patterns) != 2 {
		t.Fatalf("redactor = %+v, want 2 patterns", r)
	}
}

func TestNew_Invalid(t *testing.T) {
	_, err := New([]string{`[invalid`})
	if err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestNew_EmptyIsNil(t *testing.T) {
	r, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if r != nil {
		t.Errorf("redactor = %+v, want nil", r)
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		input    string
		want     string
	}{
		{"single pattern", []string{`(?i)token`}, "My API Token is abc123", "My API [REDACTED] is abc123"},
		{"multiple patterns", []string{`(?i)token`, `\d{3}-\d{4}`}, "call 555-1234 for token", "call [REDACTED] for [REDACTED]"},
		{"no match", []string{`secret`}, "nothing to see", "nothing to see"},
		{"empty text", []string{`secret`}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.patterns)
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if got := r.Apply(tt.input); got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestApply_NilRedactor(t *testing.T) {
	var r *Redactor
	if got := r.Apply("keep me"); got != "keep me" {
		t.Errorf("got %q, want input unchanged", got)
	}
}
