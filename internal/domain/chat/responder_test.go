package chat

import (
	"context"
	"testing"
)

func TestCannedResponder(t *testing.T) {
	got, err := CannedResponder{}.Respond(context.Background(), Question{Message: "Do I need a filling?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "You asked: 'Do I need a filling?'. This is a sample AI reply."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestKeywordResponder(t *testing.T) {
	r := DefaultKeywordResponder()
	tests := []struct {
		message string
		rule    int
	}{
		{"My tooth HURTS when I chew", 0},
		{"Can I schedule a visit?", 1},
		{"How often should I brush?", 2},
		{"I'm nervous about the drill", 3},
		{"What is a crown?", -1},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got, err := r.Respond(context.Background(), Question{Message: tt.message})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := r.Fallback
			if tt.rule >= 0 {
				want = r.Rules[tt.rule].Reply
			}
			if got != want {
				t.Errorf("expected reply of rule %d, got %q", tt.rule, got)
			}
		})
	}
}

func TestNewResponder(t *testing.T) {
	if r, err := NewResponder(""); err != nil {
		t.Errorf("unexpected error: %v", err)
	} else if _, ok := r.(CannedResponder); !ok {
		t.Errorf("expected canned responder by default, got %T", r)
	}
	if r, err := NewResponder(ModeKeyword); err != nil {
		t.Errorf("unexpected error: %v", err)
	} else if _, ok := r.(KeywordResponder); !ok {
		t.Errorf("expected keyword responder, got %T", r)
	}
	if _, err := NewResponder("gpt-4"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
