package chat

import (
	"context"
	"fmt"
	"strings"
)

const (
	ModeCanned  = "canned"
	ModeKeyword = "keyword"
)

// Question is a patient question with optional free-text context.
type Question struct {
	Message        string
	PatientContext string
}

// Responder produces a reply to a question. No implementation calls an
// external model.
type Responder interface {
	Respond(ctx context.Context, q Question) (string, error)
}

// NewResponder returns the responder for mode (canned or keyword).
func NewResponder(mode string) (Responder, error) {
	switch mode {
	case "", ModeCanned:
		return CannedResponder{}, nil
	case ModeKeyword:
		return DefaultKeywordResponder(), nil
	default:
		return nil, fmt.Errorf("chat: unknown responder mode %q", mode)
	}
}

// CannedResponder echoes the question in a fixed sentence.
type CannedResponder struct{}

func (CannedResponder) Respond(_ context.Context, q Question) (string, error) {
	return fmt.Sprintf("You asked: '%s'. This is a sample AI reply.", q.Message), nil
}

// KeywordRule maps any of Keywords (matched case-insensitively as
// substrings) to Reply.
type KeywordRule struct {
	Keywords []string
	Reply    string
}

// KeywordResponder returns the reply of the first rule with a matching
// keyword, or Fallback.
type KeywordResponder struct {
	Rules    []KeywordRule
	Fallback string
}

func (r KeywordResponder) Respond(_ context.Context, q Question) (string, error) {
	msg := strings.ToLower(q.Message)
	for _, rule := range r.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(msg, kw) {
				return rule.Reply, nil
			}
		}
	}
	return r.Fallback, nil
}

func DefaultKeywordResponder() KeywordResponder {
	return KeywordResponder{
		Rules: []KeywordRule{
			{
				Keywords: []string{"pain", "hurt", "ache"},
				Reply: "I understand you're experiencing discomfort. For any dental pain, contact your dentist as soon as possible. " +
					"In the meantime, rinsing with warm salt water and taking over-the-counter pain medication as directed may help. " +
					"This is general advice; your dentist can recommend treatment for your situation.",
			},
			{
				Keywords: []string{"appointment", "schedule", "booking"},
				Reply: "For appointment scheduling, please contact our office directly. Our staff can help you find a convenient time " +
					"and answer questions about your upcoming visit.",
			},
			{
				Keywords: []string{"cleaning", "hygiene", "brush"},
				Reply: "Brushing twice daily with fluoride toothpaste, flossing every day and routine cleanings keep your mouth healthy. " +
					"Your hygienist can give you personalized tips at your next visit.",
			},
			{
				Keywords: []string{"anxiety", "nervous", "scared"},
				Reply: "It's completely normal to feel anxious about dental visits. Our team is experienced in helping patients feel " +
					"comfortable. Let us know about your concerns so we can make your visit as pleasant as possible.",
			},
		},
		Fallback: "Thank you for your question. Please discuss this with your dental professional, who can give advice " +
			"based on your situation.",
	}
}
