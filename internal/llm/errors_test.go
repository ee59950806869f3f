package llm

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		header http.Header
		kind   FailureKind
		wait   time.Duration
	}{
		{"429 with retry-after", errors.New("too many"), 429, http.Header{"Retry-After": {"4"}}, FailureRateLimited, 4 * time.Second},
		{"429 with ms header", errors.New("too many"), 429, http.Header{"Retry-After-Ms": {"1500"}}, FailureRateLimited, 1500 * time.Millisecond},
		{"message fallback", errors.New("Rate limit reached. Please wait 12 seconds before retrying."), 0, nil, FailureRateLimited, 12 * time.Second},
		{"server error", errors.New("internal"), 500, nil, FailureProvider, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := classify("m", tt.err, tt.status, tt.header)
			if ce.Kind != tt.kind {
				t.Errorf("expected kind %v, got %v", tt.kind, ce.Kind)
			}
			if ce.RetryAfter != tt.wait {
				t.Errorf("expected wait %v, got %v", tt.wait, ce.RetryAfter)
			}
			if !errors.Is(ce, tt.err) {
				t.Error("expected CallError to wrap the SDK error")
			}
		})
	}
}

func TestParseArguments(t *testing.T) {
	got := parseArguments(`{"title": "Standup", "status": "pending"`)
	if got["title"] != "Standup" {
		t.Errorf("expected repaired title, got %v", got)
	}
	if len(parseArguments("")) != 0 {
		t.Error("expected empty map for empty arguments")
	}
}
