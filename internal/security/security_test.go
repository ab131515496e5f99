package security

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "av-123", false},
		{"ulid", "01J9XW7V2B3N0PQRS4T5U6V7W8", false},
		{"max length", strings.Repeat("a", 64), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 65), true},
		{"embedded space", "av 1", true},
		{"control char", "av\x001", true},
		{"non ascii", "avé", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestLimiterStoreAllow(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 2, time.Minute)

	if !s.Allow("client-a") || !s.Allow("client-a") {
		t.Fatal("burst requests should pass")
	}
	if s.Allow("client-a") {
		t.Error("request past burst should be denied")
	}

	// a different client has its own bucket
	if !s.Allow("client-b") {
		t.Error("independent client denied")
	}
}

func TestLimiterStoreEmptyKey(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1, time.Minute)

	if !s.Allow("") {
		t.Error("first request under shared unknown key denied")
	}
	if s.Allow("  ") {
		t.Error("blank keys should share one bucket")
	}
}

func TestLimiterStoreLazyCleanup(t *testing.T) {
	s := NewLimiterStore(rate.Limit(100), 100, 10*time.Millisecond)

	s.Allow("old-client")
	if s.Len() != 1 {
		t.Fatalf("expected 1 tracked client, got %d", s.Len())
	}

	time.Sleep(20 * time.Millisecond)
	s.Allow("new-client")

	if s.Len() != 1 {
		t.Errorf("idle client not evicted, len %d", s.Len())
	}
}

func TestClientIPFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/health", nil)
	r.RemoteAddr = "203.0.113.9:51234"

	if got := ClientIPFromRequest(r); got != "203.0.113.9" {
		t.Errorf("expected host without port, got %q", got)
	}

	r.RemoteAddr = "203.0.113.9"
	if got := ClientIPFromRequest(r); got != "203.0.113.9" {
		t.Errorf("expected bare host passthrough, got %q", got)
	}
}
