package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNotFound, "not_found"},
		{KindUnauthorized, "unauthorized"},
		{KindNetwork, "network"},
		{KindSync, "sync"},
		{KindValidation, "validation"},
		{KindCache, "cache"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"msg only", New(KindNotFound, "state.Avatar", "avatar av1 not held locally"),
			"state.Avatar: not_found: avatar av1 not held locally"},
		{"cause only", Wrap(KindNetwork, "postgres.Fetch", cause),
			"postgres.Fetch: network: connection refused"},
		{"msg and cause", &Error{Kind: KindSync, Op: "syncer.UpdateAvatar", Msg: "rolled back", Err: cause},
			"syncer.UpdateAvatar: sync: rolled back: connection refused"},
		{"bare", &Error{Kind: KindCache, Op: "cache.Get"},
			"cache.Get: cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindSync, "op", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause lost")
	}
}

func TestIsMatchesOnKind(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(KindUnauthorized, "viewmode.ValidatePermission", "requires avatar ownership"))

	if !errors.Is(err, &Error{Kind: KindUnauthorized}) {
		t.Error("kind match failed through wrapping")
	}
	if errors.Is(err, &Error{Kind: KindNotFound}) {
		t.Error("kind match succeeded for a different kind")
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(KindValidation, "op", "bad id"))

	k, ok := KindOf(err)
	if !ok || k != KindValidation {
		t.Errorf("KindOf = (%v, %v), want (validation, true)", k, ok)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf reported a kind for a foreign error")
	}
	if _, ok := KindOf(nil); ok {
		t.Error("KindOf reported a kind for nil")
	}
}

func TestIsKind(t *testing.T) {
	err := Wrap(KindNetwork, "op", errors.New("timeout"))

	if !IsKind(err, KindNetwork) {
		t.Error("expected network kind")
	}
	if IsKind(err, KindSync) {
		t.Error("matched wrong kind")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindNetwork, true},
		{KindSync, true},
		{KindNotFound, false},
		{KindUnauthorized, false},
		{KindValidation, false},
		{KindCache, false},
	}
	for _, tt := range tests {
		if got := (&Error{Kind: tt.kind}).Retryable(); got != tt.want {
			t.Errorf("Retryable(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}
