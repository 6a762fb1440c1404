package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/hybrid-search/internal/core/domain"
)

func TestClassifyNATSErrorRetriesConnectionFailures(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"no servers", nats.ErrNoServers, true, true},
		{"timeout", nats.ErrTimeout, true, true},
		{"connection closed", nats.ErrConnectionClosed, true, true},
		{"disconnected", nats.ErrDisconnected, true, true},
		{"context canceled", context.Canceled, false, false},
		{"deadline exceeded", context.DeadlineExceeded, false, false},
		{"other", errors.New("bad subject"), false, true},
	}
	for _, tc := range cases {
		class := classifyNATSError(tc.err)
		if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
			t.Fatalf("%s: classification = %+v, want retryable=%v record=%v",
				tc.name, class, tc.retryable, tc.record)
		}
	}
}

func TestWrapTemporaryIfNeededMarksRetryableErrors(t *testing.T) {
	wrapped := wrapTemporaryIfNeeded(nats.ErrNoServers)
	if !domain.IsKind(wrapped, domain.ErrTemporary) {
		t.Fatalf("expected temporary wrapping, got %v", wrapped)
	}

	permanent := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(permanent); !errors.Is(got, permanent) || domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("expected permanent error passthrough, got %v", got)
	}

	already := domain.WrapError(domain.ErrTemporary, "publish", nats.ErrTimeout)
	if got := wrapTemporaryIfNeeded(already); got != already {
		t.Fatalf("expected already-wrapped error unchanged, got %v", got)
	}

	if got := wrapTemporaryIfNeeded(nil); got != nil {
		t.Fatalf("expected nil passthrough, got %v", got)
	}
}
