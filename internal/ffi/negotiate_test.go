package ffi

import (
	"bytes"
	"errors"
	"testing"
)

const testNullSize = ^uint64(0)

// sizedOp simulates an engine accessor that needs a buffer of at least
// want bytes and counts how many undersized attempts it rejects.
type sizedOp struct {
	want    []byte
	retries int
}

func (o *sizedOp) call(buf []byte) uint64 {
	if len(buf) < len(o.want) {
		o.retries++
		return testNullSize
	}
	copy(buf, o.want)
	return uint64(len(o.want))
}

func TestNegotiateFirstTryFits(t *testing.T) {
	op := &sizedOp{want: []byte("device-uuid")}
	got, err := Negotiate(op.call, testNullSize, ProfileText)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if !bytes.Equal(got, op.want) {
		t.Fatalf("got %q want %q", got, op.want)
	}
	if op.retries != 0 {
		t.Fatalf("expected no retries, got %d", op.retries)
	}
}

func TestNegotiateDoublesExactlyAsNeeded(t *testing.T) {
	// Needs three doublings: 1024 -> 2048 -> 4096 -> 8192.
	op := &sizedOp{want: make([]byte, 5000)}
	for i := range op.want {
		op.want[i] = byte(i)
	}
	got, err := Negotiate(op.call, testNullSize, ProfileText)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if op.retries != 3 {
		t.Fatalf("expected 3 retries, got %d", op.retries)
	}
	if !bytes.Equal(got, op.want) {
		t.Fatalf("result mismatch after doubling")
	}
	if len(got) != 5000 {
		t.Fatalf("expected truncation to 5000, got %d", len(got))
	}
}

func TestNegotiateAlwaysSentinelHitsCeiling(t *testing.T) {
	calls := 0
	op := func(buf []byte) uint64 {
		calls++
		return testNullSize
	}
	_, err := Negotiate(op, testNullSize, Profile{Initial: 8, Ceiling: 64})
	if !errors.Is(err, ErrOversizedResult) {
		t.Fatalf("expected ErrOversizedResult, got %v", err)
	}
	// 8, 16, 32, 64 are attempted; 128 is rejected without a call.
	if calls != 4 {
		t.Fatalf("expected 4 attempts before ceiling, got %d", calls)
	}
}

func TestNegotiateSentinelComparedByValue(t *testing.T) {
	// A sentinel that is a plausible byte count must still be treated as
	// "too small" when it matches the runtime-fetched value exactly.
	const oddSentinel = uint64(512)
	first := true
	op := func(buf []byte) uint64 {
		if first {
			first = false
			return oddSentinel
		}
		copy(buf, "ok")
		return 2
	}
	got, err := Negotiate(op, oddSentinel, Profile{Initial: 1024, Ceiling: 4096})
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if string(got) != "ok" {
		t.Fatalf("got %q", got)
	}
}

func TestNegotiateTaskIDElements(t *testing.T) {
	want := []TaskID{3, 1, 4}
	op := func(buf []TaskID) uint64 {
		if len(buf) < len(want) {
			return testNullSize
		}
		copy(buf, want)
		return uint64(len(want))
	}
	got, err := Negotiate(op, testNullSize, Profile{Initial: 2, Ceiling: 16})
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 4 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNegotiateOverreportedSizeRejected(t *testing.T) {
	op := func(buf []byte) uint64 {
		return uint64(len(buf)) + 1
	}
	_, err := Negotiate(op, testNullSize, Profile{Initial: 8, Ceiling: 8})
	if !errors.Is(err, ErrOversizedResult) {
		t.Fatalf("expected ErrOversizedResult, got %v", err)
	}
}
