package utils

import (
	"errors"
	"testing"
)

func TestTryVariantsFirstSuccessWins(t *testing.T) {
	r := &VariantRetry{Logger: NewNopLogger()}
	var tried []string

	got, err := r.TryVariants("lookup", []string{"ms-20", "ms20", "korg-ms-20"}, func(v string) error {
		tried = append(tried, v)
		if v == "ms20" {
			return nil
		}
		return ErrNoMatch
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ms20" {
		t.Errorf("winner: got %q, want ms20", got)
	}
	if len(tried) != 2 {
		t.Errorf("attempts: got %v, want 2 (stops at first success)", tried)
	}
}

func TestTryVariantsAllFail(t *testing.T) {
	r := &VariantRetry{}
	boom := errors.New("boom")

	_, err := r.TryVariants("lookup", []string{"a", "b"}, func(v string) error {
		if v == "b" {
			return boom
		}
		return ErrNoMatch
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected last error in chain, got %v", err)
	}
	if errors.Is(err, ErrNoMatch) {
		t.Error("only the last error should be wrapped")
	}
}

func TestTryVariantsEmpty(t *testing.T) {
	r := &VariantRetry{}
	if _, err := r.TryVariants("lookup", nil, func(string) error { return nil }); err == nil {
		t.Error("expected error for empty variant list")
	}
}
