package auroraerrors

import (
	"errors"
	"testing"
)

func TestIsRetryableByCategory(t *testing.T) {
	retryable := []Category{CategoryTransientConnection, CategoryNetworkSQLState, CategoryTimeout}
	for _, cat := range retryable {
		err := NewConnectionError("host-a", "connect", "08006", cat, errors.New("boom"))
		if !IsRetryable(err) {
			t.Errorf("expected category %v to be retryable", cat)
		}
	}

	notRetryable := []Category{CategoryAccessSQLState, CategoryFatal, CategoryUnsupportedDialect}
	for _, cat := range notRetryable {
		err := NewConnectionError("host-a", "connect", "28000", cat, errors.New("boom"))
		if IsRetryable(err) {
			t.Errorf("expected category %v to not be retryable", cat)
		}
	}
}

func TestIsRetryableNoCandidate(t *testing.T) {
	if !IsRetryable(ErrNoCandidate) {
		t.Error("expected ErrNoCandidate to be retryable")
	}
}

func TestCategoryOf(t *testing.T) {
	err := NewConnectionError("host-a", "connect", "53300", CategoryNetworkSQLState, errors.New("boom"))
	cat, ok := CategoryOf(err)
	if !ok || cat != CategoryNetworkSQLState {
		t.Fatalf("got %v %v", cat, ok)
	}
	if _, ok := CategoryOf(errors.New("plain")); ok {
		t.Fatal("expected plain error to have no category")
	}
}

func TestFailoverErrorUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	ferr := &FailoverError{Mode: "STRICT_WRITER", Attempts: 3, LastErr: inner}
	if !errors.Is(ferr, inner) {
		t.Fatal("expected FailoverError to unwrap to its LastErr")
	}
}
