package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMessages(t *testing.T) {
	if got := (ValidationError{Field: "name"}).Error(); got != "name is required" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (ValidationError{Field: "age", Reason: "must not be negative"}).Error(); got != "age must not be negative" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError{Entity: EntityAnimal, ID: "7"}
	if err.Error() != "animal 7 not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	wrapped := fmt.Errorf("get animal: %w", err)
	if !IsNotFound(wrapped) {
		t.Fatalf("expected IsNotFound through wrapping")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatalf("expected false for unrelated error")
	}
}

func TestSentinelsSurviveDoubleWrap(t *testing.T) {
	// Store errors are wrapped with both the cause and the sentinel.
	err := fmt.Errorf("open sqlite: %w (%w)", errors.New("permission denied"), ErrStoreUnavailable)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected sentinel match through double wrap")
	}
}
