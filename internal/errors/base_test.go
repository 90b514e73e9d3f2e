package errors

import (
	stderrors "errors"
	"testing"
)

var errSentinel = stderrors.New("closed")

func TestWrapKeepsChain(t *testing.T) {
	err := Wrap(errSentinel, "open gzip stream")
	if err.Error() != "open gzip stream: closed" {
		t.Fatalf("error mismatch: %v", err)
	}
	if !stderrors.Is(err, errSentinel) {
		t.Fatal("wrapped sentinel lost")
	}
	if Wrap(nil, "ignored") != nil {
		t.Fatal("wrapping nil should stay nil")
	}
	if got := Wrap(errSentinel, ""); got != errSentinel {
		t.Fatalf("empty message should pass err through, got %v", got)
	}
}

func TestWrapfFormatsContext(t *testing.T) {
	err := Wrapf(errSentinel, "read csv row %d", 7)
	if err.Error() != "read csv row 7: closed" {
		t.Fatalf("error mismatch: %v", err)
	}
	if !stderrors.Is(err, errSentinel) {
		t.Fatal("wrapped sentinel lost")
	}
	if Wrapf(nil, "row %d", 7) != nil {
		t.Fatal("wrapping nil should stay nil")
	}
}
