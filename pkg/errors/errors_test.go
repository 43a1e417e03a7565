package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(CodeMining, "extract actions for canvas", stderrors.New("boom"))
	msg := err.Error()
	if !strings.Contains(msg, string(CodeMining)) {
		t.Fatalf("expected code in message, got %q", msg)
	}
	if !strings.Contains(msg, "boom") {
		t.Fatalf("expected cause in message, got %q", msg)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root")
	err := New(CodeStorage, "save manifest", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
}

func TestIsCode(t *testing.T) {
	err := New(CodeMining, "no handlers", nil)
	wrapped := fmt.Errorf("module canvas: %w", err)

	if !IsCode(wrapped, CodeMining) {
		t.Fatal("expected CodeMining through wrapping")
	}
	if IsCode(wrapped, CodeStorage) {
		t.Fatal("did not expect CodeStorage")
	}
	if IsCode(stderrors.New("plain"), CodeMining) {
		t.Fatal("plain error should not match any code")
	}
}

func TestAsManifestoError(t *testing.T) {
	if AsManifestoError(nil) != nil {
		t.Fatal("nil error should map to nil")
	}

	typed := New(CodeEnumeration, "list modules", nil)
	if got := AsManifestoError(fmt.Errorf("wrap: %w", typed)); got != typed {
		t.Fatalf("expected the original typed error, got %+v", got)
	}

	plain := stderrors.New("plain")
	wrapped := AsManifestoError(plain)
	if wrapped.Code != CodeInternal {
		t.Fatalf("expected CodeInternal, got %s", wrapped.Code)
	}
	if !stderrors.Is(wrapped, plain) {
		t.Fatal("expected wrapped error to keep its cause")
	}
}

func TestWithContext(t *testing.T) {
	err := New(CodeMining, "extract entities", nil).
		WithContext("module", "canvas").
		WithContext("category", "entities")
	if err.Context["module"] != "canvas" {
		t.Fatalf("unexpected context: %+v", err.Context)
	}
}
