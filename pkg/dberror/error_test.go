package dberror

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := DuplicateKey("pk_users", 7)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatal("expected DuplicateKey to match ErrDuplicateKey")
	}
	if errors.Is(err, ErrCorruption) {
		t.Fatal("DuplicateKey must not match ErrCorruption")
	}

	wrapped := fmt.Errorf("insert failed: %w", err)
	if !errors.Is(wrapped, ErrDuplicateKey) {
		t.Fatal("expected match through fmt wrapping")
	}
}

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := ReadOnly("")
	got := Wrap(fmt.Errorf("ctx: %w", inner), CodeStatementFailed, "Execute", "Connection")
	if got.Code != CodeReadOnly {
		t.Errorf("code = %s, want %s", got.Code, CodeReadOnly)
	}
	if got.Operation != "Execute" || got.Component != "Connection" {
		t.Errorf("operation/component not filled: %q/%q", got.Operation, got.Component)
	}
}

func TestWrapForeignError(t *testing.T) {
	got := Wrap(os.ErrNotExist, CodeIOFailure, "Open", "PageStore")
	if got.Code != CodeIOFailure {
		t.Errorf("code = %s", got.Code)
	}
	if !errors.Is(got, os.ErrNotExist) {
		t.Error("cause lost")
	}
	if Wrap(nil, CodeIOFailure, "", "") != nil {
		t.Error("wrapping nil must return nil")
	}
}

func TestErrorFormat(t *testing.T) {
	err := Corruption("idx.db", "bad value tag %d", 9).At("loadNode", "TrieIndex")
	msg := err.Error()
	for _, want := range []string{"[CORRUPTION]", "bad value tag 9", "operation: loadNode", "component: TrieIndex"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
	if err.Category != ErrCategoryData {
		t.Errorf("category = %v", err.Category)
	}
	if !strings.Contains(err.FormatStack(), "Stack trace") {
		t.Error("stack not captured")
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(errors.New("plain")) != "" {
		t.Error("plain error should have no code")
	}
	if CodeOf(fmt.Errorf("x: %w", LockConflict("users#12", "conn-2"))) != CodeLockConflict {
		t.Error("code not found through chain")
	}
}
