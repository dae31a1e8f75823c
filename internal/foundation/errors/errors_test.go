package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "kart.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		file, exists := err.Context().GetString("file")
		if !exists || file != "kart.yaml" {
			t.Errorf("expected context file=kart.yaml, got %v", file)
		}
	})

	t.Run("Wrapped chain detection", func(t *testing.T) {
		cause := errors.New("yaml: line 3")
		err := ContentError("parse front matter").WithCause(cause).Build()
		wrapped := fmt.Errorf("read posts: %w", err)

		if !IsClassified(wrapped) {
			t.Fatal("expected wrapped error to be classified")
		}
		if !HasCategory(wrapped, CategoryContent) {
			t.Error("expected content category through wrapping")
		}
		if GetSeverity(wrapped) != SeverityWarning {
			t.Errorf("content errors should be warnings, got %s", GetSeverity(wrapped))
		}
		if !errors.Is(wrapped, cause) {
			t.Error("expected cause to be reachable with errors.Is")
		}
	})

	t.Run("Unclassified defaults", func(t *testing.T) {
		plain := errors.New("plain")
		if GetCategory(plain) != CategoryInternal {
			t.Errorf("expected internal, got %s", GetCategory(plain))
		}
		if GetSeverity(plain) != SeverityError {
			t.Errorf("expected error severity, got %s", GetSeverity(plain))
		}
	})
}

func TestWithContextDoesNotMutateOriginal(t *testing.T) {
	base := RenderError("render failed").WithContext("renderer", "site").Build()
	derived := base.WithContext("key", "posts.a")

	if _, ok := base.Context().Get("key"); ok {
		t.Fatal("original error context was mutated")
	}
	if v, _ := derived.Context().GetString("key"); v != "posts.a" {
		t.Fatalf("derived context missing key, got %q", v)
	}
	if v, _ := derived.Context().GetString("renderer"); v != "site" {
		t.Fatalf("derived context lost renderer, got %q", v)
	}
}

func TestErrorIsComparesCategoryAndMessage(t *testing.T) {
	a := NotFoundError("no page").Build()
	b := NotFoundError("no page").WithContext("path", "/x/").Build()
	c := NotFoundError("other").Build()
	if !errors.Is(a, b) {
		t.Error("expected equal category+message to match")
	}
	if errors.Is(a, c) {
		t.Error("expected different messages not to match")
	}
}

func TestBuilderReuseDoesNotShareContext(t *testing.T) {
	b := RoutingError("collision").WithContext("key", "a")
	first := b.Build()
	b.WithContext("key", "b")
	if v, _ := first.Context().GetString("key"); v != "a" {
		t.Fatalf("built error changed after builder reuse: %q", v)
	}
}

func TestErrorString(t *testing.T) {
	err := WrapError(errors.New("eof"), CategoryContent, "parse front matter").Build()
	if got := err.Error(); got != "content: parse front matter: eof" {
		t.Fatalf("unexpected message %q", got)
	}
}
