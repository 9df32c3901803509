package brokererr

import (
	"errors"
	"testing"
)

func TestCodeAndWrap(t *testing.T) {
	base := errors.New("x")
	e := Wrap(CodeConflict, "conflict", base)
	if Code(e) != CodeConflict {
		t.Fatalf("code=%d", Code(e))
	}
	if !errors.Is(e, base) {
		t.Fatalf("unwrap failed")
	}
}

func TestWithMessageAndCodeFallback(t *testing.T) {
	base := errors.New("x")
	w := WithMessage(base, "ctx")
	if w == nil {
		t.Fatalf("expected error")
	}
	if Code(base) != CodeInternal {
		t.Fatalf("expected default code, got %d", Code(base))
	}
	if Code(nil) != 0 {
		t.Fatalf("expected code 0 for nil")
	}
}

func TestNewAndWithMessageOnCodeError(t *testing.T) {
	ce := New(CodeBadRequest, "bad")
	if Code(ce) != CodeBadRequest {
		t.Fatalf("code=%d", Code(ce))
	}
	if ce.Error() == "" {
		t.Fatalf("expected message")
	}
	if ce.Unwrap() != nil {
		t.Fatalf("expected nil unwrap")
	}
	w := WithMessage(ce, "ctx")
	if Code(w) != CodeBadRequest {
		t.Fatalf("code=%d", Code(w))
	}
}
