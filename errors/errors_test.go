package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestParameterErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{Invalid("avif.quality", "must be <= %d", 100), ErrInvalidParameter},
		{BadBool("webp.lossless", "maybe"), ErrBooleanParse},
		{BadSize("outputResize", "10"), ErrInvalidResizeFormat},
		{&ParameterError{Field: "x"}, ErrInvalidParameter},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.kind) {
			t.Errorf("%v does not match %v", tc.err, tc.kind)
		}
	}
}

func TestBackendError(t *testing.T) {
	be := &BackendError{Backend: "s3", Dir: "/a/b", File: "c.jpg", Op: "put", Err: fmt.Errorf("403"), Retryable: true}
	if be.Location() != "a/b/c.jpg" {
		t.Errorf("location = %q", be.Location())
	}
	wrapped := fmt.Errorf("task: %w", be)
	if !errors.Is(wrapped, ErrBackendIO) {
		t.Error("expected ErrBackendIO")
	}
	if !IsRetryable(wrapped) {
		t.Error("expected retryable")
	}

	verify := &BackendError{Backend: "ftp", Err: ErrTransferVerification}
	if errors.Is(verify, ErrBackendIO) {
		t.Error("verification failure should not also be BackendIO")
	}
	if !errors.Is(verify, ErrTransferVerification) {
		t.Error("expected ErrTransferVerification")
	}
}

func TestRetryError(t *testing.T) {
	last := New(CategoryCodec, "render", ErrCodec)
	re := &RetryError{Attempts: 3, Failed: []string{"a.jpg"}, Last: last}
	if !errors.Is(re, ErrRetryExhausted) || !errors.Is(re, ErrCodec) {
		t.Errorf("retry error chain broken: %v", re)
	}
	if !IsCategory(re, CategoryCodec) {
		t.Error("expected codec category through the chain")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(CategoryStorage, "op", nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	if !IsRetryable(Transient("op", errors.New("timeout"))) {
		t.Fatal("Transient should be retryable")
	}
}
