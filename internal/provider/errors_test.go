package provider

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorClass
	}{
		{429, ClassRateLimited},
		{503, ClassOverloaded},
		{504, ClassTimeout},
		{408, ClassTimeout},
		{500, ClassUnavailable},
		{502, ClassUnavailable},
		{400, ClassFatal},
		{401, ClassFatal},
		{404, ClassFatal},
	}

	for _, tt := range tests {
		if got := ClassifyStatus(tt.code); got != tt.want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestErrorClass_Retryable(t *testing.T) {
	retryable := []ErrorClass{ClassRateLimited, ClassOverloaded, ClassTimeout, ClassUnavailable}
	for _, c := range retryable {
		if !c.Retryable() {
			t.Errorf("expected %s to be retryable", c)
		}
	}
	if ClassFatal.Retryable() {
		t.Error("fatal must not be retryable")
	}
	if ErrorClass("mystery").Retryable() {
		t.Error("unknown classes must not be retryable")
	}
}

func TestClassifyError_MessageMarkers(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorClass
	}{
		{"RESOURCE_EXHAUSTED: quota exceeded", ClassRateLimited},
		{"request failed: rate_limit hit", ClassRateLimited},
		{"upstream returned 503", ClassOverloaded},
		{"model overloaded, try later", ClassOverloaded},
		{"dial tcp: i/o timeout", ClassTimeout},
		{"server returned 502 bad gateway", ClassUnavailable},
		{"invalid argument: bad schema", ClassFatal},
	}

	for _, tt := range tests {
		got := ClassifyError(errors.New(tt.msg))
		if got.Class != tt.want {
			t.Errorf("ClassifyError(%q).Class = %s, want %s", tt.msg, got.Class, tt.want)
		}
	}
}

func TestClassifyError_ContextDeadline(t *testing.T) {
	got := ClassifyError(context.DeadlineExceeded)
	if got.Class != ClassTimeout {
		t.Errorf("expected timeout class, got %s", got.Class)
	}
	if !got.Retryable() {
		t.Error("deadline exceeded should be retryable")
	}
}

func TestClassifyError_PreservesTypedError(t *testing.T) {
	orig := &Error{Class: ClassFatal, StatusCode: 401, Message: "bad key"}
	got := ClassifyError(orig)
	if got != orig {
		t.Error("expected typed error to pass through unchanged")
	}
}
