package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestFatal(t *testing.T) {
	cause := errors.New("vkCreateFence failed")

	tests := []struct {
		name      string
		err       error
		wantNil   bool
		wantFatal bool
	}{
		{name: "nil stays nil", err: nil, wantNil: true},
		{name: "plain error is wrapped", err: cause, wantFatal: true},
		{name: "wrapped fatal is kept", err: fmt.Errorf("frame: %w", Fatal("create fence", cause)), wantFatal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fatal("op", tt.err)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("Fatal(nil) = %v, want nil", got)
				}
				return
			}
			if IsFatal(got) != tt.wantFatal {
				t.Fatalf("IsFatal(%v) = %v, want %v", got, IsFatal(got), tt.wantFatal)
			}
			if !errors.Is(got, cause) {
				t.Fatalf("errors.Is(%v, cause) = false", got)
			}
		})
	}
}

func TestFatalErrorMessage(t *testing.T) {
	err := Fatal("create buffer", ErrNoMemoryType)
	want := "fatal: create buffer: no memory type satisfies the requested properties"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if IsFatal(ErrFenceTimeout) {
		t.Fatal("sentinel errors must not be fatal by themselves")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"TRACE":   DebugLevel,
		" warn ":  WarnLevel,
		"error":   ErrorLevel,
		"info":    InfoLevel,
		"unknown": InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
