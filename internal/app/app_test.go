package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestEndpoints_Names(t *testing.T) {
	got := endpoints([]string{"https://a", "https://b", "https://c"})
	want := []string{"primary", "fallback-1", "fallback-2"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d endpoints, got %d", len(want), len(got))
	}
	for i, e := range got {
		if e.Name != want[i] {
			t.Errorf("endpoint %d: expected %s, got %s", i, want[i], e.Name)
		}
	}
}

func TestIgnoreCanceled(t *testing.T) {
	if err := ignoreCanceled(fmt.Errorf("monitor: %w", context.Canceled)); err != nil {
		t.Errorf("Expected nil for cancellation, got %v", err)
	}
	boom := errors.New("boom")
	if err := ignoreCanceled(boom); !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
}
