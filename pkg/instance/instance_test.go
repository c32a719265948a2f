package instance

import "testing"

func TestGetIDPrecedence(t *testing.T) {
	t.Setenv("STOCKHOLD_WORKER_ID", "")
	t.Setenv("DYNO", "")
	if got := GetID(); got != "local" {
		t.Fatalf("expected fallback, got %s", got)
	}

	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected dyno id, got %s", got)
	}

	t.Setenv("STOCKHOLD_WORKER_ID", "sweeper-2")
	if got := GetID(); got != "sweeper-2" {
		t.Fatalf("expected explicit worker id, got %s", got)
	}
}
