package storage

import "testing"

func TestDetectCategory(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Microservice boundaries should follow team ownership", "architecture"},
		{"The crash came from a nil map write", "debugging"},
		{"Pin the docker base image digest in CI", "devops"},
		{"Refresh tokens must be rotated on use", "security"},
		{"Mock the clock, not the store", "testing"},
		{"Cache invalidation drove the latency spike", "performance"},
		{"Slices share backing arrays after append", "code"},
		{"", "code"},
	}

	for _, tc := range cases {
		if got := DetectCategory(tc.text); got != tc.want {
			t.Errorf("DetectCategory(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestDetectCategory_PriorityOrder(t *testing.T) {
	// Architecture keywords outrank debugging keywords when both appear.
	got := DetectCategory("the design bug was in the schema")
	if got != "architecture" {
		t.Errorf("expected architecture to win, got %s", got)
	}
}

func TestDetectCategory_CaseInsensitive(t *testing.T) {
	if got := DetectCategory("DOCKER compose setup"); got != "devops" {
		t.Errorf("expected devops, got %s", got)
	}
}
