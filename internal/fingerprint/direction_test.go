package fingerprint_test

import (
	"testing"

	"bundlewatch/internal/fingerprint"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		local, remote string
		want          fingerprint.Direction
	}{
		{"abc123", "def456", fingerprint.DirectionChanged},
		{"1.2.3", "1.3.0", fingerprint.DirectionUpgrade},
		{"2.0.0", "1.9.9", fingerprint.DirectionDowngrade},
		{"1.2.3", "9f8a", fingerprint.DirectionChanged},
		{"1234", "5678", fingerprint.DirectionChanged},
	}
	for _, tc := range tests {
		if got := fingerprint.Classify(tc.local, tc.remote); got != tc.want {
			t.Fatalf("Classify(%q, %q) = %q, want %q", tc.local, tc.remote, got, tc.want)
		}
	}
}

func TestDirectionTitle(t *testing.T) {
	if got := fingerprint.DirectionUpgrade.Title(); got != "Upgrade" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := fingerprint.Direction("").Title(); got != "Changed" {
		t.Fatalf("unexpected empty title %q", got)
	}
}
