package util

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"simple title", "Add login endpoint", "add-login-endpoint"},
		{"punctuation collapses", "Fix bug #123 (urgent!!)", "fix-bug-123-urgent"},
		{"leading/trailing noise", "  ---Spaces---  ", "spaces"},
		{"empty input", "", "goal"},
		{"long input truncates", "this is a very long mission description that exceeds the branch-safe length limit by quite a lot", "this-is-a-very-long-mission-description-that-exc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.in)
			if got != tt.expected {
				t.Fatalf("Slugify(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}
}
