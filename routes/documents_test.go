package routes

import "testing"

func TestTypeAllowed(t *testing.T) {
	allowed := []string{"application/pdf", "text/plain", "text/markdown"}

	cases := []struct {
		name        string
		contentType string
		want        bool
	}{
		{"listed", "application/pdf", true},
		{"listed with params", "text/plain; charset=utf-8", true},
		{"case insensitive", "Text/Plain", true},
		{"unlisted", "application/zip", false},
		{"unlisted with params", "image/png; foo=bar", false},
		{"empty defers to detection", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := typeAllowed(allowed, tc.contentType); got != tc.want {
				t.Errorf("typeAllowed(%q) = %v, want %v", tc.contentType, got, tc.want)
			}
		})
	}

	if !typeAllowed(nil, "application/zip") {
		t.Error("empty allow list should permit everything")
	}
}
