package models

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusReady, true},
		{StatusProcessing, StatusError, true},
		{StatusError, StatusProcessing, true},

		{StatusPending, StatusReady, false},
		{StatusPending, StatusError, false},
		{StatusReady, StatusProcessing, false},
		{StatusReady, StatusError, false},
		{StatusError, StatusReady, false},
		{StatusProcessing, StatusPending, false},
		{StatusReady, StatusPending, false},
		{"bogus", StatusProcessing, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	if err := ValidateTransition(StatusPending, StatusProcessing); err != nil {
		t.Errorf("valid transition rejected: %v", err)
	}
	if err := ValidateTransition(StatusReady, StatusError); err == nil {
		t.Error("invalid transition accepted")
	}
}
