package main

import "testing"

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1,023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleLabel(t *testing.T) {
	tests := map[string]string{
		"cleaning_up": "Cleaning Up",
		"relay":       "Relay",
		"":            "Unknown",
	}
	for in, want := range tests {
		if got := titleLabel(in); got != want {
			t.Errorf("titleLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatCountAndSeconds(t *testing.T) {
	if got := formatCount(1234567); got != "1,234,567" {
		t.Fatalf("formatCount = %q", got)
	}
	if got := formatSeconds(6.25); got != "6.25s" {
		t.Fatalf("formatSeconds = %q", got)
	}
}
