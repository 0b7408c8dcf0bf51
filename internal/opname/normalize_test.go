package opname

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"007", "7"},
		{"7", "7"},
		{" 7 ", "7"},
		{"ABC123", "abc123"},
		{"  0A5 ", "a5"},
		{"000", "000"},
		{"0", "0"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.expected {
			t.Fatalf("Normalize(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestCodesMatch(t *testing.T) {
	cases := []struct {
		stored   string
		query    string
		expected bool
	}{
		{"007", "7", true},
		{"7", "007", true},
		{"7 ", "7", true},
		{"ABC", "abc", true},
		{"123", "1234", false},
		{"", "7", false},
		{"7", "", false},
	}
	for _, tc := range cases {
		if got := CodesMatch(tc.stored, tc.query); got != tc.expected {
			t.Fatalf("CodesMatch(%q, %q) expected %v, got %v", tc.stored, tc.query, tc.expected, got)
		}
	}
}
