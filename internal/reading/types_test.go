package reading

import "testing"

func TestParseLookup(t *testing.T) {
	tests := []struct {
		raw  string
		want Lookup
	}{
		{"-1", Latest()},
		{"-42", Latest()},
		{"latest", Latest()},
		{"LATEST", Latest()},
		{" -1 ", Latest()},
		{"0", ByID("0")},
		{"17", ByID("17")},
		{"65a1f0c2e4b0a1b2c3d4e5f6", ByID("65a1f0c2e4b0a1b2c3d4e5f6")},
		{"-abc", ByID("-abc")},
		{"", ByID("")},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseLookup(tt.raw); got != tt.want {
				t.Errorf("ParseLookup(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}
