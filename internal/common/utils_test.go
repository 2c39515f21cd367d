package common

import "testing"

func TestHasAny(t *testing.T) {
	tests := []struct {
		s    string
		subs []string
		want bool
	}{
		{"Parameter 'input' is required.", []string{"parameter 'INPUT'"}, true},
		{"collection is empty", []string{"missing", "empty"}, true},
		{"quota exceeded", []string{"empty"}, false},
		{"anything", nil, false},
	}

	for _, tt := range tests {
		if got := HasAny(tt.s, tt.subs...); got != tt.want {
			t.Errorf("HasAny(%q, %q) = %v, want %v", tt.s, tt.subs, got, tt.want)
		}
	}
}
