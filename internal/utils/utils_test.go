package utils

import "testing"

func TestDotIdentifier(t *testing.T) {
	tests := []struct{ name, want string }{
		{"", "G"},
		{"model", "model"},
		{"my model/v2", "my_model_v2"},
		{"3rd", "_3rd"},
	}
	for _, tt := range tests {
		if got := DotIdentifier(tt.name); got != tt.want {
			t.Errorf("DotIdentifier(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
