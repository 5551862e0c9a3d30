package auth

import "testing"

func TestCheckAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		presented  string
		configured string
		want       bool
	}{
		{"match", "sk-abc123", "sk-abc123", true},
		{"mismatch", "sk-abc124", "sk-abc123", false},
		{"wrong length", "sk-abc", "sk-abc123", false},
		{"empty presented", "", "sk-abc123", false},
		{"no key configured", "sk-abc123", "", false},
		{"both empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckAPIKey(tt.presented, tt.configured); got != tt.want {
				t.Errorf("CheckAPIKey(%q, %q) = %v, want %v", tt.presented, tt.configured, got, tt.want)
			}
		})
	}
}
