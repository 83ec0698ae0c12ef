package perch

import "testing"

func Test_SupportsTransientAutoclose(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"2.2.6", true},
		{"2.2.7", true},
		{"2.3.0", true},
		{"3.0.0", true},
		{"v2.2.6", true},
		{"2.2.5", false},
		{"2.2", false}, // x/mod/semver treats "v2.2" as "v2.2.0", below the gate
		{"1.9.9", false},
		{"", false},
		{"not-a-version", false},
	}
	for _, tt := range tests {
		if got := SupportsTransientAutoclose(tt.version); got != tt.want {
			t.Errorf("SupportsTransientAutoclose(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func Test_VersionEmbedded(t *testing.T) {
	if Version == "" {
		t.Fatalf("library Version is empty")
	}
}
