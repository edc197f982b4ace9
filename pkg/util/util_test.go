package util

import (
	"testing"
)

func TestClampInt(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi int
		want      int
	}{
		{"below_min", -1, 0, 10, 0},
		{"above_max", 20, 0, 10, 10},
		{"in_range", 5, 0, 10, 5},
		{"at_min", 0, 0, 10, 0},
		{"at_max", 10, 0, 10, 10},
		{"negative_range", -5, -10, -1, -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampInt(tt.v, tt.lo, tt.hi)
			if got != tt.want {
				t.Errorf("ClampInt(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("UTIL_TEST_INT", "7")
	if got := EnvInt("UTIL_TEST_INT", 3, 0); got != 7 {
		t.Errorf("EnvInt set = %d, want 7", got)
	}
	if got := EnvInt("UTIL_TEST_INT_MISSING", 3, 0); got != 3 {
		t.Errorf("EnvInt missing = %d, want 3", got)
	}
	t.Setenv("UTIL_TEST_INT", "bogus")
	if got := EnvInt("UTIL_TEST_INT", 3, 0); got != 3 {
		t.Errorf("EnvInt invalid = %d, want 3", got)
	}
	t.Setenv("UTIL_TEST_INT", "-5")
	if got := EnvInt("UTIL_TEST_INT", 3, 1); got != 1 {
		t.Errorf("EnvInt below min = %d, want 1", got)
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		raw  string
		def  bool
		want bool
	}{
		{"1", false, true},
		{"true", false, true},
		{"yes", false, true},
		{"on", false, true},
		{"0", true, false},
		{"false", true, false},
		{"no", true, false},
		{"off", true, false},
		{"maybe", true, true},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Setenv("UTIL_TEST_BOOL", tt.raw)
		if got := EnvBool("UTIL_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("EnvBool(%q, def=%v) = %v, want %v", tt.raw, tt.def, got, tt.want)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	type cfg struct {
		Name    string  `env:"UTIL_TEST_NAME" default:"fallback"`
		Count   int     `env:"UTIL_TEST_COUNT" default:"5" min:"1"`
		Ratio   float64 `env:"UTIL_TEST_RATIO" default:"1.5" min:"0"`
		Enabled bool    `env:"UTIL_TEST_ENABLED" default:"true"`
		Skipped string
	}

	t.Setenv("UTIL_TEST_NAME", "from-env")
	t.Setenv("UTIL_TEST_COUNT", "0")
	t.Setenv("UTIL_TEST_RATIO", "")
	t.Setenv("UTIL_TEST_ENABLED", "off")

	var c cfg
	LoadFromEnv(&c)

	if c.Name != "from-env" {
		t.Errorf("Name = %q, want from-env", c.Name)
	}
	if c.Count != 1 {
		t.Errorf("Count = %d, want 1 (min applied)", c.Count)
	}
	if c.Ratio != 1.5 {
		t.Errorf("Ratio = %v, want 1.5 (default)", c.Ratio)
	}
	if c.Enabled {
		t.Error("Enabled = true, want false")
	}
	if c.Skipped != "" {
		t.Errorf("Skipped = %q, want empty", c.Skipped)
	}
}

func TestLoadFromEnvNilPointer(t *testing.T) {
	// Must not panic.
	LoadFromEnv(nil)
	var p *struct{}
	LoadFromEnv(p)
}
