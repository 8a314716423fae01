package cache

import (
	"errors"
	"testing"
	"time"
)

func TestParseTTL(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"86400000", 24 * time.Hour, false},
		{"500ms", 500 * time.Millisecond, false},
		{"30s", 30 * time.Second, false},
		{"15m", 15 * time.Minute, false},
		{"1.5h", 90 * time.Minute, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"1M", 30 * 24 * time.Hour, false},
		{"1y", 365 * 24 * time.Hour, false},
		{" 3 d ", 3 * 24 * time.Hour, false},
		{"7days", 0, true},
		{"abc", 0, true},
		{"-5s", 0, true},
		{"10x", 0, true},
		{"1D", 0, true},
		{"292y", 292 * 365 * 24 * time.Hour, false},
		{"300y", 0, true},
		{"9223372036854ms", 9223372036854 * time.Millisecond, false},
		{"99999999999999999", 0, true},
		{"99999999999999999999", 0, true},
		{"0.0000001ms", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTTL(tt.input)
			if tt.wantErr {
				var cfgErr *InvalidConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("ParseTTL(%q) error = %v, want *InvalidConfigurationError", tt.input, err)
				}
				if cfgErr.Field != "ttl" {
					t.Errorf("Field = %q, want ttl", cfgErr.Field)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTTL(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTTL(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"1048576", 1 << 20, false},
		{"512B", 512, false},
		{"1KB", 1024, false},
		{"500MB", 500 << 20, false},
		{"500mb", 500 << 20, false},
		{"1.5GB", 3 << 29, false},
		{"2 gb", 2 << 30, false},
		{"10TB", 0, true},
		{"big", 0, true},
		{"MB", 0, true},
		{"8589934591GB", 8589934591 << 30, false},
		{"99999999999GB", 0, true},
		{"99999999999999999999", 0, true},
		{"0.5B", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				var cfgErr *InvalidConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("ParseSize(%q) error = %v, want *InvalidConfigurationError", tt.input, err)
				}
				if cfgErr.Field != "max_size" {
					t.Errorf("Field = %q, want max_size", cfgErr.Field)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSize(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatTTL(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "never"},
		{7 * 24 * time.Hour, "1w"},
		{3 * 24 * time.Hour, "3d"},
		{90 * time.Minute, "90m"},
		{1500 * time.Millisecond, "1500ms"},
	}

	for _, tt := range tests {
		if got := FormatTTL(tt.d); got != tt.want {
			t.Errorf("FormatTTL(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestNew_InvalidConfiguration(t *testing.T) {
	dir := t.TempDir()

	_, err := New(Options{Dir: dir, TTL: "forever"})
	var cfgErr *InvalidConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("New with bad ttl error = %v, want *InvalidConfigurationError", err)
	}

	_, err = New(Options{Dir: dir, MaxSize: "lots"})
	if !errors.As(err, &cfgErr) {
		t.Fatalf("New with bad max_size error = %v, want *InvalidConfigurationError", err)
	}
}
