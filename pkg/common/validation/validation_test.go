package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	gferrors "github.com/vnykmshr/settle/pkg/common/errors"
)

func TestValidatePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"positive value", 10, false},
		{"positive value 1", 1, false},
		{"zero value", 0, true},
		{"negative value", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositive("test", "count", tt.value)
			if tt.wantError {
				if !gferrors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateNonNegativeDuration(t *testing.T) {
	tests := []struct {
		name      string
		value     time.Duration
		wantError bool
	}{
		{"positive", 50 * time.Millisecond, false},
		{"zero", 0, false},
		{"negative", -time.Nanosecond, true},
		{"large negative", -time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegativeDuration("debounce", "wait", tt.value)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, gferrors.ErrInvalidConfiguration) {
					t.Errorf("expected ErrInvalidConfiguration, got %v", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidatePositiveDuration(t *testing.T) {
	if err := ValidatePositiveDuration("scheduler", "interval", time.Second); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidatePositiveDuration("scheduler", "interval", 0); err == nil {
		t.Error("zero interval should be rejected")
	}
}

func TestValidateAtLeast(t *testing.T) {
	tests := []struct {
		name      string
		value     time.Duration
		floor     time.Duration
		wantError bool
	}{
		{"above floor", time.Second, 100 * time.Millisecond, false},
		{"equal to floor", time.Second, time.Second, false},
		{"below floor", 10 * time.Millisecond, time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAtLeast("debounce", "max_wait", tt.value, "wait", tt.floor)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), "must be at least wait") {
					t.Errorf("unexpected message: %v", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateNotNil(t *testing.T) {
	if err := ValidateNotNil("redispub", "client", nil); err == nil {
		t.Error("nil should be rejected")
	}
	if err := ValidateNotNil("redispub", "client", struct{}{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateNotEmpty(t *testing.T) {
	if err := ValidateNotEmpty("redispub", "channel", ""); err == nil {
		t.Error("empty string should be rejected")
	}
	if err := ValidateNotEmpty("redispub", "channel", "events"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateOneOf(t *testing.T) {
	if err := ValidateOneOf("config", "mode", "debounce", "debounce", "throttle"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateOneOf("config", "mode", "batch", "debounce", "throttle")
	if err == nil {
		t.Fatal("expected error for unsupported mode")
	}
	if !strings.Contains(err.Error(), "expected one of: debounce throttle") {
		t.Errorf("hint should list allowed values, got %q", err.Error())
	}
}
