package validation

import (
	"strings"
	"testing"
)

func TestHasExcessiveRepetition(t *testing.T) {
	v := &DataValidatorImpl{}

	testCases := []struct {
		input    string
		expected bool
	}{
		{"", false},
		{strings.Repeat("a", 10), false},
		{strings.Repeat("a", 11), true},
		{"x" + strings.Repeat("a", 11) + "y", true},
		{strings.Repeat("é", 11), true},
		{"abababababababab", false},
		{"1000000000 UI", false},
	}

	for _, tc := range testCases {
		if got := v.hasExcessiveRepetition(tc.input); got != tc.expected {
			t.Errorf("hasExcessiveRepetition(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}

func TestValidateInput_LengthCountsRunes(t *testing.T) {
	validator := NewDataValidator()

	// 100 two-byte runes is still within the limit
	input := strings.Repeat("éa", 50)
	if err := validator.ValidateInput(input); err != nil {
		t.Errorf("Expected 100 runes to be accepted, got %v", err)
	}

	if err := validator.ValidateInput(input + "b"); err == nil {
		t.Error("Expected 101 runes to be rejected")
	}
}

func TestValidateInput_CaseInsensitivePatterns(t *testing.T) {
	validator := NewDataValidator()

	for _, input := range []string{"<SCRIPT>", "JavaScript:void", "UNION SELECT"} {
		if err := validator.ValidateInput(input); err == nil {
			t.Errorf("Expected %q to be rejected", input)
		}
	}
}

func TestValidateInput_TrimsBeforeLengthCheck(t *testing.T) {
	validator := NewDataValidator()

	if err := validator.ValidateInput("  a  "); err == nil {
		t.Error("Expected a single padded character to be too short")
	}
	if err := validator.ValidateInput("  ab  "); err != nil {
		t.Errorf("Expected padded two characters to pass, got %v", err)
	}
}
