package validation

import (
	"testing"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello", "hello"},
		{"surrounding whitespace", "  hello  ", "hello"},
		{"newline and tab kept", "line one\n\tline two", "line one\n\tline two"},
		{"control characters stripped", "he\x00ll\x07o", "hello"},
		{"carriage return stripped", "hello\rworld", "helloworld"},
		{"empty", "", ""},
		{"only whitespace", "   ", ""},
		{"unicode preserved", "señal de interés", "señal de interés"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateEntryType(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"user_message", "bot_reply", "other"} {
		if err := ValidateEntryType(valid); err != nil {
			t.Errorf("ValidateEntryType(%q) = %v, want nil", valid, err)
		}
	}
	for _, invalid := range []string{"", "system", "USER_MESSAGE"} {
		if err := ValidateEntryType(invalid); err == nil {
			t.Errorf("ValidateEntryType(%q) = nil, want error", invalid)
		}
	}
}

func TestValidateRelevance(t *testing.T) {
	t.Parallel()

	for _, valid := range []float64{0, 0.5, 1} {
		if err := ValidateRelevance(valid); err != nil {
			t.Errorf("ValidateRelevance(%g) = %v, want nil", valid, err)
		}
	}
	for _, invalid := range []float64{-0.1, 1.1, 100} {
		if err := ValidateRelevance(invalid); err == nil {
			t.Errorf("ValidateRelevance(%g) = nil, want error", invalid)
		}
	}
}

func TestCustomValidators(t *testing.T) {
	t.Parallel()

	type payload struct {
		EntryType string `validate:"entry_type"`
		Origin    string `validate:"message_origin"`
	}

	if err := Validate.Struct(payload{EntryType: "bot_reply", Origin: "operator"}); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}
	if err := Validate.Struct(payload{EntryType: "bogus", Origin: "operator"}); err == nil {
		t.Error("invalid entry type accepted")
	}
	if err := Validate.Struct(payload{EntryType: "other", Origin: "robot"}); err == nil {
		t.Error("invalid message origin accepted")
	}
}
