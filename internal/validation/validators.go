// Package validation holds the shared request validator and input helpers.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/nexocrm/crm-ai-gateway/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("entry_type", validateEntryType); err != nil {
		panic(fmt.Sprintf("failed to register entry_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("message_origin", validateMessageOrigin); err != nil {
		panic(fmt.Sprintf("failed to register message_origin validator: %v", err))
	}
}

// validateEntryType validates that a string is a known context entry type
func validateEntryType(fl validator.FieldLevel) bool {
	return models.EntryType(fl.Field().String()).Valid()
}

// validateMessageOrigin validates that a string is a known message origin
func validateMessageOrigin(fl validator.FieldLevel) bool {
	switch models.MessageOrigin(fl.Field().String()) {
	case models.MessageOriginLead, models.MessageOriginChatbot, models.MessageOriginOperator:
		return true
	default:
		return false
	}
}

// SanitizeText trims whitespace and strips control characters except newline
// and tab.
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateEntryType validates a context entry type string value
func ValidateEntryType(value string) error {
	if !models.EntryType(value).Valid() {
		return fmt.Errorf("invalid entry_type: %s (must be 'user_message', 'bot_reply', or 'other')", value)
	}
	return nil
}

// ValidateRelevance validates a relevance score
func ValidateRelevance(score float64) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("invalid relevance_score: %g (must be between 0 and 1)", score)
	}
	return nil
}
