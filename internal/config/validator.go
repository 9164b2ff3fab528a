package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers guardrail-specific validation rules.
// Must be called before validating GuardrailConfig.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("redact_path", validateRedactPath); err != nil {
		return fmt.Errorf("register redact_path validator: %w", err)
	}
	return nil
}

// validateRedactPath rejects empty or whitespace-only redaction paths.
func validateRedactPath(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Validate validates the GuardrailConfig using struct tags and cross-field
// rules, returning actionable error messages.
func (c *GuardrailConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateSigningKeys(); err != nil {
		return err
	}
	if err := c.validatePinConsistency(); err != nil {
		return err
	}

	return nil
}

// validateSigningKeys ensures signing, when enabled, has at least one
// trusted key configured — otherwise Verify can never succeed.
func (c *GuardrailConfig) validateSigningKeys() error {
	if c.Signing.Enabled && len(c.Signing.PublicKeys) == 0 {
		return errors.New("signing.enabled is true but signing.public_keys is empty")
	}
	return nil
}

// validatePinConsistency ensures a pinned hash is only set alongside a
// pinned version, matching the pin-check contract (both pins apply only
// once verification has already succeeded).
func (c *GuardrailConfig) validatePinConsistency() error {
	if c.Signing.PinnedHash != "" && c.Signing.PinnedVersion == "" {
		return errors.New("signing.pinned_hash requires signing.pinned_version to also be set")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "redact_path":
		return fmt.Sprintf("%s must not be empty or whitespace", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
