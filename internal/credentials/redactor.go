package credentials

import (
	"regexp"
	"strings"
)

const (
	redactedPlaceholderConstant   = "[REDACTED]"
	tokenShapedPatternConstant    = `(?:ghp|gho|ghs|ghu|ghr)_[A-Za-z0-9]{20,}|github_pat_[A-Za-z0-9_]{20,}`
	minimumSecretLengthConstant   = 4
	redactorValueCapacityConstant = 4
)

var tokenShapedPattern = regexp.MustCompile(tokenShapedPatternConstant)

// Redactor removes known secret values and token-shaped substrings from text
// before it is logged or published as an artifact.
type Redactor struct {
	secretValues []string
}

// NewRedactor builds a Redactor covering every secret in the bundle. Short
// values are ignored so the redactor never rewrites incidental text.
func NewRedactor(bundle *Bundle) *Redactor {
	redactor := &Redactor{secretValues: make([]string, 0, redactorValueCapacityConstant)}
	if bundle == nil {
		return redactor
	}
	for _, secretValue := range []string{bundle.SourcePassword, bundle.DestinationToken, bundle.SourceUsername} {
		trimmedValue := strings.TrimSpace(secretValue)
		if len(trimmedValue) >= minimumSecretLengthConstant {
			redactor.secretValues = append(redactor.secretValues, trimmedValue)
		}
	}
	return redactor
}

// Redact replaces secret values and token-shaped substrings with a placeholder.
func (redactor *Redactor) Redact(text string) string {
	redactedText := text
	if redactor != nil {
		for _, secretValue := range redactor.secretValues {
			redactedText = strings.ReplaceAll(redactedText, secretValue, redactedPlaceholderConstant)
		}
	}
	return tokenShapedPattern.ReplaceAllString(redactedText, redactedPlaceholderConstant)
}
