package fusion

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxItemLength  = 100
	MaxThemeLength = 50
)

var angleBrackets = strings.NewReplacer("<", "", ">", "")

// Sanitize trims s and removes angle brackets.
func Sanitize(s string) string {
	return angleBrackets.Replace(strings.TrimSpace(s))
}

// Pair is a validated and sanitized fusion input.
type Pair struct {
	Input1 string
	Input2 string
	Theme  string
}

// ValidatePair checks raw inputs and returns their sanitized form.
// Lengths are counted in characters on the raw input.
func ValidatePair(capability Capability, input1, input2, theme string) (Pair, error) {
	pair := Pair{Input1: Sanitize(input1), Input2: Sanitize(input2), Theme: Sanitize(theme)}

	if pair.Input1 == "" || pair.Input2 == "" {
		return Pair{}, &Error{Kind: KindValidation, Capability: capability, Message: MsgInputsRequired}
	}
	if utf8.RuneCountInString(input1) > MaxItemLength || utf8.RuneCountInString(input2) > MaxItemLength {
		return Pair{}, &Error{Kind: KindValidation, Capability: capability, Message: MsgInputTooLong}
	}
	if utf8.RuneCountInString(theme) > MaxThemeLength {
		return Pair{}, &Error{Kind: KindValidation, Capability: capability, Message: MsgThemeTooLong}
	}
	return pair, nil
}
