// pkg/interaction/validate.go
package interaction

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
)

// Kind names a validator for typed input.
type Kind string

const (
	KindAny    Kind = "any"
	KindNumber Kind = "number"
	KindString Kind = "string"
	KindEnum   Kind = "enum"
	KindIPv4   Kind = "ipv4"
	KindPort   Kind = "port"
	KindRange  Kind = "range"
)

// Validator reports whether candidate is acceptable. A non-nil error means
// the arguments are malformed, which is a bug in the caller rather than
// bad user input.
type Validator func(candidate string, args ...string) (bool, error)

type validatorDef struct {
	fn      Validator
	message func(args []string) string
}

var validators = map[Kind]validatorDef{
	KindNumber: {
		fn:      func(s string, args ...string) (bool, error) { return ValidateNumber(s), noArgs(KindNumber, args) },
		message: func([]string) string { return "must be a number" },
	},
	KindString: {
		fn:      ValidateString,
		message: stringMessage,
	},
	KindEnum: {
		fn: ValidateEnum,
		message: func(args []string) string {
			return "must be one of: " + strings.Join(args, ", ")
		},
	},
	KindIPv4: {
		fn:      func(s string, args ...string) (bool, error) { return ValidateIPv4(s), noArgs(KindIPv4, args) },
		message: func([]string) string { return "must be a valid IPv4 address" },
	},
	KindPort: {
		fn:      func(s string, args ...string) (bool, error) { return ValidatePort(s), noArgs(KindPort, args) },
		message: func([]string) string { return "must be 1-65535" },
	},
	KindRange: {
		fn: func(s string, args ...string) (bool, error) {
			if len(args) != 2 {
				return false, pw_err.NewConfigurationErrorf("range validator takes 2 arguments, got %d", len(args))
			}
			return ValidateRange(s, args[0], args[1])
		},
		message: func(args []string) string {
			if len(args) != 2 {
				return "out of range"
			}
			return fmt.Sprintf("must be an integer between %s and %s", args[0], args[1])
		},
	},
}

// Validate runs the validator for kind. KindAny accepts everything.
// Unknown kinds and malformed arguments return a ConfigurationError.
func Validate(kind Kind, candidate string, args ...string) (bool, error) {
	if kind == KindAny {
		return true, nil
	}
	def, ok := validators[kind]
	if !ok {
		return false, pw_err.NewConfigurationErrorf("unknown validation kind %q", kind)
	}
	return def.fn(candidate, args...)
}

// CheckArgs validates the arguments for kind without a candidate.
func CheckArgs(kind Kind, args ...string) error {
	_, err := Validate(kind, "", args...)
	return err
}

// FailureMessage returns the fixed user-facing message for kind.
func FailureMessage(kind Kind, args ...string) string {
	if def, ok := validators[kind]; ok {
		return def.message(args)
	}
	return "invalid input"
}

// ---------------- VALIDATORS ---------------- //

// ValidateNumber is true for a non-empty string of ASCII digits.
func ValidateNumber(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidateString checks the character length of s against optional
// min and max bounds. An empty bound string means unbounded.
func ValidateString(s string, args ...string) (bool, error) {
	if len(args) > 2 {
		return false, pw_err.NewConfigurationErrorf("string validator takes at most 2 arguments, got %d", len(args))
	}
	bounds := [2]int{-1, -1}
	for i, arg := range args {
		if arg == "" {
			continue
		}
		if !ValidateNumber(arg) {
			return false, pw_err.NewConfigurationErrorf("string validator bound %q is not a non-negative integer", arg)
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return false, pw_err.NewConfigurationError(fmt.Sprintf("string validator bound %q", arg), err)
		}
		bounds[i] = n
	}
	if bounds[0] >= 0 && bounds[1] >= 0 && bounds[0] > bounds[1] {
		return false, pw_err.NewConfigurationErrorf("string validator min %d exceeds max %d", bounds[0], bounds[1])
	}

	length := utf8.RuneCountInString(s)
	if bounds[0] >= 0 && length < bounds[0] {
		return false, nil
	}
	if bounds[1] >= 0 && length > bounds[1] {
		return false, nil
	}
	return true, nil
}

// ValidateEnum is true when s equals one of options byte for byte.
func ValidateEnum(s string, options ...string) (bool, error) {
	if len(options) == 0 {
		return false, pw_err.NewConfigurationErrorf("enum validator needs at least one option")
	}
	for _, opt := range options {
		if s == opt {
			return true, nil
		}
	}
	return false, nil
}

// ValidateIPv4 accepts exactly four dot separated decimal groups, each at
// most 255. Leading zeros are allowed.
func ValidateIPv4(s string) bool {
	groups := strings.Split(s, ".")
	if len(groups) != 4 {
		return false
	}
	for _, g := range groups {
		if !ValidateNumber(g) {
			return false
		}
		n, err := strconv.ParseUint(g, 10, 32)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

// ValidatePort accepts 1-65535.
func ValidatePort(s string) bool {
	if !ValidateNumber(s) {
		return false
	}
	n, err := strconv.ParseUint(s, 10, 32)
	return err == nil && n >= 1 && n <= 65535
}

// ValidateRange checks that s is an integer (optionally negative) within
// [min, max]. Non-integer bounds are a ConfigurationError.
func ValidateRange(s, min, max string) (bool, error) {
	lo, err := strconv.ParseInt(min, 10, 64)
	if err != nil {
		return false, pw_err.NewConfigurationError(fmt.Sprintf("range validator min %q is not an integer", min), err)
	}
	hi, err := strconv.ParseInt(max, 10, 64)
	if err != nil {
		return false, pw_err.NewConfigurationError(fmt.Sprintf("range validator max %q is not an integer", max), err)
	}
	if lo > hi {
		return false, pw_err.NewConfigurationErrorf("range validator min %d exceeds max %d", lo, hi)
	}

	if !ValidateNumber(strings.TrimPrefix(s, "-")) {
		return false, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false, nil
	}
	return n >= lo && n <= hi, nil
}

func noArgs(kind Kind, args []string) error {
	if len(args) != 0 {
		return pw_err.NewConfigurationErrorf("%s validator takes no arguments, got %d", kind, len(args))
	}
	return nil
}

func stringMessage(args []string) string {
	var min, max string
	if len(args) > 0 {
		min = args[0]
	}
	if len(args) > 1 {
		max = args[1]
	}
	switch {
	case min != "" && max != "":
		return fmt.Sprintf("length must be between %s and %s characters", min, max)
	case min != "":
		return fmt.Sprintf("must be at least %s characters", min)
	case max != "":
		return fmt.Sprintf("must be at most %s characters", max)
	default:
		return "invalid text"
	}
}
