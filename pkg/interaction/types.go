/* pkg/interaction/types.go */

package interaction

import (
	"errors"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
)

// ErrEndOfInput is returned when stdin is exhausted before a prompt that
// cannot fall back to a default answer was satisfied.
var ErrEndOfInput = errors.New("end of input")

const (
	DefaultYesPrompt = "Y/n"
	DefaultNoPrompt  = "y/N"
	NoDefaultPrompt  = "y/n"
	RetryPrompt      = "> "
)

// MenuOption is one entry of a Select menu. Token is what the user types,
// Value is what Select returns.
type MenuOption struct {
	Token       string
	Value       string
	Description string
}

// ParseMenuOption builds an option from a "token" or "token:value" spec.
func ParseMenuOption(tokenSpec, description string) (MenuOption, error) {
	token, value, mapped := strings.Cut(tokenSpec, ":")
	if token == "" {
		return MenuOption{}, pw_err.NewConfigurationErrorf("menu option %q has an empty token", tokenSpec)
	}
	if !mapped {
		value = token
	} else if value == "" {
		return MenuOption{}, pw_err.NewConfigurationErrorf("menu option %q maps to an empty value", tokenSpec)
	}
	return MenuOption{Token: token, Value: value, Description: description}, nil
}

// ParseMenuOptions parses (token spec, description) pairs in order.
// Duplicate tokens are kept; Select resolves them first match wins.
func ParseMenuOptions(pairs ...[2]string) ([]MenuOption, error) {
	options := make([]MenuOption, 0, len(pairs))
	for _, pair := range pairs {
		opt, err := ParseMenuOption(pair[0], pair[1])
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	return options, nil
}

// InputSpec describes a typed input prompt. An empty Default means no
// default; when present it must satisfy the validator itself.
type InputSpec struct {
	Prompt  string
	Default string
	Kind    Kind
	Args    []string
}
