// pkg/interaction/prompt.go

package interaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/pwinstall/pkg/pw_err"
	"github.com/gookit/color"
	"go.uber.org/zap"
)

// Prompter asks questions on one input stream. Prompts, menus and
// complaints go to out (stderr by default) to keep stdout for automation.
// Apart from the shared reader no state survives between prompts.
type Prompter struct {
	lines  *lineReader
	out    io.Writer
	secret SecretReader
	log    *zap.Logger
}

// Option configures a Prompter.
type Option func(*Prompter)

// WithLogger sets the logger used for debug tracing of prompts.
func WithLogger(log *zap.Logger) Option {
	return func(p *Prompter) {
		if log != nil {
			p.log = log
		}
	}
}

// WithSecretReader sets the echo-free reader used by Secret.
func WithSecretReader(r SecretReader) Option {
	return func(p *Prompter) { p.secret = r }
}

// NewPrompter reads answers from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer, opts ...Option) *Prompter {
	p := &Prompter{
		lines: newLineReader(in),
		out:   out,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewTerminalPrompter reads stdin and prompts on stderr, hiding secret
// input when stdin is a terminal.
func NewTerminalPrompter(log *zap.Logger) *Prompter {
	opts := []Option{WithLogger(log)}
	if sr := NewTerminalSecretReader(os.Stdin); sr != nil {
		opts = append(opts, WithSecretReader(sr))
	}
	return NewPrompter(os.Stdin, os.Stderr, opts...)
}

func (p *Prompter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

func (p *Prompter) complain(msg string) {
	_, _ = fmt.Fprintf(p.out, "%s %s\n", color.Error.Sprint("[ERROR]"), msg)
}

// YesNo asks question until it gets one of the accepted answers.
// def is "", "Y" or "N" (any case). End of input counts as "no".
func (p *Prompter) YesNo(ctx context.Context, question, def string) (bool, error) {
	var hint string
	switch strings.ToUpper(def) {
	case "":
		hint = NoDefaultPrompt
	case "Y":
		hint = DefaultYesPrompt
	case "N":
		hint = DefaultNoPrompt
	default:
		return false, pw_err.NewConfigurationErrorf("yes/no default must be Y or N, got %q", def)
	}

	for {
		p.printf("%s [%s]: ", question, hint)
		input, err := p.lines.ReadLine(ctx)
		if errors.Is(err, ErrEndOfInput) {
			p.printf("\n")
			p.log.Debug("End of input on yes/no prompt, answering no", zap.String("question", question))
			return false, nil
		}
		if err != nil {
			return false, err
		}

		if input == "" && def != "" {
			answer := strings.EqualFold(def, "Y")
			p.log.Debug("Default applied", zap.String("question", question), zap.Bool("answer", answer))
			return answer, nil
		}

		if answer, ok := NormalizeYesNoInput(input); ok {
			p.log.Debug("User answered", zap.String("question", question), zap.Bool("answer", answer))
			return answer, nil
		}

		if input == "" {
			p.complain("Please answer yes or no.")
		} else {
			p.complain(fmt.Sprintf("Invalid answer %q. Please enter y or n.", input))
		}
	}
}

// NormalizeYesNoInput recognises exactly y/yes/Y/YES/Yes and n/no/N/NO/No.
// The second result is false for anything else.
func NormalizeYesNoInput(input string) (answer bool, ok bool) {
	switch input {
	case "y", "yes", "Y", "YES", "Yes":
		return true, true
	case "n", "no", "N", "NO", "No":
		return false, true
	}
	return false, false
}

// Select renders options and returns the Value of the first option whose
// Token equals the input. def, when non-empty, must be one of the tokens.
func (p *Prompter) Select(ctx context.Context, prompt, def string, options []MenuOption) (string, error) {
	if len(options) == 0 {
		return "", pw_err.NewConfigurationErrorf("menu %q has no options", prompt)
	}
	var defOpt *MenuOption
	if def != "" {
		defOpt = matchToken(options, def)
		if defOpt == nil {
			return "", pw_err.NewConfigurationErrorf("menu default %q is not one of the option tokens", def)
		}
	}

	p.printf("%s\n", prompt)
	for _, opt := range options {
		p.printf("  [%s] %s\n", opt.Token, opt.Description)
	}

	for {
		if defOpt != nil {
			p.printf("Choice [%s]: ", def)
		} else {
			p.printf("Choice: ")
		}

		input, err := p.lines.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, ErrEndOfInput) {
				p.printf("\n")
			}
			return "", err
		}

		if input == "" {
			if defOpt != nil {
				p.log.Debug("Menu default applied", zap.String("prompt", prompt), zap.String("value", defOpt.Value))
				return defOpt.Value, nil
			}
			p.complain("Input required.")
			continue
		}

		if opt := matchToken(options, input); opt != nil {
			p.log.Debug("Menu option selected",
				zap.String("prompt", prompt),
				zap.String("token", opt.Token),
				zap.String("value", opt.Value))
			return opt.Value, nil
		}
		p.complain(fmt.Sprintf("Invalid choice %q.", input))
	}
}

func matchToken(options []MenuOption, token string) *MenuOption {
	for i := range options {
		if options[i].Token == token {
			return &options[i]
		}
	}
	return nil
}

// Secret reads one line without echo. Empty input yields def, which may
// itself be empty; no validation is applied.
func (p *Prompter) Secret(ctx context.Context, prompt, def string) (string, error) {
	if def != "" {
		p.printf("%s [%s]: ", prompt, def)
	} else {
		p.printf("%s: ", prompt)
	}

	var (
		input string
		err   error
	)
	if p.secret != nil {
		input, err = p.secret.ReadSecret(ctx)
		if errors.Is(err, io.EOF) {
			err = ErrEndOfInput
		}
	} else {
		input, err = p.lines.ReadLine(ctx)
	}
	// The user's Enter was not echoed.
	p.printf("\n")
	if err != nil {
		p.log.Debug("Secret input failed", zap.String("prompt", prompt), zap.Error(err))
		return "", err
	}

	if input == "" {
		return def, nil
	}
	return input, nil
}

// Input reads a value validated by spec.Kind, retrying until it passes.
// A spec whose kind, arguments or default are invalid is rejected before
// anything is printed.
func (p *Prompter) Input(ctx context.Context, spec InputSpec) (string, error) {
	if err := checkSpec(spec); err != nil {
		return "", err
	}

	if spec.Default != "" {
		p.printf("%s [%s]: ", spec.Prompt, spec.Default)
	} else {
		p.printf("%s: ", spec.Prompt)
	}

	for {
		input, err := p.lines.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, ErrEndOfInput) {
				p.printf("\n")
			}
			return "", err
		}
		if input == "" {
			input = spec.Default
		}

		if spec.Kind == KindAny {
			return input, nil
		}

		if input == "" {
			p.complain("Input required.")
			p.printf(RetryPrompt)
			continue
		}

		ok, err := Validate(spec.Kind, input, spec.Args...)
		if err != nil {
			return "", err
		}
		if ok {
			p.log.Debug("Input accepted", zap.String("prompt", spec.Prompt), zap.String("kind", string(spec.Kind)))
			return input, nil
		}

		p.complain(fmt.Sprintf("Invalid value %q: %s", input, FailureMessage(spec.Kind, spec.Args...)))
		p.printf(RetryPrompt)
	}
}

func checkSpec(spec InputSpec) error {
	if spec.Kind == "" {
		return pw_err.NewConfigurationErrorf("input %q has no validation kind", spec.Prompt)
	}
	if err := CheckArgs(spec.Kind, spec.Args...); err != nil {
		return err
	}
	if spec.Default == "" || spec.Kind == KindAny {
		return nil
	}
	ok, err := Validate(spec.Kind, spec.Default, spec.Args...)
	if err != nil {
		return err
	}
	if !ok {
		return pw_err.NewConfigurationErrorf("default %q for %q fails %s validation", spec.Default, spec.Prompt, spec.Kind)
	}
	return nil
}
