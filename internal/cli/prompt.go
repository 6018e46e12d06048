package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"civiccircle/internal/validate"
)

// isInteractive reports whether stdin is a terminal.
func isInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// ensure fills *value from a prompt when it is empty. Without a terminal a
// missing value is an error naming flag.
func ensure(value *string, flag, title string, secret bool, check func(string) error) error {
	if *value != "" {
		if check != nil {
			return check(*value)
		}
		return nil
	}
	if !isInteractive() {
		return fmt.Errorf("--%s is required", flag)
	}

	input := huh.NewInput().
		Title(title).
		Value(value)
	if secret {
		input = input.EchoMode(huh.EchoModePassword)
	}
	if check != nil {
		input = input.Validate(check)
	}
	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	if *value == "" {
		return fmt.Errorf("%s is required", flag)
	}
	return nil
}

// confirm asks a yes/no question. Without a terminal it answers def.
func confirm(message string, def bool) (bool, error) {
	if !isInteractive() {
		return def, nil
	}
	ok := def
	c := huh.NewConfirm().
		Title(message).
		Value(&ok)
	if err := huh.NewForm(huh.NewGroup(c)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return ok, nil
}

func checkEmail(s string) error {
	if !validate.Email(s) {
		return errors.New("enter a valid email address")
	}
	return nil
}

func checkPhone(s string) error {
	if !validate.Phone(s) {
		return errors.New("phone must be 10 to 15 digits")
	}
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
