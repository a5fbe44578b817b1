package tui

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/huh"
	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/contact"
	"github.com/cyberfolio/folio-core/sanitize"
)

// ErrNoTTY is returned by interactive prompts when stdout is not a terminal.
var ErrNoTTY = errors.New("an interactive terminal is required")

var formTheme = huh.ThemeBase16()

func minRunes(n int, msg string) func(string) error {
	return func(s string) error {
		if utf8.RuneCountInString(strings.TrimSpace(s)) < n {
			return errors.New(msg)
		}
		return nil
	}
}

func validEmail(s string) error {
	r := sanitize.Form("xx", s, "0123456789")
	for _, p := range r.Errors {
		if p == sanitize.ErrEmailInvalid {
			return errors.New(p)
		}
	}
	return nil
}

// ContactForm prompts for a contact submission and asks for confirmation.
// It reports false when the user declines to send.
func ContactForm(ctx context.Context) (contact.Form, bool, error) {
	if !HasTTY {
		return contact.Form{}, false, ErrNoTTY
	}
	var form contact.Form
	send := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Prompt("> ").CharLimit(50).
				Validate(minRunes(2, sanitize.ErrNameTooShort)).Value(&form.Name),
			huh.NewInput().Title("Email").Prompt("> ").
				Validate(validEmail).Value(&form.Email),
			huh.NewText().Title("Message").CharLimit(1000).
				Validate(minRunes(10, sanitize.ErrMessageTooShort)).Value(&form.Message),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Send message?").Affirmative("Send").Negative("Cancel").Value(&send),
		),
	).WithTheme(formTheme).RunWithContext(ctx)
	if err != nil {
		return contact.Form{}, false, err
	}
	return form, send, nil
}
