package tui

import (
	"context"

	"github.com/charmbracelet/huh/spinner"
)

// ShowSpinner runs action under a spinner and returns its error. Without a
// TTY the action simply runs.
func ShowSpinner(ctx context.Context, title string, action func(ctx context.Context) error) error {
	if !HasTTY {
		return action(ctx)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var err error
	if serr := spinner.New().
		Context(ctx).
		Title(" " + title).
		Action(func() {
			defer cancel()
			err = action(ctx)
		}).
		Run(); serr != nil && err == nil && ctx.Err() == nil {
		return serr
	}
	return err
}
