package main

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/contact"
	"github.com/cyberfolio/folio-core/ratelimit"
	"github.com/cyberfolio/folio-core/tui"
	"github.com/spf13/cobra"
)

// cliIdentifier is the rate limit identity of submissions from this CLI.
const cliIdentifier = ratelimit.IdentifierPrefix + "cli"

func newContactCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Send a message through the contact relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var form contact.Form
			form.Name, _ = cmd.Flags().GetString("name")
			form.Email, _ = cmd.Flags().GetString("email")
			form.Message, _ = cmd.Flags().GetString("message")
			if form == (contact.Form{}) {
				tui.ShowBanner(out, "Get in touch", "Leave a name, an email address and a message. You will get a copy of the acknowledgement by email.")
				var send bool
				form, send, err = tui.ContactForm(ctx)
				if err != nil {
					return err
				}
				if !send {
					tui.ShowWarning(out, "Message discarded")
					return nil
				}
			}

			a, err := newApp(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var receipt contact.Receipt
			err = tui.ShowSpinner(ctx, "Sending...", func(ctx context.Context) error {
				var err error
				receipt, err = a.contact.Submit(ctx, cliIdentifier, form)
				return err
			})

			var rateErr *contact.RateLimitError
			var validErr *contact.ValidationError
			switch {
			case err == nil:
				tui.ShowSuccess(out, "Message sent (%s)", tui.Bold(receipt.ID))
				fmt.Fprintln(out, tui.QuotaLine(receipt.Remaining))
				return nil
			case errors.As(err, &rateErr):
				tui.ShowError(out, "Please wait %d seconds before submitting again.", rateErr.Seconds())
			case errors.As(err, &validErr):
				for _, p := range validErr.Problems {
					tui.ShowError(out, "%s", p)
				}
			default:
				tui.ShowError(out, "Transmission failed. Please try again.")
			}
			return err
		},
	}
	cmd.Flags().String("name", "", "sender name, skips the interactive form together with --email and --message")
	cmd.Flags().String("email", "", "sender email")
	cmd.Flags().String("message", "", "message body")
	return cmd
}
