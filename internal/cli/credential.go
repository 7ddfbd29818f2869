package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/hotel-ops/internal/credential"
)

func credentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage secrets stored in the system keyring",
		Long: `Manage secrets stored in the system keyring.

The default keys are webhook-token and mailbox-password.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <key>",
			Short: "Store a secret read from standard input",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintf(cmd.ErrOrStderr(), "Value for %s: ", args[0])
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading value: %w", err)
				}
				value := strings.TrimRight(line, "\r\n")
				if value == "" {
					return fmt.Errorf("empty value for %s", args[0])
				}
				return credential.NewVault().Set(args[0], value)
			},
		},
		&cobra.Command{
			Use:   "delete <key>",
			Short: "Remove a secret",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return credential.NewVault().Delete(args[0])
			},
		},
	)
	return cmd
}
