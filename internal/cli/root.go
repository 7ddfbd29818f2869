// Package cli holds the hotelops cobra commands and the wiring that
// builds the core components from configuration.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/nhle/hotel-ops/internal/model"
)

// NewRootCmd returns the hotelops command tree.
func NewRootCmd(version string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "hotelops",
		Short:         "Hotel operations task board",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "config file path")

	root.AddCommand(
		boardCmd(&configPath),
		serveCmd(&configPath),
		schedulerCmd(&configPath),
		configCmd(&configPath),
		credentialCmd(),
		usersCmd(&configPath),
	)
	return root
}
