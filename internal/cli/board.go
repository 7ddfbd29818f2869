package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/hotel-ops/internal/app"
)

func boardCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the terminal task board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The alternate screen owns the terminal; logs go to the file only.
			rt, err := open(*configPath, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			m := app.New(app.Deps{
				Store:       rt.store,
				Coordinator: rt.coordinator(),
				Merger:      rt.merger(),
				Reminders:   rt.reminders(),
				Logger:      rt.logger,
			})

			p := tea.NewProgram(m, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}
