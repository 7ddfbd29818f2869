package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/hotel-ops/internal/logging"
	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/store"
)

// usersFile is the YAML staff roster accepted by "users import".
type usersFile struct {
	Users []model.User `yaml:"users"`
}

// parseRoster decodes a staff roster and rejects entries without an ID.
func parseRoster(data []byte) ([]model.User, error) {
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}
	for i, u := range f.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("roster entry %d has no id", i+1)
		}
		if u.DisplayName == "" {
			f.Users[i].DisplayName = u.ID
		}
	}
	return f.Users, nil
}

func usersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the staff directory",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "import <roster.yaml>",
			Short: "Insert or update staff from a YAML roster",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("reading roster: %w", err)
				}
				users, err := parseRoster(data)
				if err != nil {
					return err
				}
				return withStore(*configPath, func(ctx context.Context, s *store.SQLStore) error {
					if err := s.UpsertUsers(ctx, users); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %d user(s)\n", len(users))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List staff",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(*configPath, func(ctx context.Context, s *store.SQLStore) error {
					users, err := s.ListUsers(ctx)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tNAME\tROLE")
					for _, u := range users {
						fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.DisplayName, u.Role)
					}
					return w.Flush()
				})
			},
		},
	)
	return cmd
}

// withStore opens only the store; the short-lived directory commands
// send no notifications.
func withStore(configPath string, fn func(ctx context.Context, s *store.SQLStore) error) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log, nil)
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, err := store.NewSQLStore(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := fn(context.Background(), s); err != nil {
		logger.Errorw("Staff directory command failed", "error", err)
		return err
	}
	return nil
}
