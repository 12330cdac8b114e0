package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/LumiGrid/pkg/errors"
)

// NewMigrateCmd manages the database schema.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database schema migrations",
	}
	cmd.AddCommand(
		newMigrateUpCmd(),
		newMigrateDownCmd(),
		newMigrateVersionCmd(),
		newMigrateForceCmd(),
	)
	return cmd
}

func migrator(cmd *cobra.Command) (*CLIContext, Migrator, error) {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	m, err := cc.factories.Migrator(cc)
	if err != nil {
		return nil, nil, err
	}
	return cc, m, nil
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, m, err := migrator(cmd)
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil {
				return err
			}
			cc.Logger.Info("migrations applied")
			return printVersion(cmd, cc, m)
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, m, err := migrator(cmd)
			if err != nil {
				return err
			}
			if err := m.Down(steps); err != nil {
				return err
			}
			return printVersion(cmd, cc, m)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, m, err := migrator(cmd)
			if err != nil {
				return err
			}
			return printVersion(cmd, cc, m)
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied, clearing a dirty state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return errors.Newf(errors.ErrCodeBadRequest, "invalid version %q", args[0])
			}
			cc, m, err := migrator(cmd)
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return err
			}
			return printVersion(cmd, cc, m)
		},
	}
}

func printVersion(cmd *cobra.Command, cc *CLIContext, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	info := struct {
		Version uint `json:"version"`
		Dirty   bool `json:"dirty"`
	}{v, dirty}
	return PrintResult(cmd, cc.OutputFormat, info, func(w io.Writer) error {
		state := color.GreenString("clean")
		if dirty {
			state = color.RedString("dirty")
		}
		_, err := fmt.Fprintf(w, "schema version %d (%s)\n", v, state)
		return err
	})
}
