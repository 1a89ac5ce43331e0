package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func newCurrentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Print the current package, or the binary package when none is installed",
		Args:  cobra.NoArgs,
		RunE: runWithApp("current", func(ctx context.Context, cmd *cobra.Command, a *app) error {
			pkg, err := a.engine.Registry().GetCurrentOrDefault(ctx)
			if err != nil {
				return err
			}

			return printYAML(cmd, pkg)
		}),
	}
}

func newPreviousCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "previous",
		Short: "Print the package that was current before the last install",
		Args:  cobra.NoArgs,
		RunE: runWithApp("previous", func(ctx context.Context, cmd *cobra.Command, a *app) error {
			pkg, err := a.engine.Registry().GetOldOrDefault(ctx)
			if err != nil {
				return err
			}

			return printYAML(cmd, pkg)
		}),
	}
}
