package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/bundle-deployer/internal/domain/codepush"
	"github.com/oshokin/bundle-deployer/internal/logger"
)

type installFlags struct {
	archivePath               string
	packagePath               string
	installMode               string
	mandatoryInstallMode      string
	minimumBackgroundDuration int
}

func newInstallCommand() *cobra.Command {
	flags := new(installFlags)

	command := &cobra.Command{
		Use:   "install",
		Short: "Install a downloaded update package",
		Long: "Unzip the update archive, assemble and verify the package, record it as the current " +
			"package and hand it over to the host. The archive defaults to codepush/download/update.zip.",
		Args: cobra.NoArgs,
		RunE: runWithApp("install", func(ctx context.Context, cmd *cobra.Command, a *app) error {
			pkg, err := flags.loadPackage(a)
			if err != nil {
				return err
			}

			opts, err := flags.options()
			if err != nil {
				return err
			}

			result, err := a.engine.Install(ctx, pkg, opts)
			if err != nil {
				return fmt.Errorf("install package: %w", err)
			}

			logger.InfoKV(ctx, "Install finished", "attempt_id", result.AttemptID, "install_mode", string(result.Mode))

			if err = printYAML(cmd, result.Package); err != nil {
				return err
			}

			// The host state of an immediate install is written in the background and must land before exit.
			if err = <-result.Done; err != nil {
				return fmt.Errorf("activate package: %w", err)
			}

			return nil
		}),
	}

	command.Flags().StringVarP(&flags.archivePath, "archive", "a", "", "path to the update archive")
	command.Flags().StringVarP(&flags.packagePath, "package", "p", "", "path to the package description JSON")
	command.Flags().StringVar(&flags.installMode, "install-mode", "",
		"install mode for optional updates (IMMEDIATE, ON_NEXT_RESTART, ON_NEXT_RESUME, ON_NEXT_SUSPEND)")
	command.Flags().StringVar(&flags.mandatoryInstallMode, "mandatory-install-mode", "", "install mode for mandatory updates")
	command.Flags().IntVar(&flags.minimumBackgroundDuration, "minimum-background-duration", 0,
		"seconds in background before an ON_NEXT_RESUME install applies")

	_ = command.MarkFlagRequired("package")

	return command
}

// loadPackage reads the package description. The archive flag wins over the
// description's localPath.
func (f *installFlags) loadPackage(a *app) (*codepush.Package, error) {
	contents, err := os.ReadFile(filepath.Clean(f.packagePath))
	if err != nil {
		return nil, fmt.Errorf("read package description: %w", err)
	}

	var pkg codepush.Package
	if err = json.Unmarshal(contents, &pkg); err != nil {
		return nil, fmt.Errorf("decode package description: %w", err)
	}

	switch {
	case f.archivePath != "":
		pkg.LocalPath = f.archivePath
	case pkg.LocalPath == "":
		pkg.LocalPath = a.layout.UpdateArchivePath()
	}

	return &pkg, nil
}

func (f *installFlags) options() (codepush.InstallOptions, error) {
	var opts codepush.InstallOptions

	if f.installMode != "" {
		mode, err := codepush.ParseInstallMode(f.installMode)
		if err != nil {
			return opts, err
		}

		opts.InstallMode = mode
	}

	if f.mandatoryInstallMode != "" {
		mode, err := codepush.ParseInstallMode(f.mandatoryInstallMode)
		if err != nil {
			return opts, err
		}

		opts.MandatoryInstallMode = mode
	}

	opts.MinimumBackgroundDuration = f.minimumBackgroundDuration

	return opts, opts.Validate()
}

func printYAML(cmd *cobra.Command, value any) error {
	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)

	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("print result: %w", err)
	}

	return encoder.Close()
}
