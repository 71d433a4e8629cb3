package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/dailyrun/internal/launcher"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Print the Dockerfile the sandbox image is built from",
	Args:  cobra.NoArgs,
	RunE:  runImage,
}

func init() {
	rootCmd.AddCommand(imageCmd)
}

func runImage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := launcher.Options{
		App:          cfg.App.Name,
		LocalDir:     cfg.App.LocalDir,
		WorkspaceDir: cfg.App.WorkspaceDir,
		Entrypoint:   cfg.App.Entrypoint,
		ImageFile:    cfg.App.ImageFile,
	}
	spec, err := launcher.BuildImageSpec(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# tag: %s\n# context: %s\n", spec.Tag(cfg.App.Name), spec.Mount().LocalDir)
	fmt.Fprint(out, spec.Dockerfile())
	fmt.Fprintf(out, "# startup: %s\n", launcher.Command(spec.Mount().RemotePath, cfg.App.Entrypoint)[2])
	return nil
}
