package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/figure-service/cmd/figures-cli/ui"
)

func newVisualizeCmd(root *rootOptions) *cobra.Command {
	var intermediate bool
	cmd := &cobra.Command{
		Use:   "visualize <pdf>",
		Short: "Show how the extractor parsed a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := root.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			if application.Visualizer == nil {
				return errors.New("visualization is not configured")
			}

			spin := ui.NewSpinner("Running visualizer...")
			spin.Start()
			res, err := application.Visualizer.Visualize(cmd.Context(), args[0], intermediate)
			spin.Stop()
			if err != nil {
				return err
			}

			if res.Output != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Output)
			}
			if !res.Success {
				return errors.New(res.Message)
			}
			ui.Success("%s", res.Message)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&intermediate, "intermediate", "i", false, "also show intermediate parsing steps")
	return cmd
}
