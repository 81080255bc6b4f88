package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/jmehdipour/satisfaction-predictor/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newModelsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Load every configured model and report its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			svc := loadService(cfg, zap.NewNop())
			st := svc.Status()

			failed := make(map[string]string, len(st.Failures))
			for _, f := range st.Failures {
				reason := f.Err.Error()
				if f.Missing() {
					reason = "missing"
				}
				failed[f.Source] = reason
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tSTATUS")
			for _, src := range cfg.Models.Files {
				status := "loaded"
				if reason, ok := failed[src]; ok {
					status = "failed: " + reason
				}
				fmt.Fprintf(tw, "%s\t%s\n", src, status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d models loaded, %d product categories\n",
				len(st.Loaded), len(cfg.Models.Files), len(svc.Vocabulary().Categories))
			for _, w := range st.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			return nil
		},
	}
}
