package cmd

import (
	"fmt"
	"os"

	"github.com/jmehdipour/satisfaction-predictor/internal/config"
	"github.com/jmehdipour/satisfaction-predictor/internal/service/prediction"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd builds the command tree. Each call gets its own flag state.
func NewRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:          "satisfaction-predictor",
		Short:        "Customer satisfaction ensemble predictor",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	cmd.AddCommand(newServeCmd(&cfgPath))
	cmd.AddCommand(newPredictCmd(&cfgPath))
	cmd.AddCommand(newModelsCmd(&cfgPath))

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadService loads the ensemble and the category list once per process.
func loadService(cfg config.Config, log *zap.Logger) *prediction.Service {
	return prediction.Bootstrap(prediction.Opts{
		ModelDir:       cfg.Models.Dir,
		ModelFiles:     cfg.Models.Files,
		CategoriesFile: cfg.Vocabulary.CategoriesFile,
	}, log)
}
