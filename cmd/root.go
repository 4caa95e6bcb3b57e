package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/access-realty/directlist/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "directlist",
	Short: "Seller lead platform for Access Realty and DirectList",
	Long:  "Serves the marketing API (attribution tracking, lead capture, selling-plan quiz, checkout), imports county parcel data, and manages captured leads.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
