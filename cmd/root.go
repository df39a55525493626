package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "bedrockcron",
	Short:        "Scheduled console commands for a containerized Minecraft Bedrock server",
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(func() {
		_ = godotenv.Load()
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
