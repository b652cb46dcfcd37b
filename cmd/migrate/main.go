package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/chalets-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	var dir string
	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the chalets database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dir, "dir", migrate.DefaultDir, "goose migrations directory")

	rootCmd.AddCommand(
		gooseCmd("up", "Apply all pending migrations", &dir),
		gooseCmd("down", "Roll back the latest migration", &dir),
		gooseCmd("status", "Show applied and pending migrations", &dir),
		versionCmd(&dir),
		createCmd(&dir),
		validateCmd(&dir),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
