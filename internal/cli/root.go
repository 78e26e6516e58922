package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pathquest",
		Short:        "Board-path quiz game: roll, unlock quizzes, earn bonus cells",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&port, "port", getEnv("PORT", ""), "port to listen on (serve)")
	cmd.PersistentFlags().StringVar(&configPath, "config", getEnv("CONFIG_PATH", "config/config.yaml"), "path to YAML config")
	cmd.AddCommand(
		newStatusCmd(),
		newRollCmd(),
		newCodeCmd(),
		newCharacterCmd(),
		newPositionCmd(),
		newClozeCmd(),
		newMCQCmd(),
		newAdminCmd(),
		newResetCmd(),
		NewServeCmd(&configPath, &port),
		NewMigrateCmd(&configPath),
		NewSeedCmd(&configPath),
	)
	return cmd
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
