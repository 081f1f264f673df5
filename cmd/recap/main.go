package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/recap/ai/observability/logging"
	"github.com/hrygo/recap/internal/profile"
	"github.com/hrygo/recap/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "recap",
	Short: `Turn meeting transcripts and chat threads into structured summaries.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Systemd units provide the environment themselves.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		logging.Setup(os.Stderr, viper.GetString("log-format"), viper.GetString("log-level"))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 28081)
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", "text")

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	for _, name := range []string{"mode", "log-level", "log-format"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("recap")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, summarizeCmd, versionCmd)
}

// loadProfile builds the instance profile from flags and the environment.
func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:      viper.GetString("mode"),
		Addr:      viper.GetString("addr"),
		Port:      viper.GetInt("port"),
		LogLevel:  viper.GetString("log-level"),
		LogFormat: viper.GetString("log-format"),
		Version:   version.GetCurrentVersion(viper.GetString("mode")),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
