package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:   "authlab",
	Short: "AuthLab is a web security training lab",
	Long: `A deliberately vulnerable web application for practising authentication,
CSRF, rate limiting, MFA and common injection flaws. Each vulnerable surface
can be switched between a safe and a proof-of-concept mode.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file read before the environment")
}
