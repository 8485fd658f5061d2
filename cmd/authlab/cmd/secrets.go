package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/authlab/config"
	"github.com/jmcleod/authlab/guard"
	"github.com/jmcleod/authlab/internal/passhash"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a password hash for ADMIN_PWHASH",
	Long: `Reads one line from stdin and prints a werkzeug-compatible scrypt hash.

  echo -n 'correct horse' | authlab hash-password`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("no password on stdin")
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return errors.New("password must not be empty")
		}
		encoded, err := passhash.Hash(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), encoded)
		return nil
	},
}

var mfaSecretCmd = &cobra.Command{
	Use:   "mfa-secret",
	Short: "Generate a TOTP secret for ADMIN_MFA_SECRET",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, url, err := guard.GenerateTOTPSecret(config.AdminUsername)
		if err != nil {
			return fmt.Errorf("generating secret: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ADMIN_MFA_SECRET=%s\n", secret)
		fmt.Fprintf(out, "otpauth URL: %s\n", url)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(mfaSecretCmd)
}
