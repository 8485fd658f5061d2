package cmd

import "github.com/spf13/cobra"

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log tools",
	Long:  `Commands for checking the JSONL audit log written to LOG_DIR.`,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
