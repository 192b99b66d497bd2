// Package cmd implements the shakti command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shakti",
	Short: "Shakti - multilingual legal rights assistant backend",
	Long: `Shakti answers questions about Indian women's legal rights in twelve
languages. It detects the question's language, translates to English,
retrieves relevant legal reference material, generates an answer, and
translates back.

Run "shakti serve" to start the HTTP API, or "shakti ingest" to load
reference documents into the knowledge base.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
