// Package cmd implements the command-line interface for the audit service.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/seo-audit/cmd/auditcmd"
	"github.com/jonesrussell/seo-audit/cmd/httpd"
	"github.com/jonesrussell/seo-audit/cmd/migrate"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "seo-audit",
	Short: "SEO content audit service",
	Long: `Audits a site's published content against external SEO data
(backlinks, analytics traffic, search position, noindex state and keywords)
and classifies every page into an actionable recommendation.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("seo-audit version %s\n", version)
		},
	})

	rootCmd.AddCommand(httpd.Command())
	rootCmd.AddCommand(auditcmd.Command())
	rootCmd.AddCommand(migrate.Command())
}
