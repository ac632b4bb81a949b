package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state out of package variables.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "obaber",
		Short: "obaber - BER codec and LDAP front end",
		Long: `obaber decodes and encodes ASN.1 BER streams and serves a minimal LDAP
front end on top of its rule-driven decoder.

Use "obaber [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newEncodeCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newBenchReportCmd())
	root.AddCommand(newVersionCmd())

	root.CompletionOptions.DisableDefaultCmd = true
	return root
}
