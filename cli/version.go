package main

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"

	"github.com/opal-lang/pseudo/runtime/config"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pseudo %s (language %s, %s %s/%s)\n",
				version, config.LanguageVersion, goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
		},
	}
}
