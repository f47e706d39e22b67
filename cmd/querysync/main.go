package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "querysync",
		Short: "URL-synchronized state server",
		Long: `querysync keeps application state and the browser's URL query string
in sync from the server side.

Bindings declare which query parameters they own; updates merge into the
URL without touching unrelated parameters, values equal to their default
disappear from the URL, and detached sessions resume with their last URL
intact.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
