// Command framesock runs a framed TCP relay server or an interactive client.
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
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "framesock",
		Short: "Length-prefixed message relay over TCP",
		Long: `framesock exchanges length-prefixed frames over TCP.

Every message is a 4-byte big-endian length followed by the payload.
"serve" relays messages between connected clients, "connect" sends
lines read from stdin and prints the frames it receives.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		connectCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "framesock %s (%s)\n", version, commit)
		},
	}
}
