// Command agent is the CLI entrypoint: it registers one project runtime per
// configured project with a control plane and executes commands dispatched
// to it (spec.md §4.1, "CLI surface").
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags
// "-X main.version=1.2.3".
var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ai-support-agent",
	Short: "AI Support Agent — remote command & chat execution agent",
	Long:  "ai-support-agent registers with a control plane, executes dispatched commands (shell, file, process, chat), and streams results back over realtime or polling transport.",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newAddProjectCmd())
	rootCmd.AddCommand(newConfigureCmd())
	rootCmd.AddCommand(newRemoveProjectCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newSetLanguageCmd())
	rootCmd.AddCommand(newSetProjectDirCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ai-support-agent %s\n", version)
		},
	}
}

// Execute runs the root cobra command, returning the process exit code per
// spec.md §4.1: 0 clean, 1 configuration error.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(Execute())
}
