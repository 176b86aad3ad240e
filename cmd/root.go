package cmd

import (
	"fmt"
	"os"

	"github.com/quorumkv/qkv/cmd/kv"
	"github.com/quorumkv/qkv/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.2"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "qkv",
		Short: "quorum-replicated key-value store",
		Long: fmt.Sprintf(`qkv (v%s)

A single-leader, multi-follower in-memory key-value store with a tunable
write quorum. The leader commits writes locally, fans them out to all
followers concurrently and confirms a write as soon as a configurable
number of followers acknowledge it.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of qkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qkv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
