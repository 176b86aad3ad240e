package kv

import (
	"github.com/quorumkv/qkv/cmd/util"
	"github.com/quorumkv/qkv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	kvClient *client.Client

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Interact with a running qkv node",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags to the KV command
	util.SetupClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(setQuorumCmd)
	KeyValueCommands.AddCommand(getQuorumCmd)
	KeyValueCommands.AddCommand(dumpCmd)
	KeyValueCommands.AddCommand(perfCmd)
	KeyValueCommands.AddCommand(checkCmd)
}

// setupKVClient initializes the HTTP client for all kv subcommands
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	kvClient = client.New(*util.GetClientConfig())
	return nil
}
