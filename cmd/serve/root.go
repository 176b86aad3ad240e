package serve

import (
	cmdUtil "github.com/quorumkv/qkv/cmd/util"
	"github.com/quorumkv/qkv/lib/quorum"
	"github.com/quorumkv/qkv/lib/store"
	"github.com/quorumkv/qkv/rpc/client"
	"github.com/quorumkv/qkv/rpc/common"
	"github.com/quorumkv/qkv/rpc/server"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a qkv node",
		Long:    `Start a qkv node with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is QKV_<flag> (e.g. QKV_WRITE_QUORUM=2)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "role"
	ServeCmd.PersistentFlags().String(key, "follower", cmdUtil.WrapString("Role of this node (leader, follower). Only the leader accepts client writes and orchestrates replication"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:5000", cmdUtil.WrapString("The address on which the API will listen (e.g. 0.0.0.0:5000)"))

	key = "followers"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Leader only) Comma-separated list of follower addresses in the format 'localhost:5001,localhost:5002'"))

	key = "min-delay-ms"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("(Leader only) Lower bound of the simulated network delay applied before every replication call (in milliseconds)"))

	key = "max-delay-ms"
	ServeCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("(Leader only) Upper bound of the simulated network delay applied before every replication call (in milliseconds)"))

	key = "write-quorum"
	ServeCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("(Leader only) Initial number of follower confirmations required for a write to succeed. Can be changed at runtime via /admin/set_quorum"))

	key = "repl-timeout"
	ServeCmd.PersistentFlags().Int64(key, 2, cmdUtil.WrapString("(Leader only) Timeout per follower replication call in seconds"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse the role
	role, err := common.ParseRole(viper.GetString("role"))
	if err != nil {
		return err
	}
	serveCmdConfig.Role = role

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Followers = common.ParseFollowers(viper.GetString("followers"))
	serveCmdConfig.MinDelayMs = viper.GetInt("min-delay-ms")
	serveCmdConfig.MaxDelayMs = viper.GetInt("max-delay-ms")
	serveCmdConfig.WriteQuorum = viper.GetInt("write-quorum")
	serveCmdConfig.ReplTimeoutSecond = viper.GetInt64("repl-timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return serveCmdConfig.Validate()
}

// run starts the qkv node
func run(_ *cobra.Command, _ []string) error {
	// Init loggers
	common.InitLoggers(*serveCmdConfig)

	// Every node owns exactly one local store
	st := store.NewMemStore()

	// The quorum cell is seeded from config and mutable at runtime
	cell, err := quorum.NewCell(serveCmdConfig.WriteQuorum)
	if err != nil {
		return err
	}

	// Only the leader fans writes out
	var coordinator *quorum.Coordinator
	if serveCmdConfig.IsLeader() {
		coordinator = quorum.NewCoordinator(st, cell, client.NewReplicationClient(), quorum.Config{
			Followers: serveCmdConfig.Followers,
			MinDelay:  serveCmdConfig.MinDelay(),
			MaxDelay:  serveCmdConfig.MaxDelay(),
			Timeout:   serveCmdConfig.ReplTimeout(),
		})
	}

	srv := server.New(*serveCmdConfig, st, cell, coordinator)
	return srv.Serve()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("qkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
