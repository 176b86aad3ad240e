package kv

import (
	"context"
	"fmt"

	"github.com/quorumkv/qkv/cmd/util"
	"github.com/quorumkv/qkv/rpc/client"
	"github.com/quorumkv/qkv/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Checks key convergence between the leader and its followers",
	Long:  "Dumps the store of the configured endpoint (the leader) and of every listed follower, then reports per follower how many of the leader's keys carry the same value. Because replication is best-effort beyond the quorum, a lagging follower is expected, not an error.",
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return viper.BindPFlags(cmd.Flags())
	},
	RunE: runCheck,
}

func init() {
	key := "followers"
	checkCmd.Flags().String(key, "", util.WrapString("Comma-separated list of follower addresses to compare against the leader"))
}

func runCheck(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	followers := common.ParseFollowers(viper.GetString("followers"))
	if len(followers) == 0 {
		return fmt.Errorf("no followers given, nothing to compare")
	}

	leaderDump, err := kvClient.DumpStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to dump leader store: %w", err)
	}
	fmt.Printf("Leader has %d keys\n", len(leaderDump))

	clientConfig := util.GetClientConfig()
	converged := make(map[string]int, len(leaderDump))

	for _, addr := range followers {
		followerClient := client.New(common.ClientConfig{
			Endpoint:      addr,
			TimeoutSecond: clientConfig.TimeoutSecond,
			RetryCount:    clientConfig.RetryCount,
		})

		dump, err := followerClient.DumpStore(ctx)
		if err != nil {
			fmt.Printf("Follower %s: unreachable (%v)\n", addr, err)
			continue
		}

		matching, missing, diverged := 0, 0, 0
		for key, value := range leaderDump {
			followerValue, found := dump[key]
			switch {
			case !found:
				missing++
			case followerValue != value:
				diverged++
			default:
				matching++
				converged[key]++
			}
		}
		fmt.Printf("Follower %s: %d/%d keys match (%d missing, %d diverged)\n",
			addr, matching, len(leaderDump), missing, diverged)
	}

	fullyConverged := 0
	for _, count := range converged {
		if count == len(followers) {
			fullyConverged++
		}
	}
	fmt.Printf("\n%d/%d keys are identical on every follower\n", fullyConverged, len(leaderDump))

	return nil
}
