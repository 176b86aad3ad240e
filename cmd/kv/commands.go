package kv

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key from the node's local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, found, err := kvClient.Get(context.Background(), key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", key, found, value)
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Writes a key through the leader's quorum coordinator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := kvClient.Put(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			if resp.Status != "ok" {
				confirmed := 0
				if resp.ReplicasConfirmed != nil {
					confirmed = *resp.ReplicasConfirmed
				}
				return fmt.Errorf("write failed: %s (replicas confirmed: %d)", resp.Reason, confirmed)
			}
			fmt.Printf("put successfully (replicas confirmed: %d)\n", *resp.ReplicasConfirmed)
			return nil
		},
	}
	setQuorumCmd = &cobra.Command{
		Use:   "set-quorum [n]",
		Short: "Overwrites the leader's write quorum at runtime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("quorum must be a number: %w", err)
			}
			quorum, err := kvClient.SetQuorum(context.Background(), n)
			if err != nil {
				return err
			}
			fmt.Printf("write quorum set to %d\n", quorum)
			return nil
		},
	}
	getQuorumCmd = &cobra.Command{
		Use:   "get-quorum",
		Short: "Reads the node's current write quorum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			quorum, err := kvClient.GetQuorum(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("write quorum is %d\n", quorum)
			return nil
		},
	}
	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dumps the node's full local store contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dump, err := kvClient.DumpStore(context.Background())
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(dump))
			for k := range dump {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				fmt.Printf("%s=%s\n", k, dump[k])
			}
			fmt.Printf("(%d keys)\n", len(dump))
			return nil
		},
	}
)
