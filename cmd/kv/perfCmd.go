package kv

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quorumkv/qkv/cmd/util"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Write load generator for qkv leaders",
		Long:    "Issues a configurable number of concurrent writes against the configured endpoint and reports throughput and latency percentiles. Keys are spread over a bounded key space so the workload overwrites hot keys like a real one would.",
		PreRunE: processPerfConfig,
		RunE:    runPerf,
	}
	perfKeyPrefix  = "__perf"
	perfNumThreads = 20
	perfNumWrites  = 10000
	perfKeySpread  = 100
	perfQuorum     = -1
)

func init() {
	// add flags
	key := "threads"
	perfCmd.Flags().Int(key, 20, util.WrapString("Number of concurrent writer threads"))

	key = "writes"
	perfCmd.Flags().Int(key, 10000, util.WrapString("Total number of writes to issue"))

	key = "keys"
	perfCmd.Flags().Int(key, 100, util.WrapString("How many different keys to spread the writes over"))

	key = "quorum"
	perfCmd.Flags().Int(key, -1, util.WrapString("Write quorum to set before the run (-1 leaves the current quorum untouched)"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfNumWrites = viper.GetInt("writes")
	perfKeySpread = viper.GetInt("keys")
	perfQuorum = viper.GetInt("quorum")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	fmt.Println("Write load generator for qkv")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Writes: %d, Key spread: %d\n", perfNumThreads, perfNumWrites, perfKeySpread)
	fmt.Println()

	if perfQuorum >= 0 {
		if _, err := kvClient.SetQuorum(ctx, perfQuorum); err != nil {
			return err
		}
		fmt.Printf("Set write quorum to %d\n", perfQuorum)
	}

	// Track latency through a go-metrics timer
	registry := gometrics.NewRegistry()
	timer := gometrics.NewRegisteredTimer("put", registry)
	var quorumFailed, transportFailed atomic.Uint64

	jobs := make(chan int)
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < perfNumThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				key := fmt.Sprintf("%s-%d", perfKeyPrefix, n%perfKeySpread)
				value := fmt.Sprintf("val-%d", n)

				t0 := time.Now()
				resp, err := kvClient.Put(ctx, key, value)
				timer.UpdateSince(t0)

				switch {
				case err != nil:
					transportFailed.Add(1)
				case resp.Status != "ok":
					quorumFailed.Add(1)
				}
			}
		}()
	}

	for n := 0; n < perfNumWrites; n++ {
		jobs <- n
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	// Report
	percentiles := timer.Percentiles([]float64{0.5, 0.95, 0.99})
	succeeded := perfNumWrites - int(quorumFailed.Load()) - int(transportFailed.Load())

	fmt.Println()
	fmt.Printf("Total:      %d writes in %s (%d ok, %d quorum failures, %d transport failures)\n",
		perfNumWrites, elapsed.Round(time.Millisecond), succeeded, quorumFailed.Load(), transportFailed.Load())
	fmt.Printf("Throughput: %.1f writes/sec\n", float64(perfNumWrites)/elapsed.Seconds())
	fmt.Printf("Latency:    mean %.2f ms, p50 %.2f ms, p95 %.2f ms, p99 %.2f ms\n",
		timer.Mean()/1e6, percentiles[0]/1e6, percentiles[1]/1e6, percentiles[2]/1e6)

	return nil
}
