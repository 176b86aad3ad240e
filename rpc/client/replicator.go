package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quorumkv/qkv/rpc/common"
)

// ReplicationClient pushes key-value pairs to follower nodes. It implements
// the coordinator's Replicator interface.
//
// The underlying http.Client carries no timeout of its own: every attempt
// arrives with a per-attempt deadline on its context, and a detached attempt
// must be allowed to run that deadline out even after the write returned.
type ReplicationClient struct {
	client *http.Client
}

// NewReplicationClient creates a replication client with a pooled transport
// sized for repeated calls against a small, fixed follower set.
func NewReplicationClient() *ReplicationClient {
	return &ReplicationClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Replicate pushes one key-value pair to the follower at addr. A nil return
// means the follower acknowledged the write with 200.
func (r *ReplicationClient) Replicate(ctx context.Context, addr, key, value string) error {
	payload, err := json.Marshal(common.ReplicateRequest{Key: &key, Value: &value})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, NormalizeBaseURL(addr)+"/replicate", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("replicate to %s: unexpected status %s", addr, resp.Status)
	}
	return nil
}
