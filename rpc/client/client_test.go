package client_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quorumkv/qkv/lib/quorum"
	"github.com/quorumkv/qkv/lib/store"
	"github.com/quorumkv/qkv/rpc/client"
	"github.com/quorumkv/qkv/rpc/common"
	"github.com/quorumkv/qkv/rpc/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startNode(t *testing.T, role common.Role, quorumN int) (*httptest.Server, store.Store) {
	t.Helper()
	st := store.NewMemStore()
	cell, err := quorum.NewCell(quorumN)
	require.NoError(t, err)

	var coordinator *quorum.Coordinator
	if role == common.RoleLeader {
		coordinator = quorum.NewCoordinator(st, cell, client.NewReplicationClient(), quorum.Config{
			Timeout: time.Second,
		})
	}

	srv := server.New(common.ServerConfig{
		Role:     role,
		Endpoint: "127.0.0.1:0",
		LogLevel: "info",
	}, st, cell, coordinator)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func newClient(endpoint string) *client.Client {
	return client.New(common.ClientConfig{
		Endpoint:      endpoint,
		TimeoutSecond: 2,
		RetryCount:    1,
	})
}

func TestClient_GetPut(t *testing.T) {
	ts, _ := startNode(t, common.RoleLeader, 0)
	c := newClient(ts.URL)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)

	resp, err := c.Put(ctx, "a", "1")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.ReplicasConfirmed)
	assert.Equal(t, 0, *resp.ReplicasConfirmed)

	value, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", value)
}

func TestClient_PutNotLeader(t *testing.T) {
	ts, _ := startNode(t, common.RoleFollower, 1)
	c := newClient(ts.URL)

	_, err := c.Put(context.Background(), "a", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not leader")
}

func TestClient_PutQuorumFailureIsReturnedNotErrored(t *testing.T) {
	ts, _ := startNode(t, common.RoleLeader, 0)
	c := newClient(ts.URL)
	ctx := context.Background()

	_, err := c.SetQuorum(ctx, 1)
	require.NoError(t, err)

	// no followers, quorum 1: the server answers 500 with a reason body,
	// which the client surfaces as a response rather than an error
	resp, err := c.Put(ctx, "a", "1")
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, common.ReasonNoFollowers, resp.Reason)
}

func TestClient_Quorum(t *testing.T) {
	ts, _ := startNode(t, common.RoleLeader, 1)
	c := newClient(ts.URL)
	ctx := context.Background()

	quorumN, err := c.GetQuorum(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, quorumN)

	quorumN, err = c.SetQuorum(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, quorumN)

	quorumN, err = c.GetQuorum(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, quorumN)
}

func TestClient_DumpStore(t *testing.T) {
	ts, st := startNode(t, common.RoleFollower, 1)
	st.Set("a", "1")
	st.Set("b", "2")

	dump, err := newClient(ts.URL).DumpStore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, dump)
}

func TestReplicationClient(t *testing.T) {
	ts, st := startNode(t, common.RoleFollower, 1)
	addr := strings.TrimPrefix(ts.URL, "http://")
	r := client.NewReplicationClient()

	require.NoError(t, r.Replicate(context.Background(), addr, "k", "v"))
	value, found := st.Get("k")
	require.True(t, found)
	assert.Equal(t, "v", value)
}

func TestReplicationClient_Errors(t *testing.T) {
	t.Run("ConnectionRefused", func(t *testing.T) {
		r := client.NewReplicationClient()
		err := r.Replicate(context.Background(), "127.0.0.1:1", "k", "v")
		assert.Error(t, err)
	})

	t.Run("Timeout", func(t *testing.T) {
		ts, _ := startNode(t, common.RoleFollower, 1)
		r := client.NewReplicationClient()

		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		err := r.Replicate(ctx, strings.TrimPrefix(ts.URL, "http://"), "k", "v")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:5001", client.NormalizeBaseURL("localhost:5001"))
	assert.Equal(t, "http://localhost:5001", client.NormalizeBaseURL("http://localhost:5001/"))
	assert.Equal(t, "https://kv.example.com", client.NormalizeBaseURL("https://kv.example.com"))
}
