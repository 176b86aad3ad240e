package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quorumkv/qkv/lib/quorum"
	"github.com/quorumkv/qkv/lib/store"
	"github.com/quorumkv/qkv/rpc/client"
	"github.com/quorumkv/qkv/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Harness
// --------------------------------------------------------------------------

type testNode struct {
	server *httptest.Server
	store  store.Store
	cell   *quorum.Cell
}

func (n *testNode) addr() string {
	return strings.TrimPrefix(n.server.URL, "http://")
}

func startFollower(t *testing.T) *testNode {
	t.Helper()
	st := store.NewMemStore()
	cell, err := quorum.NewCell(1)
	require.NoError(t, err)

	srv := New(common.ServerConfig{
		Role:     common.RoleFollower,
		Endpoint: "127.0.0.1:0",
		LogLevel: "info",
	}, st, cell, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testNode{server: ts, store: st, cell: cell}
}

func startLeader(t *testing.T, quorumN int, followers ...string) *testNode {
	t.Helper()
	st := store.NewMemStore()
	cell, err := quorum.NewCell(quorumN)
	require.NoError(t, err)

	coordinator := quorum.NewCoordinator(st, cell, client.NewReplicationClient(), quorum.Config{
		Followers: followers,
		Timeout:   2 * time.Second,
	})

	srv := New(common.ServerConfig{
		Role:      common.RoleLeader,
		Endpoint:  "127.0.0.1:0",
		Followers: followers,
		LogLevel:  "info",
	}, st, cell, coordinator)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testNode{server: ts, store: st, cell: cell}
}

func doPost(t *testing.T, url, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func doGet(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), "body: %s", data)
	return v
}

// --------------------------------------------------------------------------
// Read Path
// --------------------------------------------------------------------------

func TestGet(t *testing.T) {
	node := startFollower(t)
	node.store.Set("a", "1")

	status, data := doGet(t, node.server.URL+"/get/a")
	assert.Equal(t, http.StatusOK, status)
	body := decode[common.GetResponse](t, data)
	assert.True(t, body.Found)
	assert.Equal(t, "1", body.Value)

	status, data = doGet(t, node.server.URL+"/get/never-written")
	assert.Equal(t, http.StatusNotFound, status)
	body = decode[common.GetResponse](t, data)
	assert.False(t, body.Found)
}

// --------------------------------------------------------------------------
// Replication Endpoint
// --------------------------------------------------------------------------

func TestReplicate(t *testing.T) {
	node := startFollower(t)

	status, data := doPost(t, node.server.URL+"/replicate", `{"key":"k","value":"v"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", decode[common.StatusResponse](t, data).Status)

	value, found := node.store.Get("k")
	require.True(t, found)
	assert.Equal(t, "v", value)
}

func TestReplicate_Validation(t *testing.T) {
	node := startFollower(t)

	for name, body := range map[string]string{
		"MissingKey":    `{"value":"v"}`,
		"MissingValue":  `{"key":"k"}`,
		"EmptyBody":     `{}`,
		"MalformedJSON": `{not json`,
	} {
		t.Run(name, func(t *testing.T) {
			status, _ := doPost(t, node.server.URL+"/replicate", body)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}

	// a rejected push performs no store mutation
	assert.Equal(t, 0, node.store.Len())
}

func TestReplicate_EmptyStringsAreLegalValues(t *testing.T) {
	node := startFollower(t)

	status, _ := doPost(t, node.server.URL+"/replicate", `{"key":"k","value":""}`)
	assert.Equal(t, http.StatusOK, status)

	value, found := node.store.Get("k")
	require.True(t, found)
	assert.Equal(t, "", value)
}

// --------------------------------------------------------------------------
// Write Path
// --------------------------------------------------------------------------

func TestPut_NotLeader(t *testing.T) {
	node := startFollower(t)

	status, data := doPost(t, node.server.URL+"/put/a", `{"value":"1"}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not leader", decode[common.ErrorResponse](t, data).Error)
}

func TestPut_MissingValue(t *testing.T) {
	leader := startLeader(t, 1, startFollower(t).addr())

	status, _ := doPost(t, leader.server.URL+"/put/a", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	// validation failures have no side effects
	assert.Equal(t, 0, leader.store.Len())
}

func TestPut_QuorumMet(t *testing.T) {
	f1 := startFollower(t)
	f2 := startFollower(t)
	leader := startLeader(t, 1, f1.addr(), f2.addr())

	status, data := doPost(t, leader.server.URL+"/put/a", `{"value":"1"}`)
	require.Equal(t, http.StatusOK, status)
	body := decode[common.WriteResponse](t, data)
	assert.Equal(t, "ok", body.Status)
	require.NotNil(t, body.ReplicasConfirmed)
	assert.GreaterOrEqual(t, *body.ReplicasConfirmed, 1)

	// read-your-writes on the leader
	value, found := leader.store.Get("a")
	require.True(t, found)
	assert.Equal(t, "1", value)

	// detached attempts still land on both followers eventually
	require.Eventually(t, func() bool {
		_, ok1 := f1.store.Get("a")
		_, ok2 := f2.store.Get("a")
		return ok1 && ok2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPut_NoFollowers(t *testing.T) {
	leader := startLeader(t, 0)

	status, data := doPost(t, leader.server.URL+"/put/x", `{"value":"y"}`)
	require.Equal(t, http.StatusOK, status)
	body := decode[common.WriteResponse](t, data)
	assert.Equal(t, "ok", body.Status)
	require.NotNil(t, body.ReplicasConfirmed)
	assert.Equal(t, 0, *body.ReplicasConfirmed)

	// a positive quorum can never be satisfied without followers
	require.NoError(t, leader.cell.Set(1))
	status, data = doPost(t, leader.server.URL+"/put/x", `{"value":"y"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	body = decode[common.WriteResponse](t, data)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, common.ReasonNoFollowers, body.Reason)
	assert.Nil(t, body.ReplicasConfirmed)
}

func TestPut_QuorumUnreachable(t *testing.T) {
	f1 := startFollower(t)
	f2 := startFollower(t)
	leader := startLeader(t, 1, f1.addr(), f2.addr())

	status, data := doPost(t, leader.server.URL+"/admin/set_quorum", `{"quorum":10}`)
	require.Equal(t, http.StatusOK, status)

	status, data = doPost(t, leader.server.URL+"/put/z", `{"value":"w"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	body := decode[common.WriteResponse](t, data)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, common.ReasonQuorumNotReached, body.Reason)
	require.NotNil(t, body.ReplicasConfirmed)
	assert.LessOrEqual(t, *body.ReplicasConfirmed, 2)

	// the local write survives the quorum failure
	status, data = doGet(t, leader.server.URL+"/get/z")
	require.Equal(t, http.StatusOK, status)
	getBody := decode[common.GetResponse](t, data)
	assert.True(t, getBody.Found)
	assert.Equal(t, "w", getBody.Value)
}

func TestPut_DeadFollowerIsNonConfirmation(t *testing.T) {
	f1 := startFollower(t)
	// port 1 refuses connections
	leader := startLeader(t, 2, f1.addr(), "127.0.0.1:1")

	status, data := doPost(t, leader.server.URL+"/put/a", `{"value":"1"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	body := decode[common.WriteResponse](t, data)
	assert.Equal(t, common.ReasonQuorumNotReached, body.Reason)
	require.NotNil(t, body.ReplicasConfirmed)
	assert.Equal(t, 1, *body.ReplicasConfirmed)
}

func TestPut_ConcurrentDistinctKeys(t *testing.T) {
	f1 := startFollower(t)
	leader := startLeader(t, 1, f1.addr())

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("%s/put/key-%d", leader.server.URL, i)
			status, _ := doPost(t, url, fmt.Sprintf(`{"value":"val-%d"}`, i))
			assert.Equal(t, http.StatusOK, status)
		}(i)
	}
	wg.Wait()

	// no cross-key interference on the leader
	for i := 0; i < n; i++ {
		value, found := leader.store.Get(fmt.Sprintf("key-%d", i))
		require.True(t, found, "key-%d must exist", i)
		assert.Equal(t, fmt.Sprintf("val-%d", i), value)
	}
}

// --------------------------------------------------------------------------
// Admin Control Plane
// --------------------------------------------------------------------------

func TestAdmin_Quorum(t *testing.T) {
	leader := startLeader(t, 1)

	status, data := doGet(t, leader.server.URL+"/admin/get_quorum")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[common.QuorumResponse](t, data).WriteQuorum)

	status, data = doPost(t, leader.server.URL+"/admin/set_quorum", `{"quorum":3}`)
	require.Equal(t, http.StatusOK, status)
	body := decode[common.QuorumResponse](t, data)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 3, body.WriteQuorum)

	status, data = doGet(t, leader.server.URL+"/admin/get_quorum")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, decode[common.QuorumResponse](t, data).WriteQuorum)
}

func TestAdmin_SetQuorumValidation(t *testing.T) {
	leader := startLeader(t, 1)

	status, _ := doPost(t, leader.server.URL+"/admin/set_quorum", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doPost(t, leader.server.URL+"/admin/set_quorum", `{"quorum":-1}`)
	assert.Equal(t, http.StatusBadRequest, status)

	// rejected requests leave the quorum untouched
	assert.Equal(t, 1, leader.cell.Get())
}

func TestAdmin_SetQuorumNotLeader(t *testing.T) {
	node := startFollower(t)

	status, data := doPost(t, node.server.URL+"/admin/set_quorum", `{"quorum":2}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not leader", decode[common.ErrorResponse](t, data).Error)

	// get_quorum works on any role
	status, _ = doGet(t, node.server.URL+"/admin/get_quorum")
	assert.Equal(t, http.StatusOK, status)
}

func TestAdmin_StoreDump(t *testing.T) {
	node := startFollower(t)
	node.store.Set("a", "1")
	node.store.Set("b", "2")

	status, data := doGet(t, node.server.URL+"/admin/store")
	require.Equal(t, http.StatusOK, status)
	body := decode[common.StoreResponse](t, data)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, body.Store)
}

func TestMetricsEndpoint(t *testing.T) {
	node := startFollower(t)

	// touch an instrumented route first
	doGet(t, node.server.URL+"/get/x")

	status, data := doGet(t, node.server.URL+"/metrics")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), "qkv_http_requests_total")
}
