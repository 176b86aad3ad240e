package server

import (
	"errors"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/quorumkv/qkv/lib/quorum"
	"github.com/quorumkv/qkv/rpc/common"
)

// handleGet serves the read path: the local value for a key, independent of
// role. No forwarding, no quorum read, no staleness bound.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	value, found := s.store.Get(key)
	if !found {
		writeJSON(w, http.StatusNotFound, common.NewGetNotFound())
		return
	}
	writeJSON(w, http.StatusOK, common.NewGetFound(value))
}

// handleReplicate accepts a pushed key-value pair and commits it to the
// local store. Intended to be called by a leader's coordinator, but not
// authenticated; any caller can push data.
func (s *Server) handleReplicate(w http.ResponseWriter, r *http.Request) {
	var req common.ReplicateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, common.NewError("bad request"))
		return
	}
	if req.Key == nil || req.Value == nil {
		writeJSON(w, http.StatusBadRequest, common.NewError("bad request"))
		return
	}

	s.store.Set(*req.Key, *req.Value)
	writeJSON(w, http.StatusOK, common.NewReplicateOK())
}

// handlePut serves the leader write path: local commit, concurrent fan-out,
// quorum decision.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	if !s.config.IsLeader() {
		writeJSON(w, http.StatusForbidden, common.NewError("not leader"))
		return
	}

	key := r.PathValue("key")

	var req common.PutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, common.NewError("bad request"))
		return
	}
	if req.Value == nil {
		writeJSON(w, http.StatusBadRequest, common.NewError("bad request"))
		return
	}

	result, err := s.coordinator.Write(r.Context(), key, *req.Value)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, common.NewWriteOK(result.Confirmed))
	case errors.Is(err, quorum.ErrNoFollowers):
		writeJSON(w, http.StatusInternalServerError, common.NewWriteNoFollowers())
	case errors.Is(err, quorum.ErrQuorumNotReached):
		writeJSON(w, http.StatusInternalServerError, common.NewWriteQuorumFailed(result.Confirmed))
	default:
		Logger.Errorf("write for key %q failed: %v", key, err)
		writeJSON(w, http.StatusInternalServerError, common.NewError("internal error"))
	}
}

// handleSetQuorum overwrites the write quorum at runtime. Leader only.
// No upper bound against the follower count: misconfiguration is allowed
// for experimentation.
func (s *Server) handleSetQuorum(w http.ResponseWriter, r *http.Request) {
	if !s.config.IsLeader() {
		writeJSON(w, http.StatusForbidden, common.NewError("not leader"))
		return
	}

	var req common.SetQuorumRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, common.NewError("bad request"))
		return
	}
	if req.Quorum == nil {
		writeJSON(w, http.StatusBadRequest, common.NewError("bad request"))
		return
	}
	if err := s.cell.Set(*req.Quorum); err != nil {
		writeJSON(w, http.StatusBadRequest, common.NewError(err.Error()))
		return
	}

	Logger.Infof("write quorum set to %d", *req.Quorum)
	writeJSON(w, http.StatusOK, common.NewSetQuorumOK(*req.Quorum))
}

// handleGetQuorum returns the current write quorum, any role.
func (s *Server) handleGetQuorum(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, common.NewQuorum(s.cell.Get()))
}

// handleStoreDump returns the full local store contents. Used by external
// consistency checkers, not by normal clients.
func (s *Server) handleStoreDump(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, common.NewStoreDump(s.store.Snapshot()))
}

// handleMetrics exposes process metrics in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w, true)
}
