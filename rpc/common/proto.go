package common

// Request and response bodies of the HTTP/JSON API. Required request fields
// are pointers so a missing field can be told apart from an empty string or
// a zero integer.

// --------------------------------------------------------------------------
// Reason strings
// --------------------------------------------------------------------------

const (
	ReasonQuorumNotReached = "quorum not reached"
	ReasonNoFollowers      = "no followers"
)

// --------------------------------------------------------------------------
// Request bodies
// --------------------------------------------------------------------------

// PutRequest is the body of POST /put/{key}.
type PutRequest struct {
	Value *string `json:"value"`
}

// ReplicateRequest is the body of POST /replicate.
type ReplicateRequest struct {
	Key   *string `json:"key"`
	Value *string `json:"value"`
}

// SetQuorumRequest is the body of POST /admin/set_quorum.
type SetQuorumRequest struct {
	Quorum *int `json:"quorum"`
}

// --------------------------------------------------------------------------
// Response bodies
// --------------------------------------------------------------------------

// GetResponse is the body of GET /get/{key} responses.
type GetResponse struct {
	Found bool   `json:"found"`
	Value string `json:"value,omitempty"`
}

// StatusResponse acknowledges a replication push.
type StatusResponse struct {
	Status string `json:"status"`
}

// WriteResponse is the body of POST /put/{key} responses. ReplicasConfirmed
// is omitted for failures that never fanned out (no followers configured).
type WriteResponse struct {
	Status            string `json:"status"`
	ReplicasConfirmed *int   `json:"replicas_confirmed,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

// QuorumResponse carries the current write quorum. Status is only set for
// set_quorum acknowledgements.
type QuorumResponse struct {
	Status      string `json:"status,omitempty"`
	WriteQuorum int    `json:"write_quorum"`
}

// StoreResponse is the full store dump used by consistency checkers.
type StoreResponse struct {
	Store map[string]string `json:"store"`
}

// ErrorResponse is the body of 4xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// --------------------------------------------------------------------------
// Response Factory Functions
// --------------------------------------------------------------------------

// NewGetFound creates a response for a key present in the local store
func NewGetFound(value string) *GetResponse {
	return &GetResponse{Found: true, Value: value}
}

// NewGetNotFound creates a response for a key absent from the local store
func NewGetNotFound() *GetResponse {
	return &GetResponse{Found: false}
}

// NewReplicateOK acknowledges a committed replication push
func NewReplicateOK() *StatusResponse {
	return &StatusResponse{Status: "ok"}
}

// NewWriteOK creates a success response for a quorum write
func NewWriteOK(confirmed int) *WriteResponse {
	return &WriteResponse{Status: "ok", ReplicasConfirmed: &confirmed}
}

// NewWriteQuorumFailed creates a failure response carrying the partial
// confirmation count
func NewWriteQuorumFailed(confirmed int) *WriteResponse {
	return &WriteResponse{
		Status:            "error",
		ReplicasConfirmed: &confirmed,
		Reason:            ReasonQuorumNotReached,
	}
}

// NewWriteNoFollowers creates a failure response for a positive quorum with
// zero configured followers
func NewWriteNoFollowers() *WriteResponse {
	return &WriteResponse{Status: "error", Reason: ReasonNoFollowers}
}

// NewSetQuorumOK acknowledges an accepted quorum change
func NewSetQuorumOK(quorum int) *QuorumResponse {
	return &QuorumResponse{Status: "ok", WriteQuorum: quorum}
}

// NewQuorum creates a get_quorum response
func NewQuorum(quorum int) *QuorumResponse {
	return &QuorumResponse{WriteQuorum: quorum}
}

// NewStoreDump creates an admin store dump response
func NewStoreDump(store map[string]string) *StoreResponse {
	return &StoreResponse{Store: store}
}

// NewError creates a client error response
func NewError(msg string) *ErrorResponse {
	return &ErrorResponse{Error: msg}
}
