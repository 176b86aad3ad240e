// Package quorum implements the leader-side write path of qkv: the
// mutex-guarded write-quorum cell and the coordinator that fans a write out
// to every follower concurrently and resolves it as soon as enough
// confirmations arrive.
//
// A write proceeds through a fixed sequence: the leader's local store is
// mutated unconditionally, one replication attempt per follower is launched
// concurrently, and confirmations are counted in completion order. The
// moment the confirmed count reaches the configured quorum the coordinator
// returns success; if every attempt completes short of quorum it returns a
// failure carrying the partial count. The local write is never rolled back,
// so a failed write still leaves the leader's copy mutated - this is a
// deliberate property of the consistency model, not an oversight.
//
// Attempts that are still in flight when quorum is met are detached rather
// than cancelled: their contexts are decoupled from the caller's, they run
// to completion in the background, and their outcomes are recorded in the
// per-follower statistics and discarded otherwise. Callers must not assume
// a late follower ever actually received the write.
package quorum
