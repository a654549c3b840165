/*
 * Copyright (c) 2021 VMware, Inc.
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of this software and
 * associated documentation files (the "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is furnished to do
 * so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all copies or substantial
 * portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR IMPLIED, INCLUDING BUT
 * NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
 * WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 */

// Package checkpoint persists per-shard processing progress. Lease acquisition, renewal and
// load balancing are the job of the external lease coordinator; the stores here only record
// progress for leases that coordinator granted, fencing every write on the current lease
// owner so a worker whose lease has moved cannot clobber its successor's progress.
package checkpoint

import (
	"errors"

	par "github.com/streambridge/go-scl/clientlibrary/partition"
)

const (
	LeaseKeyKey       = "ShardID"
	LeaseOwnerKey     = "AssignedTo"
	LeaseTimeoutKey   = "LeaseTimeout"
	SequenceNumberKey = "Checkpoint"
	ParentShardIdKey  = "ParentShardId"

	// We've completely processed all records in this shard.
	ShardEnd = "SHARD_END"
)

// Checkpointer is the storage behind the record processor's checkpoint capability.
type Checkpointer interface {
	// Init prepares the backing store (creating tables/keys as needed).
	Init() error

	// FetchCheckpoint loads the recorded progress for the given shard into its status.
	// Returns ErrSequenceIDNotFound when no checkpoint has been recorded yet.
	FetchCheckpoint(*par.ShardStatus) error

	// CheckpointSequence durably records the shard's current checkpoint. The write is
	// fenced on the lease owner in the shard status; ErrLeaseLost is returned when the
	// store no longer shows this worker as the owner.
	CheckpointSequence(*par.ShardStatus) error

	// RemoveLeaseInfo deletes the whole entry for a shard that no longer exists.
	RemoveLeaseInfo(shardID string) error

	// RemoveLeaseOwner clears the lease owner for the shard entry so the shard becomes
	// available for reassignment, keeping the recorded checkpoint intact.
	RemoveLeaseOwner(shardID string) error
}

// ErrSequenceIDNotFound is returned by FetchCheckpoint when no sequence number is recorded.
var ErrSequenceIDNotFound = errors.New("SequenceIDNotFoundForShard")

// Checkpoint write failures, in the taxonomy record processors are expected to handle:
// ErrLeaseLost means ownership has moved and the processor should stop checkpointing,
// ErrThrottled is transient and retryable at the caller's discretion, and
// ErrInvalidState means the store is unusable (e.g. missing table) and further
// checkpointing for this lease should be abandoned.
var (
	ErrLeaseLost    = errors.New("lease is no longer held by this worker")
	ErrThrottled    = errors.New("checkpoint store is throttled")
	ErrInvalidState = errors.New("checkpoint store is in an invalid state")
)
