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

// Package partition tracks per-shard processing state shared between the shard consumer,
// the checkpointer bridge and the checkpoint stores.
package partition

import (
	"sync"
	"time"
)

// ShardStatus is the in-memory view of one shard: its identity, the lease the external
// coordinator granted over it, and the processing progress recorded so far.
type ShardStatus struct {
	ID            string
	ParentShardId string
	Checkpoint    string
	AssignedTo    string
	Mux           *sync.RWMutex
	LeaseTimeout  time.Time

	// LastDelivered is the sequence number of the last record handed to the record
	// processor. A nil-argument checkpoint resolves to this position.
	LastDelivered string

	// Shard range. A child shard has no ending sequence number.
	StartingSequenceNumber string
	EndingSequenceNumber   string
}

// NewShardStatus returns a ShardStatus for the given shard id with its mutex initialised.
func NewShardStatus(id string) *ShardStatus {
	return &ShardStatus{
		ID:  id,
		Mux: &sync.RWMutex{},
	}
}

func (ss *ShardStatus) GetLeaseOwner() string {
	ss.Mux.RLock()
	defer ss.Mux.RUnlock()
	return ss.AssignedTo
}

func (ss *ShardStatus) SetLeaseOwner(owner string) {
	ss.Mux.Lock()
	defer ss.Mux.Unlock()
	ss.AssignedTo = owner
}

func (ss *ShardStatus) GetCheckpoint() string {
	ss.Mux.RLock()
	defer ss.Mux.RUnlock()
	return ss.Checkpoint
}

func (ss *ShardStatus) SetCheckpoint(c string) {
	ss.Mux.Lock()
	defer ss.Mux.Unlock()
	ss.Checkpoint = c
}

func (ss *ShardStatus) GetLeaseTimeout() time.Time {
	ss.Mux.RLock()
	defer ss.Mux.RUnlock()
	return ss.LeaseTimeout
}

func (ss *ShardStatus) SetLeaseTimeout(timeout time.Time) {
	ss.Mux.Lock()
	defer ss.Mux.Unlock()
	ss.LeaseTimeout = timeout
}

func (ss *ShardStatus) GetLastDelivered() string {
	ss.Mux.RLock()
	defer ss.Mux.RUnlock()
	return ss.LastDelivered
}

func (ss *ShardStatus) SetLastDelivered(sequenceNumber string) {
	ss.Mux.Lock()
	defer ss.Mux.Unlock()
	ss.LastDelivered = sequenceNumber
}

// IsLeaseExpired reports whether the lease deadline has passed. A zero deadline means the
// external coordinator did not supply one and the lease is treated as open-ended.
func (ss *ShardStatus) IsLeaseExpired() bool {
	leaseTimeout := ss.GetLeaseTimeout()
	if leaseTimeout.IsZero() {
		return false
	}
	return time.Now().UTC().After(leaseTimeout)
}
