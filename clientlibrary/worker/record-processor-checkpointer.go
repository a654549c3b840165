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
package worker

import (
	chk "github.com/streambridge/go-scl/clientlibrary/checkpoint"
	kcl "github.com/streambridge/go-scl/clientlibrary/interfaces"
	par "github.com/streambridge/go-scl/clientlibrary/partition"
)

type (
	// PreparedCheckpointer holds a pending checkpoint position until committed.
	PreparedCheckpointer struct {
		pendingCheckpointSequenceNumber *kcl.ExtendedSequenceNumber
		checkpointer                    kcl.IRecordProcessorCheckpointer
	}

	/**
	 * RecordProcessorCheckpointer enables record processors to checkpoint their progress.
	 * The library instantiates one per shard assignment and passes a reference to the
	 * application record processor on every lifecycle call.
	 */
	RecordProcessorCheckpointer struct {
		shard      *par.ShardStatus
		checkpoint chk.Checkpointer
	}
)

func NewRecordProcessorCheckpointer(shard *par.ShardStatus, checkpoint chk.Checkpointer) kcl.IRecordProcessorCheckpointer {
	return &RecordProcessorCheckpointer{
		shard:      shard,
		checkpoint: checkpoint,
	}
}

func (pc *PreparedCheckpointer) GetPendingCheckpoint() *kcl.ExtendedSequenceNumber {
	return pc.pendingCheckpointSequenceNumber
}

func (pc *PreparedCheckpointer) Checkpoint() error {
	return pc.checkpointer.Checkpoint(pc.pendingCheckpointSequenceNumber.SequenceNumber)
}

// Checkpoint records the given position durably. A nil sequence number checkpoints at
// the last record delivered to the record processor.
func (rc *RecordProcessorCheckpointer) Checkpoint(sequenceNumber *string) error {
	rc.shard.Mux.Lock()
	if sequenceNumber == nil {
		rc.shard.Checkpoint = rc.shard.LastDelivered
	} else {
		rc.shard.Checkpoint = *sequenceNumber
	}
	rc.shard.Mux.Unlock()

	return rc.checkpoint.CheckpointSequence(rc.shard)
}

// PrepareCheckpoint resolves the position (nil meaning last delivered) without writing
// it; the returned checkpointer commits it later.
func (rc *RecordProcessorCheckpointer) PrepareCheckpoint(sequenceNumber *string) (kcl.IPreparedCheckpointer, error) {
	if sequenceNumber == nil {
		lastDelivered := rc.shard.GetLastDelivered()
		sequenceNumber = &lastDelivered
	}

	return &PreparedCheckpointer{
		pendingCheckpointSequenceNumber: &kcl.ExtendedSequenceNumber{SequenceNumber: sequenceNumber},
		checkpointer:                    rc,
	}, nil
}
