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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	par "github.com/streambridge/go-scl/clientlibrary/partition"
)

func TestCheckpointWithSequenceNumber(t *testing.T) {
	store := newMemoryCheckpointer()
	shard := par.NewShardStatus("shard-0001")
	checkpointer := NewRecordProcessorCheckpointer(shard, store)

	seq := "100"
	require.NoError(t, checkpointer.Checkpoint(&seq))
	assert.Equal(t, "100", store.checkpointFor("shard-0001"))
	assert.Equal(t, "100", shard.GetCheckpoint())
}

func TestCheckpointNilResolvesToLastDelivered(t *testing.T) {
	store := newMemoryCheckpointer()
	shard := par.NewShardStatus("shard-0001")
	shard.SetLastDelivered("150")
	checkpointer := NewRecordProcessorCheckpointer(shard, store)

	require.NoError(t, checkpointer.Checkpoint(nil))
	assert.Equal(t, "150", store.checkpointFor("shard-0001"))
}

func TestPrepareCheckpointPinsPosition(t *testing.T) {
	store := newMemoryCheckpointer()
	shard := par.NewShardStatus("shard-0001")
	shard.SetLastDelivered("150")
	checkpointer := NewRecordProcessorCheckpointer(shard, store)

	prepared, err := checkpointer.PrepareCheckpoint(nil)
	require.NoError(t, err)
	require.NotNil(t, prepared.GetPendingCheckpoint().SequenceNumber)
	assert.Equal(t, "150", *prepared.GetPendingCheckpoint().SequenceNumber)

	// More records get delivered before the prepared checkpoint commits; the
	// pinned position wins.
	shard.SetLastDelivered("175")
	require.NoError(t, prepared.Checkpoint())
	assert.Equal(t, "150", store.checkpointFor("shard-0001"))
}

func TestPrepareCheckpointWithExplicitSequence(t *testing.T) {
	store := newMemoryCheckpointer()
	shard := par.NewShardStatus("shard-0001")
	checkpointer := NewRecordProcessorCheckpointer(shard, store)

	seq := "120"
	prepared, err := checkpointer.PrepareCheckpoint(&seq)
	require.NoError(t, err)
	require.NoError(t, prepared.Checkpoint())
	assert.Equal(t, "120", store.checkpointFor("shard-0001"))
}
