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
package interfaces

type (
	/**
	 * Used by RecordProcessors when they want to checkpoint their progress.
	 * The library passes an object implementing this interface to RecordProcessors, so they can
	 * checkpoint their progress. The reference is borrowed for the duration of the call that
	 * supplied it; the processor must not retain it or call it outside that scope.
	 *
	 * All methods report failures through the error taxonomy of the checkpoint package:
	 * a lease-lost error means ownership of the shard has moved and no further checkpoint
	 * should be attempted; a throttled error is retryable; an invalid-state error is not.
	 */
	IRecordProcessorCheckpointer interface {
		/**
		 * This method will checkpoint the progress at the provided sequenceNumber. Upon fail over
		 * (after a successful Checkpoint call), the new/replacement RecordProcessor instance
		 * will receive data records whose sequenceNumber > checkpoint position (for each partition key).
		 *
		 * If sequenceNumber is nil the checkpoint is taken at the last record that was delivered to
		 * this record processor in the most recent batch.
		 *
		 * In steady state, applications should checkpoint periodically (e.g. once every few minutes);
		 * calling this API too frequently puts pressure on the underlying checkpoint storage layer.
		 *
		 * @param sequenceNumber A sequence number at which to checkpoint in this shard, or nil.
		 */
		Checkpoint(sequenceNumber *string) error

		/**
		 * This method will record a pending checkpoint at the provided sequenceNumber (or, if nil, at
		 * the last record delivered). If the application fails over between calling PrepareCheckpoint
		 * and committing it, the Initialize call of the next RecordProcessor for this shard will be
		 * informed of the prepared sequence number.
		 *
		 * Applications should use this to assist with idempotency across failover: prepare before
		 * having side effects, commit the returned IPreparedCheckpointer after side effects complete.
		 *
		 * @return an IPreparedCheckpointer object that can be called later to persist the checkpoint.
		 */
		PrepareCheckpoint(sequenceNumber *string) (IPreparedCheckpointer, error)
	}

	/**
	 * Objects of this class are prepared to checkpoint at a specific sequence number. They use an
	 * IRecordProcessorCheckpointer to do the actual checkpointing, so their checkpoint is subject to the
	 * same fencing as a normal checkpoint.
	 */
	IPreparedCheckpointer interface {
		GetPendingCheckpoint() *ExtendedSequenceNumber

		/**
		 * This method will commit the pending checkpoint.
		 */
		Checkpoint() error
	}
)
