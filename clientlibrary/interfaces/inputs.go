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

// Package interfaces defines the record processor contract consumed by the
// shard consumer driver. Applications implement IRecordProcessor (or the
// legacy IRecordProcessorV1 together with the V1toV2 adapter) to take part
// in lease-based shard processing. The driver guarantees the lifecycle:
// Initialize -> ProcessRecords (repeated) -> Shutdown.
package interfaces

import (
	"time"
)

const (
	/**
	 * Indicates that the entire application is being shutdown, and if desired the record processor will be
	 * given a final chance to checkpoint. This is a controlled, graceful stop of the worker rather than a
	 * lease-level event on the shard.
	 */
	REQUESTED ShutdownReason = iota + 1

	/**
	 * Terminate processing for this RecordProcessor (resharding use case).
	 * Indicates that the shard is closed and all records from the shard have been delivered to the application.
	 * Applications SHOULD checkpoint their progress to indicate that they have successfully processed all records
	 * from this shard and processing of child shards can be started.
	 */
	TERMINATE

	/**
	 * Processing will be moved to a different record processor (fail over, load balancing use cases).
	 * Applications SHOULD NOT checkpoint their progress (as another record processor may have already started
	 * processing data).
	 */
	ZOMBIE
)

type (
	/**
	 * Reason the RecordProcessor is being shutdown.
	 * Used to distinguish between a fail-over vs. a termination (shard is closed and all records have been delivered).
	 * In case of a fail over, applications should NOT checkpoint as part of shutdown,
	 * since another record processor may have already started processing records for that shard.
	 * In case of termination (resharding use case), applications SHOULD checkpoint their progress to indicate
	 * that they have successfully processed all the records (processing of child shards can then begin).
	 */
	ShutdownReason int

	// Record is a single data record delivered from a shard of the stream.
	Record struct {
		// PartitionKey identifies the sub-stream the record was written to.
		PartitionKey string

		// SequenceNumber is the unique, monotonically increasing position of the record within the shard.
		SequenceNumber string

		// SubSequenceNumber orders records that share a sequence number after de-aggregation.
		SubSequenceNumber int64

		// Data is the opaque record payload.
		Data []byte

		// ApproximateArrivalTimestamp is when the stream accepted the record, when known.
		ApproximateArrivalTimestamp *time.Time
	}

	// ExtendedSequenceNumber is a two-part position within a shard: the sequence number of the
	// record plus a sub-sequence number for positions inside an aggregated record.
	ExtendedSequenceNumber struct {
		SequenceNumber    *string
		SubSequenceNumber int64
	}

	InitializationInput struct {
		// The shardId that the record processor is being initialized for.
		ShardId string

		// The last extended sequence number that was successfully checkpointed by the previous record processor.
		ExtendedSequenceNumber *ExtendedSequenceNumber
	}

	ProcessRecordsInput struct {
		// The time that this batch of records was received from the stream.
		CacheEntryTime *time.Time

		// The time that this batch of records was prepared to be provided to the RecordProcessor.
		CacheExitTime *time.Time

		// The records received from the shard, in order, with no overlap between batches.
		Records []*Record

		// A checkpointer that the RecordProcessor can use to checkpoint its progress.
		// The reference is borrowed for the duration of the call and must not be retained.
		Checkpointer IRecordProcessorCheckpointer

		// How far behind the tip of the stream this batch was when received, in milliseconds.
		MillisBehindLatest int64
	}

	ShutdownInput struct {
		// ShutdownReason shows why RecordProcessor is going to be shutdown.
		ShutdownReason ShutdownReason

		// Checkpointer is used to record the final progress.
		Checkpointer IRecordProcessorCheckpointer
	}
)

var shutdownReasonMap = map[ShutdownReason]string{
	REQUESTED: "REQUESTED",
	TERMINATE: "TERMINATE",
	ZOMBIE:    "ZOMBIE",
}

// String returns the canonical name of the shutdown reason.
func (r ShutdownReason) String() string {
	return shutdownReasonMap[r]
}

// ShutdownReasonMessage maps a shutdown reason to its canonical name.
func ShutdownReasonMessage(reason ShutdownReason) string {
	return shutdownReasonMap[reason]
}
