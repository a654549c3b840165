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
	// IRecordProcessorV1 is the original record processor contract, which took flat argument
	// lists rather than input structs. New applications should implement IRecordProcessor;
	// existing v1 implementations can be used unmodified through V1toV2Processor.
	//
	// The lifecycle guarantees are identical to IRecordProcessor:
	// Initialize once and first, ProcessRecords zero or more times, Shutdown at most once and last.
	IRecordProcessorV1 interface {
		// Initialize is invoked before any records are delivered, with the id of the shard
		// this processor instance is bound to.
		Initialize(shardID string)

		// ProcessRecords delivers an in-order batch of records along with a checkpointer
		// for recording progress.
		ProcessRecords(records []*Record, checkpointer IRecordProcessorCheckpointer)

		// Shutdown indicates no more records will be delivered. See ShutdownReason for
		// whether a final checkpoint is appropriate.
		Shutdown(checkpointer IRecordProcessorCheckpointer, reason ShutdownReason)
	}

	// IRecordProcessorFactoryV1 creates IRecordProcessorV1 instances, one per shard assignment.
	IRecordProcessorFactoryV1 interface {
		CreateProcessor() IRecordProcessorV1
	}
)
