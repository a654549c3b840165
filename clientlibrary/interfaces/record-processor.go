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
	// IRecordProcessor is the interface for the callback functions invoked by the shard consumer driver.
	// The main task of using the library is to provide an implementation of the IRecordProcessor interface.
	// A processor instance is bound to exactly one shard for its entire lifetime, and the driver makes at
	// most one outstanding call into a given instance at a time.
	IRecordProcessor interface {
		/**
		 * Invoked by the driver before data records are delivered to the RecordProcessor instance
		 * (via ProcessRecords). Called exactly once, and first, for a given instance.
		 *
		 * @param initializationInput Provides information related to initialization
		 */
		Initialize(initializationInput *InitializationInput)

		/**
		 * Process data records. The driver will invoke this method to deliver data records to the
		 * application, zero or more times per instance, strictly after Initialize and before Shutdown.
		 * Upon fail over, the new instance will get records with sequence number > checkpoint position
		 * for each partition key.
		 *
		 * The implementation should checkpoint via the input's Checkpointer at a cadence of its own
		 * choosing; checkpointing every batch trades throughput for durability granularity.
		 *
		 * @param processRecordsInput Provides the records to be processed as well as information and capabilities related
		 *        to them (eg checkpointing).
		 */
		ProcessRecords(processRecordsInput *ProcessRecordsInput)

		/**
		 * Invoked by the driver to indicate it will no longer send data records to this
		 * RecordProcessor instance. Called at most once, last; no call of any kind follows it.
		 *
		 * When the value of {@link ShutdownInput#ShutdownReason} is TERMINATE the shard has been fully
		 * consumed and the implementation SHOULD checkpoint at the end-of-shard position. When the reason
		 * is ZOMBIE the lease is gone and the implementation MUST NOT attempt any further checkpoint:
		 * ownership may already have moved to another worker.
		 *
		 * @param shutdownInput
		 *            Provides information and capabilities (eg checkpointing) related to shutdown of this record processor.
		 */
		Shutdown(shutdownInput *ShutdownInput)
	}

	// IRecordProcessorFactory is the interface for creating IRecordProcessor. The driver creates one
	// processor per shard assignment. Clients can choose either creating one processor per shard or
	// sharing an instance, provided a shared instance tolerates concurrent shard assignments.
	IRecordProcessorFactory interface {
		/**
		 * Returns a record processor to be used for processing data records for a (assigned) shard.
		 *
		 * @return Returns a processor object.
		 */
		CreateProcessor() IRecordProcessor
	}
)
