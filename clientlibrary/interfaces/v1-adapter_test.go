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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// recordingV1Processor captures every call made through the v1 contract.
type recordingV1Processor struct {
	calls []string

	initShardID string

	processedRecords      []*Record
	processedCheckpointer IRecordProcessorCheckpointer

	shutdownCheckpointer IRecordProcessorCheckpointer
	shutdownReason       ShutdownReason
}

func (r *recordingV1Processor) Initialize(shardID string) {
	r.calls = append(r.calls, "initialize")
	r.initShardID = shardID
}

func (r *recordingV1Processor) ProcessRecords(records []*Record, checkpointer IRecordProcessorCheckpointer) {
	r.calls = append(r.calls, "processRecords")
	r.processedRecords = records
	r.processedCheckpointer = checkpointer
}

func (r *recordingV1Processor) Shutdown(checkpointer IRecordProcessorCheckpointer, reason ShutdownReason) {
	r.calls = append(r.calls, "shutdown")
	r.shutdownCheckpointer = checkpointer
	r.shutdownReason = reason
}

type recordingV1Factory struct {
	created []*recordingV1Processor
}

func (f *recordingV1Factory) CreateProcessor() IRecordProcessorV1 {
	p := &recordingV1Processor{}
	f.created = append(f.created, p)
	return p
}

// nopCheckpointer is only used as an identity to assert the adapter forwards the same reference.
type nopCheckpointer struct{}

func (nopCheckpointer) Checkpoint(sequenceNumber *string) error { return nil }
func (nopCheckpointer) PrepareCheckpoint(sequenceNumber *string) (IPreparedCheckpointer, error) {
	return nil, nil
}

func TestV1AdapterInitializeForwardsShardID(t *testing.T) {
	delegate := &recordingV1Processor{}
	adapter := NewV1toV2Processor(delegate)

	seq := "49590338271490256608559692538361571095921575989136588898"
	adapter.Initialize(&InitializationInput{
		ShardId:                "shard-0001",
		ExtendedSequenceNumber: &ExtendedSequenceNumber{SequenceNumber: &seq},
	})

	assert.Equal(t, []string{"initialize"}, delegate.calls)
	assert.Equal(t, "shard-0001", delegate.initShardID)
}

func TestV1AdapterProcessRecordsForwardsBatchAndCheckpointer(t *testing.T) {
	delegate := &recordingV1Processor{}
	adapter := NewV1toV2Processor(delegate)

	now := time.Now()
	records := []*Record{
		{PartitionKey: "a", SequenceNumber: "1", Data: []byte("first")},
		{PartitionKey: "b", SequenceNumber: "2", Data: []byte("second")},
	}
	checkpointer := nopCheckpointer{}

	// Extra fields on the v2 input must not affect what the delegate sees.
	adapter.ProcessRecords(&ProcessRecordsInput{
		CacheEntryTime:     &now,
		CacheExitTime:      &now,
		Records:            records,
		Checkpointer:       checkpointer,
		MillisBehindLatest: 4200,
	})

	assert.Equal(t, []string{"processRecords"}, delegate.calls)
	assert.Equal(t, records, delegate.processedRecords)
	assert.Same(t, records[0], delegate.processedRecords[0])
	assert.Equal(t, checkpointer, delegate.processedCheckpointer)
}

func TestV1AdapterShutdownForwardsCheckpointerAndReason(t *testing.T) {
	delegate := &recordingV1Processor{}
	adapter := NewV1toV2Processor(delegate)

	checkpointer := nopCheckpointer{}
	adapter.Shutdown(&ShutdownInput{
		ShutdownReason: TERMINATE,
		Checkpointer:   checkpointer,
	})

	assert.Equal(t, []string{"shutdown"}, delegate.calls)
	assert.Equal(t, checkpointer, delegate.shutdownCheckpointer)
	assert.Equal(t, TERMINATE, delegate.shutdownReason)
	assert.Equal(t, "TERMINATE", delegate.shutdownReason.String())
}

func TestV1AdapterLifecycleOrderPreserved(t *testing.T) {
	delegate := &recordingV1Processor{}
	adapter := NewV1toV2Processor(delegate)

	adapter.Initialize(&InitializationInput{ShardId: "shard-0007"})
	adapter.ProcessRecords(&ProcessRecordsInput{Records: []*Record{{SequenceNumber: "1"}}})
	adapter.ProcessRecords(&ProcessRecordsInput{Records: []*Record{{SequenceNumber: "2"}}})
	adapter.Shutdown(&ShutdownInput{ShutdownReason: ZOMBIE})

	// The adapter translates each call one-for-one: no reordering, duplication or extra calls.
	assert.Equal(t, []string{"initialize", "processRecords", "processRecords", "shutdown"}, delegate.calls)
}

func TestV1AdapterFactoryWrapsCreatedProcessors(t *testing.T) {
	v1Factory := &recordingV1Factory{}
	factory := NewV1toV2ProcessorFactory(v1Factory)

	p := factory.CreateProcessor()
	assert.Len(t, v1Factory.created, 1)

	p.Initialize(&InitializationInput{ShardId: "shard-0042"})
	assert.Equal(t, "shard-0042", v1Factory.created[0].initShardID)
}

func TestShutdownReasonMessages(t *testing.T) {
	assert.Equal(t, "REQUESTED", ShutdownReasonMessage(REQUESTED))
	assert.Equal(t, "TERMINATE", ShutdownReasonMessage(TERMINATE))
	assert.Equal(t, "ZOMBIE", ShutdownReasonMessage(ZOMBIE))
}
