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
package supplier

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/streambridge/go-scl/clientlibrary/config"
)

type mockKinesis struct {
	kinesisiface.KinesisAPI

	iteratorInput *kinesis.GetShardIteratorInput
	iterator      string

	// getRecordsErrs are returned in order before getRecordsOutput.
	getRecordsErrs   []error
	getRecordsOutput *kinesis.GetRecordsOutput
	getRecordsCalls  int
}

func (m *mockKinesis) GetShardIterator(input *kinesis.GetShardIteratorInput) (*kinesis.GetShardIteratorOutput, error) {
	m.iteratorInput = input
	return &kinesis.GetShardIteratorOutput{ShardIterator: aws.String(m.iterator)}, nil
}

func (m *mockKinesis) GetRecords(*kinesis.GetRecordsInput) (*kinesis.GetRecordsOutput, error) {
	m.getRecordsCalls++
	if len(m.getRecordsErrs) > 0 {
		err := m.getRecordsErrs[0]
		m.getRecordsErrs = m.getRecordsErrs[1:]
		return nil, err
	}
	return m.getRecordsOutput, nil
}

func testSupplier(kc kinesisiface.KinesisAPI) *KinesisSupplier {
	config := cfg.NewStreamConsumerLibConfig("testapp", "test-stream", "us-west-2", "worker-1")
	return NewKinesisSupplier(config).WithKinesis(kc)
}

func TestGetIteratorAfterSequenceNumber(t *testing.T) {
	kc := &mockKinesis{iterator: "iter-1"}
	s := testSupplier(kc)
	require.NoError(t, s.Init())

	iterator, err := s.GetIterator("shard-0001", &StartingPosition{
		Type:           AfterSequenceNumber,
		SequenceNumber: aws.String("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, "iter-1", iterator)
	assert.Equal(t, "AFTER_SEQUENCE_NUMBER", aws.StringValue(kc.iteratorInput.ShardIteratorType))
	assert.Equal(t, "100", aws.StringValue(kc.iteratorInput.StartingSequenceNumber))
	assert.Equal(t, "test-stream", aws.StringValue(kc.iteratorInput.StreamName))
}

func TestGetIteratorAtTimestamp(t *testing.T) {
	kc := &mockKinesis{iterator: "iter-1"}
	s := testSupplier(kc)

	ts := time.Now().UTC()
	_, err := s.GetIterator("shard-0001", &StartingPosition{Type: AtTimestamp, Timestamp: &ts})
	require.NoError(t, err)
	assert.Equal(t, "AT_TIMESTAMP", aws.StringValue(kc.iteratorInput.ShardIteratorType))
	assert.Equal(t, ts, aws.TimeValue(kc.iteratorInput.Timestamp))
}

func TestGetRecordsConvertsBatch(t *testing.T) {
	arrival := time.Now().UTC()
	kc := &mockKinesis{
		getRecordsOutput: &kinesis.GetRecordsOutput{
			Records: []*kinesis.Record{
				{
					PartitionKey:                aws.String("pk-1"),
					SequenceNumber:              aws.String("100"),
					Data:                        []byte("payload"),
					ApproximateArrivalTimestamp: &arrival,
				},
			},
			MillisBehindLatest: aws.Int64(1500),
			NextShardIterator:  aws.String("iter-2"),
		},
	}
	s := testSupplier(kc)

	batch, err := s.GetRecords("iter-1", 100)
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "pk-1", batch.Records[0].PartitionKey)
	assert.Equal(t, "100", batch.Records[0].SequenceNumber)
	assert.Equal(t, []byte("payload"), batch.Records[0].Data)
	assert.Equal(t, int64(1500), batch.MillisBehindLatest)
	assert.Equal(t, "iter-2", batch.NextIterator)
}

func TestGetRecordsShardEnd(t *testing.T) {
	kc := &mockKinesis{
		getRecordsOutput: &kinesis.GetRecordsOutput{
			Records:           []*kinesis.Record{},
			NextShardIterator: nil,
		},
	}
	s := testSupplier(kc)

	batch, err := s.GetRecords("iter-1", 100)
	require.NoError(t, err)
	assert.Empty(t, batch.NextIterator)
}

func TestGetRecordsRetriesThrottle(t *testing.T) {
	kc := &mockKinesis{
		getRecordsErrs: []error{
			awserr.New(kinesis.ErrCodeProvisionedThroughputExceededException, "slow down", nil),
		},
		getRecordsOutput: &kinesis.GetRecordsOutput{NextShardIterator: aws.String("iter-2")},
	}
	s := testSupplier(kc)

	batch, err := s.GetRecords("iter-1", 100)
	require.NoError(t, err)
	assert.Equal(t, 2, kc.getRecordsCalls)
	assert.Equal(t, "iter-2", batch.NextIterator)
}

func TestGetRecordsDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("access denied")
	kc := &mockKinesis{getRecordsErrs: []error{boom}}
	s := testSupplier(kc)

	_, err := s.GetRecords("iter-1", 100)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, kc.getRecordsCalls)
}
