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
	"math"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/matryer/try"

	"github.com/streambridge/go-scl/clientlibrary/config"
	"github.com/streambridge/go-scl/clientlibrary/interfaces"
	"github.com/streambridge/go-scl/clientlibrary/utils"
	"github.com/streambridge/go-scl/logger"
)

// MaxReadRetries is the max times a throttled read is retried before giving up.
const MaxReadRetries = 5

// KinesisSupplier implements RecordSupplier on top of a Kinesis stream.
type KinesisSupplier struct {
	log        logger.Logger
	streamName string
	kc         kinesisiface.KinesisAPI
	sclConfig  *config.StreamConsumerLibConfiguration
	Retries    int
}

func NewKinesisSupplier(sclConfig *config.StreamConsumerLibConfiguration) *KinesisSupplier {
	return &KinesisSupplier{
		log:        sclConfig.Logger,
		streamName: sclConfig.StreamName,
		sclConfig:  sclConfig,
		Retries:    MaxReadRetries,
	}
}

// WithKinesis is used to provide a Kinesis service, mainly for testing.
func (s *KinesisSupplier) WithKinesis(svc kinesisiface.KinesisAPI) *KinesisSupplier {
	s.kc = svc
	return s
}

// Init initialises the Kinesis client.
func (s *KinesisSupplier) Init() error {
	if s.kc != nil {
		return nil
	}

	s.log.Infof("Creating Kinesis session")

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(s.sclConfig.RegionName),
		Endpoint:    aws.String(s.sclConfig.KinesisEndpoint),
		Credentials: s.sclConfig.KinesisCredentials,
		Retryer: client.DefaultRetryer{
			NumMaxRetries:    s.Retries,
			MinRetryDelay:    client.DefaultRetryerMinRetryDelay,
			MinThrottleDelay: client.DefaultRetryerMinThrottleDelay,
			MaxRetryDelay:    client.DefaultRetryerMaxRetryDelay,
			MaxThrottleDelay: client.DefaultRetryerMaxRetryDelay,
		},
	})
	if err != nil {
		// no need to move forward
		s.log.Fatalf("Failed in getting Kinesis session for creating Worker: %+v", err)
	}
	s.kc = kinesis.New(sess)

	return nil
}

// GetIterator returns a shard iterator over the configured stream.
func (s *KinesisSupplier) GetIterator(shardID string, position *StartingPosition) (string, error) {
	shardIterArgs := &kinesis.GetShardIteratorInput{
		ShardId:                aws.String(shardID),
		ShardIteratorType:      aws.String(position.Type.String()),
		StartingSequenceNumber: position.SequenceNumber,
		Timestamp:              position.Timestamp,
		StreamName:             aws.String(s.streamName),
	}

	iterResp, err := s.kc.GetShardIterator(shardIterArgs)
	if err != nil {
		return "", err
	}
	return aws.StringValue(iterResp.ShardIterator), nil
}

// GetRecords reads one batch at the iterator position. Throttled reads back off and
// retry; other failures are returned to the caller.
func (s *KinesisSupplier) GetRecords(iterator string, limit int) (*Batch, error) {
	getRecordsArgs := &kinesis.GetRecordsInput{
		Limit:         aws.Int64(int64(limit)),
		ShardIterator: aws.String(iterator),
	}

	var getResp *kinesis.GetRecordsOutput
	err := try.Do(func(attempt int) (bool, error) {
		var err error
		getResp, err = s.kc.GetRecords(getRecordsArgs)
		if err != nil {
			errCode := utils.AWSErrCode(err)
			if (errCode == kinesis.ErrCodeProvisionedThroughputExceededException ||
				errCode == kinesis.ErrCodeKMSThrottlingException) && attempt < s.Retries {
				// Backoff time as recommended by https://docs.aws.amazon.com/general/latest/gr/api-retries.html
				time.Sleep(time.Duration(math.Exp2(float64(attempt))*100) * time.Millisecond)
				return true, err
			}
		}
		return false, err
	})
	if err != nil {
		s.log.Errorf("Error getting records from shard iterator: %+v", err)
		return nil, err
	}

	records := make([]*interfaces.Record, 0, len(getResp.Records))
	for _, r := range getResp.Records {
		records = append(records, convertRecord(r))
	}

	return &Batch{
		Records:            records,
		MillisBehindLatest: aws.Int64Value(getResp.MillisBehindLatest),
		NextIterator:       aws.StringValue(getResp.NextShardIterator),
	}, nil
}

func convertRecord(r *kinesis.Record) *interfaces.Record {
	return &interfaces.Record{
		PartitionKey:                aws.StringValue(r.PartitionKey),
		SequenceNumber:              aws.StringValue(r.SequenceNumber),
		Data:                        r.Data,
		ApproximateArrivalTimestamp: r.ApproximateArrivalTimestamp,
	}
}
