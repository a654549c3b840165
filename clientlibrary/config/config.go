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
package config

import (
	"log"
	"strings"
	"time"

	creds "github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/streambridge/go-scl/clientlibrary/metrics"
	"github.com/streambridge/go-scl/logger"
)

const (
	// LATEST start after the most recent data record (fetch new data).
	LATEST InitialPositionInStream = iota + 1
	// TRIM_HORIZON start from the oldest available data record.
	TRIM_HORIZON
	// AT_TIMESTAMP start from the record at or after the specified server-side Timestamp.
	AT_TIMESTAMP

	// The location in the shard from which the library will start fetching records when
	// the application starts for the first time and there is no checkpoint for the shard.
	DefaultInitialPositionInStream = LATEST

	// Fail over time in milliseconds. A worker which does not renew its lease within this time interval
	// will be regarded as having problems and its shards will be assigned to other workers.
	DefaultFailoverTimeMillis = 10000

	// Max records to fetch from the stream in a single read call.
	DefaultMaxRecords = 10000

	// The default value for how long a shard consumer should sleep when no records are
	// returned from a read.
	DefaultIdletimeBetweenReadsMillis = 1000

	// Don't call ProcessRecords() on the record processor for empty record lists.
	DefaultDontCallProcessRecordsForEmptyRecordList = false

	// Interval in milliseconds between polling to check for parent shard completion.
	DefaultParentShardPollIntervalMillis = 10000

	// Backoff time in milliseconds for library tasks (in the event of failures).
	DefaultTaskBackoffTimeMillis = 500

	// The amount of milliseconds to wait before graceful shutdown forcefully terminates.
	DefaultShutdownGraceMillis = 5000

	// The lease table will be provisioned with this read capacity when the store creates it.
	DefaultInitialLeaseTableReadCapacity = 10

	// The lease table will be provisioned with this write capacity when the store creates it.
	DefaultInitialLeaseTableWriteCapacity = 10
)

type (
	// InitialPositionInStream is used to specify the position in the stream where a new
	// application should start from. This is used during initial application bootstrap
	// (when a checkpoint doesn't exist for a shard or its parents).
	InitialPositionInStream int

	// InitialPositionInStreamExtended houses the entities needed to specify the position
	// in the stream from where a new application should start.
	InitialPositionInStreamExtended struct {
		Position InitialPositionInStream

		// The time stamp of the data record from which to start reading. Used with
		// position AT_TIMESTAMP. If a record with this exact time stamp does not exist,
		// reading starts at the next (later) record.
		Timestamp *time.Time
	}

	// StreamConsumerLibConfiguration holds the tunables of the shard consumer library.
	// Lease acquisition is external to the library; the lease-related values here only
	// describe how granted leases are interpreted and persisted.
	StreamConsumerLibConfiguration struct {
		// ApplicationName is the name of the consuming application. Multiple applications
		// may consume the same stream independently.
		ApplicationName string

		// DynamoDBEndpoint is an optional endpoint URL that overrides the default generated
		// endpoint for a DynamoDB client.
		DynamoDBEndpoint string

		// KinesisEndpoint is an optional endpoint URL that overrides the default generated
		// endpoint for a Kinesis client.
		KinesisEndpoint string

		// KinesisCredentials is used to access the stream.
		KinesisCredentials *creds.Credentials

		// DynamoDBCredentials is used to access the checkpoint store.
		DynamoDBCredentials *creds.Credentials

		// TableName is the name of the checkpoint table, defaulting to ApplicationName.
		TableName string

		// StreamName is the name of the stream to consume.
		StreamName string

		// RegionName is the region for the backing services.
		RegionName string

		// WorkerID distinguishes different workers/processes of an application. It is
		// also the lease owner identity checkpoint writes are fenced on.
		WorkerID string

		// InitialPositionInStream specifies where a new application should start from.
		InitialPositionInStream InitialPositionInStream

		// InitialPositionInStreamExtended provides the actual AT_TIMESTAMP value.
		InitialPositionInStreamExtended InitialPositionInStreamExtended

		// FailoverTimeMillis is the lease duration granted by the external coordinator.
		FailoverTimeMillis int

		// MaxRecords is the max records to read per getRecords call.
		MaxRecords int

		// IdleTimeBetweenReadsInMillis is the idle time between reads when the shard is drained.
		IdleTimeBetweenReadsInMillis int

		// CallProcessRecordsEvenForEmptyRecordList calls ProcessRecords() even if the read
		// returned an empty record list.
		CallProcessRecordsEvenForEmptyRecordList bool

		// ParentShardPollIntervalMillis is the wait between polls for parent shard completion.
		ParentShardPollIntervalMillis int

		// TaskBackoffTimeMillis is the backoff period when tasks encounter an exception.
		TaskBackoffTimeMillis int

		// ShutdownGraceMillis is the number of milliseconds before graceful shutdown
		// terminates forcefully.
		ShutdownGraceMillis int

		// InitialLeaseTableReadCapacity is the read capacity provisioned when creating the
		// checkpoint table.
		InitialLeaseTableReadCapacity int

		// InitialLeaseTableWriteCapacity is the write capacity provisioned when creating the
		// checkpoint table.
		InitialLeaseTableWriteCapacity int

		// Logger used to log messages.
		Logger logger.Logger

		// MonitoringService publishes per-worker-scoped metrics.
		MonitoringService metrics.MonitoringService
	}
)

func empty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}

// checkIsValueNotEmpty makes sure the value is not empty.
func checkIsValueNotEmpty(key string, value string) {
	if empty(value) {
		// There is no point to continue for incorrect configuration. Fail fast!
		log.Panicf("Non-empty value expected for %v, actual: %v", key, value)
	}
}

// checkIsValuePositive makes sure the value is positive.
func checkIsValuePositive(key string, value int) {
	if value <= 0 {
		// There is no point to continue for incorrect configuration. Fail fast!
		log.Panicf("Positive value expected for %v, actual: %v", key, value)
	}
}
