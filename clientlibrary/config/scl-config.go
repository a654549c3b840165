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
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/streambridge/go-scl/clientlibrary/metrics"
	"github.com/streambridge/go-scl/clientlibrary/utils"
	"github.com/streambridge/go-scl/logger"
)

// NewStreamConsumerLibConfig creates a default StreamConsumerLibConfiguration based on the
// required fields.
func NewStreamConsumerLibConfig(applicationName, streamName, regionName, workerID string) *StreamConsumerLibConfiguration {
	return NewStreamConsumerLibConfigWithCredentials(applicationName, streamName, regionName, workerID, nil, nil)
}

// NewStreamConsumerLibConfigWithCredential creates a default StreamConsumerLibConfiguration
// based on the required fields and one set of credentials shared by both services.
func NewStreamConsumerLibConfigWithCredential(applicationName, streamName, regionName, workerID string,
	creds *credentials.Credentials) *StreamConsumerLibConfiguration {
	return NewStreamConsumerLibConfigWithCredentials(applicationName, streamName, regionName, workerID, creds, creds)
}

// NewStreamConsumerLibConfigWithCredentials creates a default StreamConsumerLibConfiguration
// based on the required fields and specific credentials for each service.
func NewStreamConsumerLibConfigWithCredentials(applicationName, streamName, regionName, workerID string,
	kinesisCreds, dynamodbCreds *credentials.Credentials) *StreamConsumerLibConfiguration {
	checkIsValueNotEmpty("ApplicationName", applicationName)
	checkIsValueNotEmpty("StreamName", streamName)
	checkIsValueNotEmpty("RegionName", regionName)

	if empty(workerID) {
		workerID = utils.MustNewUUID()
	}

	// populate the configuration with default values
	return &StreamConsumerLibConfiguration{
		ApplicationName:                          applicationName,
		KinesisCredentials:                       kinesisCreds,
		DynamoDBCredentials:                      dynamodbCreds,
		TableName:                                applicationName,
		StreamName:                               streamName,
		RegionName:                               regionName,
		WorkerID:                                 workerID,
		InitialPositionInStream:                  DefaultInitialPositionInStream,
		InitialPositionInStreamExtended:          *newInitialPosition(DefaultInitialPositionInStream),
		FailoverTimeMillis:                       DefaultFailoverTimeMillis,
		MaxRecords:                               DefaultMaxRecords,
		IdleTimeBetweenReadsInMillis:             DefaultIdletimeBetweenReadsMillis,
		CallProcessRecordsEvenForEmptyRecordList: DefaultDontCallProcessRecordsForEmptyRecordList,
		ParentShardPollIntervalMillis:            DefaultParentShardPollIntervalMillis,
		TaskBackoffTimeMillis:                    DefaultTaskBackoffTimeMillis,
		ShutdownGraceMillis:                      DefaultShutdownGraceMillis,
		InitialLeaseTableReadCapacity:            DefaultInitialLeaseTableReadCapacity,
		InitialLeaseTableWriteCapacity:           DefaultInitialLeaseTableWriteCapacity,
		Logger:                                   logger.GetDefaultLogger(),
	}
}

func newInitialPosition(position InitialPositionInStream) *InitialPositionInStreamExtended {
	return &InitialPositionInStreamExtended{
		Position:  position,
		Timestamp: nil,
	}
}

// WithTableName to provide a custom checkpoint table name.
func (c *StreamConsumerLibConfiguration) WithTableName(tableName string) *StreamConsumerLibConfiguration {
	c.TableName = tableName
	return c
}

func (c *StreamConsumerLibConfiguration) WithInitialPositionInStream(initialPositionInStream InitialPositionInStream) *StreamConsumerLibConfiguration {
	c.InitialPositionInStream = initialPositionInStream
	c.InitialPositionInStreamExtended = *newInitialPosition(initialPositionInStream)
	return c
}

func (c *StreamConsumerLibConfiguration) WithTimestampAtInitialPositionInStream(timestamp *time.Time) *StreamConsumerLibConfiguration {
	c.InitialPositionInStream = AT_TIMESTAMP
	c.InitialPositionInStreamExtended = InitialPositionInStreamExtended{
		Position:  AT_TIMESTAMP,
		Timestamp: timestamp,
	}
	return c
}

func (c *StreamConsumerLibConfiguration) WithFailoverTimeMillis(failoverTimeMillis int) *StreamConsumerLibConfiguration {
	checkIsValuePositive("FailoverTimeMillis", failoverTimeMillis)
	c.FailoverTimeMillis = failoverTimeMillis
	return c
}

func (c *StreamConsumerLibConfiguration) WithMaxRecords(maxRecords int) *StreamConsumerLibConfiguration {
	checkIsValuePositive("MaxRecords", maxRecords)
	c.MaxRecords = maxRecords
	return c
}

func (c *StreamConsumerLibConfiguration) WithIdleTimeBetweenReadsInMillis(idleTimeBetweenReadsInMillis int) *StreamConsumerLibConfiguration {
	checkIsValuePositive("IdleTimeBetweenReadsInMillis", idleTimeBetweenReadsInMillis)
	c.IdleTimeBetweenReadsInMillis = idleTimeBetweenReadsInMillis
	return c
}

func (c *StreamConsumerLibConfiguration) WithCallProcessRecordsEvenForEmptyRecordList(callProcessRecordsEvenForEmptyRecordList bool) *StreamConsumerLibConfiguration {
	c.CallProcessRecordsEvenForEmptyRecordList = callProcessRecordsEvenForEmptyRecordList
	return c
}

func (c *StreamConsumerLibConfiguration) WithParentShardPollIntervalMillis(parentShardPollIntervalMillis int) *StreamConsumerLibConfiguration {
	checkIsValuePositive("ParentShardPollIntervalMillis", parentShardPollIntervalMillis)
	c.ParentShardPollIntervalMillis = parentShardPollIntervalMillis
	return c
}

func (c *StreamConsumerLibConfiguration) WithTaskBackoffTimeMillis(taskBackoffTimeMillis int) *StreamConsumerLibConfiguration {
	checkIsValuePositive("TaskBackoffTimeMillis", taskBackoffTimeMillis)
	c.TaskBackoffTimeMillis = taskBackoffTimeMillis
	return c
}

func (c *StreamConsumerLibConfiguration) WithShutdownGraceMillis(shutdownGraceMillis int) *StreamConsumerLibConfiguration {
	checkIsValuePositive("ShutdownGraceMillis", shutdownGraceMillis)
	c.ShutdownGraceMillis = shutdownGraceMillis
	return c
}

func (c *StreamConsumerLibConfiguration) WithKinesisEndpoint(kinesisEndpoint string) *StreamConsumerLibConfiguration {
	c.KinesisEndpoint = kinesisEndpoint
	return c
}

func (c *StreamConsumerLibConfiguration) WithDynamoDBEndpoint(dynamoDBEndpoint string) *StreamConsumerLibConfiguration {
	c.DynamoDBEndpoint = dynamoDBEndpoint
	return c
}

// WithLogger sets the logger for the library to use. Defaults to a logrus-backed logger.
func (c *StreamConsumerLibConfiguration) WithLogger(logger logger.Logger) *StreamConsumerLibConfiguration {
	if logger == nil {
		c.Logger.Panicf("Logger cannot be null")
	}
	c.Logger = logger
	return c
}

// WithMonitoringService sets the monitoring service to publish metrics to.
func (c *StreamConsumerLibConfiguration) WithMonitoringService(mService metrics.MonitoringService) *StreamConsumerLibConfiguration {
	// Nil monitoring service is allowed; the worker replaces it with a noop service.
	c.MonitoringService = mService
	return c
}
