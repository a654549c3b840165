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
package checkpoint

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/streambridge/go-scl/clientlibrary/config"
	par "github.com/streambridge/go-scl/clientlibrary/partition"
	"github.com/streambridge/go-scl/clientlibrary/utils"
	"github.com/streambridge/go-scl/logger"
)

// NumMaxRetries is the max times the DynamoDB client retries a request internally.
const NumMaxRetries = 10

// DynamoCheckpoint implements the Checkpointer interface using DynamoDB as a backend.
type DynamoCheckpoint struct {
	log                     logger.Logger
	TableName               string
	leaseTableReadCapacity  int64
	leaseTableWriteCapacity int64

	svc       dynamodbiface.DynamoDBAPI
	sclConfig *config.StreamConsumerLibConfiguration
	Retries   int
}

func NewDynamoCheckpoint(sclConfig *config.StreamConsumerLibConfiguration) *DynamoCheckpoint {
	return &DynamoCheckpoint{
		log:                     sclConfig.Logger,
		TableName:               sclConfig.TableName,
		leaseTableReadCapacity:  int64(sclConfig.InitialLeaseTableReadCapacity),
		leaseTableWriteCapacity: int64(sclConfig.InitialLeaseTableWriteCapacity),
		sclConfig:               sclConfig,
		Retries:                 NumMaxRetries,
	}
}

// WithDynamoDB is used to provide a DynamoDB service, mainly for testing.
func (checkpointer *DynamoCheckpoint) WithDynamoDB(svc dynamodbiface.DynamoDBAPI) *DynamoCheckpoint {
	checkpointer.svc = svc
	return checkpointer
}

// Init initialises the DynamoDB checkpoint store, creating the table when missing.
func (checkpointer *DynamoCheckpoint) Init() error {
	checkpointer.log.Infof("Creating DynamoDB session")

	s, err := session.NewSession(&aws.Config{
		Region:      aws.String(checkpointer.sclConfig.RegionName),
		Endpoint:    aws.String(checkpointer.sclConfig.DynamoDBEndpoint),
		Credentials: checkpointer.sclConfig.DynamoDBCredentials,
		Retryer: client.DefaultRetryer{
			NumMaxRetries:    checkpointer.Retries,
			MinRetryDelay:    client.DefaultRetryerMinRetryDelay,
			MinThrottleDelay: client.DefaultRetryerMinThrottleDelay,
			MaxRetryDelay:    client.DefaultRetryerMaxRetryDelay,
			MaxThrottleDelay: client.DefaultRetryerMaxRetryDelay,
		},
	})

	if err != nil {
		// no need to move forward
		checkpointer.log.Fatalf("Failed in getting DynamoDB session for creating Worker: %+v", err)
	}

	if checkpointer.svc == nil {
		checkpointer.svc = dynamodb.New(s)
	}

	if !checkpointer.doesTableExist() {
		return checkpointer.createTable()
	}
	return nil
}

// CheckpointSequence writes the shard's current checkpoint. The write only succeeds while
// the store still shows this shard assigned to the owner recorded in the shard status.
func (checkpointer *DynamoCheckpoint) CheckpointSequence(shard *par.ShardStatus) error {
	owner := shard.GetLeaseOwner()
	leaseTimeout := shard.GetLeaseTimeout().UTC().Format(time.RFC3339)
	marshalledCheckpoint := map[string]*dynamodb.AttributeValue{
		LeaseKeyKey: {
			S: aws.String(shard.ID),
		},
		SequenceNumberKey: {
			S: aws.String(shard.GetCheckpoint()),
		},
		LeaseOwnerKey: {
			S: aws.String(owner),
		},
		LeaseTimeoutKey: {
			S: aws.String(leaseTimeout),
		},
	}

	if len(shard.ParentShardId) > 0 {
		marshalledCheckpoint[ParentShardIdKey] = &dynamodb.AttributeValue{S: &shard.ParentShardId}
	}

	conditionalExpression := "attribute_not_exists(AssignedTo) OR AssignedTo = :assigned_to"
	expressionAttributeValues := map[string]*dynamodb.AttributeValue{
		":assigned_to": {
			S: aws.String(owner),
		},
	}

	err := checkpointer.conditionalUpdate(conditionalExpression, expressionAttributeValues, marshalledCheckpoint)
	if err != nil {
		return checkpointer.translateError(err)
	}
	return nil
}

// FetchCheckpoint retrieves the checkpoint for the given shard.
func (checkpointer *DynamoCheckpoint) FetchCheckpoint(shard *par.ShardStatus) error {
	checkpoint, err := checkpointer.getItem(shard.ID)
	if err != nil {
		return checkpointer.translateError(err)
	}

	// An empty checkpoint (a nil-sequence Checkpoint call before anything was
	// delivered) reads back as no progress.
	sequenceID, ok := checkpoint[SequenceNumberKey]
	if !ok || sequenceID.S == nil || aws.StringValue(sequenceID.S) == "" {
		return ErrSequenceIDNotFound
	}
	checkpointer.log.Debugf("Retrieved checkpoint %s for shard %s", *sequenceID.S, shard.ID)
	shard.SetCheckpoint(aws.StringValue(sequenceID.S))

	if assignedTo, ok := checkpoint[LeaseOwnerKey]; ok {
		shard.SetLeaseOwner(aws.StringValue(assignedTo.S))
	}

	if leaseTimeout, ok := checkpoint[LeaseTimeoutKey]; ok && leaseTimeout.S != nil {
		currentLeaseTimeout, err := time.Parse(time.RFC3339, aws.StringValue(leaseTimeout.S))
		if err != nil {
			return err
		}
		shard.SetLeaseTimeout(currentLeaseTimeout)
	}

	return nil
}

// RemoveLeaseInfo removes the entry for a shard that no longer exists in the stream.
func (checkpointer *DynamoCheckpoint) RemoveLeaseInfo(shardID string) error {
	err := checkpointer.removeItem(shardID)

	if err != nil {
		checkpointer.log.Errorf("Error in removing lease info for shard: %s, Error: %+v", shardID, err)
	} else {
		checkpointer.log.Infof("Lease info for shard: %s has been removed.", shardID)
	}

	return err
}

// RemoveLeaseOwner clears the lease owner for the shard entry, keeping the checkpoint.
func (checkpointer *DynamoCheckpoint) RemoveLeaseOwner(shardID string) error {
	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(checkpointer.TableName),
		Key: map[string]*dynamodb.AttributeValue{
			LeaseKeyKey: {
				S: aws.String(shardID),
			},
		},
		UpdateExpression: aws.String("remove " + LeaseOwnerKey),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":assigned_to": {
				S: aws.String(checkpointer.sclConfig.WorkerID),
			},
		},
		ConditionExpression: aws.String("AssignedTo = :assigned_to"),
	}

	_, err := checkpointer.svc.UpdateItem(input)
	if err != nil {
		return checkpointer.translateError(err)
	}
	return nil
}

// translateError maps DynamoDB failures onto the store-agnostic error taxonomy so callers
// never have to know which backend they are writing to.
func (checkpointer *DynamoCheckpoint) translateError(err error) error {
	switch utils.AWSErrCode(err) {
	case dynamodb.ErrCodeConditionalCheckFailedException:
		return fmt.Errorf("%w: %v", ErrLeaseLost, err)
	case dynamodb.ErrCodeProvisionedThroughputExceededException, dynamodb.ErrCodeLimitExceededException, dynamodb.ErrCodeRequestLimitExceeded:
		return fmt.Errorf("%w: %v", ErrThrottled, err)
	case dynamodb.ErrCodeResourceNotFoundException:
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return err
}

func (checkpointer *DynamoCheckpoint) createTable() error {
	input := &dynamodb.CreateTableInput{
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String(LeaseKeyKey),
				AttributeType: aws.String("S"),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String(LeaseKeyKey),
				KeyType:       aws.String("HASH"),
			},
		},
		ProvisionedThroughput: &dynamodb.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(checkpointer.leaseTableReadCapacity),
			WriteCapacityUnits: aws.Int64(checkpointer.leaseTableWriteCapacity),
		},
		TableName: aws.String(checkpointer.TableName),
	}
	_, err := checkpointer.svc.CreateTable(input)
	return err
}

func (checkpointer *DynamoCheckpoint) doesTableExist() bool {
	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(checkpointer.TableName),
	}
	_, err := checkpointer.svc.DescribeTable(input)
	return err == nil
}

func (checkpointer *DynamoCheckpoint) conditionalUpdate(conditionExpression string, expressionAttributeValues map[string]*dynamodb.AttributeValue, item map[string]*dynamodb.AttributeValue) error {
	return checkpointer.putItem(&dynamodb.PutItemInput{
		ConditionExpression:       aws.String(conditionExpression),
		TableName:                 aws.String(checkpointer.TableName),
		Item:                      item,
		ExpressionAttributeValues: expressionAttributeValues,
	})
}

func (checkpointer *DynamoCheckpoint) putItem(input *dynamodb.PutItemInput) error {
	_, err := checkpointer.svc.PutItem(input)
	return err
}

func (checkpointer *DynamoCheckpoint) getItem(shardID string) (map[string]*dynamodb.AttributeValue, error) {
	item, err := checkpointer.svc.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(checkpointer.TableName),
		Key: map[string]*dynamodb.AttributeValue{
			LeaseKeyKey: {
				S: aws.String(shardID),
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return item.Item, nil
}

func (checkpointer *DynamoCheckpoint) removeItem(shardID string) error {
	_, err := checkpointer.svc.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(checkpointer.TableName),
		Key: map[string]*dynamodb.AttributeValue{
			LeaseKeyKey: {
				S: aws.String(shardID),
			},
		},
	})
	return err
}
