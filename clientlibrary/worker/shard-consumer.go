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
package worker

import (
	"errors"
	"sync"
	"time"

	chk "github.com/streambridge/go-scl/clientlibrary/checkpoint"
	"github.com/streambridge/go-scl/clientlibrary/config"
	kcl "github.com/streambridge/go-scl/clientlibrary/interfaces"
	"github.com/streambridge/go-scl/clientlibrary/metrics"
	par "github.com/streambridge/go-scl/clientlibrary/partition"
	sup "github.com/streambridge/go-scl/clientlibrary/supplier"
)

// ShardConsumer drives one record processor over one shard: it pulls batches from
// the supplier in order and walks the processor through its lifecycle. The consumer
// assumes its worker was granted the lease; it only watches for the lease going away.
type ShardConsumer struct {
	shard           *par.ShardStatus
	supplier        sup.RecordSupplier
	checkpointer    chk.Checkpointer
	recordProcessor kcl.IRecordProcessor
	sclConfig       *config.StreamConsumerLibConfiguration
	consumerID      string
	stop            *chan struct{}
	revoke          chan struct{}
	mService        metrics.MonitoringService
}

// getStartingPosition computes where to begin reading. A recorded checkpoint wins;
// otherwise the configured initial position is used.
func (sc *ShardConsumer) getStartingPosition() (*sup.StartingPosition, error) {
	err := sc.checkpointer.FetchCheckpoint(sc.shard)
	if err != nil && !errors.Is(err, chk.ErrSequenceIDNotFound) {
		return nil, err
	}

	checkpoint := sc.shard.GetCheckpoint()
	if checkpoint != "" {
		sc.sclConfig.Logger.Debugf("Start shard: %v at checkpoint: %v", sc.shard.ID, checkpoint)
		return &sup.StartingPosition{
			Type:           sup.AfterSequenceNumber,
			SequenceNumber: &checkpoint,
		}, nil
	}

	position := initialPositionToStartingPosition(sc.sclConfig)
	sc.sclConfig.Logger.Debugf("No checkpoint recorded for shard: %v, starting with: %v", sc.shard.ID, position.Type)
	return position, nil
}

func initialPositionToStartingPosition(sclConfig *config.StreamConsumerLibConfiguration) *sup.StartingPosition {
	switch sclConfig.InitialPositionInStream {
	case config.TRIM_HORIZON:
		return &sup.StartingPosition{Type: sup.TrimHorizon}
	case config.AT_TIMESTAMP:
		return &sup.StartingPosition{
			Type:      sup.AtTimestamp,
			Timestamp: sclConfig.InitialPositionInStreamExtended.Timestamp,
		}
	default:
		return &sup.StartingPosition{Type: sup.Latest}
	}
}

// waitOnParentShard blocks until the parent shard has been fully consumed, so records
// are processed in lineage order across a reshard.
func (sc *ShardConsumer) waitOnParentShard() error {
	if len(sc.shard.ParentShardId) == 0 {
		return nil
	}

	pshard := &par.ShardStatus{
		ID:  sc.shard.ParentShardId,
		Mux: &sync.RWMutex{},
	}

	for {
		if err := sc.checkpointer.FetchCheckpoint(pshard); err != nil {
			return err
		}

		// Parent shard is finished.
		if pshard.GetCheckpoint() == chk.ShardEnd {
			return nil
		}

		select {
		case <-*sc.stop:
			return nil
		case <-sc.revoke:
			return nil
		case <-time.After(time.Duration(sc.sclConfig.ParentShardPollIntervalMillis) * time.Millisecond):
		}
	}
}

// getRecords reads the shard until it is drained, the worker stops, or the lease is lost.
// Precondition: the external coordinator granted this worker the lease on the shard.
func (sc *ShardConsumer) getRecords() error {
	log := sc.sclConfig.Logger

	// If the shard is a child shard, wait until the parent is finished.
	if err := sc.waitOnParentShard(); err != nil {
		// If the parent shard entry has been cleaned up already, just ignore the error.
		if !errors.Is(err, chk.ErrSequenceIDNotFound) {
			log.Errorf("Error in waiting for parent shard: %v to finish. Error: %+v", sc.shard.ParentShardId, err)
			return err
		}
	}

	startPosition, err := sc.getStartingPosition()
	if err != nil {
		return err
	}

	shardIterator, err := sc.supplier.GetIterator(sc.shard.ID, startPosition)
	if err != nil {
		log.Errorf("Unable to get iterator for %s: %v", sc.shard.ID, err)
		return err
	}

	// Notify the record processor of the shard and the starting checkpoint. The
	// sequence number stays nil when no previous processor checkpointed.
	startingSequence := &kcl.ExtendedSequenceNumber{}
	if checkpoint := sc.shard.GetCheckpoint(); checkpoint != "" {
		startingSequence.SequenceNumber = &checkpoint
	}
	input := &kcl.InitializationInput{
		ShardId:                sc.shard.ID,
		ExtendedSequenceNumber: startingSequence,
	}
	sc.recordProcessor.Initialize(input)

	recordCheckpointer := NewRecordProcessorCheckpointer(sc.shard, sc.checkpointer)

	for {
		if sc.shard.IsLeaseExpired() {
			log.Warnf("Lease expired on shard: %s for worker: %s", sc.shard.ID, sc.consumerID)
			sc.shutdownZombie(recordCheckpointer)
			return nil
		}

		getRecordsStartTime := time.Now()

		log.Debugf("Trying to read %d records from iterator: %v", sc.sclConfig.MaxRecords, shardIterator)
		batch, err := sc.supplier.GetRecords(shardIterator, sc.sclConfig.MaxRecords)
		if err != nil {
			log.Errorf("Error getting records from shard %v: %+v", sc.shard.ID, err)
			return err
		}

		sc.deliverRecords(getRecordsStartTime, batch, recordCheckpointer)

		// The shard has been closed, so no new records can be read from it.
		if batch.NextIterator == "" {
			log.Infof("Shard %s closed", sc.shard.ID)
			sc.shard.SetLastDelivered(chk.ShardEnd)
			shutdownInput := &kcl.ShutdownInput{ShutdownReason: kcl.TERMINATE, Checkpointer: recordCheckpointer}
			sc.recordProcessor.Shutdown(shutdownInput)
			sc.releaseLease()
			return nil
		}
		shardIterator = batch.NextIterator

		// Idle between reads when the shard is drained. When records were returned the
		// next batch is fetched immediately.
		if len(batch.Records) == 0 && batch.MillisBehindLatest < int64(sc.sclConfig.IdleTimeBetweenReadsInMillis) {
			time.Sleep(time.Duration(sc.sclConfig.IdleTimeBetweenReadsInMillis) * time.Millisecond)
		}

		select {
		case <-*sc.stop:
			shutdownInput := &kcl.ShutdownInput{ShutdownReason: kcl.REQUESTED, Checkpointer: recordCheckpointer}
			sc.recordProcessor.Shutdown(shutdownInput)
			sc.releaseLease()
			return nil
		case <-sc.revoke:
			log.Infof("Lease on shard: %s revoked for worker: %s", sc.shard.ID, sc.consumerID)
			sc.shutdownZombie(recordCheckpointer)
			return nil
		default:
		}
	}
}

// deliverRecords hands one batch to the record processor and publishes metrics about it.
func (sc *ShardConsumer) deliverRecords(getRecordsStartTime time.Time, batch *sup.Batch, recordCheckpointer kcl.IRecordProcessorCheckpointer) {
	log := sc.sclConfig.Logger

	getRecordsTime := time.Since(getRecordsStartTime).Milliseconds()
	sc.mService.RecordGetRecordsTime(sc.shard.ID, float64(getRecordsTime))

	recordLength := len(batch.Records)
	recordBytes := int64(0)
	log.Debugf("Received %d records, MillisBehindLatest: %v", recordLength, batch.MillisBehindLatest)

	for _, r := range batch.Records {
		recordBytes += int64(len(r.Data))
	}

	if recordLength > 0 {
		// A nil-sequence checkpoint from the processor resolves to the last record of
		// this batch, so record it before the processor runs.
		sc.shard.SetLastDelivered(batch.Records[recordLength-1].SequenceNumber)
	}

	if recordLength > 0 || sc.sclConfig.CallProcessRecordsEvenForEmptyRecordList {
		processRecordsStartTime := time.Now()

		input := &kcl.ProcessRecordsInput{
			CacheEntryTime:     &getRecordsStartTime,
			CacheExitTime:      &processRecordsStartTime,
			Records:            batch.Records,
			Checkpointer:       recordCheckpointer,
			MillisBehindLatest: batch.MillisBehindLatest,
		}
		sc.recordProcessor.ProcessRecords(input)

		processedRecordsTiming := time.Since(processRecordsStartTime).Milliseconds()
		sc.mService.RecordProcessRecordsTime(sc.shard.ID, float64(processedRecordsTiming))
	}

	sc.mService.IncrRecordsProcessed(sc.shard.ID, recordLength)
	sc.mService.IncrBytesProcessed(sc.shard.ID, recordBytes)
	sc.mService.MillisBehindLatest(sc.shard.ID, float64(batch.MillisBehindLatest))
}

// shutdownZombie tells the record processor its lease is gone. No store writes happen
// here: the successor may already be processing, and its progress must not be clobbered.
func (sc *ShardConsumer) shutdownZombie(recordCheckpointer kcl.IRecordProcessorCheckpointer) {
	shutdownInput := &kcl.ShutdownInput{ShutdownReason: kcl.ZOMBIE, Checkpointer: recordCheckpointer}
	sc.recordProcessor.Shutdown(shutdownInput)
	sc.mService.LeaseLost(sc.shard.ID)
}

// releaseLease clears this worker as the owner in the store so the external coordinator
// can hand the shard to someone else.
func (sc *ShardConsumer) releaseLease() {
	log := sc.sclConfig.Logger
	log.Infof("Release lease for shard %s", sc.shard.ID)
	sc.shard.SetLeaseOwner("")

	// Note: nothing to do in case of error here, the lease will eventually expire.
	if err := sc.checkpointer.RemoveLeaseOwner(sc.shard.ID); err != nil {
		log.Errorf("Failed to release lease for shard: %s Error: %+v", sc.shard.ID, err)
	}

	sc.mService.LeaseLost(sc.shard.ID)
}
