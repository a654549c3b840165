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
	"fmt"
	"sync"
	"time"

	chk "github.com/streambridge/go-scl/clientlibrary/checkpoint"
	"github.com/streambridge/go-scl/clientlibrary/config"
	kcl "github.com/streambridge/go-scl/clientlibrary/interfaces"
	"github.com/streambridge/go-scl/clientlibrary/metrics"
	par "github.com/streambridge/go-scl/clientlibrary/partition"
	sup "github.com/streambridge/go-scl/clientlibrary/supplier"
)

/**
 * Worker is the high level class that consuming applications use to start processing data.
 * It oversees one shard consumer per granted lease and walks each record processor through
 * its lifecycle. Lease acquisition and balancing live in an external coordinator: shards
 * arrive via AssignShard and leave via RevokeLease.
 */
type Worker struct {
	streamName string
	regionName string
	workerID   string

	processorFactory kcl.IRecordProcessorFactory
	sclConfig        *config.StreamConsumerLibConfiguration
	supplier         sup.RecordSupplier
	checkpointer     chk.Checkpointer
	mService         metrics.MonitoringService

	stop      *chan struct{}
	waitGroup *sync.WaitGroup

	// consumersMux guards the consumer map and the running state (done, stop):
	// AssignShard and RevokeLease may be called concurrently with Shutdown.
	consumersMux sync.Mutex
	done         bool
	consumers    map[string]*consumerHandle
}

// consumerHandle tracks one running shard consumer and the channel that revokes it.
type consumerHandle struct {
	shard  *par.ShardStatus
	revoke chan struct{}
}

// NewWorker constructs a Worker instance for processing stream data.
func NewWorker(factory kcl.IRecordProcessorFactory, sclConfig *config.StreamConsumerLibConfiguration) *Worker {
	mService := sclConfig.MonitoringService
	if mService == nil {
		// Replaces nil with noop monitoring service (not emitting any metrics).
		mService = metrics.NoopMonitoringService{}
	}

	return &Worker{
		streamName:       sclConfig.StreamName,
		regionName:       sclConfig.RegionName,
		workerID:         sclConfig.WorkerID,
		processorFactory: factory,
		sclConfig:        sclConfig,
		mService:         mService,
		done:             false,
	}
}

// WithSupplier is used to provide a record supplier for either a custom backend or unit testing.
func (w *Worker) WithSupplier(supplier sup.RecordSupplier) *Worker {
	w.supplier = supplier
	return w
}

// WithCheckpointer is used to provide a custom checkpointer service for a non-dynamodb
// implementation or unit testing.
func (w *Worker) WithCheckpointer(checker chk.Checkpointer) *Worker {
	w.checkpointer = checker
	return w
}

// Start readies the worker for shard assignments.
func (w *Worker) Start() error {
	log := w.sclConfig.Logger
	if err := w.initialize(); err != nil {
		log.Errorf("Failed to initialize Worker: %+v", err)
		return err
	}

	// Start monitoring service.
	log.Infof("Starting monitoring service.")
	if err := w.mService.Start(); err != nil {
		log.Errorf("Failed to start monitoring service: %+v", err)
		return err
	}

	log.Infof("Worker started, awaiting shard assignments.")
	return nil
}

// Shutdown signals the worker to shut down. The worker initiates a graceful shutdown of
// all running record processors (shutdown reason REQUESTED) and waits for them up to the
// configured grace period.
func (w *Worker) Shutdown() {
	log := w.sclConfig.Logger
	log.Infof("Worker shutdown is requested.")

	w.consumersMux.Lock()
	if w.done || w.stop == nil {
		w.consumersMux.Unlock()
		return
	}
	close(*w.stop)
	w.done = true
	w.consumersMux.Unlock()

	finished := make(chan struct{})
	go func() {
		w.waitGroup.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Duration(w.sclConfig.ShutdownGraceMillis) * time.Millisecond):
		log.Warnf("Worker shutdown grace period of %d ms expired with consumers still running.",
			w.sclConfig.ShutdownGraceMillis)
	}

	w.mService.Shutdown()
	log.Infof("Worker loop is complete. Exiting from worker.")
}

// AssignShard starts a shard consumer for a lease the external coordinator granted to
// this worker. Returns an error when the worker is not running or the shard is already
// being consumed.
func (w *Worker) AssignShard(shard *par.ShardStatus) error {
	log := w.sclConfig.Logger

	w.consumersMux.Lock()
	defer w.consumersMux.Unlock()

	if w.stop == nil || w.done {
		return fmt.Errorf("worker is not running, cannot assign shard %s", shard.ID)
	}

	if _, ok := w.consumers[shard.ID]; ok {
		return fmt.Errorf("shard %s is already assigned to this worker", shard.ID)
	}

	shard.SetLeaseOwner(w.workerID)

	handle := &consumerHandle{
		shard:  shard,
		revoke: make(chan struct{}),
	}
	w.consumers[shard.ID] = handle
	w.mService.LeaseGained(shard.ID)

	log.Infof("Start shard consumer for shard: %v", shard.ID)
	sc := w.newShardConsumer(shard, handle.revoke)
	w.waitGroup.Add(1)
	go func() {
		defer w.waitGroup.Done()
		defer w.removeConsumer(shard.ID)
		if err := sc.getRecords(); err != nil {
			log.Errorf("Error in getRecords: %+v", err)
		}
	}()

	return nil
}

// RevokeLease tells the consumer of the given shard that its lease has moved. The record
// processor is shut down with reason ZOMBIE and must not checkpoint.
func (w *Worker) RevokeLease(shardID string) error {
	w.consumersMux.Lock()
	defer w.consumersMux.Unlock()

	handle, ok := w.consumers[shardID]
	if !ok {
		return fmt.Errorf("shard %s is not assigned to this worker", shardID)
	}

	close(handle.revoke)
	delete(w.consumers, shardID)
	return nil
}

func (w *Worker) removeConsumer(shardID string) {
	w.consumersMux.Lock()
	defer w.consumersMux.Unlock()
	delete(w.consumers, shardID)
}

func (w *Worker) initialize() error {
	log := w.sclConfig.Logger
	log.Infof("Worker initialization in progress...")

	if w.supplier == nil {
		log.Infof("Creating Kinesis based record supplier")
		w.supplier = sup.NewKinesisSupplier(w.sclConfig)
	} else {
		log.Infof("Use custom record supplier.")
	}

	if err := w.supplier.Init(); err != nil {
		log.Errorf("Failed to initialize record supplier: %+v", err)
		return err
	}

	// Create default dynamodb based checkpointer implementation.
	if w.checkpointer == nil {
		log.Infof("Creating DynamoDB based checkpointer")
		w.checkpointer = chk.NewDynamoCheckpoint(w.sclConfig)
	} else {
		log.Infof("Use custom checkpointer implementation.")
	}

	err := w.mService.Init(w.sclConfig.ApplicationName, w.streamName, w.workerID)
	if err != nil {
		log.Errorf("Failed to initialize monitoring service: %+v", err)
	}

	log.Infof("Initializing Checkpointer")
	if err := w.checkpointer.Init(); err != nil {
		log.Errorf("Failed to start Checkpointer: %+v", err)
		return err
	}

	w.consumers = make(map[string]*consumerHandle)

	stopChan := make(chan struct{})
	w.stop = &stopChan

	w.waitGroup = &sync.WaitGroup{}

	log.Infof("Initialization complete.")

	return nil
}

// newShardConsumer creates a shard consumer instance backed by a fresh record processor.
func (w *Worker) newShardConsumer(shard *par.ShardStatus, revoke chan struct{}) *ShardConsumer {
	return &ShardConsumer{
		shard:           shard,
		supplier:        w.supplier,
		checkpointer:    w.checkpointer,
		recordProcessor: w.processorFactory.CreateProcessor(),
		sclConfig:       w.sclConfig,
		consumerID:      w.workerID,
		stop:            w.stop,
		revoke:          revoke,
		mService:        w.mService,
	}
}
