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

// V1toV2Processor provides a bridge between the IRecordProcessor contract and the original
// IRecordProcessorV1 contract. It unwraps the input structs into the flat argument lists the
// v1 contract expects and forwards each call to the wrapped delegate.
//
// This is a compatibility seam so that both contract shapes can coexist during a migration
// window; it normally shouldn't be used directly by record processors. The adapter adds no
// logic of its own: no error translation, no retry, and no resource acquisition. Whatever
// the delegate does (including panicking) propagates unchanged.
type V1toV2Processor struct {
	delegate IRecordProcessorV1
}

// NewV1toV2Processor wraps a v1 record processor so it satisfies IRecordProcessor.
// The adapter holds the delegate reference without copying or validating it.
func NewV1toV2Processor(delegate IRecordProcessorV1) IRecordProcessor {
	return &V1toV2Processor{delegate: delegate}
}

// Initialize forwards the shard id from the initialization input to the delegate.
func (v *V1toV2Processor) Initialize(initializationInput *InitializationInput) {
	v.delegate.Initialize(initializationInput.ShardId)
}

// ProcessRecords forwards the record batch and the checkpointer to the delegate.
// Fields the v1 contract has no parameter for (backpressure hints, cache times) are dropped.
func (v *V1toV2Processor) ProcessRecords(processRecordsInput *ProcessRecordsInput) {
	v.delegate.ProcessRecords(processRecordsInput.Records, processRecordsInput.Checkpointer)
}

// Shutdown forwards the checkpointer and the shutdown reason to the delegate.
func (v *V1toV2Processor) Shutdown(shutdownInput *ShutdownInput) {
	v.delegate.Shutdown(shutdownInput.Checkpointer, shutdownInput.ShutdownReason)
}

// V1toV2ProcessorFactory adapts a v1 factory so the driver can create v1-shaped processors
// behind the IRecordProcessor contract.
type V1toV2ProcessorFactory struct {
	delegate IRecordProcessorFactoryV1
}

// NewV1toV2ProcessorFactory wraps a v1 record processor factory.
func NewV1toV2ProcessorFactory(delegate IRecordProcessorFactoryV1) IRecordProcessorFactory {
	return &V1toV2ProcessorFactory{delegate: delegate}
}

// CreateProcessor creates a v1 processor via the wrapped factory and returns it wrapped
// in a V1toV2Processor.
func (f *V1toV2ProcessorFactory) CreateProcessor() IRecordProcessor {
	return NewV1toV2Processor(f.delegate.CreateProcessor())
}
