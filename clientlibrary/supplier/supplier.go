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

// Package supplier abstracts the read side of a shard: handing out iterators and
// delivering batches of records in order. The shard consumer drives a RecordSupplier
// without knowing which streaming backend is behind it.
package supplier

import (
	"time"

	"github.com/streambridge/go-scl/clientlibrary/interfaces"
)

// PositionType enumerates where in the shard an iterator should start.
type PositionType int

const (
	TrimHorizon PositionType = iota + 1
	Latest
	AtTimestamp
	AfterSequenceNumber
)

var positionTypeMap = map[PositionType]string{
	TrimHorizon:         "TRIM_HORIZON",
	Latest:              "LATEST",
	AtTimestamp:         "AT_TIMESTAMP",
	AfterSequenceNumber: "AFTER_SEQUENCE_NUMBER",
}

func (t PositionType) String() string {
	return positionTypeMap[t]
}

// StartingPosition designates where reading of a shard begins. SequenceNumber is
// required for AfterSequenceNumber, Timestamp for AtTimestamp.
type StartingPosition struct {
	Type           PositionType
	SequenceNumber *string
	Timestamp      *time.Time
}

// Batch is one read from a shard: the records in delivery order plus positioning info.
type Batch struct {
	Records []*interfaces.Record

	// MillisBehindLatest is how far behind the tip of the shard this batch was.
	MillisBehindLatest int64

	// NextIterator continues reading after this batch. Empty means the shard is
	// closed and fully consumed.
	NextIterator string
}

// RecordSupplier delivers records of one stream, shard by shard.
type RecordSupplier interface {
	// Init prepares the supplier's backing client.
	Init() error

	// GetIterator returns an iterator over the given shard starting at position.
	GetIterator(shardID string, position *StartingPosition) (string, error)

	// GetRecords reads up to limit records at the iterator position.
	GetRecords(iterator string, limit int) (*Batch, error)
}
