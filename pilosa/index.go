// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package pilosa exports station-hour aggregates into a Pilosa index so
// they can be sliced by station, neighbourhood, user type and hour.
package pilosa

import (
	"io"
	"sync"
	"time"

	gopilosa "github.com/pilosa/go-pilosa"
	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// Indexer receives the bits and values of an export. Implementations must be
// safe for concurrent use.
type Indexer interface {
	AddColumn(field string, col, row uint64)
	AddColumnTimestamp(field string, col, row uint64, ts time.Time)
	AddValue(field string, col uint64, val int64)
	Close() error
}

// Index is an Indexer which streams everything it is given to a Pilosa
// cluster, one importer goroutine per field.
type Index struct {
	client    *gopilosa.Client
	batchSize uint
	log       bikeshare.Logger

	lock        sync.RWMutex
	index       *gopilosa.Index
	importWG    sync.WaitGroup
	recordChans map[string]chanRecordIterator
	errs        []error
}

// Client returns the Pilosa client.
func (i *Index) Client() *gopilosa.Client {
	return i.client
}

// AddColumnTimestamp sets the bit at row, col in a time field.
func (i *Index) AddColumnTimestamp(field string, col, row uint64, ts time.Time) {
	i.addColumn(field, col, row, ts.UnixNano())
}

// AddColumn sets the bit at row, col in a set field.
func (i *Index) AddColumn(field string, col, row uint64) {
	i.addColumn(field, col, row, 0)
}

func (i *Index) recordChan(fieldName string, opts ...gopilosa.FieldOption) (chanRecordIterator, bool) {
	i.lock.RLock()
	c, ok := i.recordChans[fieldName]
	i.lock.RUnlock()
	if ok {
		return c, true
	}
	i.lock.Lock()
	defer i.lock.Unlock()
	if c, ok = i.recordChans[fieldName]; ok {
		return c, true
	}
	field := i.index.Field(fieldName, opts...)
	if err := i.setupField(field); err != nil {
		i.errs = append(i.errs, errors.Wrapf(err, "setting up field '%s'", fieldName))
		i.log.Printf("setting up field '%s': %v", fieldName, err)
		return nil, false
	}
	return i.recordChans[fieldName], true
}

func (i *Index) addColumn(fieldName string, col, row uint64, ts int64) {
	fieldType := gopilosa.OptFieldTypeSet(gopilosa.CacheTypeRanked, 100000)
	if ts != 0 {
		fieldType = gopilosa.OptFieldTypeTime(gopilosa.TimeQuantumYearMonthDayHour)
	}
	c, ok := i.recordChan(fieldName, fieldType)
	if !ok {
		return
	}
	c <- gopilosa.Column{RowID: row, ColumnID: col, Timestamp: ts}
}

// AddValue sets the integer value of col in an int field.
func (i *Index) AddValue(fieldName string, col uint64, val int64) {
	c, ok := i.recordChan(fieldName, gopilosa.OptFieldTypeInt(0, 1<<31-1))
	if !ok {
		return
	}
	c <- gopilosa.FieldValue{ColumnID: col, Value: val}
}

// Close ensures that all ongoing imports have finished and returns the
// errors of any failed field setup or import.
func (i *Index) Close() error {
	i.lock.Lock()
	for _, cbi := range i.recordChans {
		close(cbi)
	}
	i.lock.Unlock()
	i.importWG.Wait()
	i.lock.Lock()
	defer i.lock.Unlock()
	if len(i.errs) > 0 {
		return errors.Errorf("%d import errors, first: %v", len(i.errs), i.errs[0])
	}
	return nil
}

// setupField ensures the existence of a field in Pilosa,
// and starts importers for the field.
// It is not threadsafe - callers must hold i.lock.Lock() or guarantee that they have
// exclusive access to Index before calling.
func (i *Index) setupField(field *gopilosa.Field) error {
	fieldName := field.Name()
	if _, ok := i.recordChans[fieldName]; ok {
		return nil
	}
	err := i.client.EnsureField(field)
	if err != nil {
		return errors.Wrapf(err, "creating field '%v'", field)
	}
	i.recordChans[fieldName] = newChanRecordIterator()
	i.importWG.Add(1)
	go func(fram *gopilosa.Field, cbi chanRecordIterator) {
		defer i.importWG.Done()
		err := i.client.ImportField(fram, cbi, gopilosa.OptImportBatchSize(int(i.batchSize)))
		if err != nil {
			i.lock.Lock()
			i.errs = append(i.errs, errors.Wrapf(err, "importing field %v", fieldName))
			i.lock.Unlock()
			// keep draining so producers don't block
			for range cbi {
			}
		}
	}(field, i.recordChans[fieldName])
	return nil
}

// SetupPilosa connects to hosts, creates the index if needed and returns an
// Index ready to import into it.
func SetupPilosa(hosts []string, indexName string, batchSize uint, log bikeshare.Logger) (*Index, error) {
	if log == nil {
		log = bikeshare.NopLogger{}
	}
	schema := gopilosa.NewSchema()
	indexer := &Index{
		batchSize:   batchSize,
		log:         log,
		recordChans: make(map[string]chanRecordIterator),
	}
	client, err := gopilosa.NewClient(hosts,
		gopilosa.OptClientSocketTimeout(time.Minute*60),
		gopilosa.OptClientConnectTimeout(time.Second*60))
	if err != nil {
		return nil, errors.Wrap(err, "creating pilosa cluster client")
	}
	indexer.client = client
	indexer.index = schema.Index(indexName)
	err = client.SyncSchema(schema)
	if err != nil {
		return nil, errors.Wrap(err, "synchronizing schema")
	}
	return indexer, nil
}

type chanRecordIterator chan gopilosa.Record

func newChanRecordIterator() chanRecordIterator {
	return make(chan gopilosa.Record, 200000)
}

func (c chanRecordIterator) NextRecord() (gopilosa.Record, error) {
	b, ok := <-c
	if !ok {
		return b, io.EOF
	}
	return b, nil
}
