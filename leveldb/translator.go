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

// Package leveldb provides a bikeshare.Translator which persists key/id
// mappings of every field in a single leveldb database.
package leveldb

import (
	"encoding/binary"
	"sync"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ bikeshare.Translator = &Translator{}

// Key layout. Both directions of a field's mapping share a prefix so that
// the ids of one field can be scanned in order.
const (
	idTag  = 'i'
	keyTag = 'k'
	sep    = 0
)

// Translator is a bikeshare.Translator which stores the two way key/id
// mapping in leveldb.
type Translator struct {
	db *leveldb.DB

	mu     sync.Mutex
	fields map[string]*field
}

// field serializes id allocation for one field.
type field struct {
	mu   sync.Mutex
	next uint64
}

// NewTranslator opens (or creates) the database in dirname and loads the
// next id of each given field. Other fields are loaded on first use.
func NewTranslator(dirname string, fields ...string) (*Translator, error) {
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	lt := &Translator{
		db:     db,
		fields: make(map[string]*field),
	}
	for _, f := range fields {
		if _, err := lt.field(f); err != nil {
			db.Close()
			return nil, err
		}
	}
	return lt, nil
}

// Close closes the underlying database.
func (lt *Translator) Close() error {
	return errors.Wrap(lt.db.Close(), "closing leveldb")
}

func prefix(tag byte, f string) []byte {
	p := make([]byte, 0, len(f)+3)
	p = append(p, tag, sep)
	p = append(p, f...)
	return append(p, sep)
}

func idKey(f string, id uint64) []byte {
	p := prefix(idTag, f)
	return append(p, uint64Bytes(id)...)
}

func valKey(f string, key string) []byte {
	return append(prefix(keyTag, f), key...)
}

func uint64Bytes(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

// field returns the allocation state of f, scanning its stored ids the
// first time it is seen. Ids are big endian so the last one is the highest.
func (lt *Translator) field(f string) (*field, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if fs, ok := lt.fields[f]; ok {
		return fs, nil
	}
	fs := &field{}
	p := prefix(idTag, f)
	iter := lt.db.NewIterator(util.BytesPrefix(p), nil)
	if iter.Last() {
		fs.next = binary.BigEndian.Uint64(iter.Key()[len(p):]) + 1
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, errors.Wrapf(err, "finding highest id of field '%s'", f)
	}
	lt.fields[f] = fs
	return fs, nil
}

// Get returns the key mapped to the given id in the given field.
func (lt *Translator) Get(f string, id uint64) (string, error) {
	data, err := lt.db.Get(idKey(f, id), nil)
	if err != nil {
		return "", errors.Wrapf(err, "field '%s': fetching id %d", f, id)
	}
	return string(data), nil
}

// GetID returns the integer id associated with the given key in the given
// field. It allocates the next id of the field if the key is not found.
func (lt *Translator) GetID(f string, key string) (uint64, error) {
	vk := valKey(f, key)
	// most keys are already mapped after the first export
	if id, ok, err := lt.lookup(vk); err != nil || ok {
		return id, err
	}

	fs, err := lt.field(f)
	if err != nil {
		return 0, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if id, ok, err := lt.lookup(vk); err != nil || ok {
		return id, err
	}
	id := fs.next
	b := new(leveldb.Batch)
	b.Put(idKey(f, id), []byte(key))
	b.Put(vk, uint64Bytes(id))
	if err := lt.db.Write(b, nil); err != nil {
		return 0, errors.Wrapf(err, "field '%s': storing id for '%s'", f, key)
	}
	fs.next++
	return id, nil
}

func (lt *Translator) lookup(vk []byte) (uint64, bool, error) {
	data, err := lt.db.Get(vk, nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	} else if err != nil {
		return 0, false, errors.Wrap(err, "reading key map")
	}
	return binary.BigEndian.Uint64(data), true, nil
}
