// Package boltdb provides a bikeshare.Translator implementation using boltdb.
// Writes go through bolt's batching, so the leveldb translator is faster when
// many new keys arrive at once.
package boltdb

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

var (
	idBucket  = []byte("idKey")
	valBucket = []byte("valKey")
)

var _ bikeshare.Translator = &Translator{}

// Translator is a bikeshare.Translator which stores the two way key/id
// mapping in boltdb.
type Translator struct {
	Db     *bolt.DB
	fmu    sync.RWMutex
	fields map[string]struct{}
}

// Close syncs and closes the underlying boltdb.
func (bt *Translator) Close() error {
	err := bt.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return bt.Db.Close()
}

// NewTranslator gets a new Translator with buckets for the given fields.
func NewTranslator(filename string, fields ...string) (bt *Translator, err error) {
	bt = &Translator{
		fields: make(map[string]struct{}),
	}
	bt.Db, err = bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second, NoGrowSync: true})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	bt.Db.MaxBatchDelay = 400 * time.Microsecond
	err = bt.Db.Update(func(tx *bolt.Tx) error {
		ib, err := tx.CreateBucketIfNotExists(idBucket)
		if err != nil {
			return errors.Wrap(err, "creating idKey bucket")
		}
		vb, err := tx.CreateBucketIfNotExists(valBucket)
		if err != nil {
			return errors.Wrap(err, "creating valKey bucket")
		}
		for _, field := range fields {
			if err := bt.addField(ib, vb, field); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bt.Db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return bt, nil
}

func (bt *Translator) addField(ib, vb *bolt.Bucket, field string) error {
	if _, err := ib.CreateBucketIfNotExists([]byte(field)); err != nil {
		return errors.Wrap(err, "adding "+field+" to id bucket")
	}
	if _, err := vb.CreateBucketIfNotExists([]byte(field)); err != nil {
		return errors.Wrap(err, "adding "+field+" to value bucket")
	}
	bt.fmu.Lock()
	bt.fields[field] = struct{}{}
	bt.fmu.Unlock()
	return nil
}

func (bt *Translator) ensureField(field string) error {
	bt.fmu.RLock()
	_, ok := bt.fields[field]
	bt.fmu.RUnlock()
	if ok {
		return nil
	}
	return bt.Db.Update(func(tx *bolt.Tx) error {
		return bt.addField(tx.Bucket(idBucket), tx.Bucket(valBucket), field)
	})
}

// Get returns the key previously mapped to id by GetID.
func (bt *Translator) Get(field string, id uint64) (key string, err error) {
	bt.fmu.RLock()
	_, ok := bt.fields[field]
	bt.fmu.RUnlock()
	if !ok {
		return "", errors.Errorf("can't Get() with unknown field '%v'", field)
	}
	var found bool
	err = bt.Db.View(func(tx *bolt.Tx) error {
		fib := tx.Bucket(idBucket).Bucket([]byte(field))
		idBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(idBytes, id)
		val := fib.Get(idBytes)
		found = val != nil
		key = string(val)
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "reading id bucket")
	}
	if !found {
		return "", errors.Errorf("field '%s': unknown id %d", field, id)
	}
	return key, nil
}

// GetID maps key to a monotonic id, allocating one if key is new. Bolt
// sequences start at 1, so ids are shifted down to start at 0.
func (bt *Translator) GetID(field string, key string) (id uint64, err error) {
	if err := bt.ensureField(field); err != nil {
		return 0, errors.Wrap(err, "adding field in GetID")
	}
	bkey := []byte(key)

	// look up to see if this key is already mapped to an id
	var ret []byte
	err = bt.Db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(valBucket).Bucket([]byte(field)).Get(bkey); v != nil {
			ret = append(ret, v...)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "reading value bucket")
	}
	if len(ret) == 8 {
		return binary.BigEndian.Uint64(ret), nil
	}

	// get new id, and map it in both directions
	err = bt.Db.Batch(func(tx *bolt.Tx) error {
		fib := tx.Bucket(idBucket).Bucket([]byte(field))
		fvb := tx.Bucket(valBucket).Bucket([]byte(field))
		// another batch may have mapped the key since the read above
		if v := fvb.Get(bkey); len(v) == 8 {
			id = binary.BigEndian.Uint64(v)
			return nil
		}
		seq, err := fib.NextSequence()
		if err != nil {
			return err
		}
		id = seq - 1
		idBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(idBytes, id)
		if err := fib.Put(idBytes, bkey); err != nil {
			return errors.Wrap(err, "inserting into idKey bucket")
		}
		if err := fvb.Put(bkey, idBytes); err != nil {
			return errors.Wrap(err, "inserting into valKey bucket")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
