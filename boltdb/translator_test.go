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

package boltdb

import (
	"io/ioutil"
	"os"
	"sync"
	"testing"
)

func TestBoltTranslator(t *testing.T) {
	boltFile := tempFileName(t)
	defer os.Remove(boltFile)
	bt, err := NewTranslator(boltFile, "station", "user_type")
	if err != nil {
		t.Fatalf("couldn't get bolt db: %v", err)
	}
	id1, err := bt.GetID("station", "hello")
	if err != nil {
		t.Fatalf("couldn't get id for hello in station: %v", err)
	}
	id2, err := bt.GetID("user_type", "hello")
	if err != nil {
		t.Fatalf("couldn't get id for hello in user_type: %v", err)
	}
	if id1 != 0 || id2 != 0 {
		t.Fatalf("ids should start at 0 in every field, got %d and %d", id1, id2)
	}

	if val, err := bt.Get("station", id1); err != nil || val != "hello" {
		t.Fatalf("unexpected value for hello id in station: %s, %v", val, err)
	}
	if _, err := bt.Get("nope", id1); err == nil {
		t.Fatalf("expected an error for an unknown field")
	}
	if _, err := bt.Get("station", 42); err == nil {
		t.Fatalf("expected an error for an unknown id")
	}

	if err := bt.Close(); err != nil {
		t.Fatalf("closing bolt db: %v", err)
	}

	bt, err = NewTranslator(boltFile, "station", "user_type")
	if err != nil {
		t.Fatalf("getting new translator: %v", err)
	}
	defer bt.Close()
	if val, err := bt.Get("user_type", id2); err != nil || val != "hello" {
		t.Fatalf("after reopen, unexpected value for hello id in user_type: %s, %v", val, err)
	}
	id1again, err := bt.GetID("station", "hello")
	if err != nil || id1again != id1 {
		t.Fatalf("didn't get same id for hello after reopen: %d, %d, %v", id1, id1again, err)
	}
	next, err := bt.GetID("station", "world")
	if err != nil || next != 1 {
		t.Fatalf("expected the next id to be 1, got %d, %v", next, err)
	}

	id3, err := bt.GetID("newfield", "newkey")
	if err != nil {
		t.Fatalf("couldn't get id for newkey in newfield: %v", err)
	}
	if val, err := bt.Get("newfield", id3); err != nil || val != "newkey" {
		t.Fatalf("unexpected value for newkey id in newfield: %s, %v", val, err)
	}
}

func TestBoltTranslatorConcurrent(t *testing.T) {
	boltFile := tempFileName(t)
	defer os.Remove(boltFile)
	bt, err := NewTranslator(boltFile, "station")
	if err != nil {
		t.Fatalf("couldn't get bolt db: %v", err)
	}
	defer bt.Close()
	ids := make([]uint64, 16)
	wg := sync.WaitGroup{}
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := bt.GetID("station", "same")
			if err != nil {
				t.Errorf("getting id: %v", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent GetID returned different ids: %v", ids)
		}
	}
}

func tempFileName(t *testing.T) string {
	tf, err := ioutil.TempFile("", "")
	if err != nil {
		t.Fatalf("couldn't get temp file: %v", err)
	}
	err = tf.Close()
	if err != nil {
		t.Fatalf("couldn't close temp file: %v", err)
	}
	return tf.Name()
}
