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

package s3_test

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	bs3 "github.com/pilosa/bikeshare/aws/s3"
)

// fakeS3 serves objects from memory, listing them two per page.
type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
	order   []string
	mod     time.Time
}

func (f *fakeS3) ListObjectsPages(in *s3.ListObjectsInput, fn func(*s3.ListObjectsOutput, bool) bool) error {
	var page []*s3.Object
	for i, k := range f.order {
		page = append(page, &s3.Object{Key: aws.String(k), LastModified: aws.Time(f.mod.Add(time.Duration(i) * time.Hour))})
		last := i == len(f.order)-1
		if len(page) == 2 || last {
			if !fn(&s3.ListObjectsOutput{Contents: page}, last) {
				return nil
			}
			page = nil
		}
	}
	return nil
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: ioutil.NopCloser(bytes.NewBufferString(body))}, nil
}

func newFake() *fakeS3 {
	f := &fakeS3{
		objects: map[string]string{
			"trips/2021-02.csv": "Trip Id\n2\n",
			"trips/2021-01.csv": "Trip Id\n1\n",
			"trips/readme.txt":  "hello",
		},
		mod: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	f.order = []string{"trips/2021-02.csv", "trips/readme.txt", "trips/2021-01.csv"}
	return f
}

func TestRawSource(t *testing.T) {
	rs, err := bs3.NewRawSource("bikeshare", bs3.OptSrcClient(newFake()), bs3.OptSrcPrefix("trips/"), bs3.OptSrcSuffix(".csv"))
	if err != nil {
		t.Fatalf("getting raw source: %v", err)
	}
	files := rs.Files()
	if len(files) != 2 || files[0].Name != "trips/2021-01.csv" || files[1].Name != "trips/2021-02.csv" {
		t.Fatalf("unexpected listing %v", files)
	}
	if !files[0].LastModified.Equal(time.Date(2021, 3, 1, 2, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected modification time %v", files[0].LastModified)
	}

	var names []string
	for {
		r, err := rs.NextReader()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("getting reader: %v", err)
		}
		body, err := ioutil.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		r.Close()
		names = append(names, r.Name()+":"+string(body))
	}
	if len(names) != 2 || names[0] != "trips/2021-01.csv:Trip Id\n1\n" {
		t.Fatalf("unexpected objects %q", names)
	}
}

func TestDownload(t *testing.T) {
	dir, err := ioutil.TempDir("", "raw")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	rs, err := bs3.NewRawSource("bikeshare", bs3.OptSrcClient(newFake()))
	if err != nil {
		t.Fatal(err)
	}
	p, err := rs.Download(context.Background(), "trips/2021-02.csv", dir)
	if err != nil {
		t.Fatalf("downloading: %v", err)
	}
	if p != filepath.Join(dir, "2021-02.csv") {
		t.Fatalf("unexpected path %s", p)
	}
	data, err := ioutil.ReadFile(p)
	if err != nil || string(data) != "Trip Id\n2\n" {
		t.Fatalf("unexpected contents %q, %v", data, err)
	}
	if _, err := rs.Download(context.Background(), "trips/missing.csv", dir); err == nil {
		t.Fatalf("expected an error for a missing object")
	}
	entries, err := ioutil.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected only the downloaded file, got %d entries, %v", len(entries), err)
	}
}
