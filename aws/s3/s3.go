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

// Package s3 lists and fetches the raw monthly trip files from an S3 bucket.
package s3

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
)

// SrcOption is a functional option type for RawSource.
type SrcOption func(s *RawSource)

// OptSrcRegion is a SrcOption which sets the AWS region used when no client
// is given.
func OptSrcRegion(region string) SrcOption {
	return func(s *RawSource) {
		s.region = region
	}
}

// OptSrcPrefix tells the source to list only the objects in the bucket that
// match the specified prefix.
func OptSrcPrefix(prefix string) SrcOption {
	return func(s *RawSource) {
		s.prefix = prefix
	}
}

// OptSrcSuffix tells the source to skip objects whose key doesn't end in
// suffix, e.g. ".csv".
func OptSrcSuffix(suffix string) SrcOption {
	return func(s *RawSource) {
		s.suffix = suffix
	}
}

// OptSrcClient sets the S3 client instead of creating one from a new
// session.
func OptSrcClient(c s3iface.S3API) SrcOption {
	return func(s *RawSource) {
		s.s3 = c
	}
}

// RawSource is a bikeshare.RawSource which reads the objects of a bucket in
// key order. The listing is taken once, when the source is created.
type RawSource struct {
	bucket string
	prefix string
	suffix string
	region string

	s3      s3iface.S3API
	objects []*s3.Object
	objIdx  *uint64
}

var _ bikeshare.RawSource = &RawSource{}

// NewRawSource lists the objects of bucket and returns a source over them.
func NewRawSource(bucket string, opts ...SrcOption) (*RawSource, error) {
	idx := uint64(0)
	rs := &RawSource{
		bucket: bucket,
		region: "us-east-1",
		objIdx: &idx,
	}
	for _, opt := range opts {
		opt(rs)
	}
	if rs.s3 == nil {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(rs.region)},
		)
		if err != nil {
			return nil, errors.Wrap(err, "getting new session")
		}
		rs.s3 = s3.New(sess)
	}
	err := rs.s3.ListObjectsPages(&s3.ListObjectsInput{Bucket: aws.String(rs.bucket), Prefix: aws.String(rs.prefix)},
		func(page *s3.ListObjectsOutput, last bool) bool {
			for _, obj := range page.Contents {
				if obj.Key == nil || !strings.HasSuffix(*obj.Key, rs.suffix) {
					continue
				}
				rs.objects = append(rs.objects, obj)
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrapf(err, "listing objects in %s", rs.bucket)
	}
	sort.Slice(rs.objects, func(i, j int) bool { return *rs.objects[i].Key < *rs.objects[j].Key })
	return rs, nil
}

// Files returns the listed objects with their modification times.
func (rs *RawSource) Files() []bikeshare.SourceFile {
	ret := make([]bikeshare.SourceFile, len(rs.objects))
	for i, obj := range rs.objects {
		ret[i] = bikeshare.SourceFile{Name: *obj.Key, LastModified: aws.TimeValue(obj.LastModified).UTC()}
	}
	return ret
}

type objReader struct {
	name string
	body io.ReadCloser
}

func (o *objReader) Read(buf []byte) (n int, err error) {
	return o.body.Read(buf)
}

func (o *objReader) Close() error {
	return o.body.Close()
}

func (o *objReader) Name() string {
	return o.name
}

// NextReader returns the body of the next object. It is safe for concurrent
// use.
func (rs *RawSource) NextReader() (bikeshare.NamedReadCloser, error) {
	idx := atomic.AddUint64(rs.objIdx, 1) - 1
	if int(idx) >= len(rs.objects) {
		return nil, io.EOF
	}
	key := *rs.objects[idx].Key
	body, err := rs.get(context.Background(), key)
	if err != nil {
		return nil, err
	}
	return &objReader{name: key, body: body}, nil
}

func (rs *RawSource) get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := rs.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(rs.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", key)
	}
	return result.Body, nil
}

// Download copies the object key to dir, named by the last element of the
// key, and returns the local path. The file only appears once it is
// complete.
func (rs *RawSource) Download(ctx context.Context, key, dir string) (string, error) {
	body, err := rs.get(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()
	dst := filepath.Join(dir, path.Base(key))
	tmp, err := ioutil.TempFile(dir, ".download-")
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", errors.Wrapf(err, "downloading %s", key)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", errors.Wrap(err, "moving download into place")
	}
	return dst, nil
}
