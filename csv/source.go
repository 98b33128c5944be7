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

package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
)

// Source reads whole CSV files into tables. Files are fetched concurrently
// and each file becomes one *bikeshare.Table whose columns are the
// normalized header names and whose values are the raw strings (empty fields
// are nil). Source is safe for concurrent use.
//
// The Source takes care of retrying failed reads/downloads. A retry reads
// the whole file again from the beginning.
type Source struct {
	files       []*file
	maxRetries  int
	concurrency int
	enc         encoding.Encoding
	log         bikeshare.Logger

	once    sync.Once
	results chan result
}

// NewSource creates a Source for CSV data. The source of the raw data can
// be set by using Options defined in this package. e.g.
//
// src := NewSource(WithURLs([]string{"2021-01.csv", "http://example.com/2021-02.csv"}))
func NewSource(options ...Option) *Source {
	src := &Source{
		results:     make(chan result),
		maxRetries:  3,
		concurrency: runtime.NumCPU(),
		log:         bikeshare.NopLogger{},
	}

	for _, opt := range options {
		opt(src)
	}
	return src
}

// Option is a functional option to pass to NewSource.
type Option func(*Source)

// WithURLs returns an Option which adds the slice of URLs to the set of data
// sources a Source will read from. The URLs may be HTTP or local files.
func WithURLs(urls []string) Option {
	return func(s *Source) {
		for _, url := range urls {
			s.files = append(s.files, &file{OpenStringer: urlOpener(url), index: len(s.files)})
		}
	}
}

// WithOpenStringers returns an Option which adds the slice of OpenStringers to
// the set of data sources a Source will read from.
func WithOpenStringers(os []OpenStringer) Option {
	return func(s *Source) {
		for _, os := range os {
			s.files = append(s.files, &file{OpenStringer: os, index: len(s.files)})
		}
	}
}

// WithRawSource returns an Option which drains rs into memory and adds each
// of its files to the set of data sources. Files which can't be read are
// returned as errors by Next.
func WithRawSource(rs bikeshare.RawSource) Option {
	return func(s *Source) {
		for {
			rc, err := rs.NextReader()
			if err == io.EOF {
				return
			}
			if err != nil {
				s.files = append(s.files, &file{OpenStringer: failedOpener{err}, index: len(s.files)})
				return
			}
			data, err := ioutil.ReadAll(rc)
			rc.Close()
			if err != nil {
				s.files = append(s.files, &file{OpenStringer: failedOpener{errors.Wrapf(err, "reading %s", rc.Name())}, index: len(s.files)})
				continue
			}
			s.files = append(s.files, &file{OpenStringer: bytesOpener{name: rc.Name(), data: data}, index: len(s.files)})
		}
	}
}

// WithMaxRetries returns an Option which sets the max number of retries per file on
// a Source.
func WithMaxRetries(maxRetries int) Option {
	return func(s *Source) {
		if maxRetries > 0 {
			s.maxRetries = maxRetries
		}
	}
}

// WithConcurrency returns an Option which sets the number of goroutines fetching
// files simultaneously. The default is runtime.NumCPU().
func WithConcurrency(c int) Option {
	return func(s *Source) {
		if c > 0 {
			s.concurrency = c
		}
	}
}

// WithEncoding returns an Option which decodes every file with enc before
// parsing, e.g. charmap.Windows1252 for the raw trip files.
func WithEncoding(enc encoding.Encoding) Option {
	return func(s *Source) {
		s.enc = enc
	}
}

// WithLogger returns an Option which sets the logger used to report retries.
func WithLogger(l bikeshare.Logger) Option {
	return func(s *Source) {
		s.log = l
	}
}

// file tracks the use of an OpenStringer.
type file struct {
	OpenStringer
	index int
}

// Opener is an interface to a resource which can be repeatedly Opened (and the
// returned ReadCloser can be subsequently read). Each call to Open should
// return a ReadCloser which reads from the beginning of the resource. In the
// case of an error while reading, Open will be called again to retry reading
// the entire resource.
type Opener interface {
	Open() (io.ReadCloser, error)
}

// OpenStringer is an Opener which also has a String method which should return
// the name of the resource being opened (e.g. a file or URL).
type OpenStringer interface {
	fmt.Stringer
	Opener
}

// urlOpener turns a URL or file (string) into an OpenStringer.
type urlOpener string

func (u urlOpener) Open() (io.ReadCloser, error) {
	url := string(u)
	if strings.HasPrefix(url, "http") {
		resp, err := http.Get(url)
		if err != nil {
			return nil, errors.Wrap(err, "getting via http")
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, errors.Errorf("getting via http: %s", resp.Status)
		}
		return resp.Body, nil
	}
	f, err := os.Open(url)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (u urlOpener) String() string {
	return string(u)
}

type bytesOpener struct {
	name string
	data []byte
}

func (b bytesOpener) Open() (io.ReadCloser, error) {
	return ioutil.NopCloser(bytes.NewReader(b.data)), nil
}

func (b bytesOpener) String() string { return b.name }

type failedOpener struct{ err error }

func (f failedOpener) Open() (io.ReadCloser, error) { return nil, f.err }

func (f failedOpener) String() string { return "raw source" }

// File is one parsed CSV file.
type File struct {
	// Name is the URL, path or raw source name the file was read from.
	Name string
	// Index is the position of the file in the order it was added.
	Index int
	Table *bikeshare.Table
}

type result struct {
	file *File
	err  error
}

// Next returns the next file to finish parsing, in no particular order. It
// returns io.EOF when every file has been returned.
func (c *Source) Next() (*File, error) {
	c.once.Do(func() { go c.getFiles() })
	res, ok := <-c.results
	if !ok {
		return nil, io.EOF
	}
	return res.file, res.err
}

// ReadAll reads every file and returns them in the order they were added.
// It stops at the first error.
func (c *Source) ReadAll(ctx context.Context) ([]*File, error) {
	ret := make([]*File, len(c.files))
	var err error
	for {
		if cerr := ctx.Err(); cerr != nil && err == nil {
			err = cerr
		}
		f, nerr := c.Next()
		if nerr == io.EOF {
			break
		}
		// keep draining so the workers can exit
		if nerr != nil {
			if err == nil {
				err = nerr
			}
			continue
		}
		ret[f.Index] = f
	}
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *Source) getFiles() {
	fileChan := make(chan *file, c.concurrency)
	wg := sync.WaitGroup{}
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func() {
			for file := range fileChan {
				c.results <- c.getTable(file)
			}
			wg.Done()
		}()
	}
	for _, file := range c.files {
		fileChan <- file
	}
	close(fileChan)
	wg.Wait()
	close(c.results)
}

type permanent struct{ error }

func (c *Source) getTable(file *file) result {
	var err error
	for try := 0; try < c.maxRetries; try++ {
		var t *bikeshare.Table
		t, err = c.getTableTry(file)
		if err == nil {
			return result{file: &File{Name: file.String(), Index: file.index, Table: t}}
		}
		if p, ok := err.(permanent); ok {
			return result{err: errors.Wrapf(p.error, "reading '%s'", file)}
		}
		c.log.Printf("reading '%s' failed on try %d: %v", file, try+1, err)
	}
	return result{err: errors.Wrapf(err, "couldn't fetch '%s' - tried %d times, latest", file, c.maxRetries)}
}

func (c *Source) getTableTry(file *file) (*bikeshare.Table, error) {
	content, err := file.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening")
	}
	defer content.Close()
	var r io.Reader = content
	if c.enc != nil {
		r = c.enc.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, permanent{errors.New("no header")}
	} else if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	header = NormalizeHeader(header)
	if err := validateHeader(header); err != nil {
		// error is permanent so we don't retry
		return nil, permanent{errors.Wrap(err, "validating header")}
	}
	t := bikeshare.NewTable(file.String(), header...)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return t, nil
		} else if err != nil {
			return nil, errors.Wrapf(err, "reading line %d", t.Len()+2)
		}
		if isBlank(row) {
			continue
		}
		vals, err := parseRecord(header, row)
		if err != nil {
			return nil, permanent{errors.Wrapf(err, "parsing line %d", t.Len()+2)}
		}
		if err := t.Append(vals...); err != nil {
			return nil, permanent{err}
		}
	}
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRecord(header []string, row []string) ([]interface{}, error) {
	if len(header) > len(row) {
		return nil, errors.Errorf("header/row len mismatch: %dvs%d, %v and %v", len(header), len(row), header, row)
	}
	for i := len(header); i < len(row); i++ {
		if strings.TrimSpace(row[i]) != "" {
			return nil, errors.Errorf("data in non headered field %d: %v", i, row)
		}
	}
	ret := make([]interface{}, len(header))
	for i := range header {
		if row[i] == "" {
			continue
		}
		ret[i] = row[i]
	}
	return ret, nil
}

func validateHeader(header []string) error {
	fields := make(map[string]int)
	for i, h := range header {
		if h == "" {
			return errors.Errorf("header contains empty string at %d: %v", i, header)
		}
		if pos, exists := fields[h]; exists {
			return errors.Errorf("%s appeared at both %d and %d in header", h, pos, i)
		}
		fields[h] = i
	}
	return nil
}
