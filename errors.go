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

package bikeshare

import (
	"fmt"
	"strings"
)

// ColumnViolation describes the first failing value of one column.
type ColumnViolation struct {
	Column string
	Reason string
	Sample interface{}
	Row    int
}

// SchemaViolation is returned when a dataset fails its contract.
type SchemaViolation struct {
	Dataset    string
	Contract   string
	Violations []ColumnViolation
}

func (e *SchemaViolation) add(col, reason string, sample interface{}) {
	e.addRow(col, reason, sample, -1)
}

func (e *SchemaViolation) addRow(col, reason string, sample interface{}, row int) {
	e.Violations = append(e.Violations, ColumnViolation{Column: col, Reason: reason, Sample: sample, Row: row})
}

// Columns returns the names of the offending columns.
func (e *SchemaViolation) Columns() []string {
	ret := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		ret[i] = v.Column
	}
	return ret
}

func (e *SchemaViolation) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		if v.Row >= 0 {
			parts[i] = fmt.Sprintf("%s: %s (row %d, value %#v)", v.Column, v.Reason, v.Row, v.Sample)
		} else {
			parts[i] = fmt.Sprintf("%s: %s", v.Column, v.Reason)
		}
	}
	return fmt.Sprintf("schema violation: dataset '%s' against contract '%s': %s", e.Dataset, e.Contract, strings.Join(parts, "; "))
}

// InvalidGeometry is returned when coordinates or polygon geometry cannot be
// interpreted.
type InvalidGeometry struct {
	Dataset string
	Column  string
	Row     int
	Value   interface{}
	Reason  string
}

func (e *InvalidGeometry) Error() string {
	return fmt.Sprintf("invalid geometry: dataset '%s' column %s row %d value %#v: %s", e.Dataset, e.Column, e.Row, e.Value, e.Reason)
}

// JoinMismatch reports rows dropped because a required join partner was
// missing. It is a report, never a fatal error.
type JoinMismatch struct {
	Dataset string
	Key     string
	Dropped int
	Samples []interface{}
}

func (e *JoinMismatch) Error() string {
	return fmt.Sprintf("join mismatch: dataset '%s' dropped %d rows without a partner on %s (e.g. %v)", e.Dataset, e.Dropped, e.Key, e.Samples)
}

// ConsistencyWarning reports a failed cross-dataset sanity check.
type ConsistencyWarning struct {
	Check   string
	Message string
}

func (e *ConsistencyWarning) Error() string {
	return fmt.Sprintf("consistency warning [%s]: %s", e.Check, e.Message)
}

// StoreWriteFailure is returned when the replacement store file could not be
// written. The previous store file is untouched.
type StoreWriteFailure struct {
	Path string
	Err  error
}

func (e *StoreWriteFailure) Error() string {
	return fmt.Sprintf("store write failure for '%s': %v", e.Path, e.Err)
}
