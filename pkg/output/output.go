/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

const (
	CommentPrefix = "# "
	Separator     = "\t"
)

// Writer writes the plain text data files: '#' header lines followed by
// one value, pair or bin per line
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	path   string
	err    error
}

// NewWriter wraps w, Close does not close it
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Create creates name in dir, creating dir if needed
func Create(dir, name string) (*Writer, error) {
	path := name
	if dir != "" && !filepath.IsAbs(name) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		path = filepath.Join(dir, name)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	log.Debug("Writing data file %s", path)
	return &Writer{w: bufio.NewWriter(f), closer: f, path: path}, nil
}

func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) printf(format string, v ...interface{}) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, v...)
}

// Comment writes a '#' header line
func (w *Writer) Comment(format string, v ...interface{}) {
	w.printf(CommentPrefix+format+"\n", v...)
}

// Field writes a "# key: value" header line
func (w *Writer) Field(key string, value interface{}) {
	w.printf("%s%s: %s\n", CommentPrefix, key, Format(value))
}

// Line writes a free form line
func (w *Writer) Line(format string, v ...interface{}) {
	w.printf(format+"\n", v...)
}

// Values writes values separated by tabs
func (w *Writer) Values(values ...interface{}) {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = Format(v)
	}
	w.printf("%s\n", strings.Join(fields, Separator))
}

// Err returns the first write error
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil && w.err == nil {
		w.err = err
	}
	if w.closer != nil {
		if err := w.closer.Close(); err != nil && w.err == nil {
			w.err = err
		}
	}
	return w.err
}

// Format renders floats with six significant digits and everything else with %v
func Format(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', 6, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', 6, 32)
	case string:
		return x
	}
	return fmt.Sprintf("%v", v)
}
