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
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Comment("Agilent Acqiris Waveform Channel %d", 1)
	w.Field("Samples acquired", 3)
	w.Field("Time increment", 1e-12/10)
	w.Field("Channel", "1")
	w.Values(0.5, int8(-3))
	w.Values(uint32(7))
	w.Line("Last Trace%sHistogram", Separator)
	if err := w.Close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}

	want := `# Agilent Acqiris Waveform Channel 1
# Samples acquired: 3
# Time increment: 1e-13
# Channel: 1
0.5	-3
7
Last Trace	Histogram
`
	if got := buf.String(); got != want {
		t.Fatalf("invalid output:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormat(t *testing.T) {
	for _, tc := range []struct {
		v    interface{}
		want string
	}{
		{0.123456789, "0.123457"},
		{-5e-11, "-5e-11"},
		{float32(0.25), "0.25"},
		{42, "42"},
		{"text", "text"},
	} {
		if got := Format(tc.v); got != tc.want {
			t.Errorf("Format(%v): got=%q, want=%q", tc.v, got, tc.want)
		}
	}
}

func TestCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := Create(dir, "Acqiris.data")
	if err != nil {
		t.Fatalf("could not create data file: %+v", err)
	}
	w.Field("Samples acquired", 1)
	if err := w.Close(); err != nil {
		t.Fatalf("could not close data file: %+v", err)
	}
	data, err := ioutil.ReadFile(filepath.Join(dir, "Acqiris.data"))
	if err != nil {
		t.Fatalf("could not read data file: %+v", err)
	}
	if string(data) != "# Samples acquired: 1\n" {
		t.Fatalf("invalid file content %q", data)
	}
	if w.Path() != filepath.Join(dir, "Acqiris.data") {
		t.Fatalf("invalid path %q", w.Path())
	}
}
