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

package srv

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"jinr.ru/greenlab/go-acqiris/pkg/config"
	"jinr.ru/greenlab/go-acqiris/pkg/discover"
	"jinr.ru/greenlab/go-acqiris/pkg/fpga"
)

func newTestServer(t *testing.T) (*httptest.Server, *fpga.RegState, *discover.State) {
	t.Helper()
	dir := t.TempDir()
	regs, err := fpga.NewRegState(filepath.Join(dir, "reg.db"))
	if err != nil {
		t.Fatalf("could not open register state: %+v", err)
	}
	t.Cleanup(func() { regs.Close() })
	descs, err := discover.NewState(filepath.Join(dir, "discover.db"))
	if err != nil {
		t.Fatalf("could not open discover state: %+v", err)
	}
	t.Cleanup(func() { descs.Close() })

	s, err := NewApiServer(context.Background(), config.NewDefaultConfig(), regs, descs)
	if err != nil {
		t.Fatalf("could not create API server: %+v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, regs, descs
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("could not get %s: %+v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read body: %+v", err)
	}
	return resp.StatusCode, body
}

func TestRegReadWrite(t *testing.T) {
	ts, regs, _ := newTestServer(t)

	body, _ := json.Marshal(&RegHex{Addr: "0x0041", Value: "0x00000140"})
	resp, err := http.Post(ts.URL+"/api/reg/w/SC240", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("could not post: %+v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("invalid status: got=%d, want=%d", resp.StatusCode, http.StatusOK)
	}
	reg, err := regs.GetReg("SC240", 0x41)
	if err != nil {
		t.Fatalf("could not get register: %+v", err)
	}
	if reg.Value != 0x140 {
		t.Fatalf("invalid value: got=0x%x, want=0x140", reg.Value)
	}

	code, data := get(t, ts.URL+"/api/reg/r/SC240/0x41")
	if code != http.StatusOK {
		t.Fatalf("invalid status: got=%d, want=%d", code, http.StatusOK)
	}
	got := &RegHex{}
	if err := json.Unmarshal(data, got); err != nil {
		t.Fatalf("could not decode %s: %+v", data, err)
	}
	if got.Addr != "0x0041" || got.Value != "0x00000140" {
		t.Fatalf("invalid register: got=%+v", got)
	}

	if err := regs.SetReg("SC240", &fpga.Reg{Addr: 0x40, Value: 1}); err != nil {
		t.Fatalf("could not set register: %+v", err)
	}
	code, data = get(t, ts.URL+"/api/reg/r/SC240")
	if code != http.StatusOK {
		t.Fatalf("invalid status: got=%d, want=%d", code, http.StatusOK)
	}
	var all []*RegHex
	if err := json.Unmarshal(data, &all); err != nil {
		t.Fatalf("could not decode %s: %+v", data, err)
	}
	if len(all) != 2 || all[0].Addr != "0x0040" || all[1].Addr != "0x0041" {
		t.Fatalf("invalid registers: %s", data)
	}

	code, data = get(t, ts.URL+"/api/reg/r/SC240/all")
	if code != http.StatusOK || !strings.Contains(string(data), "0x00000001") {
		t.Fatalf("invalid registers: got=%d %s", code, data)
	}

	code, data = get(t, ts.URL+"/api/reg")
	if code != http.StatusOK || strings.TrimSpace(string(data)) != `["SC240"]` {
		t.Fatalf("invalid instruments: got=%d %s", code, data)
	}
}

func TestRegErrors(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, tc := range []struct {
		url  string
		want int
	}{
		{"/api/reg/r/AC240/0x41", http.StatusNotFound},
		{"/api/reg/r/AC240", http.StatusNotFound},
		{"/api/reg/r/AC240/41", http.StatusNotFound},
	} {
		if code, _ := get(t, ts.URL+tc.url); code != tc.want {
			t.Errorf("%s: got=%d, want=%d", tc.url, code, tc.want)
		}
	}

	for _, body := range []string{`{"Addr": "0x41", "Value": "zz"}`, `{"Addr": "0x10000", "Value": "0"}`, `not json`} {
		resp, err := http.Post(ts.URL+"/api/reg/w/AC240", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("could not post: %+v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: got=%d, want=%d", body, resp.StatusCode, http.StatusBadRequest)
		}
	}
}

func TestDevices(t *testing.T) {
	ts, _, descs := newTestServer(t)

	code, data := get(t, ts.URL+"/api/devices")
	if code != http.StatusOK || strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("invalid empty list: got=%d %s", code, data)
	}

	dd := &discover.InstrumentDescription{
		Resource:     "PCI::INSTR0",
		DeviceType:   "digitizer",
		ModelName:    "DC271",
		SerialNumber: 10001,
		NbrChannels:  4,
		NbrADCBits:   8,
	}
	if err := descs.SetDeviceDescription(dd); err != nil {
		t.Fatalf("could not set description: %+v", err)
	}
	code, data = get(t, ts.URL+"/api/devices")
	if code != http.StatusOK {
		t.Fatalf("invalid status: got=%d, want=%d", code, http.StatusOK)
	}
	var got []*discover.InstrumentDescription
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("could not decode %s: %+v", data, err)
	}
	if len(got) != 1 || got[0].ModelName != "DC271" || got[0].SerialNumber != 10001 {
		t.Fatalf("invalid devices: %s", data)
	}
}

func TestDocs(t *testing.T) {
	ts, _, _ := newTestServer(t)

	code, data := get(t, ts.URL+SpecPath)
	if code != http.StatusOK {
		t.Fatalf("invalid status: got=%d, want=%d", code, http.StatusOK)
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("could not decode API description: %+v", err)
	}
	if doc["swagger"] != "2.0" || doc["basePath"] != ApiPrefix {
		t.Fatalf("invalid API description: swagger=%v basePath=%v", doc["swagger"], doc["basePath"])
	}

	code, data = get(t, ts.URL+"/"+DocsPath)
	if code != http.StatusOK {
		t.Fatalf("invalid status: got=%d, want=%d", code, http.StatusOK)
	}
	if !strings.Contains(string(data), SpecPath) {
		t.Fatalf("docs page does not reference %s", SpecPath)
	}
}
