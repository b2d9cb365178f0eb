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

package discover

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/driver/sim"
)

func newDriver(models ...string) *sim.Driver {
	opts := sim.DefaultOptions()
	opts.Instruments = models
	return sim.New(opts)
}

func TestDiscover(t *testing.T) {
	d := newDriver("DC271", "TC840", "AP240", "SC240")
	descs, err := Discover(context.Background(), d, Options{
		SimulationOptions: "M2M",
		ResourcePrefix:    "PCI::INSTR",
		Calibrate:         true,
	})
	if err != nil {
		t.Fatalf("could not discover: %+v", err)
	}
	if d.SimulationOptions() != "M2M" {
		t.Fatalf("invalid simulation options: got=%q, want=%q", d.SimulationOptions(), "M2M")
	}
	want := []struct {
		model   string
		devType string
		bits    int
	}{
		{"DC271", "Digitizer", 8},
		{"TC840", "TDC", 0},
		{"AP240", "Digitizer", 8},
		{"SC240", "Digitizer", 8},
	}
	if len(descs) != len(want) {
		t.Fatalf("invalid number of instruments: got=%d, want=%d", len(descs), len(want))
	}
	for i, dd := range descs {
		if dd.Handle != driver.Session(i+1) {
			t.Fatalf("invalid handle order: got=%d, want=%d", dd.Handle, i+1)
		}
		if dd.ModelName != want[i].model || dd.DeviceType != want[i].devType || dd.NbrADCBits != want[i].bits {
			t.Fatalf("invalid description %d: %s", i, dd.Summary())
		}
	}
	if descs[2].Options != "AVG PKTDC SSR" {
		t.Fatalf("invalid options: got=%q", descs[2].Options)
	}

	dd, err := Select(descs, "", driver.DeviceTDC)
	if err != nil || dd.ModelName != "TC840" {
		t.Fatalf("could not select TDC: %v", err)
	}
	if _, err := Select(descs, "U1084A", 0); !errors.Is(err, driver.ErrNoInstrument) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrNoInstrument)
	}

	if !strings.HasPrefix(descs[0].String(), "---\n") || !strings.Contains(descs[0].String(), "modelName: DC271") {
		t.Fatalf("invalid YAML description:\n%s", descs[0])
	}
}

func TestDiscoverNothing(t *testing.T) {
	d := newDriver()
	if _, err := Discover(context.Background(), d, Options{ResourcePrefix: "PCI::INSTR"}); !errors.Is(err, driver.ErrNoInstrument) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrNoInstrument)
	}
}

func TestDiscoverBadPrefix(t *testing.T) {
	d := newDriver("DC271")
	_, err := Discover(context.Background(), d, Options{ResourcePrefix: "USB::"})
	if !errors.Is(err, driver.ErrInstrumentNotFound) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrInstrumentNotFound)
	}
}

func TestState(t *testing.T) {
	state, err := NewState(filepath.Join(t.TempDir(), "discover.db"))
	if err != nil {
		t.Fatalf("could not open state: %+v", err)
	}
	defer state.Close()

	d := newDriver("AP240", "DC271")
	descs, err := Discover(context.Background(), d, Options{ResourcePrefix: "PCI::INSTR"})
	if err != nil {
		t.Fatalf("could not discover: %+v", err)
	}
	for _, dd := range descs {
		if err := state.SetDeviceDescription(dd); err != nil {
			t.Fatalf("could not store description: %+v", err)
		}
	}

	got, err := state.GetDeviceDescription(descs[1].Key())
	if err != nil {
		t.Fatalf("could not get description: %+v", err)
	}
	if *got != *descs[1] {
		t.Fatalf("invalid description:\ngot=%+v\nwant=%+v", got, descs[1])
	}
	if _, err := state.GetDeviceDescription("1"); !errors.As(err, &ErrBucketNotFound{}) {
		t.Fatalf("invalid error: got=%v, want ErrBucketNotFound", err)
	}

	all, err := state.GetAllDeviceDescriptions()
	if err != nil {
		t.Fatalf("could not get descriptions: %+v", err)
	}
	if len(all) != 2 || all[0].ModelName != "AP240" || all[1].ModelName != "DC271" {
		t.Fatalf("invalid descriptions: %v", all)
	}
}
