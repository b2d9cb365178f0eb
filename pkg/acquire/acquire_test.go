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

package acquire

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/driver/sim"
	"jinr.ru/greenlab/go-acqiris/pkg/layers"
)

func newSim(t *testing.T, trigger sim.TriggerMode, models ...string) (*sim.Driver, driver.Session) {
	t.Helper()
	opts := sim.DefaultOptions()
	opts.Instruments = models
	opts.Trigger = trigger
	d := sim.New(opts)
	id, err := d.InitWithOptions("PCI::INSTR0", false, false, "")
	if err != nil {
		t.Fatalf("could not open instrument: %+v", err)
	}
	return d, id
}

func TestWaitWithRetrigger(t *testing.T) {
	for _, tc := range []struct {
		name        string
		trigger     sim.TriggerMode
		retriggered bool
		forced      int
		stops       int
		err         error
	}{
		{"triggered", sim.TriggerAlways, false, 0, 0, nil},
		{"forced", sim.TriggerOnForce, true, 1, 0, nil},
		{"never", sim.TriggerNever, false, 1, 1, ErrNoTrigger},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, id := newSim(t, tc.trigger, "DC271")
			res, err := Run(context.Background(), d, id, 100*time.Millisecond)
			if !errors.Is(err, tc.err) {
				t.Fatalf("invalid error: got=%v, want=%v", err, tc.err)
			}
			if tc.err != nil {
				if !errors.Is(err, driver.ErrAcqTimeout) {
					t.Fatalf("timeout not wrapped: %v", err)
				}
			} else if res.Retriggered != tc.retriggered {
				t.Fatalf("invalid retrigger: got=%v, want=%v", res.Retriggered, tc.retriggered)
			}
			if got := d.ForceTrigCount(); got != tc.forced {
				t.Fatalf("invalid number of forced triggers: got=%d, want=%d", got, tc.forced)
			}
			if got := d.StopCount(); got != tc.stops {
				t.Fatalf("invalid number of stops: got=%d, want=%d", got, tc.stops)
			}
		})
	}
}

func TestWaitOrStop(t *testing.T) {
	d, id := newSim(t, sim.TriggerNever, "DC271")
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	err := WaitOrStop(context.Background(), d, id, 2*time.Second)
	if !errors.Is(err, ErrDataInvalid) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrDataInvalid)
	}
	if !errors.Is(err, driver.ErrAcqTimeout) {
		t.Fatalf("timeout not wrapped: %v", err)
	}
	if d.ForceTrigCount() != 0 || d.StopCount() != 1 {
		t.Fatalf("invalid counters: forced=%d stops=%d", d.ForceTrigCount(), d.StopCount())
	}
}

// warnOnRetry reports a warning from the wait following a forced trigger
type warnOnRetry struct {
	*sim.Driver
	waits int
}

func (w *warnOnRetry) WaitForEndOfAcquisition(id driver.Session, timeout time.Duration) error {
	w.waits++
	err := w.Driver.WaitForEndOfAcquisition(id, timeout)
	if w.waits == 2 && err == nil {
		return driver.WarnSetupAdapted
	}
	return err
}

func TestWaitWithRetriggerWarning(t *testing.T) {
	d, id := newSim(t, sim.TriggerOnForce, "DC271")
	w := &warnOnRetry{Driver: d}
	res, err := Run(context.Background(), w, id, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("warning reported as error: %+v", err)
	}
	if res == nil || !res.Retriggered {
		t.Fatalf("invalid result: got=%+v, want retriggered", res)
	}
	if w.waits != 2 || d.ForceTrigCount() != 1 || d.StopCount() != 0 {
		t.Fatalf("invalid counters: waits=%d forced=%d stops=%d", w.waits, d.ForceTrigCount(), d.StopCount())
	}
}

func TestPollDone(t *testing.T) {
	d, id := newSim(t, sim.TriggerAlways, "DC271")
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	polls, err := PollDone(context.Background(), d, id, 100, 0)
	if err != nil {
		t.Fatalf("could not poll: %+v", err)
	}
	if polls != sim.DefaultDonePolls {
		t.Fatalf("invalid number of polls: got=%d, want=%d", polls, sim.DefaultDonePolls)
	}

	d.SetTrigger(sim.TriggerNever)
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	polls, err = PollDone(context.Background(), d, id, 50, 0)
	if !errors.Is(err, ErrPollBudget) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrPollBudget)
	}
	if polls != 50 || d.StopCount() != 1 {
		t.Fatalf("invalid budget handling: polls=%d stops=%d", polls, d.StopCount())
	}

	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := PollDone(ctx, d, id, 50, time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Fatalf("invalid error: got=%v, want=%v", err, context.Canceled)
	}
}

func TestReadVolts(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.Instruments = []string{"DC271"}
	opts.IndexFirstPoint = 5
	d := sim.New(opts)
	id, err := d.InitWithOptions("PCI::INSTR0", false, false, "")
	if err != nil {
		t.Fatalf("could not open instrument: %+v", err)
	}
	if err := d.ConfigVertical(id, 1, 2.0, 0.5, 3, 0); err != nil {
		t.Fatalf("could not configure vertical: %+v", err)
	}
	if _, err := Run(context.Background(), d, id, time.Second); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	w, err := ReadVolts(d, id, 1, 1000)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if len(w.Volts) != 1000 {
		t.Fatalf("invalid number of samples: got=%d, want=1000", len(w.Volts))
	}
	lo, hi := -1.0-0.5, 1.0-0.5
	for i, v := range w.Volts {
		if v < lo || v > hi {
			t.Fatalf("sample %d out of range: %g", i, v)
		}
	}
	if w.Segment.Timestamp() == 0 {
		t.Fatalf("missing time stamp")
	}
}

func TestReadReal64(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.Instruments = []string{"DC271"}
	opts.IndexFirstPoint = 3
	d := sim.New(opts)
	id, err := d.InitWithOptions("PCI::INSTR0", false, false, "")
	if err != nil {
		t.Fatalf("could not open instrument: %+v", err)
	}
	if _, err := Run(context.Background(), d, id, time.Second); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	w, err := ReadReal64(d, id, 1, 1000)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if len(w.Volts) != 1000 {
		t.Fatalf("invalid number of samples: got=%d, want=1000", len(w.Volts))
	}
	for i, v := range w.Volts {
		if v < -0.5 || v > 0.5 {
			t.Fatalf("sample %d out of range: %g", i, v)
		}
	}
	if w.Segment.HorPos > 0 || w.Segment.HorPos <= -1e-8 {
		t.Fatalf("invalid horizontal position: %g", w.Segment.HorPos)
	}
}

func TestReadSegments(t *testing.T) {
	d, id := newSim(t, sim.TriggerAlways, "DC271")
	if err := d.ConfigMemory(id, 500, 8); err != nil {
		t.Fatalf("could not configure memory: %+v", err)
	}
	if _, err := Run(context.Background(), d, id, time.Second); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	for _, dt := range []driver.DataType{driver.ReadInt8, driver.ReadInt16} {
		s, err := ReadSegments(d, id, 1, dt, 500, 8)
		if err != nil {
			t.Fatalf("could not read %d: %+v", dt, err)
		}
		if len(s.Counts) != 8 || len(s.SegDesc) != 8 {
			t.Fatalf("invalid number of segments: got=%d/%d, want=8", len(s.Counts), len(s.SegDesc))
		}
		for k := 1; k < len(s.SegDesc); k++ {
			if s.SegDesc[k].Timestamp() <= s.SegDesc[k-1].Timestamp() {
				t.Fatalf("time stamps not increasing at segment %d", k)
			}
		}
		if got := len(s.Volts(7)); got != 500 {
			t.Fatalf("invalid number of samples: got=%d, want=500", got)
		}
	}
	if _, err := ReadSegments(d, id, 1, driver.ReadReal64, 500, 8); !errors.Is(err, driver.ErrInvalidParameter) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrInvalidParameter)
	}
}

func TestReadAverage(t *testing.T) {
	d, id := newSim(t, sim.TriggerAlways, "AP240")
	for _, err := range []error{
		d.ConfigMode(id, driver.ModeAverager, 0, 0),
		d.ConfigAvgConfig(id, 0, "NbrSamples", 1000),
		d.ConfigAvgConfig(id, 0, "NbrWaveforms", 100),
	} {
		if err != nil {
			t.Fatalf("could not configure: %+v", err)
		}
	}
	if _, err := Run(context.Background(), d, id, time.Second); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	a, err := ReadAverage(d, id, 1, 1000)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if a.Desc.NbrAvgWforms != 100 {
		t.Fatalf("invalid number of waveforms: got=%d, want=100", a.Desc.NbrAvgWforms)
	}
	for i, v := range a.Volts() {
		if math.Abs(v) > 0.6 {
			t.Fatalf("mean sample %d out of range: %g", i, v)
		}
	}
}

func TestReadHistogram(t *testing.T) {
	d, id := newSim(t, sim.TriggerAlways, "AP240")
	for _, err := range []error{
		d.ConfigMode(id, driver.ModeTDC, 0, 0),
		d.ConfigAvgConfig(id, 0, "NbrSamples", 512),
		d.ConfigAvgConfig(id, 0, "TdcHistogramHorzRes", 2),
		d.ConfigAvgConfig(id, 0, "NbrRoundRobins", 10),
	} {
		if err != nil {
			t.Fatalf("could not configure: %+v", err)
		}
	}
	if _, err := Run(context.Background(), d, id, time.Second); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	h, err := ReadHistogram(d, id, 1, 512, 2)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if len(h.Counts) != 512<<2 {
		t.Fatalf("invalid number of bins: got=%d, want=%d", len(h.Counts), 512<<2)
	}
	var total uint32
	for _, c := range h.Counts {
		total += c
	}
	if total%10 != 0 {
		t.Fatalf("invalid histogram total: %d", total)
	}
}

func TestReadRecords(t *testing.T) {
	d, id := newSim(t, sim.TriggerAlways, "AP240")
	for _, err := range []error{
		d.ConfigMode(id, driver.ModeSSR, 0, 0),
		d.ConfigAvgConfig(id, 0, "NbrSamples", 1024),
		d.ConfigAvgConfig(id, 0, "NbrSegments", 2),
		d.ConfigAvgConfig(id, 1, "GateType", 1),
		d.ConfigSetupArray(id, 1, 0, []driver.GateParameters{{GatePos: 16, GateLength: 64}, {GatePos: 512, GateLength: 128}}),
	} {
		if err != nil {
			t.Fatalf("could not configure: %+v", err)
		}
	}
	if _, err := Run(context.Background(), d, id, time.Second); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	r, err := ReadRecords(d, id, 1, driver.ReadModeSSRW, 2, 4096)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	var tags []uint8
	var payload []int
	for _, rec := range r.Records {
		tags = append(tags, rec.Tag)
		if rec.Tag == layers.TagGateHeader {
			payload = append(payload, rec.PayloadLen())
		}
	}
	want := []uint8{
		layers.TagSegmentHeader, layers.TagGateHeader, layers.TagGateHeader,
		layers.TagSegmentHeader, layers.TagGateHeader, layers.TagGateHeader,
	}
	if len(tags) != len(want) {
		t.Fatalf("invalid records: got=%v, want=%v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("invalid record %d: got=%#x, want=%#x", i, tags[i], want[i])
		}
	}
	if payload[0] != 64 || payload[1] != 128 {
		t.Fatalf("invalid gate lengths: %v", payload)
	}

	if _, err := ReadRecords(d, id, 1, driver.ReadModeSSRW, 2, 64); !errors.Is(err, driver.ErrBufferOverflow) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrBufferOverflow)
	}
}
