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

package fpga

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/driver/sim"
)

func newBus(t *testing.T, model, firmware string, regs string) (*Bus, *sim.Driver, driver.Session) {
	t.Helper()
	opts := sim.DefaultOptions()
	opts.Instruments = []string{model}
	d := sim.New(opts)
	id, err := d.InitWithOptions("PCI::INSTR0", false, false, "")
	if err != nil {
		t.Fatalf("could not open instrument: %+v", err)
	}
	if err := d.ConfigLogicDevice(id, LogicDevice, firmware, 3); err != nil {
		t.Fatalf("could not load firmware: %+v", err)
	}
	if err := d.ConfigMode(id, driver.ModeStreamDPU, 0, 0); err != nil {
		t.Fatalf("could not configure mode: %+v", err)
	}
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	m, err := Regs(regs)
	if err != nil {
		t.Fatalf("could not get register map: %+v", err)
	}
	return NewBus(d, id, m), d, id
}

func TestRegs(t *testing.T) {
	m, err := Regs("FFT")
	if err != nil {
		t.Fatalf("could not get register map: %+v", err)
	}
	for _, tc := range []struct {
		name string
		addr uint16
	}{
		{"MainCtrl", 64},
		{"mainstatus", 65},
		{"NbrAcc", 66},
		{"FPGAStatus", 6},
	} {
		addr, err := m.Lookup(tc.name)
		if err != nil {
			t.Fatalf("could not lookup %s: %+v", tc.name, err)
		}
		if addr != tc.addr {
			t.Fatalf("invalid address of %s: got=%d, want=%d", tc.name, addr, tc.addr)
		}
	}
	if _, err := m.Lookup("SLC0Ctrl"); !errors.As(err, &ErrUnknownReg{}) {
		t.Fatalf("invalid error: got=%v, want ErrUnknownReg", err)
	}
	if _, err := Regs("dsp"); !errors.As(err, &ErrUnknownFirmware{}) {
		t.Fatalf("invalid error: got=%v, want ErrUnknownFirmware", err)
	}
	if got := len(Firmwares()); got != 5 {
		t.Fatalf("invalid number of firmwares: got=%d, want=5", got)
	}
}

func TestWaitBits(t *testing.T) {
	bus, _, _ := newBus(t, "AC240", "AC240FFT2GSs.bit", FirmwareFFT)
	ctx := context.Background()

	if err := bus.Write(bus.Reg(RegDECtrl), DECtrlEnable); err != nil {
		t.Fatalf("could not enable DE: %+v", err)
	}
	if err := bus.WaitBits(ctx, bus.Reg(RegFPGAStatus), FPGAStatusDEClock, FPGAStatusDEClock, 10, 0); err != nil {
		t.Fatalf("could not wait for DE clock: %+v", err)
	}

	err := bus.WaitBits(ctx, bus.Reg(RegMainStatus), MainStatusSpectrum, MainStatusSpectrum, 5, 0)
	var werr ErrWaitBits
	if !errors.As(err, &werr) {
		t.Fatalf("invalid error: got=%v, want ErrWaitBits", err)
	}
	if werr.Reg != 65 || werr.Mask != MainStatusSpectrum {
		t.Fatalf("invalid wait error: got=%+v", werr)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := bus.WaitBits(cctx, bus.Reg(RegMainStatus), MainStatusSpectrum, MainStatusSpectrum, 5, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("invalid error: got=%v, want=%v", err, context.Canceled)
	}
}

func TestModifyAndIOLog(t *testing.T) {
	bus, _, _ := newBus(t, "SC240", "sc240stream2.bit", FirmwareStreamer)
	var ioLog bytes.Buffer
	bus.WithIOLog(&ioLog)

	reg := bus.Reg(RegStreamerConfigGlob)
	if err := bus.Write(reg, 0xff00ff00); err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	v, err := bus.Modify(reg, 0x0000ff00, 0x00000009)
	if err != nil {
		t.Fatalf("could not modify: %+v", err)
	}
	if v != 0xff000009 {
		t.Fatalf("invalid value: got=0x%08x, want=0x%08x", v, uint32(0xff000009))
	}
	got, err := bus.Read(reg)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got != v {
		t.Fatalf("invalid read back: got=0x%08x, want=0x%08x", got, v)
	}
	want := "W 72 0xff00ff00\nR 72 0xff00ff00\nW 72 0xff000009\nR 72 0xff000009\n"
	if ioLog.String() != want {
		t.Fatalf("invalid I/O log:\ngot=%q\nwant=%q", ioLog.String(), want)
	}
}

func TestReadBuffer(t *testing.T) {
	bus, _, _ := newBus(t, "SC240", "sc240stream2.bit", FirmwareStreamer)
	ctx := context.Background()

	if _, err := bus.Modify(bus.Reg(RegMainCtrl), 0, MainCtrlCaptureMon); err != nil {
		t.Fatalf("could not start capture: %+v", err)
	}
	if err := bus.WaitBits(ctx, bus.Reg(RegDsMonCtrl), MonitorReady, MonitorReady, 10, 0); err != nil {
		t.Fatalf("could not wait for monitor: %+v", err)
	}
	words, err := bus.ReadBuffer(BufferMonitor, 0, 2048)
	if err != nil {
		t.Fatalf("could not read buffer: %+v", err)
	}
	samples := Int8s(words)
	if len(samples) != 8192 {
		t.Fatalf("invalid number of samples: got=%d, want=8192", len(samples))
	}
	tail, err := bus.ReadBytes(BufferMonitor, 2047, 3)
	if err != nil {
		t.Fatalf("could not read bytes: %+v", err)
	}
	for i, b := range tail {
		if int8(b) != samples[4*2047+i] {
			t.Fatalf("invalid byte %d: got=%d, want=%d", i, int8(b), samples[4*2047+i])
		}
	}
}

func TestRegState(t *testing.T) {
	state, err := NewRegState(filepath.Join(t.TempDir(), "reg.db"))
	if err != nil {
		t.Fatalf("could not open register state: %+v", err)
	}
	defer state.Close()

	if _, err := state.GetReg("AC240", 64); !errors.As(err, &ErrBucketNotFound{}) {
		t.Fatalf("invalid error: got=%v, want ErrBucketNotFound", err)
	}

	bus, _, _ := newBus(t, "AC240", "AC240FFT2GSs.bit", FirmwareFFT)
	bus.WithState(state, "AC240")
	if err := bus.Write(bus.Reg(RegNbrAcc), 16); err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	if err := bus.Write(bus.Reg(RegMainCtrl), 0); err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	if err := bus.Write(bus.Reg(RegFPGACtrl), FPGACtrlEnableDCMs); err != nil {
		t.Fatalf("could not write: %+v", err)
	}

	reg, err := state.GetReg("AC240", 66)
	if err != nil {
		t.Fatalf("could not get register: %+v", err)
	}
	if reg.Value != 16 {
		t.Fatalf("invalid value: got=%d, want=16", reg.Value)
	}
	if _, err := state.GetReg("AC240", 65); !errors.As(err, &ErrRegNotFound{}) {
		t.Fatalf("invalid error: got=%v, want ErrRegNotFound", err)
	}

	regs, err := state.GetRegAll("AC240")
	if err != nil {
		t.Fatalf("could not get registers: %+v", err)
	}
	var addrs []uint16
	for _, r := range regs {
		addrs = append(addrs, r.Addr)
	}
	if len(addrs) != 3 || addrs[0] != 3 || addrs[1] != 64 || addrs[2] != 66 {
		t.Fatalf("invalid register addresses: got=%v, want=[3 64 66]", addrs)
	}

	names, err := state.Instruments()
	if err != nil {
		t.Fatalf("could not list instruments: %+v", err)
	}
	if strings.Join(names, ",") != "AC240" {
		t.Fatalf("invalid instruments: got=%v", names)
	}
}

func TestRegHex(t *testing.T) {
	reg, err := NewRegFromHex("0x0041", "0x80000001")
	if err != nil {
		t.Fatalf("could not parse register: %+v", err)
	}
	addr, value := reg.Hex()
	if addr != "0x0041" || value != "0x80000001" {
		t.Fatalf("invalid hex: got=%s %s, want=0x0041 0x80000001", addr, value)
	}
	if _, err := NewRegFromHex("0x10000", "0"); !errors.As(err, &ErrInvalidHex{}) {
		t.Fatalf("invalid error: got=%v, want ErrInvalidHex", err)
	}
}
