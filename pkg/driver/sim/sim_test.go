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

package sim

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/layers"
)

func newDriver(t *testing.T, models ...string) *Driver {
	t.Helper()
	opts := DefaultOptions()
	opts.Instruments = models
	return New(opts)
}

func open(t *testing.T, d *Driver, index int) driver.Session {
	t.Helper()
	id, err := d.InitWithOptions(resourceInstr+strconv.Itoa(index), false, false, "")
	if err != nil {
		t.Fatalf("could not open instrument %d: %+v", index, err)
	}
	return id
}

func TestInitWithOptions(t *testing.T) {
	d := newDriver(t, "DC271", "bogus", "TC840")

	n, err := d.GetNbrInstruments()
	if err != nil {
		t.Fatalf("could not count instruments: %+v", err)
	}
	if n != 2 {
		t.Fatalf("invalid number of instruments: got=%d, want=2", n)
	}

	for _, tc := range []struct {
		resource string
		options  string
		model    string
		err      error
	}{
		{"PCI::INSTR0", "", "DC271", nil},
		{"PCI::INSTR1", "", "TC840", nil},
		{"PCI::INSTR2", "", "", driver.ErrInstrumentNotFound},
		{"PCI::DC440", "simulate=TRUE", "DC440", nil},
		{"PCI::DC440", "", "", driver.ErrInstrumentNotFound},
		{"PCI::XYZ", "simulate=true", "", driver.ErrInstrumentNotFound},
	} {
		t.Run(tc.resource, func(t *testing.T) {
			id, err := d.InitWithOptions(tc.resource, false, false, tc.options)
			if !errors.Is(err, tc.err) {
				t.Fatalf("invalid error: got=%v, want=%v", err, tc.err)
			}
			if err != nil {
				return
			}
			data, err := d.GetInstrumentData(id)
			if err != nil {
				t.Fatalf("could not get instrument data: %+v", err)
			}
			if data.Name != tc.model {
				t.Fatalf("invalid model: got=%q, want=%q", data.Name, tc.model)
			}
		})
	}
}

func TestClosedSession(t *testing.T) {
	d := newDriver(t, "DC271")
	id := open(t, d, 0)
	if err := d.Close(id); err != nil {
		t.Fatalf("could not close: %+v", err)
	}
	if _, err := d.GetDevType(id); !errors.Is(err, driver.ErrInvalidHandle) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrInvalidHandle)
	}
}

func TestInstrumentInfo(t *testing.T) {
	d := newDriver(t, "DC282", "SC240")
	dc := open(t, d, 0)
	sc := open(t, d, 1)

	bits, err := d.GetInstrumentInfo(dc, "NbrADCBits")
	if err != nil || bits != 10 {
		t.Fatalf("invalid ADC bits: got=%d (%v), want=10", bits, err)
	}
	if _, err := d.GetInstrumentInfo(dc, "LogDevDataLinks"); !errors.Is(err, driver.ErrNotSupported) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrNotSupported)
	}
	links, err := d.GetInstrumentInfo(sc, "LogDevDataLinks")
	if err != nil || links != 2 {
		t.Fatalf("invalid data links: got=%d (%v), want=2", links, err)
	}
	if _, err := d.GetInstrumentInfo(dc, "Nonsense"); !errors.Is(err, driver.ErrUnknownAttribute) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrUnknownAttribute)
	}
}

func TestSampleIntervalAdapted(t *testing.T) {
	d := newDriver(t, "U1084A")
	id := open(t, d, 0)

	err := d.ConfigHorizontal(id, 0.1e-9, 0)
	if !driver.IsWarning(err) {
		t.Fatalf("invalid status: got=%v, want a warning", err)
	}
	si, _, err := d.GetHorizontal(id)
	if err != nil {
		t.Fatalf("could not get horizontal: %+v", err)
	}
	if si != 0.25e-9 {
		t.Fatalf("invalid sampling interval: got=%g, want=%g", si, 0.25e-9)
	}
}

func TestQuantizedAvgConfig(t *testing.T) {
	d := newDriver(t, "U1084A")
	id := open(t, d, 0)
	if err := d.ConfigVertical(id, 1, 0.1, 0, 3, 0); err != nil {
		t.Fatalf("could not configure vertical: %+v", err)
	}
	err := d.ConfigAvgConfig(id, 1, "StartDeltaPosPeakV", 0.002)
	if driver.StatusOf(err) != driver.WarnSetupAdapted {
		t.Fatalf("invalid status: got=%v, want=%v", err, driver.WarnSetupAdapted)
	}
	got, err := d.GetAvgConfig(id, 1, "StartDeltaPosPeakV")
	if err != nil {
		t.Fatalf("could not get averager value: %+v", err)
	}
	want := 5 * 0.1 / 256
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("invalid adapted value: got=%g, want=%g", got, want)
	}
	if err := d.ConfigAvgConfig(id, 1, "NbrSamples", 1024); err != nil {
		t.Fatalf("could not set samples: %+v", err)
	}
	if err := d.ConfigAvgConfig(id, 1, "NoSuchParam", 1); !errors.Is(err, driver.ErrUnknownAttribute) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrUnknownAttribute)
	}
}

func TestSingleSegmentRead(t *testing.T) {
	opts := DefaultOptions()
	opts.Instruments = []string{"DC271"}
	opts.IndexFirstPoint = 3
	d := New(opts)
	id := open(t, d, 0)

	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	if err := d.WaitForEndOfAcquisition(id, 0); err != nil {
		t.Fatalf("could not wait: %+v", err)
	}
	const n = 1000
	par := &driver.ReadParameters{
		DataType:        driver.ReadInt8,
		ReadMode:        driver.ReadModeStdW,
		NbrSegments:     1,
		NbrSamplesInSeg: n,
		DataArraySize:   n + 32,
	}
	data := make([]int8, n+32)
	var desc driver.DataDescriptor
	seg := make([]driver.SegmentDescriptor, 1)
	if err := d.ReadData(id, 1, par, data, &desc, seg); err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if desc.ReturnedSamplesPerSeg != n || desc.IndexFirstPoint != 3 {
		t.Fatalf("invalid descriptor: %+v", desc)
	}
	if desc.VGain != 1.0/256 {
		t.Fatalf("invalid gain: got=%g, want=%g", desc.VGain, 1.0/256)
	}
	if seg[0].Timestamp() == 0 {
		t.Fatalf("missing time stamp")
	}
	if seg[0].HorPos > 0 || seg[0].HorPos < -1e-8 {
		t.Fatalf("invalid horizontal position: %g", seg[0].HorPos)
	}

	par.DataArraySize = 10
	if err := d.ReadData(id, 1, par, data, &desc, seg); !errors.Is(err, driver.ErrBufferOverflow) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrBufferOverflow)
	}
}

func TestForcedTrigger(t *testing.T) {
	opts := DefaultOptions()
	opts.Instruments = []string{"DC271"}
	opts.Trigger = TriggerOnForce
	d := New(opts)
	id := open(t, d, 0)

	hooked := 0
	d.OnForceTrig = func(driver.Session) { hooked++ }

	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	if err := d.WaitForEndOfAcquisition(id, 0); !errors.Is(err, driver.ErrAcqTimeout) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrAcqTimeout)
	}
	if err := d.ForceTrig(id); err != nil {
		t.Fatalf("could not force trigger: %+v", err)
	}
	if err := d.WaitForEndOfAcquisition(id, 0); err != nil {
		t.Fatalf("could not wait after forced trigger: %+v", err)
	}
	if d.ForceTrigCount() != 1 || hooked != 1 {
		t.Fatalf("invalid forced trigger count: got=%d/%d, want=1", d.ForceTrigCount(), hooked)
	}

	d.SetTrigger(TriggerNever)
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	_ = d.ForceTrig(id)
	if err := d.WaitForEndOfAcquisition(id, 0); !errors.Is(err, driver.ErrAcqTimeout) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrAcqTimeout)
	}
}

func TestAcqDonePolls(t *testing.T) {
	d := newDriver(t, "DC271")
	id := open(t, d, 0)
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	polls := 0
	for {
		polls++
		done, err := d.AcqDone(id)
		if err != nil {
			t.Fatalf("could not poll: %+v", err)
		}
		if done {
			break
		}
		if polls > 100 {
			t.Fatalf("acquisition never done")
		}
	}
	if polls != DefaultDonePolls {
		t.Fatalf("invalid number of polls: got=%d, want=%d", polls, DefaultDonePolls)
	}
}

func TestSARBanks(t *testing.T) {
	d := newDriver(t, "DC271", "DC440")
	id := open(t, d, 0)
	if err := d.ConfigMode(id, driver.ModeDigitizer, 0, driver.FlagSAR); err != nil {
		t.Fatalf("could not configure SAR: %+v", err)
	}
	if err := d.ConfigMemoryEx(id, 1000, 1, 10); err != nil {
		t.Fatalf("could not configure memory: %+v", err)
	}
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	var last float64
	for i := 0; i < 3; i++ {
		if err := d.WaitForEndOfAcquisition(id, 0); err != nil {
			t.Fatalf("could not wait for bank %d: %+v", i, err)
		}
		var desc driver.DataDescriptor
		seg := make([]driver.SegmentDescriptor, 1)
		par := &driver.ReadParameters{
			DataType: driver.ReadInt8, ReadMode: driver.ReadModeStdW,
			NbrSegments: 1, NbrSamplesInSeg: 1000, DataArraySize: 1032,
		}
		if err := d.ReadData(id, 1, par, make([]int8, 1032), &desc, seg); err != nil {
			t.Fatalf("could not read bank %d: %+v", i, err)
		}
		if seg[0].Timestamp() <= last {
			t.Fatalf("time stamps not increasing: %g after %g", seg[0].Timestamp(), last)
		}
		last = seg[0].Timestamp()
		if err := d.FreeBank(id, 0); err != nil {
			t.Fatalf("could not free bank: %+v", err)
		}
	}

	other := open(t, d, 1)
	if err := d.ConfigMode(other, driver.ModeDigitizer, 0, driver.FlagSAR); !errors.Is(err, driver.ErrNotSupported) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrNotSupported)
	}
}

func TestPeakRecords(t *testing.T) {
	d := newDriver(t, "AP240")
	id := open(t, d, 0)

	for _, err := range []error{
		d.ConfigMode(id, driver.ModeTDC, 0, 0),
		d.ConfigAvgConfig(id, 0, "NbrSamples", 2048),
		d.ConfigAvgConfig(id, 0, "NbrSegments", 1),
		d.ConfigAvgConfig(id, 1, "GateType", 1),
		d.ConfigSetupArray(id, 1, 0, []driver.GateParameters{
			{GatePos: 0, GateLength: 512},
			{GatePos: 512, GateLength: 512},
			{GatePos: 1536, GateLength: 512},
		}),
	} {
		if err != nil {
			t.Fatalf("could not configure: %+v", err)
		}
	}
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	if err := d.ProcessData(id, 1, 2); err != nil {
		t.Fatalf("could not process: %+v", err)
	}
	if err := d.WaitForEndOfProcessing(id, 0); err != nil {
		t.Fatalf("could not wait for processing: %+v", err)
	}
	buf := make([]byte, 8+(8+512)*3)
	par := &driver.ReadParameters{
		DataType: driver.ReadRawData, ReadMode: driver.ReadModePeak,
		NbrSegments: 1, NbrSamplesInSeg: 2048, DataArraySize: len(buf),
	}
	var desc driver.DataDescriptor
	if err := d.ReadData(id, 1, par, buf, &desc, nil); err != nil {
		t.Fatalf("could not read peaks: %+v", err)
	}
	segments, err := layers.DecodeSegments(buf[:desc.ActualDataSize])
	if err != nil {
		t.Fatalf("could not decode peaks: %+v", err)
	}
	if len(segments) != 1 || segments[0].Header == nil {
		t.Fatalf("invalid segments: %d", len(segments))
	}
	if len(segments[0].Gates) != 3 {
		t.Fatalf("invalid number of gates: got=%d, want=3", len(segments[0].Gates))
	}
	for _, p := range segments[0].Peaks {
		if p.ScaledPos() >= 2048 {
			t.Fatalf("peak outside the record: %d", p.ScaledPos())
		}
	}

	if err := d.WaitForEndOfProcessing(id, 0); !errors.Is(err, driver.ErrProcTimeout) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrProcTimeout)
	}
}

func TestHistogram(t *testing.T) {
	d := newDriver(t, "AP240")
	id := open(t, d, 0)
	for _, err := range []error{
		d.ConfigMode(id, driver.ModeTDC, 0, 0),
		d.ConfigAvgConfig(id, 0, "NbrSamples", 1024),
		d.ConfigAvgConfig(id, 0, "TdcHistogramHorzRes", 4),
		d.ConfigAvgConfig(id, 0, "NbrRoundRobins", 100),
	} {
		if err != nil {
			t.Fatalf("could not configure: %+v", err)
		}
	}
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	if err := d.WaitForEndOfAcquisition(id, 0); err != nil {
		t.Fatalf("could not wait: %+v", err)
	}
	bins := 1024 << 4
	histo := make([]int32, bins)
	par := &driver.ReadParameters{
		DataType: driver.ReadInt32, ReadMode: driver.ReadModeHistogram,
		NbrSegments: 1, NbrSamplesInSeg: bins, DataArraySize: 4 * bins,
	}
	var desc driver.DataDescriptor
	if err := d.ReadData(id, 1, par, histo, &desc, nil); err != nil {
		t.Fatalf("could not read histogram: %+v", err)
	}
	var total int32
	for _, v := range histo {
		total += v
	}
	if total == 0 || total%100 != 0 {
		t.Fatalf("invalid histogram total: %d", total)
	}
	if desc.NbrAvgWforms != 100 {
		t.Fatalf("invalid number of waveforms: got=%d, want=100", desc.NbrAvgWforms)
	}
}

func TestFirmwareRegisters(t *testing.T) {
	d := newDriver(t, "AC240", "DC271")
	id := open(t, d, 0)

	if err := d.ConfigLogicDevice(open(t, d, 1), LogicDeviceName, "x.bit", 3); !errors.Is(err, driver.ErrNotSupported) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrNotSupported)
	}
	if err := d.LogicDeviceIO(id, LogicDeviceName, regMainCtrl, []uint32{0}, false, 0); !errors.Is(err, driver.ErrLogicDevice) {
		t.Fatalf("invalid error without firmware: got=%v, want=%v", err, driver.ErrLogicDevice)
	}
	if err := d.ConfigLogicDevice(id, LogicDeviceName, "", 1); err != nil {
		t.Fatalf("could not clear FPGA: %+v", err)
	}
	if err := d.ConfigLogicDevice(id, LogicDeviceName, "AC240FFT2GSs.bit", 3); err != nil {
		t.Fatalf("could not load FPGA: %+v", err)
	}
	name, err := d.GetInstrumentInfoString(id, "LogDevHdrBlock1Dev1S name")
	if err != nil || name != "AC240FFT2GSs.bit" {
		t.Fatalf("invalid firmware name: got=%q (%v)", name, err)
	}

	if err := d.ConfigHorizontal(id, 0.5e-9, 0); err != nil {
		t.Fatalf("could not configure horizontal: %+v", err)
	}
	if err := d.ConfigMode(id, driver.ModeStreamDPU, 0, 0); err != nil {
		t.Fatalf("could not configure mode: %+v", err)
	}
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	write := func(reg int, v uint32) {
		if err := d.LogicDeviceIO(id, LogicDeviceName, reg, []uint32{v}, true, 0); err != nil {
			t.Fatalf("could not write register %d: %+v", reg, err)
		}
	}
	read := func(reg int) uint32 {
		v := []uint32{0}
		if err := d.LogicDeviceIO(id, LogicDeviceName, reg, v, false, 0); err != nil {
			t.Fatalf("could not read register %d: %+v", reg, err)
		}
		return v[0]
	}

	write(regDECtrl, bitDEEnable)
	reads := 0
	for read(regFPGAStatus)&bitDEClockReady == 0 {
		reads++
		if reads > 10 {
			t.Fatalf("DE clock never ready")
		}
	}
	if reads != settleReads-1 {
		t.Fatalf("invalid number of reads: got=%d, want=%d", reads, settleReads-1)
	}

	write(regNbrAcc, 4)
	write(regMainCtrl, fftRun)
	for read(regMainStatus)&bitBufferReady == 0 {
	}
	if read(regMainStatus)&bitFFTBusy == 0 {
		t.Fatalf("FFT not busy while running")
	}
	write(regStartAddr, 0)
	write(regBufferID, bufSpectrum)
	spectrum := make([]uint32, nbrSpectralLines)
	if err := d.LogicDeviceIO(id, LogicDeviceName, regDataPort, spectrum, false, 0); err != nil {
		t.Fatalf("could not read spectrum: %+v", err)
	}
	peak := 1
	for k := 1; k < len(spectrum); k++ {
		if spectrum[k] > spectrum[peak] {
			peak = k
		}
	}
	// 125 MHz tone, 0.5 ns sampling, 32768 point transform
	if peak != 2048 {
		t.Fatalf("invalid spectral peak: got=%d, want=2048", peak)
	}
	write(regMainCtrl, 0)
	if read(regMainStatus)&bitFFTBusy != 0 {
		t.Fatalf("FFT still busy after stop")
	}
}

func TestMonitorBlock(t *testing.T) {
	d := newDriver(t, "SC240")
	id := open(t, d, 0)
	if err := d.ConfigLogicDevice(id, LogicDeviceName, "SC240str1.bit", 3); err != nil {
		t.Fatalf("could not load FPGA: %+v", err)
	}
	if err := d.ConfigMode(id, driver.ModeStreamDPU, 0, 0); err != nil {
		t.Fatalf("could not configure mode: %+v", err)
	}
	if err := d.Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	io := func(reg int, data []uint32, write bool) {
		if err := d.LogicDeviceIO(id, LogicDeviceName, reg, data, write, 0); err != nil {
			t.Fatalf("could not access register %d: %+v", reg, err)
		}
	}
	io(regStrmConf, []uint32{2048/16 - 1}, true)
	io(regMainCtrl, []uint32{63<<24 | captureTx | captureRx}, true)
	ready := []uint32{0}
	for i := 0; ready[0]&bitBufferReady == 0; i++ {
		if i > 10 {
			t.Fatalf("monitor never ready")
		}
		io(regTxMonCtrl, ready, false)
	}
	io(regStartAddr, []uint32{0}, true)
	io(regBufferID, []uint32{bufTx}, true)
	words := make([]uint32, layers.MonitorBlockSize(2048)/4)
	io(regDataPort, words, false)

	data := make([]byte, 4*len(words))
	for i, w := range words {
		data[4*i] = byte(w)
		data[4*i+1] = byte(w >> 8)
		data[4*i+2] = byte(w >> 16)
		data[4*i+3] = byte(w >> 24)
	}
	block, err := layers.DecodeMonitorBlock(data, 2048)
	if err != nil {
		t.Fatalf("could not decode monitor block: %+v", err)
	}
	if block.ParamWords[1] != 64 {
		t.Fatalf("invalid number of accumulations: got=%d, want=64", block.ParamWords[1])
	}
}

func TestT3(t *testing.T) {
	d := newDriver(t, "TC840", "DC271")
	id := open(t, d, 0)
	if err := d.T3ConfigMode(open(t, d, 1), 1, 1, 0); !errors.Is(err, driver.ErrNotSupported) {
		t.Fatalf("invalid error: got=%v, want=%v", err, driver.ErrNotSupported)
	}
	if err := d.T3ConfigMode(id, 1, 1, 0); err != nil {
		t.Fatalf("could not configure mode: %+v", err)
	}
	if err := d.T3ConfigChannel(id, -1, 1, 0, 0); err != nil {
		t.Fatalf("could not configure channel: %+v", err)
	}
	if err := d.T3Acquire(id); err != nil {
		t.Fatalf("could not acquire: %+v", err)
	}
	if err := d.T3WaitForEndOfAcquisition(id, 0); err != nil {
		t.Fatalf("could not wait: %+v", err)
	}
	data := make([]float64, 53248/8)
	desc, err := d.T3ReadData(id, 0, &driver.T3ReadParameters{DataType: driver.ReadReal64}, data)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if desc.NbrSamples == 0 || desc.NbrSamples%12 != 0 {
		t.Fatalf("invalid number of values: %d", desc.NbrSamples)
	}
	for i := 1; i < desc.NbrSamples; i++ {
		if i%12 != 0 && data[i] <= data[i-1] {
			t.Fatalf("stop times not increasing at %d", i)
		}
	}
}
