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
	"encoding/binary"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat/distuv"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/layers"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

// LogicDeviceName is the only user programmable FPGA of the simulated analyzers
const LogicDeviceName = "Block1Dev1"

const (
	firmwareVersion  = "1.0.4"
	firmwareCompDate = "2008/05/14 16:21"
	// status bits show up after this many reads
	settleReads = 2
	maxRegister = 127
)

type firmwareKind int

const (
	kindAnalyzer firmwareKind = iota
	kindFFT
	kindMemory
	kindBaseStreamer
	kindStreamer
)

func (k firmwareKind) String() string {
	switch k {
	case kindFFT:
		return "fft"
	case kindMemory:
		return "memory"
	case kindBaseStreamer:
		return "base streamer"
	case kindStreamer:
		return "streamer"
	}
	return "analyzer"
}

// registers common to all firmware
const (
	regDataPort    = 0
	regStartAddr   = 1
	regBufferID    = 2
	regFPGACtrl    = 3
	regFPGAStatus  = 6
	regDECtrl      = 8
	regTriggerCtrl = 12
	regSRAMCtrl    = 39
	regMainCtrl    = 64
)

// firmware specific registers
const (
	regMainStatus = 65 // fft
	regMonCtrl    = 65 // analyzer DE monitor, streamer DS monitor
	regTxMonCtrl  = 66
	regRxMonCtrl  = 67
	regMemCtrl    = 66 // memory example
	regNbrAcc     = 66 // fft
	regFFTConf    = 67 // fft
	regStrmConf   = 73 // base streamer
	regSLCBase    = 80
	slcStride     = 4
)

const (
	bitDEEnable     = 0x80000000
	bitDEClockReady = 0x00100000
	bitBufferReady  = 0x80000000
	bitFFTBusy      = 0x00010000
	bitMemFull      = 0x00000001
	bitsLinkReady   = 0x0000005c

	captureMonitor = 0x00001000 // analyzer DE, streamer DS
	captureTx      = 0x00002000
	captureRx      = 0x00004000
	fftRun         = 0x00000001
	memWrite       = 0x00000002
)

// buffer identifiers of the indirect access port
const (
	bufSRAM     = 0x04
	bufMonitor  = 0x0c
	bufTx       = 0x10
	bufRx       = 0x20
	bufSpectrum = 0x81
)

const (
	nbrSpectralLines = 16384
	monitorWords     = 2048
	memWords         = 4096
	memChannel2      = 0x80000
	defaultFrameSize = 2048
	toneFrequency    = 125e6
)

type block struct {
	start int
	words []uint32
}

type pending struct {
	mask  uint32
	reads int
}

// firmware is the state of a loaded logic device
type firmware struct {
	kind      firmwareKind
	file      string
	version   string
	compDate  string
	streaming bool

	regs    map[int]uint32
	pending map[int]*pending
	buffers map[uint32][]block
	addr    int
}

func firmwareKindOf(path string) firmwareKind {
	name := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	switch {
	case strings.Contains(name, "fft"):
		return kindFFT
	case strings.Contains(name, "mem"):
		return kindMemory
	case strings.Contains(name, "stream"):
		return kindStreamer
	case strings.Contains(name, "str"):
		return kindBaseStreamer
	}
	return kindAnalyzer
}

func newFirmware(path string) *firmware {
	return &firmware{
		kind:     firmwareKindOf(path),
		file:     filepath.Base(path),
		version:  firmwareVersion,
		compDate: firmwareCompDate,
		regs:     make(map[int]uint32),
		pending:  make(map[int]*pending),
		buffers:  make(map[uint32][]block),
	}
}

func (fw *firmware) schedule(reg int, mask uint32) {
	fw.regs[reg] &^= mask
	fw.pending[reg] = &pending{mask: mask, reads: settleReads}
}

func (fw *firmware) clear(reg int, mask uint32) {
	fw.regs[reg] &^= mask
	if p, ok := fw.pending[reg]; ok && p.mask&mask != 0 {
		delete(fw.pending, reg)
	}
}

func (fw *firmware) word(id uint32, addr int) uint32 {
	for _, b := range fw.buffers[id] {
		if addr >= b.start && addr < b.start+len(b.words) {
			return b.words[addr-b.start]
		}
	}
	return 0
}

func (fw *firmware) read(reg int) uint32 {
	if reg == regDataPort {
		w := fw.word(fw.regs[regBufferID], fw.addr)
		fw.addr++
		return w
	}
	if p, ok := fw.pending[reg]; ok {
		if p.reads > 0 {
			p.reads--
		}
		if p.reads == 0 {
			fw.regs[reg] |= p.mask
			delete(fw.pending, reg)
		}
	}
	v := fw.regs[reg]
	if fw.kind == kindFFT && reg == regMainStatus && fw.regs[regMainCtrl]&fftRun != 0 {
		v |= bitFFTBusy
	}
	return v
}

func (fw *firmware) write(inst *instrument, reg int, v uint32) {
	switch reg {
	case regDataPort:
		fw.addr++
		return
	case regStartAddr:
		fw.addr = int(v)
	case regBufferID:
		fw.addr = int(fw.regs[regStartAddr])
	}
	prev := fw.regs[reg]
	fw.regs[reg] = v

	if reg == regDECtrl {
		if v&bitDEEnable != 0 {
			fw.schedule(regFPGAStatus, bitDEClockReady)
		} else {
			fw.clear(regFPGAStatus, bitDEClockReady)
		}
		return
	}
	switch fw.kind {
	case kindAnalyzer:
		if reg == regMainCtrl && v&captureMonitor != 0 && prev&captureMonitor == 0 && fw.streaming {
			fw.buffers[bufMonitor] = []block{{0, packInt8(inst.streamSamples(4*monitorWords, 1))}}
			fw.schedule(regMonCtrl, bitBufferReady)
		}
	case kindFFT:
		if reg != regMainCtrl {
			return
		}
		if v&fftRun == 0 {
			fw.clear(regMainStatus, bitBufferReady)
			return
		}
		if prev&fftRun == 0 && fw.streaming {
			fw.buffers[bufSpectrum] = []block{{0, inst.spectrum(int(fw.regs[regNbrAcc]))}}
			fw.schedule(regMainStatus, bitBufferReady)
		}
	case kindMemory:
		if reg == regMemCtrl && v&memWrite != 0 && fw.streaming {
			fw.buffers[bufSRAM] = []block{
				{0, packInt8(inst.streamSamples(4*memWords, 1))},
				{memChannel2, packInt8(inst.streamSamples(4*memWords, 2))},
			}
			fw.schedule(regMemCtrl, bitMemFull)
		}
	case kindBaseStreamer, kindStreamer:
		if reg >= regSLCBase && (reg-regSLCBase)%slcStride == 0 {
			if v&0x3 != 0 && inst.model.DataLinks > 0 {
				fw.schedule(reg+1, bitsLinkReady)
			} else if v&0x3 == 0 {
				fw.clear(reg+1, bitsLinkReady)
			}
			return
		}
		if reg == regMainCtrl && fw.streaming {
			fw.capture(inst, v &^ prev)
		}
	}
}

// capture fills the monitor buffers selected by the newly set capture bits
func (fw *firmware) capture(inst *instrument, bits uint32) {
	if fw.kind == kindStreamer {
		if bits&captureMonitor != 0 {
			fw.buffers[bufMonitor] = []block{{0, packInt8(inst.streamSamples(4*monitorWords, 1))}}
			fw.schedule(regMonCtrl, bitBufferReady)
		}
		if bits&captureTx != 0 {
			fw.buffers[bufTx] = []block{{0, packInt8(inst.streamSamples(4*monitorWords, 1))}}
			fw.schedule(regTxMonCtrl, bitBufferReady)
		}
		if bits&captureRx != 0 {
			fw.buffers[bufRx] = []block{{0, packInt8(inst.streamSamples(4*monitorWords, 1))}}
			fw.schedule(regRxMonCtrl, bitBufferReady)
		}
		return
	}
	frameSize := defaultFrameSize
	if conf := fw.regs[regStrmConf]; conf != 0 {
		frameSize = int(conf+1) * 16
	}
	nbrAccum := int(fw.regs[regMainCtrl]>>24) + 1
	if bits&captureTx != 0 {
		fw.buffers[bufTx] = []block{{0, inst.monitorBlock(frameSize, nbrAccum)}}
		fw.schedule(regTxMonCtrl, bitBufferReady)
	}
	if bits&captureRx != 0 {
		fw.buffers[bufRx] = []block{{0, inst.monitorBlock(frameSize, nbrAccum)}}
		fw.schedule(regRxMonCtrl, bitBufferReady)
	}
}

func packInt8(samples []int8) []uint32 {
	words := make([]uint32, (len(samples)+3)/4)
	for i, s := range samples {
		words[i/4] |= uint32(uint8(s)) << (8 * uint(i%4))
	}
	return words
}

func packBytes(data []byte) []uint32 {
	words := make([]uint32, (len(data)+3)/4)
	for i := range words {
		var w [4]byte
		copy(w[:], data[4*i:])
		words[i] = binary.LittleEndian.Uint32(w[:])
	}
	return words
}

// streamSamples renders n samples of the continuous input of a channel in ADC counts
func (inst *instrument) streamSamples(n, ch int) []int8 {
	count := distuv.Poisson{Lambda: float64(n) / 500, Src: inst.src}
	where := distuv.Uniform{Min: 0, Max: float64(n), Src: inst.src}
	height := distuv.Uniform{Min: 0.2, Max: 0.45, Src: inst.src}
	fs := inst.vert(ch).fullScale
	pulses := make([]pulse, int(count.Rand()))
	for i := range pulses {
		pulses[i] = pulse{pos: where.Rand(), ampl: -height.Rand() * fs, width: 2}
	}
	volts := inst.render(pulses, n, ch)
	out := make([]int8, n)
	for i, v := range volts {
		out[i] = int8(inst.counts(ch, driver.ReadInt8, v))
	}
	return out
}

// spectrum accumulates nbrAcc power spectra of a tone on channel 1
func (inst *instrument) spectrum(nbrAcc int) []uint32 {
	if nbrAcc < 1 {
		nbrAcc = 1
	}
	n := 2 * nbrSpectralLines
	fs := inst.vert(1).fullScale
	noise := distuv.Normal{Mu: 0, Sigma: noiseFraction * fs, Src: inst.src}
	fft := fourier.NewFFT(n)
	seq := make([]float64, n)
	sums := make([]float64, nbrSpectralLines)
	for a := 0; a < nbrAcc; a++ {
		for i := range seq {
			v := 0.25*fs*math.Sin(2*math.Pi*toneFrequency*float64(i)*inst.sampInterval) + noise.Rand()
			seq[i] = inst.counts(1, driver.ReadInt8, v)
		}
		coeff := fft.Coefficients(nil, seq)
		for k := range sums {
			re, im := real(coeff[k]), imag(coeff[k])
			sums[k] += (re*re + im*im) / float64(2*n)
		}
	}
	words := make([]uint32, nbrSpectralLines)
	for k, s := range sums {
		words[k] = uint32(math.Min(s, math.MaxUint32))
	}
	return words
}

// monitorBlock encodes the raw, accumulated and parameter frames of a streamer monitor
func (inst *instrument) monitorBlock(frameSize, nbrAccum int) []uint32 {
	ts := inst.tick()
	hi := uint32(ts/16777216000) & 0x00ffffff
	lo := uint32((ts / 1000) % 16777216)
	raw := inst.streamSamples(frameSize, 1)
	acc := make([]int16, frameSize)
	for a := 0; a < nbrAccum; a++ {
		for i, s := range inst.streamSamples(frameSize, 1) {
			acc[i] += int16(s)
		}
	}
	params := make([]uint32, layers.NbrParameterWords)
	for i := range params {
		params[i] = uint32(i)
	}
	params[0] = uint32(frameSize)
	params[1] = uint32(nbrAccum)
	data, err := layers.EncodeMonitorBlock(&layers.MonitorBlock{
		Raw:         &layers.FrameHeaderLayer{Type: layers.FrameRaw, TimeStampHi: hi, TimeStampLo: lo},
		RawSamples:  raw,
		Accumulated: &layers.FrameHeaderLayer{Type: layers.FrameAccumulated, TimeStampHi: hi, TimeStampLo: lo},
		AccSamples:  acc,
		Parameters:  &layers.FrameHeaderLayer{Type: layers.FrameParameters, TimeStampHi: hi, TimeStampLo: lo},
		ParamWords:  params,
	})
	if err != nil {
		log.Error("encode monitor block: %v", err)
		return nil
	}
	return packBytes(data)
}

// ConfigLogicDevice clears the FPGA (empty path, flag 1) or loads a firmware file into it.
// Files are not read, the firmware behavior is picked from the file name.
func (d *Driver) ConfigLogicDevice(id driver.Session, deviceName, filePath string, flags int) error {
	return d.configure(id, func(inst *instrument) error {
		if !inst.model.FPGA {
			return driver.ErrNotSupported
		}
		if deviceName != LogicDeviceName {
			return driver.ErrLogicDevice
		}
		if filePath == "" {
			if flags&1 == 0 {
				return driver.ErrInvalidParameter
			}
			inst.fw = nil
			return nil
		}
		fw := newFirmware(filePath)
		if (fw.kind == kindBaseStreamer || fw.kind == kindStreamer) && inst.model.DataLinks == 0 {
			return driver.ErrLogicDevice
		}
		fw.streaming = inst.running && inst.mode == driver.ModeStreamDPU
		inst.fw = fw
		log.Debug("%s: loaded %s firmware %s", inst.model.Name, fw.kind, fw.file)
		return nil
	})
}

func (d *Driver) LogicDeviceIO(id driver.Session, deviceName string, reg int, data []uint32, write bool, modifier int) error {
	return d.configure(id, func(inst *instrument) error {
		if inst.fw == nil || deviceName != LogicDeviceName {
			return driver.ErrLogicDevice
		}
		if reg < 0 || reg > maxRegister || len(data) == 0 {
			return driver.ErrInvalidParameter
		}
		for i := range data {
			if write {
				inst.fw.write(inst, reg, data[i])
			} else {
				data[i] = inst.fw.read(reg)
			}
		}
		return nil
	})
}
