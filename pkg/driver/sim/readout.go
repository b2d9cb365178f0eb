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
	"math"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/layers"
)

// put stores values at offset into data, which must match the data type
func put(data interface{}, dt driver.DataType, offset int, values []float64) error {
	end := offset + len(values)
	switch buf := data.(type) {
	case []int8:
		if dt != driver.ReadInt8 && dt != driver.ReadRawData {
			return driver.ErrInvalidParameter
		}
		if end > len(buf) {
			return driver.ErrBufferOverflow
		}
		for i, v := range values {
			buf[offset+i] = int8(v)
		}
	case []int16:
		if dt != driver.ReadInt16 {
			return driver.ErrInvalidParameter
		}
		if end > len(buf) {
			return driver.ErrBufferOverflow
		}
		for i, v := range values {
			buf[offset+i] = int16(v)
		}
	case []int32:
		if dt != driver.ReadInt32 {
			return driver.ErrInvalidParameter
		}
		if end > len(buf) {
			return driver.ErrBufferOverflow
		}
		for i, v := range values {
			buf[offset+i] = int32(v)
		}
	case []float64:
		if dt != driver.ReadReal64 {
			return driver.ErrInvalidParameter
		}
		if end > len(buf) {
			return driver.ErrBufferOverflow
		}
		copy(buf[offset:], values)
	default:
		return driver.ErrInvalidParameter
	}
	return nil
}

func (d *Driver) ReadData(id driver.Session, channel int, par *driver.ReadParameters, data interface{},
	desc *driver.DataDescriptor, segDesc []driver.SegmentDescriptor) error {
	return d.control(id, func(inst *instrument) error {
		if par == nil || desc == nil || channel < 1 || channel > inst.model.NbrChannels {
			return driver.ErrInvalidParameter
		}
		c := inst.last
		if c == nil {
			return driver.ErrNoData
		}
		if par.FirstSegment < 0 || par.FirstSegment >= len(c.segments) {
			return driver.ErrInvalidParameter
		}
		*desc = driver.DataDescriptor{
			SampTime: c.sampInterval,
			VGain:    inst.gain(channel, par.DataType),
			VOffset:  inst.vert(channel).offset,
		}
		switch par.ReadMode {
		case driver.ReadModeStdW:
			return d.readWaveforms(inst, c, channel, par, data, desc, segDesc, 1)
		case driver.ReadModeSeqW:
			return d.readWaveforms(inst, c, channel, par, data, desc, segDesc, par.NbrSegments)
		case driver.ReadModeAvgW:
			return d.readAverage(inst, c, channel, par, data, desc, segDesc)
		case driver.ReadModeHistogram:
			return d.readHistogram(inst, c, channel, par, data, desc)
		case driver.ReadModeSSRW, driver.ReadModeGated:
			return d.readRecords(inst, c, channel, par, data, desc, false)
		case driver.ReadModePeak:
			return d.readRecords(inst, c, channel, par, data, desc, true)
		}
		return driver.ErrNotSupported
	})
}

func segmentRange(c *capture, par *driver.ReadParameters, n int) (int, int) {
	if n < 1 {
		n = 1
	}
	first := par.FirstSegment
	last := first + n
	if last > len(c.segments) {
		last = len(c.segments)
	}
	return first, last
}

func sampleRange(c *capture, par *driver.ReadParameters) (int, int) {
	first := par.FirstSampleInSeg
	if first < 0 {
		first = 0
	}
	n := par.NbrSamplesInSeg
	if first+n > c.nbrSamples {
		n = c.nbrSamples - first
	}
	if n < 0 {
		n = 0
	}
	return first, n
}

func fillSegDesc(segDesc []driver.SegmentDescriptor, k int, seg *segment, triggers int) error {
	if segDesc == nil {
		return nil
	}
	if k >= len(segDesc) {
		return driver.ErrBufferOverflow
	}
	segDesc[k] = driver.SegmentDescriptor{
		HorPos:         seg.horPos,
		TimeStampLo:    uint32(seg.timestamp),
		TimeStampHi:    uint32(seg.timestamp >> 32),
		ActualTriggers: triggers,
	}
	return nil
}

// readWaveforms serves the single and multi segment modes. Multi segment
// data is laid out at SegmentOffset intervals without leading pad.
func (d *Driver) readWaveforms(inst *instrument, c *capture, ch int, par *driver.ReadParameters, data interface{},
	desc *driver.DataDescriptor, segDesc []driver.SegmentDescriptor, nbrSegments int) error {
	first, last := segmentRange(c, par, nbrSegments)
	firstSample, n := sampleRange(c, par)
	pad := 0
	if par.ReadMode == driver.ReadModeStdW {
		pad = d.opts.IndexFirstPoint
	}
	stride := par.SegmentOffset
	if stride < n {
		stride = n
	}
	need := (pad + (last-first-1)*stride + n) * par.DataType.Size()
	if need > par.DataArraySize {
		return driver.ErrBufferOverflow
	}
	values := make([]float64, n)
	for j := first; j < last; j++ {
		seg := c.segments[j]
		volts := seg.volts[ch][firstSample : firstSample+n]
		for i, v := range volts {
			if par.DataType == driver.ReadReal64 {
				values[i] = inst.counts(ch, driver.ReadInt8, v)*inst.gain(ch, driver.ReadInt8) - inst.vert(ch).offset
			} else {
				values[i] = inst.counts(ch, par.DataType, v)
			}
		}
		if err := put(data, par.DataType, pad+(j-first)*stride, values); err != nil {
			return err
		}
		if err := fillSegDesc(segDesc, j-first, seg, 1); err != nil {
			return err
		}
	}
	if par.DataType == driver.ReadReal64 {
		desc.VGain = inst.gain(ch, driver.ReadInt8)
	}
	desc.IndexFirstPoint = pad
	desc.ReturnedSamplesPerSeg = n
	desc.ReturnedSegments = last - first
	desc.ActualDataSize = need
	return nil
}

func (d *Driver) readAverage(inst *instrument, c *capture, ch int, par *driver.ReadParameters, data interface{},
	desc *driver.DataDescriptor, segDesc []driver.SegmentDescriptor) error {
	if par.DataType != driver.ReadInt32 && par.DataType != driver.ReadReal64 {
		return driver.ErrInvalidParameter
	}
	first, last := segmentRange(c, par, par.NbrSegments)
	firstSample, n := sampleRange(c, par)
	pad := d.opts.IndexFirstPoint
	stride := par.SegmentOffset
	if stride < n {
		stride = n
	}
	need := (pad + (last-first-1)*stride + n) * par.DataType.Size()
	if need > par.DataArraySize {
		return driver.ErrBufferOverflow
	}
	for j := first; j < last; j++ {
		sums := inst.average(c.segments[j], ch, c.waveforms)[firstSample : firstSample+n]
		if par.DataType == driver.ReadReal64 {
			g := inst.gain(ch, driver.ReadInt8)
			for i := range sums {
				sums[i] = sums[i]/float64(c.waveforms)*g - inst.vert(ch).offset
			}
		}
		if err := put(data, par.DataType, pad+(j-first)*stride, sums); err != nil {
			return err
		}
		if err := fillSegDesc(segDesc, j-first, c.segments[j], c.waveforms); err != nil {
			return err
		}
	}
	desc.IndexFirstPoint = pad
	desc.ReturnedSamplesPerSeg = n
	desc.ReturnedSegments = last - first
	desc.NbrAvgWforms = c.waveforms
	desc.ActualDataSize = need
	return nil
}

// readHistogram returns the peak position histogram, 2^TdcHistogramHorzRes bins per sample
func (d *Driver) readHistogram(inst *instrument, c *capture, ch int, par *driver.ReadParameters, data interface{},
	desc *driver.DataDescriptor) error {
	if par.DataType != driver.ReadInt32 && par.DataType != driver.ReadInt16 {
		return driver.ErrInvalidParameter
	}
	horzRes := inst.avgInt(ch, "TdcHistogramHorzRes", 0)
	bins := c.nbrSamples << uint(horzRes)
	n := par.NbrSamplesInSeg
	if n <= 0 || n > bins {
		n = bins
	}
	first, last := segmentRange(c, par, par.NbrSegments)
	if inst.avgInt(ch, "TdcHistogramMode", 1) == 2 {
		last = first + 1
	}
	pad := d.opts.IndexFirstPoint
	need := (pad + (last-first)*n) * par.DataType.Size()
	if need > par.DataArraySize {
		return driver.ErrBufferOverflow
	}
	limit := float64(math.MaxInt32)
	if par.DataType == driver.ReadInt16 {
		limit = math.MaxUint16
	}
	for j := first; j < last; j++ {
		histo := make([]float64, n)
		for _, p := range c.segments[j].pulses {
			k := int(p.pos * float64(int(1)<<uint(horzRes)))
			if k >= 0 && k < n {
				histo[k] = math.Min(histo[k]+float64(c.waveforms), limit)
			}
		}
		if err := put(data, par.DataType, pad+(j-first)*n, histo); err != nil {
			return err
		}
	}
	desc.IndexFirstPoint = pad
	desc.ReturnedSamplesPerSeg = n
	desc.ReturnedSegments = last - first
	desc.NbrAvgWforms = c.waveforms
	desc.ActualDataSize = need
	return nil
}

// gatesOf returns the user defined gates or the threshold gates of a segment
func (inst *instrument) gatesOf(seg *segment, ch int) []driver.GateParameters {
	if inst.avgInt(ch, "GateType", 1) == 2 {
		return inst.thresholdGates(seg, ch)
	}
	gates := inst.gates[ch]
	if len(gates) == 0 {
		gates = inst.gates[1]
	}
	return gates
}

// readRecords encodes the gate (SSR) or peak (PeakTDC) record stream into a byte buffer
func (d *Driver) readRecords(inst *instrument, c *capture, ch int, par *driver.ReadParameters, data interface{},
	desc *driver.DataDescriptor, peaks bool) error {
	buf, ok := data.([]byte)
	if !ok {
		return driver.ErrInvalidParameter
	}
	first, last := segmentRange(c, par, par.NbrSegments)
	invert := inst.avgInt(ch, "InvertData", 0) != 0
	var enc layers.Encoder
	for j := first; j < last; j++ {
		seg := c.segments[j]
		hdr := &layers.SegmentHeaderLayer{
			TimeStampHi: uint32(seg.timestamp>>32) & 0x00ffffff,
			TimeStampLo: uint32(seg.timestamp),
		}
		if err := enc.Append(hdr); err != nil {
			return driver.ErrInvalidParameter
		}
		volts := seg.volts[ch]
		for _, g := range inst.gatesOf(seg, ch) {
			lo, hi := g.GatePos, g.GatePos+g.GateLength
			if hi > len(volts) {
				hi = len(volts)
			}
			if lo >= hi {
				continue
			}
			gate := &layers.GateHeaderLayer{Pos: uint32(lo)}
			if peaks {
				gate.Length = 0
				if err := enc.Append(gate); err != nil {
					return driver.ErrInvalidParameter
				}
				for _, p := range seg.pulses {
					if p.pos < float64(lo) || p.pos >= float64(hi) {
						continue
					}
					ampl := inst.counts(ch, driver.ReadInt8, p.ampl)
					if invert {
						ampl = -ampl
					}
					peak := &layers.PeakLayer{
						Amplitude: int32(ampl * layers.PeakScale),
						Pos:       uint32(p.pos * layers.PeakScale),
					}
					if err := enc.Append(peak); err != nil {
						return driver.ErrInvalidParameter
					}
				}
				continue
			}
			samples := make([]byte, hi-lo)
			for i := range samples {
				samples[i] = byte(int8(inst.counts(ch, driver.ReadInt8, volts[lo+i])))
			}
			if err := enc.Append(gate, gopacket.Payload(samples)); err != nil {
				return driver.ErrInvalidParameter
			}
		}
	}
	size := par.DataArraySize
	if size > len(buf) {
		size = len(buf)
	}
	if enc.Len() > size {
		return driver.ErrBufferOverflow
	}
	copy(buf, enc.Bytes())
	desc.ReturnedSamplesPerSeg = c.nbrSamples
	desc.ReturnedSegments = last - first
	desc.ActualDataSize = enc.Len()
	return nil
}
