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
	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/driver/ifc"
	"jinr.ru/greenlab/go-acqiris/pkg/layers"
)

// ExtraSamples is the room the driver may use in front of the first valid sample
const ExtraSamples = 32

// Waveform is a single segment
type Waveform struct {
	Volts   []float64
	Desc    driver.DataDescriptor
	Segment driver.SegmentDescriptor
}

// ReadVolts reads a single segment as 8-bit samples and converts it to volts
func ReadVolts(drv ifc.Control, id driver.Session, channel, nbrSamples int) (*Waveform, error) {
	data := make([]int8, nbrSamples+ExtraSamples)
	par := &driver.ReadParameters{
		DataType:         driver.ReadInt8,
		ReadMode:         driver.ReadModeStdW,
		NbrSegments:      1,
		NbrSamplesInSeg:  nbrSamples,
		DataArraySize:    len(data),
		SegDescArraySize: 1,
	}
	w := &Waveform{}
	segDesc := make([]driver.SegmentDescriptor, 1)
	if err := driver.Filter("ReadData", drv.ReadData(id, channel, par, data, &w.Desc, segDesc)); err != nil {
		return nil, xerrors.Errorf("could not read channel %d: %w", channel, err)
	}
	w.Segment = segDesc[0]
	first := w.Desc.IndexFirstPoint
	w.Volts = make([]float64, w.Desc.ReturnedSamplesPerSeg)
	for i := range w.Volts {
		w.Volts[i] = float64(data[first+i])*w.Desc.VGain - w.Desc.VOffset
	}
	return w, nil
}

// ReadReal64 reads a single segment with the driver converting it to volts
func ReadReal64(drv ifc.Control, id driver.Session, channel, nbrSamples int) (*Waveform, error) {
	data := make([]float64, nbrSamples+ExtraSamples)
	par := &driver.ReadParameters{
		DataType:         driver.ReadReal64,
		ReadMode:         driver.ReadModeStdW,
		NbrSegments:      1,
		NbrSamplesInSeg:  nbrSamples,
		DataArraySize:    8 * len(data),
		SegDescArraySize: 1,
	}
	w := &Waveform{}
	segDesc := make([]driver.SegmentDescriptor, 1)
	if err := driver.Filter("ReadData", drv.ReadData(id, channel, par, data, &w.Desc, segDesc)); err != nil {
		return nil, xerrors.Errorf("could not read channel %d: %w", channel, err)
	}
	w.Segment = segDesc[0]
	first := w.Desc.IndexFirstPoint
	w.Volts = append([]float64(nil), data[first:first+w.Desc.ReturnedSamplesPerSeg]...)
	return w, nil
}

// Segments are the waveforms of a multi segment acquisition in ADC counts
type Segments struct {
	Counts  [][]int16
	Desc    driver.DataDescriptor
	SegDesc []driver.SegmentDescriptor
}

// Volts converts segment k to volts
func (s *Segments) Volts(k int) []float64 {
	volts := make([]float64, len(s.Counts[k]))
	for i, c := range s.Counts[k] {
		volts[i] = float64(c)*s.Desc.VGain - s.Desc.VOffset
	}
	return volts
}

// ReadSegments reads nbrSegments segments as 8-bit (ReadInt8) or 16-bit (ReadInt16) samples
func ReadSegments(drv ifc.Control, id driver.Session, channel int, dt driver.DataType, nbrSamples, nbrSegments int) (*Segments, error) {
	size := nbrSamples*nbrSegments + ExtraSamples
	par := &driver.ReadParameters{
		DataType:         dt,
		ReadMode:         driver.ReadModeSeqW,
		NbrSegments:      nbrSegments,
		NbrSamplesInSeg:  nbrSamples,
		SegmentOffset:    nbrSamples,
		DataArraySize:    size * dt.Size(),
		SegDescArraySize: nbrSegments,
	}
	s := &Segments{SegDesc: make([]driver.SegmentDescriptor, nbrSegments)}
	var data interface{}
	switch dt {
	case driver.ReadInt8:
		data = make([]int8, size)
	case driver.ReadInt16:
		data = make([]int16, size)
	default:
		return nil, xerrors.Errorf("could not read segments: data type %d: %w", dt, driver.ErrInvalidParameter)
	}
	if err := driver.Filter("ReadData", drv.ReadData(id, channel, par, data, &s.Desc, s.SegDesc)); err != nil {
		return nil, xerrors.Errorf("could not read segments of channel %d: %w", channel, err)
	}
	n := s.Desc.ReturnedSamplesPerSeg
	s.SegDesc = s.SegDesc[:s.Desc.ReturnedSegments]
	s.Counts = make([][]int16, s.Desc.ReturnedSegments)
	for k := range s.Counts {
		off := s.Desc.IndexFirstPoint + k*nbrSamples
		counts := make([]int16, n)
		for i := range counts {
			switch buf := data.(type) {
			case []int8:
				counts[i] = int16(buf[off+i])
			case []int16:
				counts[i] = buf[off+i]
			}
		}
		s.Counts[k] = counts
	}
	return s, nil
}

// Average is an averaged waveform, the sums of NbrAvgWforms waveforms
type Average struct {
	Sums []int32
	Desc driver.DataDescriptor
}

// Volts converts the sums to the mean waveform in volts
func (a *Average) Volts() []float64 {
	nw := a.Desc.NbrAvgWforms
	if nw < 1 {
		nw = 1
	}
	volts := make([]float64, len(a.Sums))
	for i, s := range a.Sums {
		volts[i] = float64(s)/float64(nw)*a.Desc.VGain - a.Desc.VOffset
	}
	return volts
}

// ReadAverage reads the 32-bit sums of an averager
func ReadAverage(drv ifc.Control, id driver.Session, channel, nbrSamples int) (*Average, error) {
	data := make([]int32, nbrSamples+ExtraSamples)
	par := &driver.ReadParameters{
		DataType:         driver.ReadInt32,
		ReadMode:         driver.ReadModeAvgW,
		NbrSegments:      1,
		NbrSamplesInSeg:  nbrSamples,
		DataArraySize:    4 * len(data),
		SegDescArraySize: 1,
	}
	a := &Average{}
	segDesc := make([]driver.SegmentDescriptor, 1)
	if err := driver.Filter("ReadData", drv.ReadData(id, channel, par, data, &a.Desc, segDesc)); err != nil {
		return nil, xerrors.Errorf("could not read average of channel %d: %w", channel, err)
	}
	first := a.Desc.IndexFirstPoint
	a.Sums = append([]int32(nil), data[first:first+a.Desc.ReturnedSamplesPerSeg]...)
	return a, nil
}

// Histogram is a TDC peak position histogram
type Histogram struct {
	Counts []uint32
	Desc   driver.DataDescriptor
}

// ReadHistogram reads nbrSamples << horzRes histogram bins
func ReadHistogram(drv ifc.Control, id driver.Session, channel, nbrSamples, horzRes int) (*Histogram, error) {
	bins := nbrSamples << uint(horzRes)
	data := make([]int32, bins+ExtraSamples)
	par := &driver.ReadParameters{
		DataType:        driver.ReadInt32,
		ReadMode:        driver.ReadModeHistogram,
		NbrSegments:     1,
		NbrSamplesInSeg: bins,
		DataArraySize:   4 * len(data),
	}
	h := &Histogram{}
	if err := driver.Filter("ReadData", drv.ReadData(id, channel, par, data, &h.Desc, nil)); err != nil {
		return nil, xerrors.Errorf("could not read histogram of channel %d: %w", channel, err)
	}
	first := h.Desc.IndexFirstPoint
	h.Counts = make([]uint32, h.Desc.ReturnedSamplesPerSeg)
	for i := range h.Counts {
		h.Counts[i] = uint32(data[first+i])
	}
	return h, nil
}

// Records is a decoded gate, peak and segment header stream
type Records struct {
	Records []layers.Record
	Desc    driver.DataDescriptor
}

// ReadRecords reads a packed record stream of at most arraySize bytes and walks it.
// mode is ReadModePeak for PeakTDC or ReadModeSSRW/ReadModeGated for gates.
func ReadRecords(drv ifc.Control, id driver.Session, channel int, mode driver.ReadMode, nbrSegments, arraySize int) (*Records, error) {
	data := make([]byte, arraySize)
	par := &driver.ReadParameters{
		DataType:      driver.ReadRawData,
		ReadMode:      mode,
		NbrSegments:   nbrSegments,
		DataArraySize: arraySize,
	}
	r := &Records{}
	if err := driver.Filter("ReadData", drv.ReadData(id, channel, par, data, &r.Desc, nil)); err != nil {
		return nil, xerrors.Errorf("could not read records of channel %d: %w", channel, err)
	}
	records, err := layers.DecodeRecords(data[:r.Desc.ActualDataSize])
	if err != nil {
		return nil, xerrors.Errorf("could not decode records: %w", err)
	}
	r.Records = records
	return r, nil
}
