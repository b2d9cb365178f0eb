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

package layers

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	GateHeaderLayerNum    = 2101
	PeakLayerNum          = 2102
	SegmentHeaderLayerNum = 2103
	FrameHeaderLayerNum   = 2104
)

// Record tags found in the top byte of the first word of every record
const (
	TagGateHeader    uint8 = 0x00
	TagSegmentHeader uint8 = 0x04
	TagPeak          uint8 = 0x10
)

// RecordHeaderSize is the size of gate, peak and segment headers
const RecordHeaderSize = 8

// PeakScale is the sub-sample resolution of peak position and amplitude
const PeakScale = 16

var (
	GateHeaderLayerType = gopacket.RegisterLayerType(GateHeaderLayerNum,
		gopacket.LayerTypeMetadata{Name: "GateHeaderLayerType", Decoder: gopacket.DecodeFunc(DecodeGateHeaderLayer)})
	PeakLayerType = gopacket.RegisterLayerType(PeakLayerNum,
		gopacket.LayerTypeMetadata{Name: "PeakLayerType", Decoder: gopacket.DecodeFunc(DecodePeakLayer)})
	SegmentHeaderLayerType = gopacket.RegisterLayerType(SegmentHeaderLayerNum,
		gopacket.LayerTypeMetadata{Name: "SegmentHeaderLayerType", Decoder: gopacket.DecodeFunc(DecodeSegmentHeaderLayer)})
)

func tagOf(data []byte) uint8 {
	return data[3]
}

func putTagged(buf []byte, tag uint8, low24 uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(tag)<<24|low24&0x00ffffff)
}

// GateHeaderLayer precedes Length sample bytes of a gate
type GateHeaderLayer struct {
	layers.BaseLayer
	Pos    uint32
	Length uint32
}

func (g *GateHeaderLayer) LayerType() gopacket.LayerType {
	return GateHeaderLayerType
}

// SerializeTo prepends the gate header. With FixLengths the length is taken
// from the payload already in the buffer.
func (g *GateHeaderLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if opts.FixLengths {
		g.Length = uint32(len(b.Bytes()))
	}
	bytes, err := b.PrependBytes(RecordHeaderSize)
	if err != nil {
		return err
	}
	putTagged(bytes, TagGateHeader, g.Pos)
	binary.LittleEndian.PutUint32(bytes[4:8], g.Length)
	return nil
}

// DecodeFromBytes decodes the header and slices Length bytes of samples as payload
func (g *GateHeaderLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < RecordHeaderSize {
		df.SetTruncated()
		return ErrTruncated{Need: RecordHeaderSize, Have: len(data)}
	}
	if tag := tagOf(data); tag != TagGateHeader {
		return ErrUnknownTag{Tag: tag}
	}
	g.Pos = binary.LittleEndian.Uint32(data[0:4]) & 0x00ffffff
	g.Length = binary.LittleEndian.Uint32(data[4:8])
	end := RecordHeaderSize + int(g.Length)
	if end > len(data) || end < RecordHeaderSize {
		df.SetTruncated()
		return ErrTruncated{Need: RecordHeaderSize + int(g.Length), Have: len(data)}
	}
	g.BaseLayer = layers.BaseLayer{
		Contents: data[:RecordHeaderSize],
		Payload:  data[RecordHeaderSize:end],
	}
	return nil
}

// Samples returns the signed gate samples
func (g *GateHeaderLayer) Samples() []int8 {
	samples := make([]int8, len(g.Payload))
	for i, b := range g.Payload {
		samples[i] = int8(b)
	}
	return samples
}

func DecodeGateHeaderLayer(data []byte, p gopacket.PacketBuilder) error {
	g := &GateHeaderLayer{}
	if err := g.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(g)
	return p.NextDecoder(gopacket.LayerTypePayload)
}

// PeakLayer is one detected peak. Amplitude and Pos are in 1/PeakScale units.
type PeakLayer struct {
	layers.BaseLayer
	Amplitude int32
	Pos       uint32
}

func (pk *PeakLayer) LayerType() gopacket.LayerType {
	return PeakLayerType
}

func (pk *PeakLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(RecordHeaderSize)
	if err != nil {
		return err
	}
	putTagged(bytes, TagPeak, uint32(pk.Amplitude)&0x000fffff)
	binary.LittleEndian.PutUint32(bytes[4:8], pk.Pos)
	return nil
}

func (pk *PeakLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < RecordHeaderSize {
		df.SetTruncated()
		return ErrTruncated{Need: RecordHeaderSize, Have: len(data)}
	}
	if tag := tagOf(data); tag != TagPeak {
		return ErrUnknownTag{Tag: tag}
	}
	// sign extend the 20 bit amplitude
	word := binary.LittleEndian.Uint32(data[0:4])
	pk.Amplitude = int32(word<<12) >> 12
	pk.Pos = binary.LittleEndian.Uint32(data[4:8])
	pk.BaseLayer = layers.BaseLayer{
		Contents: data[:RecordHeaderSize],
		Payload:  data[RecordHeaderSize:],
	}
	return nil
}

// ScaledPos returns the position in samples
func (pk *PeakLayer) ScaledPos() uint32 {
	return pk.Pos / PeakScale
}

// ScaledAmplitude returns the amplitude in ADC counts
func (pk *PeakLayer) ScaledAmplitude() int32 {
	return pk.Amplitude / PeakScale
}

func DecodePeakLayer(data []byte, p gopacket.PacketBuilder) error {
	pk := &PeakLayer{}
	if err := pk.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(pk)
	return nil
}

// SegmentHeaderLayer opens the records of one segment
type SegmentHeaderLayer struct {
	layers.BaseLayer
	TimeStampHi uint32
	TimeStampLo uint32
}

func (s *SegmentHeaderLayer) LayerType() gopacket.LayerType {
	return SegmentHeaderLayerType
}

func (s *SegmentHeaderLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(RecordHeaderSize)
	if err != nil {
		return err
	}
	putTagged(bytes, TagSegmentHeader, s.TimeStampHi)
	binary.LittleEndian.PutUint32(bytes[4:8], s.TimeStampLo)
	return nil
}

func (s *SegmentHeaderLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < RecordHeaderSize {
		df.SetTruncated()
		return ErrTruncated{Need: RecordHeaderSize, Have: len(data)}
	}
	if tag := tagOf(data); tag != TagSegmentHeader {
		return ErrUnknownTag{Tag: tag}
	}
	s.TimeStampHi = binary.LittleEndian.Uint32(data[0:4]) & 0x00ffffff
	s.TimeStampLo = binary.LittleEndian.Uint32(data[4:8])
	s.BaseLayer = layers.BaseLayer{
		Contents: data[:RecordHeaderSize],
		Payload:  data[RecordHeaderSize:],
	}
	return nil
}

func (s *SegmentHeaderLayer) String() string {
	return fmt.Sprintf("%06x:%08x", s.TimeStampHi, s.TimeStampLo)
}

func DecodeSegmentHeaderLayer(data []byte, p gopacket.PacketBuilder) error {
	s := &SegmentHeaderLayer{}
	if err := s.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(s)
	return nil
}
