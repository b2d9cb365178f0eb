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

// FrameHeaderSize is the size of a monitor frame header (4 words)
const FrameHeaderSize = 16

// NbrParameterWords is the number of words in a parameter frame
const NbrParameterWords = 1024

type FrameType uint8

const (
	FrameRaw         FrameType = 0x00
	FrameAccumulated FrameType = 0x01
	FrameParameters  FrameType = 0x02
)

func (t FrameType) String() string {
	switch t {
	case FrameRaw:
		return "Raw Waveform"
	case FrameAccumulated:
		return "Accumulated Waveform"
	case FrameParameters:
		return "Parameter data"
	}
	return fmt.Sprintf("Frame type %d", uint8(t))
}

// timestamp units of the monitor frame header
const (
	frameTimeStampHiUnit = 0.016777216
	frameTimeStampLoUnit = 1e-9
)

var FrameHeaderLayerType = gopacket.RegisterLayerType(FrameHeaderLayerNum,
	gopacket.LayerTypeMetadata{Name: "FrameHeaderLayerType", Decoder: gopacket.DecodeFunc(DecodeFrameHeaderLayer)})

// FrameHeaderLayer opens a monitor buffer frame
type FrameHeaderLayer struct {
	layers.BaseLayer
	Type        FrameType
	TimeStampHi uint32
	TimeStampLo uint32
}

func (f *FrameHeaderLayer) LayerType() gopacket.LayerType {
	return FrameHeaderLayerType
}

// Timestamp returns the frame time in seconds
func (f *FrameHeaderLayer) Timestamp() float64 {
	return float64(f.TimeStampHi)*frameTimeStampHiUnit + float64(f.TimeStampLo)*frameTimeStampLoUnit
}

func (f *FrameHeaderLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(FrameHeaderSize)
	if err != nil {
		return err
	}
	putTagged(bytes, uint8(f.Type), f.TimeStampHi)
	binary.LittleEndian.PutUint32(bytes[4:8], f.TimeStampLo)
	binary.LittleEndian.PutUint32(bytes[8:12], 0)
	binary.LittleEndian.PutUint32(bytes[12:16], 0)
	return nil
}

func (f *FrameHeaderLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < FrameHeaderSize {
		df.SetTruncated()
		return ErrTruncated{Need: FrameHeaderSize, Have: len(data)}
	}
	word := binary.LittleEndian.Uint32(data[0:4])
	f.Type = FrameType(word >> 24)
	f.TimeStampHi = word & 0x00ffffff
	f.TimeStampLo = binary.LittleEndian.Uint32(data[4:8])
	f.BaseLayer = layers.BaseLayer{
		Contents: data[:FrameHeaderSize],
		Payload:  data[FrameHeaderSize:],
	}
	return nil
}

func DecodeFrameHeaderLayer(data []byte, p gopacket.PacketBuilder) error {
	f := &FrameHeaderLayer{}
	if err := f.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(f)
	return p.NextDecoder(gopacket.LayerTypePayload)
}

// MonitorBlock is a decoded streamer monitor buffer
type MonitorBlock struct {
	Raw         *FrameHeaderLayer
	RawSamples  []int8
	Accumulated *FrameHeaderLayer
	AccSamples  []int16
	Parameters  *FrameHeaderLayer
	ParamWords  []uint32
}

// MonitorBlockSize returns the byte size of a monitor block with nbrSamples samples per frame
func MonitorBlockSize(nbrSamples int) int {
	return FrameHeaderSize + nbrSamples + FrameHeaderSize + 2*nbrSamples + FrameHeaderSize + 4*NbrParameterWords
}

func decodeFrame(data []byte, off int, want FrameType) (*FrameHeaderLayer, error) {
	f := &FrameHeaderLayer{}
	if err := f.DecodeFromBytes(data[off:], gopacket.NilDecodeFeedback); err != nil {
		return nil, withOffset(err, off)
	}
	if f.Type != want {
		return nil, ErrUnknownTag{Offset: off, Tag: uint8(f.Type)}
	}
	return f, nil
}

// DecodeMonitorBlock decodes the raw, accumulated and parameter frames of a monitor buffer
func DecodeMonitorBlock(data []byte, nbrSamples int) (*MonitorBlock, error) {
	if len(data) < MonitorBlockSize(nbrSamples) {
		return nil, ErrTruncated{Need: MonitorBlockSize(nbrSamples), Have: len(data)}
	}
	block := &MonitorBlock{}
	off := 0
	var err error

	if block.Raw, err = decodeFrame(data, off, FrameRaw); err != nil {
		return nil, err
	}
	off += FrameHeaderSize
	block.RawSamples = make([]int8, nbrSamples)
	for i := range block.RawSamples {
		block.RawSamples[i] = int8(data[off+i])
	}
	off += nbrSamples

	if block.Accumulated, err = decodeFrame(data, off, FrameAccumulated); err != nil {
		return nil, err
	}
	off += FrameHeaderSize
	block.AccSamples = make([]int16, nbrSamples)
	for i := range block.AccSamples {
		block.AccSamples[i] = int16(binary.LittleEndian.Uint16(data[off+2*i:]))
	}
	off += 2 * nbrSamples

	if block.Parameters, err = decodeFrame(data, off, FrameParameters); err != nil {
		return nil, err
	}
	off += FrameHeaderSize
	block.ParamWords = make([]uint32, NbrParameterWords)
	for i := range block.ParamWords {
		block.ParamWords[i] = binary.LittleEndian.Uint32(data[off+4*i:])
	}
	return block, nil
}

// EncodeMonitorBlock is the inverse of DecodeMonitorBlock
func EncodeMonitorBlock(block *MonitorBlock) ([]byte, error) {
	var enc Encoder
	raw := make([]byte, len(block.RawSamples))
	for i, s := range block.RawSamples {
		raw[i] = byte(s)
	}
	if err := enc.Append(block.Raw, gopacket.Payload(raw)); err != nil {
		return nil, err
	}
	acc := make([]byte, 2*len(block.AccSamples))
	for i, s := range block.AccSamples {
		binary.LittleEndian.PutUint16(acc[2*i:], uint16(s))
	}
	if err := enc.Append(block.Accumulated, gopacket.Payload(acc)); err != nil {
		return nil, err
	}
	params := make([]byte, 4*len(block.ParamWords))
	for i, w := range block.ParamWords {
		binary.LittleEndian.PutUint32(params[4*i:], w)
	}
	if err := enc.Append(block.Parameters, gopacket.Payload(params)); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
