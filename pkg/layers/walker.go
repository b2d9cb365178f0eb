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
	"github.com/google/gopacket"
)

// Record is one record of a packed gate/peak/segment stream
type Record struct {
	Offset int
	Tag    uint8
	Layer  gopacket.Layer
}

// Size returns the number of bytes the record occupies in the stream
func (r Record) Size() int {
	switch l := r.Layer.(type) {
	case *GateHeaderLayer:
		return RecordHeaderSize + int(l.Length)
	}
	return RecordHeaderSize
}

// PayloadLen returns the number of sample bytes following the header
func (r Record) PayloadLen() int {
	if g, ok := r.Layer.(*GateHeaderLayer); ok {
		return len(g.Payload)
	}
	return 0
}

func decodeRecord(data []byte) (gopacket.Layer, error) {
	if len(data) < RecordHeaderSize {
		return nil, ErrTruncated{Need: RecordHeaderSize, Have: len(data)}
	}
	df := gopacket.NilDecodeFeedback
	switch tag := tagOf(data); tag {
	case TagGateHeader:
		g := &GateHeaderLayer{}
		return g, g.DecodeFromBytes(data, df)
	case TagPeak:
		pk := &PeakLayer{}
		return pk, pk.DecodeFromBytes(data, df)
	case TagSegmentHeader:
		s := &SegmentHeaderLayer{}
		return s, s.DecodeFromBytes(data, df)
	default:
		return nil, ErrUnknownTag{Tag: tag}
	}
}

// Walk calls fn for every record in data. It stops at the end of data, at the
// first malformed record or at the first error returned by fn.
func Walk(data []byte, fn func(Record) error) error {
	off := 0
	for off < len(data) {
		layer, err := decodeRecord(data[off:])
		if err != nil {
			return withOffset(err, off)
		}
		rec := Record{Offset: off, Tag: tagOf(data[off:]), Layer: layer}
		if err := fn(rec); err != nil {
			return err
		}
		off += rec.Size()
	}
	return nil
}

// DecodeRecords returns all records of data
func DecodeRecords(data []byte) ([]Record, error) {
	var records []Record
	err := Walk(data, func(r Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Segment groups the gates and peaks following a segment header
type Segment struct {
	Header *SegmentHeaderLayer
	Gates  []*GateHeaderLayer
	Peaks  []*PeakLayer
}

// DecodeSegments groups the records of data by segment. Records before the
// first segment header go to a segment with a nil Header.
func DecodeSegments(data []byte) ([]*Segment, error) {
	var segments []*Segment
	var current *Segment
	err := Walk(data, func(r Record) error {
		switch l := r.Layer.(type) {
		case *SegmentHeaderLayer:
			current = &Segment{Header: l}
			segments = append(segments, current)
			return nil
		}
		if current == nil {
			current = &Segment{}
			segments = append(segments, current)
		}
		switch l := r.Layer.(type) {
		case *GateHeaderLayer:
			current.Gates = append(current.Gates, l)
		case *PeakLayer:
			current.Peaks = append(current.Peaks, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return segments, nil
}

// Encoder concatenates serialized records into one stream
type Encoder struct {
	buf []byte
}

// Append serializes ls as one record, e.g. a GateHeaderLayer followed by its
// samples as gopacket.Payload
func (e *Encoder) Append(ls ...gopacket.SerializableLayer) error {
	sb := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(sb, gopacket.SerializeOptions{FixLengths: true}, ls...); err != nil {
		return err
	}
	e.buf = append(e.buf, sb.Bytes()...)
	return nil
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}
