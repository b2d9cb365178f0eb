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

package driver

import (
	"fmt"
)

// Session is an instrument handle returned by InitWithOptions
type Session uint32

type DeviceType int

const (
	DeviceDigitizer DeviceType = 1
	DeviceGenerator DeviceType = 2
	DeviceTDC       DeviceType = 4
)

func (t DeviceType) String() string {
	switch t {
	case DeviceDigitizer:
		return "Digitizer"
	case DeviceGenerator:
		return "Generator"
	case DeviceTDC:
		return "TDC"
	}
	return fmt.Sprintf("Unknown(%d)", int(t))
}

// Mode values accepted by ConfigMode
const (
	ModeDigitizer = 0
	ModeStreamDPU = 1
	ModeAverager  = 2
	ModeBuffered  = 3
	ModeTDC       = 5
	ModeSSR       = 7
)

// FlagSAR in the ConfigMode flags selects the simultaneous acquisition and readout memory mode
const FlagSAR = 10

type DataType int

const (
	ReadInt8 DataType = iota
	ReadInt16
	ReadInt32
	ReadReal64
	ReadRawData
)

// Size returns the size of one sample in bytes
func (t DataType) Size() int {
	switch t {
	case ReadInt8, ReadRawData:
		return 1
	case ReadInt16:
		return 2
	case ReadInt32:
		return 4
	case ReadReal64:
		return 8
	}
	return 0
}

type ReadMode int

const (
	ReadModeStdW ReadMode = iota
	ReadModeSeqW
	ReadModeAvgW
	ReadModeGated
	ReadModePeak
	ReadModeShAvgW
	ReadModeSShAvgW
	ReadModeSSRW
	ReadModeZsW
	ReadModeHistogram
	ReadModePeakPic
)

// ReadParameters describes a readout request
type ReadParameters struct {
	DataType         DataType
	ReadMode         ReadMode
	FirstSegment     int
	NbrSegments      int
	FirstSampleInSeg int
	NbrSamplesInSeg  int
	SegmentOffset    int
	// DataArraySize is the size of the caller buffer in bytes
	DataArraySize    int
	SegDescArraySize int
	Flags            uint32
}

// DataDescriptor is filled by ReadData
type DataDescriptor struct {
	ReturnedSamplesPerSeg int
	IndexFirstPoint       int
	SampTime              float64
	VGain                 float64
	VOffset               float64
	ReturnedSegments      int
	NbrAvgWforms          int
	ActualDataSize        int
}

type SegmentDescriptor struct {
	HorPos      float64
	TimeStampLo uint32
	TimeStampHi uint32
	// ActualTriggers is the number of accumulated triggers in averager modes
	ActualTriggers int
}

// Timestamp returns the trigger time stamp in picoseconds
func (s SegmentDescriptor) Timestamp() float64 {
	return float64(uint64(s.TimeStampHi)<<32 | uint64(s.TimeStampLo))
}

type GateParameters struct {
	GatePos    int
	GateLength int
}

// InstrumentData is what getInstrumentData reports for a session
type InstrumentData struct {
	Name      string
	SerialNbr int
	BusNbr    int
	SlotNbr   int
}

// T3ReadParameters describes a time-to-digital converter readout
type T3ReadParameters struct {
	DataType DataType
	// NbrSamples limits the number of returned values, 0 reads everything
	NbrSamples int
}

type T3DataDescriptor struct {
	NbrSamples int
}
