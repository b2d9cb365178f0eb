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
	"sort"
	"strings"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
)

// Model describes a simulated instrument family member
type Model struct {
	Name            string
	DevType         driver.DeviceType
	NbrChannels     int
	NbrADCBits      int
	Options         string
	MinSampInterval float64
	MaxSamples      int
	SegmentPad      int
	Modes           []int
	SAR             bool
	// FPGA instruments accept logic device firmware
	FPGA      bool
	DataLinks int
	// Quantized averager parameters are rounded to the vertical resolution
	Quantized []string
}

func (m *Model) supportsMode(mode int) bool {
	for _, v := range m.Modes {
		if v == mode {
			return true
		}
	}
	return false
}

func (m *Model) quantized(param string) bool {
	for _, v := range m.Quantized {
		if v == param {
			return true
		}
	}
	return false
}

var models = map[string]*Model{}

func register(m *Model) {
	models[strings.ToUpper(m.Name)] = m
}

// LookupModel finds a model by name, case insensitive
func LookupModel(name string) (*Model, bool) {
	m, ok := models[strings.ToUpper(name)]
	return m, ok
}

// ModelNames returns the sorted names of all simulated models
func ModelNames() []string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

func init() {
	digitizer := func(name string, channels, bits int, si float64, sar bool) *Model {
		return &Model{
			Name:            name,
			DevType:         driver.DeviceDigitizer,
			NbrChannels:     channels,
			NbrADCBits:      bits,
			MinSampInterval: si,
			MaxSamples:      2 * 1024 * 1024,
			SegmentPad:      32,
			Modes:           []int{driver.ModeDigitizer},
			SAR:             sar,
		}
	}
	register(digitizer("DC110", 1, 8, 1e-9, false))
	register(digitizer("DC152", 1, 8, 0.5e-9, false))
	register(digitizer("DC270", 4, 8, 1e-9, false))
	register(digitizer("DC271", 4, 8, 0.5e-9, true))
	register(digitizer("DC282", 4, 10, 0.5e-9, true))
	register(digitizer("DC440", 2, 12, 2.5e-9, false))
	register(digitizer("DP110", 1, 8, 1e-9, false))
	register(digitizer("DP240", 2, 8, 0.5e-9, false))
	register(digitizer("DP310", 1, 12, 2e-9, false))

	register(&Model{
		Name:            "AP240",
		DevType:         driver.DeviceDigitizer,
		NbrChannels:     2,
		NbrADCBits:      8,
		Options:         "AVG PKTDC SSR",
		MinSampInterval: 0.5e-9,
		MaxSamples:      2 * 1024 * 1024,
		SegmentPad:      32,
		Modes:           []int{driver.ModeDigitizer, driver.ModeAverager, driver.ModeTDC, driver.ModeSSR},
	})
	register(&Model{
		Name:            "U1084A",
		DevType:         driver.DeviceDigitizer,
		NbrChannels:     2,
		NbrADCBits:      8,
		Options:         "AVG PKTDC",
		MinSampInterval: 0.25e-9,
		MaxSamples:      512 * 1024,
		SegmentPad:      32,
		Modes:           []int{driver.ModeDigitizer, driver.ModeAverager, driver.ModeTDC},
		Quantized:       []string{"Threshold", "NoiseBase", "StartDeltaPosPeakV", "ValidDeltaPosPeakV"},
	})
	register(&Model{
		Name:        "TC840",
		DevType:     driver.DeviceTDC,
		NbrChannels: 6,
		Options:     "MULTISTART",
	})
	register(&Model{
		Name:            "SC240",
		DevType:         driver.DeviceDigitizer,
		NbrChannels:     2,
		NbrADCBits:      8,
		Options:         "ODL",
		MinSampInterval: 0.5e-9,
		MaxSamples:      1024 * 1024,
		SegmentPad:      32,
		Modes:           []int{driver.ModeDigitizer, driver.ModeStreamDPU},
		FPGA:            true,
		DataLinks:       2,
	})
	register(&Model{
		Name:            "AC240",
		DevType:         driver.DeviceDigitizer,
		NbrChannels:     2,
		NbrADCBits:      8,
		MinSampInterval: 0.5e-9,
		MaxSamples:      1024 * 1024,
		SegmentPad:      32,
		Modes:           []int{driver.ModeDigitizer, driver.ModeStreamDPU},
		FPGA:            true,
	})
	register(&Model{
		Name:            "AC210",
		DevType:         driver.DeviceDigitizer,
		NbrChannels:     2,
		NbrADCBits:      8,
		MinSampInterval: 1e-9,
		MaxSamples:      1024 * 1024,
		SegmentPad:      32,
		Modes:           []int{driver.ModeDigitizer, driver.ModeStreamDPU},
		FPGA:            true,
	})
	register(&Model{
		Name:        "RC210",
		DevType:     driver.DeviceGenerator,
		NbrChannels: 1,
		Options:     "ARB",
	})
}
