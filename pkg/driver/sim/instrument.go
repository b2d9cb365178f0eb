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
	"golang.org/x/exp/rand"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
)

type vertical struct {
	fullScale float64
	offset    float64
	coupling  int
	bandwidth int
}

type avgKey struct {
	channel int
	param   string
}

type instrument struct {
	model     *Model
	serial    int
	bus       int
	slot      int
	open      bool
	simulated bool
	rng       *rand.Rand
	src       rand.Source

	sampInterval float64
	delayTime    float64
	nbrSamples   int
	nbrSegments  int
	nbrBanks     int
	vertical     map[int]*vertical
	trigPattern  uint32
	trigChannel  int
	trigCoupling int
	trigSlope    int
	trigLevel    float64
	mode         int
	modifier     int
	modeFlags    int
	converters   int
	usedChannels int
	avg          map[avgKey]float64
	gates        map[int][]driver.GateParameters
	attributes   map[string]string
	controlIO    map[int]int

	running    bool
	forced     bool
	polls      int
	processing bool
	clock      uint64
	last       *capture

	fw *firmware
	t3 *t3State
}

func newInstrument(m *Model, index int, src rand.Source) *instrument {
	inst := &instrument{
		model:  m,
		serial: firstSerial + index,
		bus:    2 + index/8,
		slot:   10 + index%8,
		src:    src,
		rng:    rand.New(src),
	}
	inst.reset()
	return inst
}

func (inst *instrument) reset() {
	inst.sampInterval = 1e-8
	if inst.model.MinSampInterval > inst.sampInterval {
		inst.sampInterval = inst.model.MinSampInterval
	}
	inst.delayTime = 0
	inst.nbrSamples = 1000
	inst.nbrSegments = 1
	inst.nbrBanks = 1
	inst.vertical = make(map[int]*vertical)
	for ch := 1; ch <= inst.model.NbrChannels; ch++ {
		inst.vertical[ch] = &vertical{fullScale: 1.0, coupling: 3}
	}
	inst.trigPattern = 1
	inst.trigChannel = 1
	inst.mode = driver.ModeDigitizer
	inst.modifier = 0
	inst.modeFlags = 0
	inst.converters = 1
	inst.usedChannels = 0
	inst.avg = make(map[avgKey]float64)
	inst.gates = make(map[int][]driver.GateParameters)
	inst.attributes = make(map[string]string)
	inst.controlIO = make(map[int]int)
	inst.running = false
	inst.forced = false
	inst.polls = 0
	inst.processing = false
	inst.last = nil
	inst.fw = nil
	inst.t3 = nil
}

func (inst *instrument) close() {
	inst.reset()
	inst.open = false
}

func (inst *instrument) requireType(t driver.DeviceType) error {
	if inst.model.DevType != t {
		return driver.ErrNotSupported
	}
	return nil
}

// checkChannel accepts input channels and negative external trigger inputs
func (inst *instrument) checkChannel(ch int) error {
	if ch == 0 || ch > inst.model.NbrChannels || ch < -1 {
		return driver.ErrInvalidParameter
	}
	return nil
}

func (inst *instrument) vert(ch int) *vertical {
	if v, ok := inst.vertical[ch]; ok {
		return v
	}
	return &vertical{fullScale: 1.0, coupling: 3}
}

func (inst *instrument) avgValue(ch int, param string, def float64) float64 {
	if v, ok := inst.avg[avgKey{ch, param}]; ok {
		return v
	}
	if v, ok := inst.avg[avgKey{0, param}]; ok {
		return v
	}
	return def
}

func (inst *instrument) avgInt(ch int, param string, def int) int {
	return int(inst.avgValue(ch, param, float64(def)))
}

// tick advances the trigger time stamp clock by about one millisecond
func (inst *instrument) tick() uint64 {
	inst.clock += timestampStepPs + uint64(inst.rng.Intn(1000))*1000
	return inst.clock
}
