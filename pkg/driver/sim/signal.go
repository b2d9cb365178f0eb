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

	"gonum.org/v1/gonum/stat/distuv"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
)

const (
	maxPulses     = 3
	noiseFraction = 0.005
	gateMargin    = 4
)

type pulse struct {
	pos   float64 // in samples
	ampl  float64 // in volts
	width float64 // in samples
}

type segment struct {
	horPos    float64
	timestamp uint64
	pulses    []pulse
	// volts per channel
	volts map[int][]float64
}

// capture is the content of the acquisition memory after a trigger
type capture struct {
	nbrSamples   int
	sampInterval float64
	waveforms    int
	segments     []*segment
}

// acqGeometry returns the samples and segments of the current mode
func (inst *instrument) acqGeometry() (int, int) {
	switch inst.mode {
	case driver.ModeAverager, driver.ModeTDC, driver.ModeSSR:
		return inst.avgInt(0, "NbrSamples", inst.nbrSamples), inst.avgInt(0, "NbrSegments", inst.nbrSegments)
	}
	return inst.nbrSamples, inst.nbrSegments
}

func (inst *instrument) nbrWaveforms() int {
	nw := inst.avgInt(0, "NbrRoundRobins", 0)
	if nw <= 0 {
		nw = inst.avgInt(0, "NbrWaveforms", 1)
	}
	if nw <= 0 {
		nw = 1
	}
	return nw
}

// generate fills a new capture with pulses on top of gaussian noise
func (inst *instrument) generate() *capture {
	nbrSamples, nbrSegments := inst.acqGeometry()
	c := &capture{
		nbrSamples:   nbrSamples,
		sampInterval: inst.sampInterval,
		waveforms:    inst.nbrWaveforms(),
		segments:     make([]*segment, nbrSegments),
	}
	phase := distuv.Uniform{Min: -inst.sampInterval, Max: 0, Src: inst.src}
	count := distuv.Poisson{Lambda: 1.5, Src: inst.src}
	where := distuv.Uniform{Min: 0.05 * float64(nbrSamples), Max: 0.95 * float64(nbrSamples), Src: inst.src}
	height := distuv.Uniform{Min: 0.2, Max: 0.45, Src: inst.src}
	width := distuv.Uniform{Min: 1.5, Max: 4, Src: inst.src}

	for j := range c.segments {
		seg := &segment{
			horPos:    phase.Rand(),
			timestamp: inst.tick(),
			volts:     make(map[int][]float64),
		}
		n := 1 + int(count.Rand())
		if n > maxPulses {
			n = maxPulses
		}
		fullScale := inst.vert(1).fullScale
		for k := 0; k < n; k++ {
			seg.pulses = append(seg.pulses, pulse{
				pos:   where.Rand(),
				ampl:  -height.Rand() * fullScale,
				width: width.Rand(),
			})
		}
		for ch := 1; ch <= inst.model.NbrChannels; ch++ {
			seg.volts[ch] = inst.render(seg.pulses, nbrSamples, ch)
		}
		c.segments[j] = seg
	}
	return c
}

func (inst *instrument) render(pulses []pulse, n, ch int) []float64 {
	v := inst.vert(ch)
	noise := distuv.Normal{Mu: 0, Sigma: noiseFraction * v.fullScale, Src: inst.src}
	out := make([]float64, n)
	for i := range out {
		s := noise.Rand()
		for _, p := range pulses {
			x := (float64(i) - p.pos) / p.width
			if math.Abs(x) < 8 {
				s += p.ampl * math.Exp(-0.5*x*x)
			}
		}
		out[i] = s
	}
	return out
}

// gain returns the volts per count of a data type
func (inst *instrument) gain(ch int, dt driver.DataType) float64 {
	fs := inst.vert(ch).fullScale
	if dt == driver.ReadInt16 {
		return fs / 65536
	}
	return fs / 256
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// counts converts volts into ADC counts, v = counts*gain - offset
func (inst *instrument) counts(ch int, dt driver.DataType, volts float64) float64 {
	g := inst.gain(ch, dt)
	c := math.Round((volts + inst.vert(ch).offset) / g)
	if dt == driver.ReadInt16 {
		return clamp(c, math.MinInt16, math.MaxInt16)
	}
	return clamp(c, math.MinInt8, math.MaxInt8)
}

// average sums nw noisy copies of a segment in 8-bit counts
func (inst *instrument) average(seg *segment, ch, nw int) []float64 {
	v := inst.vert(ch)
	g := inst.gain(ch, driver.ReadInt8)
	noise := distuv.Normal{Mu: 0, Sigma: noiseFraction * v.fullScale / g * math.Sqrt(float64(nw)), Src: inst.src}
	invert := inst.avgInt(ch, "InvertData", 0) != 0
	nsa := inst.avgInt(ch, "ThresholdEnable", 0) != 0
	threshold := inst.avgValue(ch, "Threshold", 0)
	base := 0.0
	if inst.avgInt(ch, "NoiseBaseEnable", 0) != 0 {
		base = inst.avgValue(ch, "NoiseBase", 0)
	}
	volts := seg.volts[ch]
	out := make([]float64, len(volts))
	for i, s := range volts {
		if invert {
			s = -s
		}
		if nsa && s > threshold {
			s = base
		}
		out[i] = math.Round(float64(nw)*inst.counts(ch, driver.ReadInt8, s) + noise.Rand())
	}
	return out
}

// thresholdGates finds the sample ranges crossing the threshold
func (inst *instrument) thresholdGates(seg *segment, ch int) []driver.GateParameters {
	threshold := inst.avgValue(ch, "Threshold", -0.1)
	invert := inst.avgInt(ch, "InvertData", 0) != 0
	volts := seg.volts[ch]
	crossed := func(s float64) bool {
		if invert {
			s = -s
		}
		if threshold < 0 {
			return s < threshold
		}
		return s > threshold
	}
	var gates []driver.GateParameters
	for i := 0; i < len(volts); i++ {
		if !crossed(volts[i]) {
			continue
		}
		start := i
		for i < len(volts) && crossed(volts[i]) {
			i++
		}
		lo, hi := start-gateMargin, i+gateMargin
		if lo < 0 {
			lo = 0
		}
		if hi > len(volts) {
			hi = len(volts)
		}
		if n := len(gates); n > 0 && gates[n-1].GatePos+gates[n-1].GateLength >= lo {
			gates[n-1].GateLength = hi - gates[n-1].GatePos
			continue
		}
		gates = append(gates, driver.GateParameters{GatePos: lo, GateLength: hi - lo})
	}
	return gates
}
