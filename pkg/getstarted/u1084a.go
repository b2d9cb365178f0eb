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

package getstarted

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/acquire"
	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/output"
)

const (
	u1084aSamples  = 10240
	u1084aAvgWait  = 5 * time.Second
	u1084aPeakWait = 10 * time.Second
)

func init() {
	register(&Program{
		Name:  "u1084avg",
		Short: "U1084A averager with noise suppression",
		Run:   runU1084AAvg,
	})
	register(&Program{
		Name:  "u1084peak",
		Short: "U1084A PeakTDC, last trace and peak histogram",
		Run:   runU1084APeakTDC,
	})
}

// u1084aSetup is the common interleaved configuration: 4 GS/s on channel 1
// and the control IO routing of the trigger output
func u1084aSetup(mode int) *Setup {
	return &Setup{
		Mode:         &Mode{Mode: mode},
		Combination:  &Combination{Converters: 2, Channels: 1},
		SampInterval: 2.5e-10,
		Verticals:    []Vertical{{Channel: 1, FullScale: 0.1, Coupling: 3}},
		ControlIO: []ControlIO{
			{Connector: 1, Signal: 31},
			{Connector: 2, Signal: 21},
			{Connector: 3, Signal: 1},
		},
	}
}

func runU1084AAvg(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "U1084A", InitNoCalibration, models("U1084A"))
	if err != nil {
		return err
	}
	defer s.Close()

	setup := u1084aSetup(driver.ModeAverager)
	setup.Trigger = &Trigger{Pattern: 0x80000000, Channel: -1, Coupling: 3, Level1: 1000}
	setup.ControlIO = append([]ControlIO{{Connector: 9, Signal: 0, Qualifier1: 1}}, setup.ControlIO...)
	setup.Avg = []AvgParam{
		{0, "NbrSamples", u1084aSamples},
		{0, "NbrWaveforms", avgWaveforms},
		{0, "TrigAlways", 1},
		{0, "SyncOnTrigOutSync", 1},
		{1, "InvertData", 1},
		{1, "ThresholdEnable", 1},
		{1, "Threshold", 0.0},
		{1, "NoiseBaseEnable", 1},
		{1, "NoiseBase", 0.0},
	}
	if err := s.apply(setup); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := s.calibrate(); err != nil {
		return err
	}
	if err := s.acquire(ctx, u1084aAvgWait); err != nil {
		return err
	}
	avg, err := acquire.ReadAverage(env.Driver, s.id, 1, u1084aSamples)
	if err != nil {
		return err
	}
	return env.save("U1084AAvg.data", func(out *output.Writer) {
		out.Comment("Agilent U1084A Averager Channel 1")
		out.Field("Averaged waveforms", avg.Desc.NbrAvgWforms)
		out.Line("Average")
		for _, v := range avg.Sums {
			out.Values(v)
		}
	})
}

func runU1084APeakTDC(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "U1084A", InitNoCalibration, models("U1084A"))
	if err != nil {
		return err
	}
	defer s.Close()

	setup := u1084aSetup(driver.ModeTDC)
	setup.Trigger = &Trigger{Pattern: 1, Channel: 1, Level1: 0}
	setup.Avg = []AvgParam{
		{0, "NbrSamples", u1084aSamples},
		{0, "NbrWaveforms", avgWaveforms},
		{0, "TrigAlways", 1},
		{1, "InvertData", 1},
		{1, "StartDeltaPosPeakV", 0.002},
		{1, "ValidDeltaPosPeakV", 0.002},
		{1, "NoiseBaseEnable", 1},
		{1, "NoiseBase", 0.0},
	}
	if err := s.apply(setup); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := s.calibrate(); err != nil {
		return err
	}
	if err := s.acquire(ctx, u1084aPeakWait); err != nil {
		return err
	}
	trace, err := acquire.ReadSegments(env.Driver, s.id, 1, driver.ReadInt8, u1084aSamples, 1)
	if err != nil {
		return err
	}
	h, err := acquire.ReadHistogram(env.Driver, s.id, 1, u1084aSamples, 0)
	if err != nil {
		return err
	}
	nw := h.Desc.NbrAvgWforms
	if nw < 1 {
		nw = 1
	}
	last := trace.Counts[0]
	n := len(last)
	if len(h.Counts) < n {
		n = len(h.Counts)
	}
	return env.save("U1084APeakTDC.data", func(out *output.Writer) {
		out.Comment("Agilent U1084A PeakTDC Channel 1")
		out.Field("Averaged waveforms", nw)
		out.Line("Last Trace\tHistogram")
		for i := 0; i < n; i++ {
			out.Values(last[i], float64(h.Counts[i])/float64(nw))
		}
	})
}
