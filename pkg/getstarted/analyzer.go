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
	"jinr.ru/greenlab/go-acqiris/pkg/layers"
	"jinr.ru/greenlab/go-acqiris/pkg/output"
)

const (
	avgSamples      = 1024
	avgWaveforms    = 100
	avgWait         = 10 * time.Second
	histoSamples    = 1024
	histoHorzRes    = 4
	histoRoundRobin = 100000
	peakSamples     = 2048
	peakGateLength  = 512
	peakBatches     = 5
	processWait     = time.Second
	gatesSegments   = 12
	gatesLoops      = 10
	gatesWait       = 2 * time.Second

	// maxGates is the number of gates per segment the record buffers are sized for
	maxGates = 3
)

// recordBufferSize is the byte size of a record stream of nbrSegments segments
func recordBufferSize(nbrSegments int) int {
	return (layers.RecordHeaderSize + (layers.RecordHeaderSize+peakGateLength)*maxGates) * nbrSegments
}

func init() {
	register(&Program{
		Name:  "avg",
		Short: "Averager mode, sum of 100 waveforms",
		Run: func(ctx context.Context, env *Env) error {
			return runAverager(ctx, env, false)
		},
	})
	register(&Program{
		Name:  "avgnsa",
		Short: "Averager mode with noise suppression",
		Run: func(ctx context.Context, env *Env) error {
			return runAverager(ctx, env, true)
		},
	})
	register(&Program{
		Name:  "histotdc",
		Short: "PeakTDC mode histogram of the peak positions",
		Run:   runHistoTDC,
	})
	register(&Program{
		Name:  "peaktdc",
		Short: "PeakTDC mode peaks of user defined gates",
		Run:   runPeakTDC,
	})
	register(&Program{
		Name:  "gates",
		Short: "Sustained sequential recording of threshold gates",
		Run:   runThresholdGates,
	})
}

func averagerSetup(nsa bool) *Setup {
	setup := &Setup{
		Mode:         &Mode{Mode: driver.ModeAverager},
		SampInterval: 10e-9,
		Verticals:    []Vertical{{Channel: 1, FullScale: 0.5, Coupling: 3}},
		Trigger:      &Trigger{Pattern: 1, Channel: 1, Level1: 10},
		Avg: []AvgParam{
			{0, "NbrSamples", avgSamples},
			{0, "NbrSegments", 1},
			{0, "StartDelay", 0},
			{0, "StopDelay", 0},
			{0, "NbrWaveforms", avgWaveforms},
			{0, "DitherRange", 15},
			{0, "TrigResync", 1},
		},
	}
	if nsa {
		setup.Avg = append(setup.Avg,
			AvgParam{1, "ThresholdEnable", 1},
			AvgParam{1, "Threshold", 0},
			AvgParam{1, "NoiseBaseEnable", 1},
			AvgParam{1, "NoiseBase", -0.25},
		)
	}
	return setup
}

func runAverager(ctx context.Context, env *Env, nsa bool) error {
	s, err := env.open(ctx, "averager", "", withOption("AVG"))
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.apply(averagerSetup(nsa)); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := s.acquire(ctx, avgWait); err != nil {
		return err
	}
	avg, err := acquire.ReadAverage(env.Driver, s.id, 1, avgSamples)
	if err != nil {
		return err
	}
	file, title := "Averager.data", "Agilent Acqiris Averager Channel 1"
	if nsa {
		file, title = "AveragerNSA.data", "Agilent Acqiris Averager Channel 1, noise suppressed"
	}
	return env.save(file, func(out *output.Writer) {
		out.Comment(title)
		out.Comment("Samples acquired: %d", len(avg.Sums))
		out.Field("Averaged waveforms", avg.Desc.NbrAvgWforms)
		out.Comment("ADC sums")
		for _, v := range avg.Sums {
			out.Values(v)
		}
	})
}

func histoSetup() *Setup {
	return &Setup{
		Mode:    &Mode{Mode: driver.ModeTDC},
		Trigger: &Trigger{Pattern: 0x80000000, Channel: -1, Level1: 500},
		Avg: []AvgParam{
			{0, "NbrSamples", histoSamples},
			{0, "StartDelay", 32},
			{0, "NbrSegments", 1},
			{1, "GateType", 2},
			{1, "ThresholdEnable", 1},
			{1, "Threshold", -0.1},
			{1, "InvertData", 0},
			{1, "TdcHistogramMode", 1},
			{1, "TdcHistogramIncrement", 2},
			{1, "TdcHistogramHorzRes", histoHorzRes},
			{1, "TdcHistogramVertRes", 4},
			{1, "TdcOverlaySegments", 0},
			{1, "TdcHistogramDepth", 1},
			{1, "TdcProcessType", 2},
			{1, "StartDeltaPosPeakV", 0.02},
			{1, "ValidDeltaPosPeakV", 0.02},
		},
	}
}

func runHistoTDC(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "PeakTDC digitizer", "", withOption("PKTDC"))
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.apply(histoSetup()); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	// the first acquisition and readout clear the histogram memory
	if err := s.acquire(ctx, env.waitTimeout()); err != nil {
		return err
	}
	if _, err := acquire.ReadHistogram(env.Driver, s.id, 1, histoSamples, histoHorzRes); err != nil {
		return xerrors.Errorf("could not clear histogram: %w", err)
	}

	if err := s.configAvg(AvgParam{0, "NbrRoundRobins", histoRoundRobin}); err != nil {
		return err
	}
	if err := s.acquire(ctx, env.waitTimeout()); err != nil {
		return err
	}
	h, err := acquire.ReadHistogram(env.Driver, s.id, 1, histoSamples, histoHorzRes)
	if err != nil {
		return err
	}
	return env.save("HistoTDC.data", func(out *output.Writer) {
		out.Comment("Agilent Acqiris PeakTDC Histogram Channel 1")
		out.Field("Bins", len(h.Counts))
		out.Field("Averaged waveforms", h.Desc.NbrAvgWforms)
		bins := len(h.Counts)
		if h.Desc.ReturnedSegments > 1 {
			bins /= h.Desc.ReturnedSegments
		}
		for seg := 0; seg*bins < len(h.Counts); seg++ {
			out.Comment("Segment %d", seg)
			for n, count := range h.Counts[seg*bins : (seg+1)*bins] {
				if count != 0 {
					out.Values(n, count)
				}
			}
		}
	})
}

func runPeakTDC(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "PeakTDC digitizer", InitNoCalibration, withOption("PKTDC"))
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.calibrate(); err != nil {
		return err
	}

	setup := &Setup{
		Mode:         &Mode{Mode: driver.ModeTDC},
		Combination:  &Combination{Converters: 2, Channels: 1},
		SampInterval: 0.5e-9,
		Verticals:    []Vertical{{Channel: 1, FullScale: 1.0, Coupling: 3}},
		Trigger:      &Trigger{Pattern: 1, Channel: 1, Level1: 10},
		Avg: []AvgParam{
			{0, "NbrSamples", peakSamples},
			{0, "NbrSegments", 1},
			{1, "InvertData", 1},
			{1, "StartDeltaPosPeakV", 0.02},
			{1, "ValidDeltaPosPeakV", 0.02},
			{1, "GateType", 1},
		},
		Gates: &Gates{Channel: 1, Gates: []driver.GateParameters{
			{GatePos: 0, GateLength: peakGateLength},
			{GatePos: peakGateLength, GateLength: peakGateLength},
			{GatePos: 3 * peakGateLength, GateLength: peakGateLength},
		}},
	}
	if err := s.apply(setup); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := driver.Filter("Acquire", env.Driver.Acquire(s.id)); err != nil {
		return err
	}
	for i := 0; i < peakBatches; i++ {
		flags := 1
		if i == peakBatches-1 {
			flags = 2
		}
		if err := s.process(1, flags, processWait); err != nil {
			return xerrors.Errorf("batch %d: %w", i, err)
		}
	}

	size := recordBufferSize(1)
	gates, err := acquire.ReadRecords(env.Driver, s.id, 1, driver.ReadModeSSRW, 1, size)
	if err != nil {
		return err
	}
	peaks, err := acquire.ReadRecords(env.Driver, s.id, 1, driver.ReadModePeak, 1, size)
	if err != nil {
		return err
	}
	return env.save("PeakTDC.data", func(out *output.Writer) {
		out.Comment("Agilent Acqiris PeakTDC Channel 1")
		out.Comment("Gates")
		for _, r := range gates.Records {
			switch l := r.Layer.(type) {
			case *layers.SegmentHeaderLayer:
				out.Comment("Segment: %s", l)
			case *layers.GateHeaderLayer:
				out.Comment("Gate: pos %d len %d", l.Pos, l.Length)
			}
		}
		out.Comment("Peaks")
		for _, r := range peaks.Records {
			switch l := r.Layer.(type) {
			case *layers.SegmentHeaderLayer:
				out.Comment("Segment: %s", l)
			case *layers.GateHeaderLayer:
				out.Comment("Gate: pos %d", l.Pos)
			case *layers.PeakLayer:
				out.Values(l.ScaledPos(), l.ScaledAmplitude())
			}
		}
	})
}

// process runs ProcessData and waits for it
func (s *session) process(processType, flags int, timeout time.Duration) error {
	if err := driver.Filter("ProcessData", s.env.Driver.ProcessData(s.id, processType, flags)); err != nil {
		return err
	}
	return driver.Filter("WaitForEndOfProcessing", s.env.Driver.WaitForEndOfProcessing(s.id, timeout))
}

func runThresholdGates(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "SSR digitizer", InitNoCalibration, withOption("SSR"))
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.calibrate(); err != nil {
		return err
	}

	setup := &Setup{
		Mode:         &Mode{Mode: driver.ModeSSR},
		SampInterval: 1e-9,
		Verticals:    []Vertical{{Channel: 1, FullScale: 2.0, Coupling: 3}},
		Trigger:      &Trigger{Pattern: 1, Channel: 1, Level1: 10},
		Avg: []AvgParam{
			{0, "NbrSamples", avgSamples},
			{0, "NbrSegments", gatesSegments},
			{0, "StartDelay", 0},
			{0, "StopDelay", 0},
			{1, "GateType", 2},
			{1, "Threshold", -0.125},
			{1, "InvertData", 0},
		},
	}
	if err := s.apply(setup); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := driver.Filter("Acquire", env.Driver.Acquire(s.id)); err != nil {
		return err
	}

	loops := env.loops(gatesLoops)
	var reads []*acquire.Records
	for i := 0; i < loops; i++ {
		flags := 1
		if i == loops-1 {
			flags = 3
		}
		err := s.process(0, flags, gatesWait)
		if driver.StatusOf(err) == driver.ErrProcTimeout {
			env.printf("Processing timeout at iteration %d\n", i)
			s.stop()
			break
		}
		if err != nil {
			return xerrors.Errorf("iteration %d: %w", i, err)
		}
		r, err := acquire.ReadRecords(env.Driver, s.id, 1, driver.ReadModeSSRW, gatesSegments, recordBufferSize(gatesSegments))
		if err != nil {
			return xerrors.Errorf("iteration %d: %w", i, err)
		}
		reads = append(reads, r)
	}

	return env.save("ThresholdGates.data", func(out *output.Writer) {
		out.Comment("Agilent Acqiris Threshold Gates Channel 1")
		seg := 0
		for _, r := range reads {
			gate := 0
			for _, rec := range r.Records {
				switch l := rec.Layer.(type) {
				case *layers.SegmentHeaderLayer:
					out.Comment("Segment %d, timestamp %s", seg, l)
					seg++
					gate = 0
				case *layers.GateHeaderLayer:
					out.Comment("  Gate %d: %d samples at position %d", gate, l.Length, l.Pos)
					for i, v := range l.Samples() {
						out.Values(int(l.Pos)+i, v)
					}
					gate++
				}
			}
		}
	})
}
