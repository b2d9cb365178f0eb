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
	"fmt"
	"time"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/acquire"
	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/output"
)

const (
	digitizerSampInterval = 1e-8
	digitizerSamples      = 1000
	multiSegments         = 10
	sarBanks              = 10
	sarLoops              = 10
	sarWait               = 100 * time.Millisecond
)

func init() {
	register(&Program{
		Name:  "single",
		Short: "Single segment acquisition, 8-bit samples converted to volts",
		Run:   runSingle,
	})
	register(&Program{
		Name:  "volts",
		Short: "Single segment acquisition read in volts by the driver",
		Run:   runVolts,
	})
	register(&Program{
		Name:  "multiseg",
		Short: "Multi segment acquisition, 8-bit samples",
		Run: func(ctx context.Context, env *Env) error {
			return runMultiSeg(ctx, env, driver.ReadInt8, "MultiSeg.data")
		},
	})
	register(&Program{
		Name:  "multiseg16",
		Short: "Multi segment acquisition, 16-bit samples",
		Run: func(ctx context.Context, env *Env) error {
			return runMultiSeg(ctx, env, driver.ReadInt16, "MultiSeg16.data")
		},
	})
	register(&Program{
		Name:  "sar",
		Short: "Simultaneous acquisition and readout over memory banks",
		Run:   runSAR,
	})
}

func digitizerSetup(fullScale float64, segments int) *Setup {
	return &Setup{
		SampInterval: digitizerSampInterval,
		Memory:       &Memory{Samples: digitizerSamples, Segments: segments},
		Verticals:    []Vertical{{Channel: 1, FullScale: fullScale, Coupling: 3}},
		Trigger:      &Trigger{Pattern: 1, Channel: 1, Level1: 20},
	}
}

func runSingle(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "digitizer", "", digitizer)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.apply(digitizerSetup(1.0, 1)); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := s.acquire(ctx, env.waitTimeout()); err != nil {
		return err
	}
	w, err := acquire.ReadVolts(env.Driver, s.id, 1, digitizerSamples)
	if err != nil {
		return err
	}
	return env.save("Acqiris.data", func(out *output.Writer) {
		out.Comment("Agilent Acqiris Waveform Channel 1")
		out.Comment("Samples acquired: %d", len(w.Volts))
		out.Comment("Voltage")
		for _, v := range w.Volts {
			out.Values(v)
		}
	})
}

func runVolts(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "digitizer", "", digitizer)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.apply(digitizerSetup(2.0, 1)); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := s.acquire(ctx, env.waitTimeout()); err != nil {
		return err
	}
	w, err := acquire.ReadReal64(env.Driver, s.id, 1, digitizerSamples)
	if err != nil {
		return err
	}
	return env.save("Volts.data", func(out *output.Writer) {
		out.Comment("Acqiris Waveforms")
		out.Field("Channel", 1)
		out.Comment("Samples acquired: %d", len(w.Volts))
		out.Comment("Voltage")
		for _, v := range w.Volts {
			out.Values(v)
		}
	})
}

func runMultiSeg(ctx context.Context, env *Env, dt driver.DataType, file string) error {
	s, err := env.open(ctx, "digitizer", "", digitizer)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.apply(digitizerSetup(2.0, multiSegments)); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := s.acquire(ctx, env.waitTimeout()); err != nil {
		return err
	}
	segs, err := acquire.ReadSegments(env.Driver, s.id, 1, dt, digitizerSamples, multiSegments)
	if err != nil {
		return err
	}
	return env.save(file, func(out *output.Writer) {
		out.Comment("Acqiris Waveforms")
		out.Field("Channel", 1)
		out.Comment("Samples acquired: %d", segs.Desc.ReturnedSamplesPerSeg)
		out.Comment("Segments acquired: %d", segs.Desc.ReturnedSegments)
		out.Comment("ADC counts")
		for _, counts := range segs.Counts {
			for _, c := range counts {
				out.Values(c)
			}
		}
		out.Comment("Voltage")
		for k := range segs.Counts {
			for _, v := range segs.Volts(k) {
				out.Values(v)
			}
		}
	})
}

// runSAR keeps one acquisition running over the memory banks. Every bank is
// read and freed while the next one fills.
func runSAR(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "digitizer with SAR mode", "", models("DC271", "DC282"))
	if err != nil {
		return err
	}
	defer s.Close()

	setup := digitizerSetup(1.0, 1)
	setup.Mode = &Mode{Mode: driver.ModeDigitizer, Flags: driver.FlagSAR}
	setup.Memory.Banks = sarBanks
	if err := s.apply(setup); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := driver.Filter("Acquire", env.Driver.Acquire(s.id)); err != nil {
		return err
	}
	defer s.stop()

	var prev float64
	for acq := 0; acq < env.loops(sarLoops); acq++ {
		res, err := acquire.WaitWithRetrigger(ctx, env.Driver, s.id, sarWait)
		if err != nil {
			return xerrors.Errorf("acquisition %d: %w", acq, err)
		}
		if res.Retriggered {
			env.printf("Acq: %d - forced trigger\n", acq)
		}
		w, err := acquire.ReadVolts(env.Driver, s.id, 1, digitizerSamples)
		if err != nil {
			return xerrors.Errorf("acquisition %d: %w", acq, err)
		}
		ts := w.Segment.Timestamp()
		if acq > 0 {
			env.printf("Acq: %d - TimeStamp difference : %g ms.\n", acq, (ts-prev)*1e-9)
		}
		prev = ts

		err = env.save(fmt.Sprintf("AcqirisLoop%d.data", acq), func(out *output.Writer) {
			out.Comment("Agilent Acqiris Waveform Channel 1, loop Nbr%d", acq)
			out.Comment("Samples acquired: %d", len(w.Volts))
			out.Comment("Voltage")
			for _, v := range w.Volts {
				out.Values(v)
			}
		})
		if err != nil {
			return err
		}
		if err := driver.Filter("FreeBank", env.Driver.FreeBank(s.id, 0)); err != nil {
			return err
		}
	}
	return nil
}
