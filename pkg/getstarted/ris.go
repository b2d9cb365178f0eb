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

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/acquire"
	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/output"
	"jinr.ru/greenlab/go-acqiris/pkg/ris"
)

func init() {
	register(&Program{
		Name:  "ris",
		Short: "Random interleaved sampling by software",
		Run:   runRIS,
	})
}

// risSource acquires single waveforms by polling for the end of acquisition
type risSource struct {
	s          *session
	budget     int
	nbrSamples int
}

func (r *risSource) Acquire(ctx context.Context) ([]float64, float64, error) {
	drv, id := r.s.env.Driver, r.s.id
	if err := driver.Filter("Acquire", drv.Acquire(id)); err != nil {
		return nil, 0, err
	}
	if _, err := acquire.PollDone(ctx, drv, id, r.budget, 0); err != nil {
		return nil, 0, err
	}
	w, err := acquire.ReadReal64(drv, id, 1, r.nbrSamples)
	if err != nil {
		return nil, 0, err
	}
	return w.Volts, w.Segment.HorPos, nil
}

func runRIS(ctx context.Context, env *Env) error {
	opts := env.RIS
	if opts == nil {
		opts = ris.DefaultOptions()
	}
	env.printf("%s", opts)

	s, err := env.open(ctx, "digitizer", "", digitizer)
	if err != nil {
		return err
	}
	defer s.Close()

	drv := env.Driver
	if err := driver.Filter("ConfigHorizontal", drv.ConfigHorizontal(s.id, opts.SampInterval, 0)); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	si, _, err := drv.GetHorizontal(s.id)
	if err := driver.Filter("GetHorizontal", err); err != nil {
		return err
	}
	if si != opts.SampInterval {
		env.printf("Sampling interval adapted to %g\n", si)
	}
	setup := &Setup{
		Memory:    &Memory{Samples: opts.NbrSamples, Segments: 1},
		Verticals: []Vertical{{Channel: 1, FullScale: 1.0, Coupling: 3}},
		Trigger:   &Trigger{Pattern: 1, Channel: 1},
	}
	if err := s.apply(setup); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}

	bins, err := ris.NewBins(si, opts.Factor, opts.Accuracy)
	if err != nil {
		return err
	}
	src := &risSource{s: s, budget: env.pollBudget(), nbrSamples: opts.NbrSamples}
	res, err := ris.Run(ctx, bins, src, opts.MaxIterations)
	if err != nil {
		return err
	}
	env.printf("%d bins filled after %d acquisitions, %d skipped\n", bins.Filled(), res.Iterations, res.Skipped)

	var saveErr error
	err = env.save(opts.OutputFile, func(out *output.Writer) {
		saveErr = ris.Save(out, bins, res, 1, opts.NbrSamples)
	})
	if err != nil {
		return err
	}
	return saveErr
}
