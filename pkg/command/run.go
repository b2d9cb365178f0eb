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

package command

import (
	"context"
	"errors"
	"io"
	"os"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/config"
	"jinr.ru/greenlab/go-acqiris/pkg/discover"
	"jinr.ru/greenlab/go-acqiris/pkg/driver/ifc"
	"jinr.ru/greenlab/go-acqiris/pkg/driver/sim"
	"jinr.ru/greenlab/go-acqiris/pkg/fpga"
	"jinr.ru/greenlab/go-acqiris/pkg/getstarted"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
	"jinr.ru/greenlab/go-acqiris/pkg/ris"
	"jinr.ru/greenlab/go-acqiris/pkg/srv"
)

// ErrNoHardwareDriver is returned when the configuration disables the simulation
var ErrNoHardwareDriver = errors.New("no hardware driver available, enable driver.simulation")

// NewDriver returns the instrument driver selected by the configuration
func NewDriver(cfg *config.Config) (ifc.Driver, error) {
	if cfg.DriverConfig == nil || !cfg.Simulation {
		return nil, ErrNoHardwareDriver
	}
	opts := sim.DefaultOptions()
	opts.Instruments = cfg.Instruments
	if cfg.Seed != 0 {
		opts.Seed = cfg.Seed
	}
	log.Debug("Simulated instruments: %v", opts.Instruments)
	return sim.New(opts), nil
}

type RunOptions struct {
	// Record stores the discovered instruments and the FPGA register values
	Record bool
	Loops  int
	RIS    *ris.Options
	Out    io.Writer
}

// openStates opens both state databases under the configured directory
func openStates(cfg *config.Config) (*fpga.RegState, *discover.State, error) {
	if err := os.MkdirAll(cfg.DBDir, 0755); err != nil {
		return nil, nil, err
	}
	regs, err := fpga.NewRegState(cfg.RegDBPath())
	if err != nil {
		return nil, nil, xerrors.Errorf("could not open %s: %w", cfg.RegDBPath(), err)
	}
	descs, err := discover.NewState(cfg.DiscoverDBPath())
	if err != nil {
		regs.Close()
		return nil, nil, xerrors.Errorf("could not open %s: %w", cfg.DiscoverDBPath(), err)
	}
	return regs, descs, nil
}

// RunProgram runs one of the getstarted programs
func RunProgram(ctx context.Context, cfg *config.Config, name string, opts RunOptions) error {
	p, err := getstarted.Lookup(name)
	if err != nil {
		return err
	}
	drv, err := NewDriver(cfg)
	if err != nil {
		return err
	}
	env := getstarted.NewEnv(drv, cfg, opts.Out)
	env.Loops = opts.Loops
	env.RIS = opts.RIS
	if opts.Record {
		regs, descs, err := openStates(cfg)
		if err != nil {
			return err
		}
		defer regs.Close()
		defer descs.Close()
		env.RegState = regs
		env.DescState = descs
	}
	log.Info("Running %s", p.Name)
	return p.Run(ctx, env)
}

// StartApiServer serves the recorded state until ctx is done
func StartApiServer(ctx context.Context, cfg *config.Config) error {
	regs, descs, err := openStates(cfg)
	if err != nil {
		return err
	}
	defer regs.Close()
	defer descs.Close()

	s, err := srv.NewApiServer(ctx, cfg, regs, descs)
	if err != nil {
		return err
	}
	return s.Run()
}
