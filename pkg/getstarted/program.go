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

// Package getstarted holds one runnable program per acquisition example:
// discovery, digitizer readout, averager, PeakTDC, SSR, TDC, custom FPGA
// firmware and random interleaved sampling.
package getstarted

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/config"
	"jinr.ru/greenlab/go-acqiris/pkg/discover"
	"jinr.ru/greenlab/go-acqiris/pkg/driver/ifc"
	"jinr.ru/greenlab/go-acqiris/pkg/fpga"
	"jinr.ru/greenlab/go-acqiris/pkg/output"
	"jinr.ru/greenlab/go-acqiris/pkg/ris"
)

// Env is what a program runs against
type Env struct {
	Driver ifc.Driver
	Config *config.Config
	// OutDir receives the data files
	OutDir string
	// Out receives the console messages
	Out io.Writer
	// RegState records the FPGA register values when set
	RegState *fpga.RegState
	// DescState stores the discovered instruments when set
	DescState *discover.State
	// RIS are the options of the ris program, nil uses the defaults
	RIS *ris.Options
	// Loops overrides the number of acquisitions of the looping programs
	Loops int
}

func NewEnv(drv ifc.Driver, cfg *config.Config, out io.Writer) *Env {
	return &Env{
		Driver: drv,
		Config: cfg,
		OutDir: cfg.OutputDir,
		Out:    out,
	}
}

func (e *Env) printf(format string, v ...interface{}) {
	fmt.Fprintf(e.Out, format, v...)
}

func (e *Env) loops(def int) int {
	if e.Loops > 0 {
		return e.Loops
	}
	return def
}

// waitTimeout is the configured acquisition timeout
func (e *Env) waitTimeout() time.Duration {
	if e.Config.AcquisitionConfig == nil || e.Config.WaitTimeoutMs <= 0 {
		return config.DefaultWaitTimeoutMs * time.Millisecond
	}
	return time.Duration(e.Config.WaitTimeoutMs) * time.Millisecond
}

func (e *Env) pollBudget() int {
	if e.Config.AcquisitionConfig == nil || e.Config.PollBudget <= 0 {
		return config.DefaultPollBudget
	}
	return e.Config.PollBudget
}

// save creates name in the output directory and lets fn fill it
func (e *Env) save(name string, fn func(w *output.Writer)) error {
	w, err := output.Create(e.OutDir, name)
	if err != nil {
		return xerrors.Errorf("could not create %s: %w", name, err)
	}
	fn(w)
	if err := w.Close(); err != nil {
		return xerrors.Errorf("could not write %s: %w", w.Path(), err)
	}
	e.printf("Data written to %s\n", w.Path())
	return nil
}

type Program struct {
	Name  string
	Short string
	Run   func(ctx context.Context, env *Env) error
}

var programs = map[string]*Program{}

func register(p *Program) {
	if _, ok := programs[p.Name]; ok {
		panic(fmt.Sprintf("program %s registered twice", p.Name))
	}
	programs[p.Name] = p
}

func Lookup(name string) (*Program, error) {
	p, ok := programs[name]
	if !ok {
		return nil, ErrUnknownProgram{Name: name}
	}
	return p, nil
}

// Programs returns all programs ordered by name
func Programs() []*Program {
	list := make([]*Program, 0, len(programs))
	for _, p := range programs {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

type ErrUnknownProgram struct {
	Name string
}

func (e ErrUnknownProgram) Error() string {
	return fmt.Sprintf("Unknown program: %s", e.Name)
}
