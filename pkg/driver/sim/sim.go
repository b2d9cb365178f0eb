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

// Package sim simulates Acqiris instruments behind the ifc.Driver function
// table. Digitizers produce noisy pulse trains, analyzers run averager,
// PeakTDC and SSR modes, logic device firmware is modelled as register files
// and TDCs deliver exponential time intervals.
package sim

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/exp/rand"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

// TriggerMode selects when a simulated acquisition completes
type TriggerMode int

const (
	// TriggerAlways completes every acquisition
	TriggerAlways TriggerMode = iota
	// TriggerOnForce completes an acquisition only after ForceTrig
	TriggerOnForce
	// TriggerNever never completes, not even after ForceTrig
	TriggerNever
)

const (
	DefaultSeed      = 1
	DefaultDonePolls = 3
	resourceInstr    = "PCI::INSTR"
	resourceSim      = "PCI::"
	firstSerial      = 10001
	timestampStepPs  = 1000000000
)

type Options struct {
	// Instruments are the model names found on the bus, in resource order
	Instruments []string
	Seed        uint64
	Trigger     TriggerMode
	// DonePolls is the number of AcqDone calls before it reports completion
	DonePolls int
	// IndexFirstPoint is the data offset reported in the data descriptors
	IndexFirstPoint int
}

func DefaultOptions() Options {
	return Options{
		Seed:      DefaultSeed,
		Trigger:   TriggerAlways,
		DonePolls: DefaultDonePolls,
	}
}

// Driver implements ifc.Driver with simulated instruments
type Driver struct {
	// OnForceTrig is called after every ForceTrig
	OnForceTrig func(id driver.Session)
	// OnAcquire is called after every Acquire and T3Acquire
	OnAcquire func(id driver.Session)

	mu          sync.Mutex
	opts        Options
	simOptions  string
	instruments []*instrument
	installed   int
	src         rand.Source

	forceTrigs int
	acquires   int
	stops      int
}

func New(opts Options) *Driver {
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	d := &Driver{
		opts: opts,
		src:  rand.NewSource(opts.Seed),
	}
	for _, name := range opts.Instruments {
		m, ok := LookupModel(name)
		if !ok {
			log.Warning("Unknown simulated model %s, skipping", name)
			continue
		}
		d.instruments = append(d.instruments, d.newInstrument(m))
	}
	d.installed = len(d.instruments)
	return d
}

// SetTrigger changes the trigger model for the following acquisitions
func (d *Driver) SetTrigger(mode TriggerMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.Trigger = mode
}

func (d *Driver) ForceTrigCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.forceTrigs
}

func (d *Driver) AcquireCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquires
}

func (d *Driver) StopCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

// SimulationOptions returns the string set by SetSimulationOptions
func (d *Driver) SimulationOptions() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.simOptions
}

func (d *Driver) newInstrument(m *Model) *instrument {
	index := len(d.instruments)
	return newInstrument(m, index, d.src)
}

// lookup returns the open instrument of a session. Must be called with d.mu held.
func (d *Driver) lookup(id driver.Session) (*instrument, error) {
	index := int(id) - 1
	if index < 0 || index >= len(d.instruments) {
		return nil, driver.ErrInvalidHandle
	}
	inst := d.instruments[index]
	if !inst.open {
		return nil, driver.ErrInvalidHandle
	}
	return inst, nil
}

func (d *Driver) SetSimulationOptions(options string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.simOptions = options
	return nil
}

func (d *Driver) GetNbrInstruments() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.installed, nil
}

// MultiInstrAutoDefine finds no ASBus connections, every instrument stands alone
func (d *Driver) MultiInstrAutoDefine(options string) (int, error) {
	return d.GetNbrInstruments()
}

var optionRe = regexp.MustCompile(`(?i)\bsimulate\s*=\s*true\b`)

func (d *Driver) InitWithOptions(resource string, idQuery, reset bool, options string) (driver.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	upper := strings.ToUpper(resource)
	switch {
	case strings.HasPrefix(upper, resourceInstr):
		n, err := strconv.Atoi(upper[len(resourceInstr):])
		if err != nil || n < 0 || n >= d.installed {
			return 0, driver.ErrInstrumentNotFound
		}
		inst := d.instruments[n]
		inst.open = true
		log.Debug("Opened %s as session %d", resource, n+1)
		return driver.Session(n + 1), nil
	case strings.HasPrefix(upper, resourceSim) && optionRe.MatchString(options):
		m, ok := LookupModel(upper[len(resourceSim):])
		if !ok {
			return 0, driver.ErrInstrumentNotFound
		}
		inst := d.newInstrument(m)
		inst.open = true
		inst.simulated = true
		d.instruments = append(d.instruments, inst)
		log.Debug("Simulating %s as session %d", m.Name, len(d.instruments))
		return driver.Session(len(d.instruments)), nil
	}
	return 0, driver.ErrInstrumentNotFound
}

func (d *Driver) GetInstrumentData(id driver.Session) (*driver.InstrumentData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.lookup(id)
	if err != nil {
		return nil, err
	}
	return &driver.InstrumentData{
		Name:      inst.model.Name,
		SerialNbr: inst.serial,
		BusNbr:    inst.bus,
		SlotNbr:   inst.slot,
	}, nil
}

func (d *Driver) GetInstrumentInfo(id driver.Session, param string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.lookup(id)
	if err != nil {
		return 0, err
	}
	switch param {
	case "NbrADCBits":
		return inst.model.NbrADCBits, nil
	case "TbNextSegmentPad":
		return inst.model.SegmentPad, nil
	case "MaxSamplesPerChannel":
		return inst.model.MaxSamples, nil
	case "NbrExternalTriggers":
		return 1, nil
	case "LogDevDataLinks":
		if !inst.model.FPGA {
			return 0, driver.ErrNotSupported
		}
		return inst.model.DataLinks, nil
	}
	return 0, driver.ErrUnknownAttribute
}

func (d *Driver) GetInstrumentInfoString(id driver.Session, param string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.lookup(id)
	if err != nil {
		return "", err
	}
	if param == "Options" {
		return inst.model.Options, nil
	}
	if strings.HasPrefix(param, "LogDevHdr") {
		if inst.fw == nil {
			return "", driver.ErrLogicDevice
		}
		fields := strings.Fields(param)
		switch fields[len(fields)-1] {
		case "name":
			return inst.fw.file, nil
		case "version":
			return inst.fw.version, nil
		case "compDate":
			return inst.fw.compDate, nil
		}
	}
	return "", driver.ErrUnknownAttribute
}

func (d *Driver) GetDevType(id driver.Session) (driver.DeviceType, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.lookup(id)
	if err != nil {
		return 0, err
	}
	return inst.model.DevType, nil
}

func (d *Driver) GetNbrChannels(id driver.Session) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.lookup(id)
	if err != nil {
		return 0, err
	}
	return inst.model.NbrChannels, nil
}

func (d *Driver) Calibrate(id driver.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.lookup(id)
	return err
}

func (d *Driver) Close(id driver.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.lookup(id)
	if err != nil {
		return err
	}
	inst.close()
	return nil
}

func (d *Driver) CloseAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, inst := range d.instruments {
		if inst.open {
			inst.close()
		}
	}
	return nil
}
