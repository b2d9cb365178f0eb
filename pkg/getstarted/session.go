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
	"errors"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/acquire"
	"jinr.ru/greenlab/go-acqiris/pkg/discover"
	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

// InitNoCalibration skips the calibration done by InitWithOptions
const InitNoCalibration = "CAL=0"

type matcher func(dd *discover.InstrumentDescription) bool

func digitizer(dd *discover.InstrumentDescription) bool {
	return dd.DeviceType == driver.DeviceDigitizer.String()
}

func tdc(dd *discover.InstrumentDescription) bool {
	return dd.DeviceType == driver.DeviceTDC.String()
}

// withOption matches digitizers reporting option, e.g. AVG
func withOption(option string) matcher {
	return func(dd *discover.InstrumentDescription) bool {
		if !digitizer(dd) {
			return false
		}
		for _, o := range strings.Fields(dd.Options) {
			if o == option {
				return true
			}
		}
		return false
	}
}

func models(names ...string) matcher {
	return func(dd *discover.InstrumentDescription) bool {
		for _, name := range names {
			if strings.EqualFold(dd.ModelName, name) {
				return true
			}
		}
		return false
	}
}

// session is one open instrument
type session struct {
	env  *Env
	id   driver.Session
	desc *discover.InstrumentDescription
}

func (e *Env) discoverOptions(initOptions string) discover.Options {
	opts := discover.Options{InitOptions: initOptions}
	if e.Config.DriverConfig != nil {
		opts.SimulationOptions = e.Config.SimulationOptions
		opts.ResourcePrefix = e.Config.ResourcePrefix
	}
	return opts
}

// open discovers the instruments and keeps the first one matching, the
// others are closed
func (e *Env) open(ctx context.Context, what, initOptions string, match matcher) (*session, error) {
	descs, err := discover.Discover(ctx, e.Driver, e.discoverOptions(initOptions))
	if err != nil {
		return nil, xerrors.Errorf("could not discover instruments: %w", err)
	}
	var selected *discover.InstrumentDescription
	for _, dd := range descs {
		if selected == nil && match(dd) {
			selected = dd
			continue
		}
		if err := driver.Filter("Close", e.Driver.Close(dd.Handle)); err != nil {
			log.Error("%s", err)
		}
	}
	if selected == nil {
		return nil, xerrors.Errorf("no %s: %w", what, driver.ErrNoInstrument)
	}
	e.printf("Using: %s (SN=%d) at bus #%d, slot #%d\n",
		selected.ModelName, selected.SerialNumber, selected.BusNumber, selected.SlotNumber)
	return &session{env: e, id: selected.Handle, desc: selected}, nil
}

func (s *session) Close() {
	if err := driver.Filter("Close", s.env.Driver.Close(s.id)); err != nil {
		log.Error("%s", err)
	}
	if err := driver.Filter("CloseAll", s.env.Driver.CloseAll()); err != nil {
		log.Error("%s", err)
	}
}

func (s *session) calibrate() error {
	s.env.printf("Calibrating %s...\n", s.desc.ModelName)
	return driver.Filter("Calibrate", s.env.Driver.Calibrate(s.id))
}

// acquire starts an acquisition and waits for it, a timeout stops it
func (s *session) acquire(ctx context.Context, timeout time.Duration) error {
	if err := driver.Filter("Acquire", s.env.Driver.Acquire(s.id)); err != nil {
		return err
	}
	return s.wait(ctx, timeout)
}

func (s *session) wait(ctx context.Context, timeout time.Duration) error {
	err := acquire.WaitOrStop(ctx, s.env.Driver, s.id, timeout)
	if errors.Is(err, acquire.ErrDataInvalid) {
		s.env.printf("Acquisition timeout!\nThe acquisition has been stopped - data invalid!\n")
	}
	return err
}

func (s *session) stop() {
	if err := driver.Filter("StopAcquisition", s.env.Driver.StopAcquisition(s.id)); err != nil {
		log.Error("%s", err)
	}
}

type Mode struct {
	Mode     int
	Modifier int
	Flags    int
}

type Combination struct {
	Converters int
	Channels   int
}

type Vertical struct {
	Channel   int
	FullScale float64
	Offset    float64
	Coupling  int
	Bandwidth int
}

type Trigger struct {
	// Pattern is the trigger class source pattern, 0 selects channel 1
	Pattern  uint32
	Channel  int
	Coupling int
	Slope    int
	Level1   float64
	Level2   float64
}

type Memory struct {
	Samples  int
	Segments int
	Banks    int
}

type ControlIO struct {
	Connector  int
	Signal     int
	Qualifier1 int
	Qualifier2 float64
}

// AvgParam is an averager, PeakTDC or SSR setting, channel 0 applies to all channels
type AvgParam struct {
	Channel int
	Name    string
	Value   float64
}

type Gates struct {
	Channel int
	Gates   []driver.GateParameters
}

// Setup is the configuration of a program. Unset parts keep the instrument defaults.
type Setup struct {
	Mode         *Mode
	Combination  *Combination
	SampInterval float64
	DelayTime    float64
	Memory       *Memory
	Verticals    []Vertical
	Trigger      *Trigger
	ControlIO    []ControlIO
	Avg          []AvgParam
	Gates        *Gates
}

// apply configures the instrument. Averager settings adapted by the driver
// are read back and reported.
func (s *session) apply(setup *Setup) error {
	drv, id := s.env.Driver, s.id
	if c := setup.Combination; c != nil {
		if err := driver.Filter("ConfigChannelCombination", drv.ConfigChannelCombination(id, c.Converters, c.Channels)); err != nil {
			return err
		}
	}
	if setup.SampInterval > 0 {
		if err := driver.Filter("ConfigHorizontal", drv.ConfigHorizontal(id, setup.SampInterval, setup.DelayTime)); err != nil {
			return err
		}
	}
	if m := setup.Memory; m != nil {
		banks := m.Banks
		if banks < 1 {
			banks = 1
		}
		if err := driver.Filter("ConfigMemoryEx", drv.ConfigMemoryEx(id, m.Samples, m.Segments, banks)); err != nil {
			return err
		}
	}
	for _, v := range setup.Verticals {
		err := drv.ConfigVertical(id, v.Channel, v.FullScale, v.Offset, v.Coupling, v.Bandwidth)
		if err := driver.Filter("ConfigVertical", err); err != nil {
			return xerrors.Errorf("channel %d: %w", v.Channel, err)
		}
	}
	if t := setup.Trigger; t != nil {
		pattern := t.Pattern
		if pattern == 0 {
			pattern = 1
		}
		if err := driver.Filter("ConfigTrigClass", drv.ConfigTrigClass(id, pattern)); err != nil {
			return err
		}
		err := drv.ConfigTrigSource(id, t.Channel, t.Coupling, t.Slope, t.Level1, t.Level2)
		if err := driver.Filter("ConfigTrigSource", err); err != nil {
			return err
		}
	}
	if m := setup.Mode; m != nil {
		if err := driver.Filter("ConfigMode", drv.ConfigMode(id, m.Mode, m.Modifier, m.Flags)); err != nil {
			return err
		}
	}
	for _, c := range setup.ControlIO {
		err := drv.ConfigControlIO(id, c.Connector, c.Signal, c.Qualifier1, c.Qualifier2)
		if err := driver.Filter("ConfigControlIO", err); err != nil {
			return xerrors.Errorf("connector %d: %w", c.Connector, err)
		}
	}
	for _, p := range setup.Avg {
		if err := s.configAvg(p); err != nil {
			return err
		}
	}
	if g := setup.Gates; g != nil {
		if err := driver.Filter("ConfigSetupArray", drv.ConfigSetupArray(id, g.Channel, 0, g.Gates)); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) configAvg(p AvgParam) error {
	err := s.env.Driver.ConfigAvgConfig(s.id, p.Channel, p.Name, p.Value)
	if driver.StatusOf(err) == driver.WarnSetupAdapted {
		actual, gerr := s.env.Driver.GetAvgConfig(s.id, p.Channel, p.Name)
		if gerr := driver.Filter("GetAvgConfig", gerr); gerr != nil {
			return xerrors.Errorf("%s: %w", p.Name, gerr)
		}
		log.Warning("%s of channel %d adapted from %g to %g", p.Name, p.Channel, p.Value, actual)
		s.env.printf("Actual %s applied: %g\n", p.Name, actual)
		return nil
	}
	if err := driver.Filter("ConfigAvgConfig", err); err != nil {
		return xerrors.Errorf("%s: %w", p.Name, err)
	}
	return nil
}
