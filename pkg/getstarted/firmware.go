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
	"os"
	"path/filepath"
	"time"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/fpga"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

const (
	// LoadClear clears the logic device, LoadFile loads a firmware file into it
	LoadClear = 1
	LoadFile  = 3

	clockBudget  = 100
	bufferBudget = 200
	linkBudget   = 1000
	pollInterval = time.Millisecond
)

// loadFirmware clears the logic device, loads file and prints the firmware header
func (s *session) loadFirmware(file string) error {
	drv, id := s.env.Driver, s.id
	if err := driver.Filter("ConfigLogicDevice", drv.ConfigLogicDevice(id, fpga.LogicDevice, "", LoadClear)); err != nil {
		return xerrors.Errorf("could not clear %s: %w", fpga.LogicDevice, err)
	}
	if err := driver.Filter("ConfigLogicDevice", drv.ConfigLogicDevice(id, fpga.LogicDevice, file, LoadFile)); err != nil {
		return xerrors.Errorf("could not load %s: %w", file, err)
	}
	for _, field := range []string{"name", "version", "compDate"} {
		v, err := drv.GetInstrumentInfoString(id, "LogDevHdr"+fpga.LogicDevice+"S "+field)
		if err := driver.Filter("GetInstrumentInfoString", err); err != nil {
			return xerrors.Errorf("could not read firmware %s: %w", field, err)
		}
		s.env.printf("FPGA %s: %s\n", field, v)
	}
	return nil
}

// bus returns the register bus of the loaded firmware. The returned function
// closes the register access log.
func (s *session) bus(firmware string) (*fpga.Bus, func(), error) {
	regs, err := fpga.Regs(firmware)
	if err != nil {
		return nil, nil, err
	}
	b := fpga.NewBus(s.env.Driver, s.id, regs)
	done := func() {}
	if cfg := s.env.Config.AcquisitionConfig; cfg != nil && cfg.FpgaIoLog != "" {
		path := cfg.FpgaIoLog
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.env.OutDir, path)
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, xerrors.Errorf("could not create FPGA IO log: %w", err)
		}
		b.WithIOLog(f)
		done = func() {
			if err := f.Close(); err != nil {
				log.Error("Could not close %s: %s", path, err)
			}
		}
	}
	if s.env.RegState != nil {
		b.WithState(s.env.RegState, s.desc.ModelName)
	}
	return b, done, nil
}

// writes applies register values in order
func writes(b *fpga.Bus, values ...regValue) error {
	for _, rv := range values {
		if err := b.Write(b.Reg(rv.reg), rv.value); err != nil {
			return xerrors.Errorf("could not write %s: %w", rv.reg, err)
		}
	}
	return nil
}

type regValue struct {
	reg   fpga.RegAlias
	value uint32
}

// enableDataEntry starts the DCMs and the data entry and waits for its clock
func enableDataEntry(ctx context.Context, b *fpga.Bus, dcms uint32) error {
	err := writes(b,
		regValue{fpga.RegFPGACtrl, 0},
		regValue{fpga.RegFPGACtrl, dcms},
		regValue{fpga.RegDECtrl, 0},
		regValue{fpga.RegDECtrl, fpga.DECtrlEnable},
	)
	if err != nil {
		return err
	}
	mask := fpga.FPGAStatusDEClock
	if err := b.WaitBits(ctx, b.Reg(fpga.RegFPGAStatus), mask, mask, clockBudget, pollInterval); err != nil {
		return xerrors.Errorf("data entry clock not ready: %w", err)
	}
	return nil
}

// streaming starts a streaming acquisition with the firmware loaded
func (s *session) streaming(ctx context.Context, firmware, file string, setup *Setup) (*fpga.Bus, func(), error) {
	if err := s.loadFirmware(file); err != nil {
		return nil, nil, err
	}
	setup.Mode = &Mode{Mode: driver.ModeStreamDPU}
	if err := s.apply(setup); err != nil {
		return nil, nil, xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := driver.Filter("Acquire", s.env.Driver.Acquire(s.id)); err != nil {
		return nil, nil, err
	}
	b, done, err := s.bus(firmware)
	if err != nil {
		s.stop()
		return nil, nil, err
	}
	return b, done, nil
}

// shutdown clears registers and stops the acquisition, errors are logged only
func (s *session) shutdown(b *fpga.Bus, values ...regValue) {
	if err := writes(b, values...); err != nil {
		log.Error("%s", err)
	}
	s.stop()
}
