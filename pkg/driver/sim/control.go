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
	"time"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

// triggered reports whether the running acquisition of inst sees a trigger.
// Must be called with d.mu held.
func (d *Driver) triggered(inst *instrument) bool {
	switch d.opts.Trigger {
	case TriggerAlways:
		return true
	case TriggerOnForce:
		return inst.forced
	}
	return false
}

// complete ends the running acquisition. In SAR mode the next bank keeps acquiring.
func (d *Driver) complete(inst *instrument) {
	inst.last = inst.generate()
	inst.forced = false
	inst.polls = 0
	if inst.modeFlags != driver.FlagSAR {
		inst.running = false
	}
}

func (d *Driver) control(id driver.Session, fn func(inst *instrument) error) error {
	return d.configure(id, fn)
}

func (d *Driver) Acquire(id driver.Session) error {
	err := d.control(id, func(inst *instrument) error {
		inst.running = true
		inst.forced = false
		inst.polls = 0
		inst.processing = false
		inst.last = nil
		if inst.mode == driver.ModeStreamDPU && inst.fw != nil {
			inst.fw.streaming = true
		}
		d.acquires++
		return nil
	})
	if err == nil && d.OnAcquire != nil {
		d.OnAcquire(id)
	}
	return err
}

func (d *Driver) AcqDone(id driver.Session) (bool, error) {
	var done bool
	err := d.control(id, func(inst *instrument) error {
		if !inst.running {
			done = inst.last != nil
			return nil
		}
		if inst.mode == driver.ModeStreamDPU {
			return nil
		}
		inst.polls++
		if inst.polls < d.opts.DonePolls || !d.triggered(inst) {
			return nil
		}
		d.complete(inst)
		done = true
		return nil
	})
	return done, err
}

// WaitForEndOfAcquisition returns at once, a missing trigger is reported as
// a timeout without waiting
func (d *Driver) WaitForEndOfAcquisition(id driver.Session, timeout time.Duration) error {
	return d.control(id, func(inst *instrument) error {
		if !inst.running {
			if inst.last != nil {
				return nil
			}
			return driver.ErrAcqTimeout
		}
		if inst.mode == driver.ModeStreamDPU || !d.triggered(inst) {
			log.Debug("%s: no trigger within %v", inst.model.Name, timeout)
			return driver.ErrAcqTimeout
		}
		d.complete(inst)
		return nil
	})
}

func (d *Driver) StopAcquisition(id driver.Session) error {
	return d.control(id, func(inst *instrument) error {
		inst.running = false
		inst.processing = false
		if inst.fw != nil {
			inst.fw.streaming = false
		}
		d.stops++
		return nil
	})
}

func (d *Driver) ForceTrig(id driver.Session) error {
	err := d.control(id, func(inst *instrument) error {
		d.forceTrigs++
		if inst.running {
			inst.forced = true
		}
		return nil
	})
	if err == nil && d.OnForceTrig != nil {
		d.OnForceTrig(id)
	}
	return err
}

// ProcessData captures and processes one acquisition in the PeakTDC and SSR
// modes. Bit 1 of flags marks the last one and ends the acquisition.
func (d *Driver) ProcessData(id driver.Session, processType, flags int) error {
	return d.control(id, func(inst *instrument) error {
		if inst.mode != driver.ModeTDC && inst.mode != driver.ModeSSR {
			return driver.ErrNotSupported
		}
		if !inst.running {
			return driver.ErrNoData
		}
		inst.processing = false
		if !d.triggered(inst) {
			return nil
		}
		inst.last = inst.generate()
		inst.forced = false
		inst.processing = true
		if flags&2 != 0 {
			inst.running = false
		}
		return nil
	})
}

func (d *Driver) WaitForEndOfProcessing(id driver.Session, timeout time.Duration) error {
	return d.control(id, func(inst *instrument) error {
		if !inst.processing {
			log.Debug("%s: processing not done within %v", inst.model.Name, timeout)
			return driver.ErrProcTimeout
		}
		inst.processing = false
		return nil
	})
}

func (d *Driver) FreeBank(id driver.Session, bank int) error {
	return d.control(id, func(inst *instrument) error {
		if bank < 0 || bank >= inst.nbrBanks {
			return driver.ErrInvalidParameter
		}
		return nil
	})
}
