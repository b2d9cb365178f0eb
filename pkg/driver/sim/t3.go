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

	"gonum.org/v1/gonum/stat/distuv"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

const (
	// T3FlagInternalSignal replaces the inputs by the internal test signal
	T3FlagInternalSignal = 2
	t3MeanInterval       = 50e-9
	t3ValuesPerRow       = 12
	t3Rows               = 64
)

type t3Channel struct {
	slope     int
	threshold float64
	flags     int
}

type t3State struct {
	mode     int
	modifier int
	flags    int
	channels map[int]t3Channel
	running  bool
	done     bool
	values   []float64
}

// tdc runs fn on a time-to-digital converter session with the lock held
func (d *Driver) tdc(id driver.Session, fn func(inst *instrument, t3 *t3State) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.lookup(id)
	if err != nil {
		return err
	}
	if err := inst.requireType(driver.DeviceTDC); err != nil {
		return err
	}
	if inst.t3 == nil {
		inst.t3 = &t3State{mode: 1, channels: make(map[int]t3Channel)}
	}
	return fn(inst, inst.t3)
}

func (d *Driver) T3ConfigMode(id driver.Session, mode, modifier, flags int) error {
	return d.tdc(id, func(inst *instrument, t3 *t3State) error {
		if mode < 1 || mode > 2 {
			return driver.ErrNotSupported
		}
		t3.mode, t3.modifier, t3.flags = mode, modifier, flags
		return nil
	})
}

// T3ConfigChannel configures one channel, -1 selects the common channel
func (d *Driver) T3ConfigChannel(id driver.Session, channel, slope int, threshold float64, flags int) error {
	return d.tdc(id, func(inst *instrument, t3 *t3State) error {
		if channel < -1 || channel == 0 || channel > inst.model.NbrChannels {
			return driver.ErrInvalidParameter
		}
		t3.channels[channel] = t3Channel{slope: slope, threshold: threshold, flags: flags}
		return nil
	})
}

func (d *Driver) T3Acquire(id driver.Session) error {
	err := d.tdc(id, func(inst *instrument, t3 *t3State) error {
		t3.running = true
		t3.done = false
		t3.values = nil
		d.acquires++
		return nil
	})
	if err == nil && d.OnAcquire != nil {
		d.OnAcquire(id)
	}
	return err
}

func (d *Driver) T3WaitForEndOfAcquisition(id driver.Session, timeout time.Duration) error {
	return d.tdc(id, func(inst *instrument, t3 *t3State) error {
		if !t3.running {
			if t3.done {
				return nil
			}
			return driver.ErrAcqTimeout
		}
		if t3.flags&T3FlagInternalSignal == 0 && d.opts.Trigger == TriggerNever {
			log.Debug("%s: no start within %v", inst.model.Name, timeout)
			return driver.ErrAcqTimeout
		}
		t3.values = inst.t3Events(t3Rows * t3ValuesPerRow)
		t3.running = false
		t3.done = true
		return nil
	})
}

func (d *Driver) T3StopAcquisition(id driver.Session) error {
	return d.tdc(id, func(inst *instrument, t3 *t3State) error {
		t3.running = false
		d.stops++
		return nil
	})
}

// T3ReadData copies the stop times, in seconds after the start, into data.
// Only whole rows of 12 values are returned.
func (d *Driver) T3ReadData(id driver.Session, channel int, par *driver.T3ReadParameters, data []float64) (*driver.T3DataDescriptor, error) {
	var desc *driver.T3DataDescriptor
	err := d.tdc(id, func(inst *instrument, t3 *t3State) error {
		if par == nil || par.DataType != driver.ReadReal64 {
			return driver.ErrInvalidParameter
		}
		if channel < 0 || channel > inst.model.NbrChannels {
			return driver.ErrInvalidParameter
		}
		if !t3.done {
			return driver.ErrNoData
		}
		n := len(t3.values)
		if n > len(data) {
			n = len(data)
		}
		if par.NbrSamples > 0 && n > par.NbrSamples {
			n = par.NbrSamples
		}
		n -= n % t3ValuesPerRow
		copy(data, t3.values[:n])
		desc = &driver.T3DataDescriptor{NbrSamples: n}
		return nil
	})
	return desc, err
}

// t3Events draws n stop times as cumulative exponential intervals
func (inst *instrument) t3Events(n int) []float64 {
	interval := distuv.Exponential{Rate: 1 / t3MeanInterval, Src: inst.src}
	values := make([]float64, n)
	t := 0.0
	for i := range values {
		if i%t3ValuesPerRow == 0 {
			t = 0
		}
		t += interval.Rand()
		values[i] = t
	}
	return values
}
