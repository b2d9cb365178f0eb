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
	"math"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

var avgParams = map[string]bool{
	"NbrSamples":            true,
	"NbrSegments":           true,
	"NbrWaveforms":          true,
	"NbrRoundRobins":        true,
	"StartDelay":            true,
	"StopDelay":             true,
	"DitherRange":           true,
	"TrigResync":            true,
	"TrigAlways":            true,
	"SyncOnTrigOutSync":     true,
	"ThresholdEnable":       true,
	"Threshold":             true,
	"NoiseBaseEnable":       true,
	"NoiseBase":             true,
	"InvertData":            true,
	"GateType":              true,
	"TdcHistogramMode":      true,
	"TdcHistogramIncrement": true,
	"TdcHistogramDepth":     true,
	"TdcHistogramHorzRes":   true,
	"TdcHistogramVertRes":   true,
	"TdcOverlaySegments":    true,
	"TdcProcessType":        true,
	"StartDeltaPosPeakV":    true,
	"ValidDeltaPosPeakV":    true,
}

var attributes = map[string]bool{
	"odlTxBitRate": true,
}

// configure runs fn on a digitizer session with the lock held
func (d *Driver) configure(id driver.Session, fn func(inst *instrument) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.lookup(id)
	if err != nil {
		return err
	}
	if err := inst.requireType(driver.DeviceDigitizer); err != nil {
		return err
	}
	return fn(inst)
}

func (d *Driver) ConfigHorizontal(id driver.Session, sampInterval, delayTime float64) error {
	return d.configure(id, func(inst *instrument) error {
		if sampInterval <= 0 {
			return driver.ErrInvalidParameter
		}
		inst.delayTime = delayTime
		if sampInterval < inst.model.MinSampInterval {
			log.Debug("%s: sampling interval %g adapted to %g", inst.model.Name, sampInterval, inst.model.MinSampInterval)
			inst.sampInterval = inst.model.MinSampInterval
			return driver.WarnSetupAdapted
		}
		inst.sampInterval = sampInterval
		return nil
	})
}

func (d *Driver) GetHorizontal(id driver.Session) (float64, float64, error) {
	var si, delay float64
	err := d.configure(id, func(inst *instrument) error {
		si, delay = inst.sampInterval, inst.delayTime
		return nil
	})
	return si, delay, err
}

func (d *Driver) ConfigVertical(id driver.Session, channel int, fullScale, offset float64, coupling, bandwidth int) error {
	return d.configure(id, func(inst *instrument) error {
		if err := inst.checkChannel(channel); err != nil {
			return err
		}
		if fullScale <= 0 {
			return driver.ErrInvalidParameter
		}
		inst.vertical[channel] = &vertical{
			fullScale: fullScale,
			offset:    offset,
			coupling:  coupling,
			bandwidth: bandwidth,
		}
		return nil
	})
}

func (d *Driver) ConfigMemory(id driver.Session, nbrSamples, nbrSegments int) error {
	return d.ConfigMemoryEx(id, nbrSamples, nbrSegments, 1)
}

func (d *Driver) ConfigMemoryEx(id driver.Session, nbrSamples, nbrSegments, nbrBanks int) error {
	return d.configure(id, func(inst *instrument) error {
		if nbrSamples <= 0 || nbrSegments <= 0 || nbrBanks <= 0 {
			return driver.ErrInvalidParameter
		}
		inst.nbrSegments = nbrSegments
		inst.nbrBanks = nbrBanks
		if nbrSamples*nbrSegments > inst.model.MaxSamples {
			inst.nbrSamples = inst.model.MaxSamples / nbrSegments
			return driver.WarnSetupAdapted
		}
		inst.nbrSamples = nbrSamples
		return nil
	})
}

func (d *Driver) GetMemory(id driver.Session) (int, int, error) {
	var samples, segments int
	err := d.configure(id, func(inst *instrument) error {
		samples, segments = inst.nbrSamples, inst.nbrSegments
		return nil
	})
	return samples, segments, err
}

func (d *Driver) ConfigTrigClass(id driver.Session, sourcePattern uint32) error {
	return d.configure(id, func(inst *instrument) error {
		if sourcePattern == 0 {
			return driver.ErrInvalidParameter
		}
		inst.trigPattern = sourcePattern
		return nil
	})
}

func (d *Driver) ConfigTrigSource(id driver.Session, channel, coupling, slope int, level1, level2 float64) error {
	return d.configure(id, func(inst *instrument) error {
		if err := inst.checkChannel(channel); err != nil {
			return err
		}
		inst.trigChannel = channel
		inst.trigCoupling = coupling
		inst.trigSlope = slope
		inst.trigLevel = level1
		return nil
	})
}

func (d *Driver) ConfigMode(id driver.Session, mode, modifier, flags int) error {
	return d.configure(id, func(inst *instrument) error {
		if !inst.model.supportsMode(mode) {
			return driver.ErrNotSupported
		}
		if flags == driver.FlagSAR && !inst.model.SAR {
			return driver.ErrNotSupported
		}
		inst.mode = mode
		inst.modifier = modifier
		inst.modeFlags = flags
		inst.last = nil
		return nil
	})
}

func (d *Driver) ConfigChannelCombination(id driver.Session, nbrConvertersPerChannel, usedChannels int) error {
	return d.configure(id, func(inst *instrument) error {
		if nbrConvertersPerChannel <= 0 || nbrConvertersPerChannel > 4 {
			return driver.ErrInvalidParameter
		}
		inst.converters = nbrConvertersPerChannel
		inst.usedChannels = usedChannels
		return nil
	})
}

func (d *Driver) ConfigAvgConfig(id driver.Session, channel int, param string, value float64) error {
	return d.configure(id, func(inst *instrument) error {
		if !avgParams[param] {
			return driver.ErrUnknownAttribute
		}
		if channel < 0 || channel > inst.model.NbrChannels {
			return driver.ErrInvalidParameter
		}
		if !inst.model.supportsMode(driver.ModeAverager) && !inst.model.supportsMode(driver.ModeTDC) {
			return driver.ErrNotSupported
		}
		key := avgKey{channel, param}
		if inst.model.quantized(param) {
			ch := channel
			if ch == 0 {
				ch = 1
			}
			step := inst.vert(ch).fullScale / 256
			adapted := math.Round(value/step) * step
			inst.avg[key] = adapted
			if adapted != value {
				return driver.WarnSetupAdapted
			}
			return nil
		}
		inst.avg[key] = value
		return nil
	})
}

func (d *Driver) GetAvgConfig(id driver.Session, channel int, param string) (float64, error) {
	var value float64
	err := d.configure(id, func(inst *instrument) error {
		if !avgParams[param] {
			return driver.ErrUnknownAttribute
		}
		v, ok := inst.avg[avgKey{channel, param}]
		if !ok {
			v, ok = inst.avg[avgKey{0, param}]
		}
		if !ok {
			return driver.ErrUnknownAttribute
		}
		value = v
		return nil
	})
	return value, err
}

func (d *Driver) ConfigSetupArray(id driver.Session, channel, setupType int, gates []driver.GateParameters) error {
	return d.configure(id, func(inst *instrument) error {
		if err := inst.checkChannel(channel); err != nil {
			return err
		}
		if setupType != 0 {
			return driver.ErrNotSupported
		}
		for _, g := range gates {
			if g.GatePos < 0 || g.GateLength <= 0 {
				return driver.ErrInvalidParameter
			}
		}
		inst.gates[channel] = append([]driver.GateParameters(nil), gates...)
		return nil
	})
}

func (d *Driver) ConfigControlIO(id driver.Session, connector, signal, qualifier1 int, qualifier2 float64) error {
	return d.configure(id, func(inst *instrument) error {
		if connector < 1 {
			return driver.ErrInvalidParameter
		}
		inst.controlIO[connector] = signal
		return nil
	})
}

func (d *Driver) SetAttributeString(id driver.Session, channel int, name, value string) error {
	return d.configure(id, func(inst *instrument) error {
		if !attributes[name] {
			return driver.ErrUnknownAttribute
		}
		inst.attributes[name] = value
		return nil
	})
}
