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

package discover

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/driver/ifc"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

type Options struct {
	// SimulationOptions are passed to SetSimulationOptions before counting, e.g. M2M
	SimulationOptions string
	// ResourcePrefix is followed by the instrument index, e.g. PCI::INSTR
	ResourcePrefix string
	// InitOptions are the InitWithOptions options string
	InitOptions string
	// AutoDefine combines instruments connected over ASBus before counting
	AutoDefine bool
	Calibrate  bool
}

// Discover counts and opens every instrument and fetches their descriptions.
// The caller owns the returned sessions.
func Discover(ctx context.Context, drv ifc.Discovery, opts Options) ([]*InstrumentDescription, error) {
	if opts.SimulationOptions != "" {
		if err := driver.Filter("SetSimulationOptions", drv.SetSimulationOptions(opts.SimulationOptions)); err != nil {
			return nil, err
		}
	}
	var n int
	var err error
	if opts.AutoDefine {
		n, err = drv.MultiInstrAutoDefine("")
		err = driver.Filter("MultiInstrAutoDefine", err)
	} else {
		n, err = drv.GetNbrInstruments()
		err = driver.Filter("GetNbrInstruments", err)
	}
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, driver.ErrNoInstrument
	}
	log.Info("Number of instruments found: %d", n)

	descs := make([]*InstrumentDescription, n)
	for i := range descs {
		resource := fmt.Sprintf("%s%d", opts.ResourcePrefix, i)
		id, err := drv.InitWithOptions(resource, false, false, opts.InitOptions)
		if err := driver.Filter("InitWithOptions", err); err != nil {
			closeAll(drv, descs[:i])
			return nil, xerrors.Errorf("could not open %s: %w", resource, err)
		}
		descs[i] = &InstrumentDescription{Handle: id, Resource: resource}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, dd := range descs {
		dd := dd
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if opts.Calibrate {
				if err := driver.Filter("Calibrate", drv.Calibrate(dd.Handle)); err != nil {
					return xerrors.Errorf("could not calibrate %s: %w", dd.Resource, err)
				}
			}
			return describe(drv, dd)
		})
	}
	if err := g.Wait(); err != nil {
		closeAll(drv, descs)
		return nil, err
	}
	return descs, nil
}

func describe(drv ifc.Discovery, dd *InstrumentDescription) error {
	data, err := drv.GetInstrumentData(dd.Handle)
	if err := driver.Filter("GetInstrumentData", err); err != nil {
		return xerrors.Errorf("could not describe %s: %w", dd.Resource, err)
	}
	dd.ModelName = data.Name
	dd.SerialNumber = data.SerialNbr
	dd.BusNumber = data.BusNbr
	dd.SlotNumber = data.SlotNbr

	devType, err := drv.GetDevType(dd.Handle)
	if err := driver.Filter("GetDevType", err); err != nil {
		return xerrors.Errorf("could not describe %s: %w", dd.Resource, err)
	}
	dd.DeviceType = devType.String()

	if dd.NbrChannels, err = drv.GetNbrChannels(dd.Handle); driver.Filter("GetNbrChannels", err) != nil {
		return xerrors.Errorf("could not describe %s: %w", dd.Resource, err)
	}
	if devType == driver.DeviceDigitizer {
		if dd.NbrADCBits, err = drv.GetInstrumentInfo(dd.Handle, "NbrADCBits"); driver.Filter("GetInstrumentInfo", err) != nil {
			return xerrors.Errorf("could not describe %s: %w", dd.Resource, err)
		}
	}
	options, err := drv.GetInstrumentInfoString(dd.Handle, "Options")
	if err == nil {
		dd.Options = options
	} else {
		log.Debug("%s has no options: %s", dd.Resource, err)
	}
	return nil
}

func closeAll(drv ifc.Discovery, descs []*InstrumentDescription) {
	for _, dd := range descs {
		if dd == nil {
			continue
		}
		if err := driver.Filter("Close", drv.Close(dd.Handle)); err != nil {
			log.Error("%s", err)
		}
	}
}

// Select returns the first description matching all non empty criteria
func Select(descs []*InstrumentDescription, model string, devType driver.DeviceType) (*InstrumentDescription, error) {
	for _, dd := range descs {
		if model != "" && dd.ModelName != model {
			continue
		}
		if devType != 0 && dd.DeviceType != devType.String() {
			continue
		}
		return dd, nil
	}
	if model == "" {
		return nil, xerrors.Errorf("no %s: %w", devType, driver.ErrNoInstrument)
	}
	return nil, xerrors.Errorf("no %s: %w", model, driver.ErrNoInstrument)
}
