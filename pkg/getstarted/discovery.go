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
	"fmt"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/discover"
	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

func init() {
	register(&Program{
		Name:  "discovery",
		Short: "List the instruments with their type, channels, resolution and serial number",
		Run:   runDiscovery,
	})
}

func runDiscovery(ctx context.Context, env *Env) error {
	opts := env.discoverOptions("")
	opts.AutoDefine = true
	descs, err := discover.Discover(ctx, env.Driver, opts)
	if err != nil {
		return xerrors.Errorf("could not discover instruments: %w", err)
	}
	defer func() {
		if err := driver.Filter("CloseAll", env.Driver.CloseAll()); err != nil {
			log.Error("%s", err)
		}
	}()

	env.printf("%d Agilent Acqiris instrument(s) found on your PC\n\n", len(descs))
	for i, dd := range descs {
		env.printf("%s\n", describeInstrument(i, dd))
		if env.DescState != nil {
			if err := env.DescState.SetDeviceDescription(dd); err != nil {
				return xerrors.Errorf("could not store description of %s: %w", dd.ModelName, err)
			}
		}
	}
	return nil
}

func describeInstrument(i int, dd *discover.InstrumentDescription) string {
	kind := "digitizer"
	switch dd.DeviceType {
	case driver.DeviceGenerator.String():
		kind = "generator"
	case driver.DeviceTDC.String():
		kind = "time-to-digital converter"
	}
	name := dd.ModelName
	if dd.Options != "" {
		name += " (" + dd.Options + ")"
	}
	if dd.DeviceType == driver.DeviceDigitizer.String() {
		return fmt.Sprintf("Instrument %d is a %s %s,\n%d channel(s), %dbit resolution, SN %d.",
			i, name, kind, dd.NbrChannels, dd.NbrADCBits, dd.SerialNumber)
	}
	return fmt.Sprintf("Instrument %d is a %s %s,\n%d channel(s), SN %d.", i, name, kind, dd.NbrChannels, dd.SerialNumber)
}
