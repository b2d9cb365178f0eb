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
	"fmt"

	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

type InstrumentDescription struct {
	Handle       driver.Session `json:"handle"`
	Resource     string         `json:"resource"`
	DeviceType   string         `json:"deviceType"`
	ModelName    string         `json:"modelName"`
	SerialNumber int            `json:"serialNumber"`
	BusNumber    int            `json:"busNumber"`
	SlotNumber   int            `json:"slotNumber"`
	NbrChannels  int            `json:"nbrChannels"`
	NbrADCBits   int            `json:"nbrADCBits,omitempty"`
	Options      string         `json:"options,omitempty"`
}

// Key is the serial number as used in the description store
func (dd *InstrumentDescription) Key() string {
	return fmt.Sprintf("%d", dd.SerialNumber)
}

// Summary is the one line listing of the discovery program
func (dd *InstrumentDescription) Summary() string {
	return fmt.Sprintf("%s %s: serial %d, bus %d, slot %d, %d channels, %d bits, options %q",
		dd.DeviceType, dd.ModelName, dd.SerialNumber, dd.BusNumber, dd.SlotNumber,
		dd.NbrChannels, dd.NbrADCBits, dd.Options)
}

func (dd *InstrumentDescription) String() string {
	result, err := yaml.Marshal(dd)
	if err != nil {
		log.Error("Error occured while marshaling instrument description, %s", err)
		return ""
	}
	return fmt.Sprintf("---\n%s", string(result))
}
