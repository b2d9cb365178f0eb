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

package ifc

import (
	"net/http"

	"jinr.ru/greenlab/go-acqiris/pkg/discover"
	"jinr.ru/greenlab/go-acqiris/pkg/fpga"
)

type ApiServer interface {
	Run() error
	Handler() http.Handler
}

// RegStore is the register cache the API reads and writes
type RegStore interface {
	Instruments() ([]string, error)
	GetReg(instrument string, addr uint16) (*fpga.Reg, error)
	GetRegAll(instrument string) ([]*fpga.Reg, error)
	SetReg(instrument string, reg *fpga.Reg) error
}

type DescStore interface {
	GetAllDeviceDescriptions() ([]*discover.InstrumentDescription, error)
}
