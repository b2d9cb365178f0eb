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
	"time"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
)

// Discovery covers instrument enumeration and session handling
type Discovery interface {
	SetSimulationOptions(options string) error
	GetNbrInstruments() (int, error)
	// MultiInstrAutoDefine combines instruments connected over ASBus and returns the
	// number of resulting instruments
	MultiInstrAutoDefine(options string) (int, error)
	InitWithOptions(resource string, idQuery, reset bool, options string) (driver.Session, error)
	GetInstrumentData(id driver.Session) (*driver.InstrumentData, error)
	GetInstrumentInfo(id driver.Session, param string) (int, error)
	GetInstrumentInfoString(id driver.Session, param string) (string, error)
	GetDevType(id driver.Session) (driver.DeviceType, error)
	GetNbrChannels(id driver.Session) (int, error)
	Calibrate(id driver.Session) error
	Close(id driver.Session) error
	CloseAll() error
}

// Configuration covers the digitizer settings
type Configuration interface {
	ConfigHorizontal(id driver.Session, sampInterval, delayTime float64) error
	ConfigVertical(id driver.Session, channel int, fullScale, offset float64, coupling, bandwidth int) error
	ConfigMemory(id driver.Session, nbrSamples, nbrSegments int) error
	ConfigMemoryEx(id driver.Session, nbrSamples, nbrSegments, nbrBanks int) error
	GetMemory(id driver.Session) (nbrSamples, nbrSegments int, err error)
	ConfigTrigClass(id driver.Session, sourcePattern uint32) error
	ConfigTrigSource(id driver.Session, channel, coupling, slope int, level1, level2 float64) error
	ConfigMode(id driver.Session, mode, modifier, flags int) error
	ConfigChannelCombination(id driver.Session, nbrConvertersPerChannel, usedChannels int) error
	ConfigAvgConfig(id driver.Session, channel int, param string, value float64) error
	GetAvgConfig(id driver.Session, channel int, param string) (float64, error)
	ConfigSetupArray(id driver.Session, channel, setupType int, gates []driver.GateParameters) error
	GetHorizontal(id driver.Session) (sampInterval, delayTime float64, err error)
	ConfigControlIO(id driver.Session, connector, signal, qualifier1 int, qualifier2 float64) error
	SetAttributeString(id driver.Session, channel int, name, value string) error
}

// Control covers acquisition start, wait and readout
type Control interface {
	Acquire(id driver.Session) error
	AcqDone(id driver.Session) (bool, error)
	WaitForEndOfAcquisition(id driver.Session, timeout time.Duration) error
	StopAcquisition(id driver.Session) error
	ForceTrig(id driver.Session) error
	ProcessData(id driver.Session, processType, flags int) error
	WaitForEndOfProcessing(id driver.Session, timeout time.Duration) error
	FreeBank(id driver.Session, bank int) error
	// ReadData fills data, which must be a slice matching par.DataType
	// ([]int8, []int16, []int32, []float64, or []byte for raw record streams)
	ReadData(id driver.Session, channel int, par *driver.ReadParameters, data interface{},
		desc *driver.DataDescriptor, segDesc []driver.SegmentDescriptor) error
}

// LogicDevice covers custom FPGA firmware access
type LogicDevice interface {
	ConfigLogicDevice(id driver.Session, deviceName, filePath string, flags int) error
	LogicDeviceIO(id driver.Session, deviceName string, reg int, data []uint32, write bool, modifier int) error
}

// T3 covers the time-to-digital converters
type T3 interface {
	T3ConfigMode(id driver.Session, mode, modifier, flags int) error
	T3ConfigChannel(id driver.Session, channel, slope int, threshold float64, flags int) error
	T3Acquire(id driver.Session) error
	T3WaitForEndOfAcquisition(id driver.Session, timeout time.Duration) error
	T3StopAcquisition(id driver.Session) error
	T3ReadData(id driver.Session, channel int, par *driver.T3ReadParameters, data []float64) (*driver.T3DataDescriptor, error)
}

// Driver is the whole instrument function table
type Driver interface {
	Discovery
	Configuration
	Control
	LogicDevice
	T3
}
