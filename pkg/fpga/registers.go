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

package fpga

import (
	"sort"
	"strings"
)

// LogicDevice is the user programmable FPGA of the analyzers
const LogicDevice = "Block1Dev1"

type RegAlias int

const (
	RegReadAddr RegAlias = iota
	RegStartAddr
	RegBufferID
	RegFPGACtrl
	RegFPGAStatus
	RegDECtrl
	RegTriggerCtrl
	RegSRAMCtrl
	RegMainCtrl
	RegMainStatus
	RegNbrAcc
	RegFFTConf
	RegMemExampleCtrl
	RegDeMonCtrl
	RegDsMonCtrl
	RegTxMonCtrl
	RegRxMonCtrl
	RegStrmStatus
	RegStrmConf
	RegStreamerConfigGlob
	RegStreamerConfigSrcA
	RegStreamerConfigSrcB
	RegSLC0Ctrl
	RegSLC0Status
	RegSLC1Ctrl
	RegSLC1Status
	RegAliasLimit
)

var regNames = map[RegAlias]string{
	RegReadAddr:           "ReadAddr",
	RegStartAddr:          "StartAddr",
	RegBufferID:           "BufferID",
	RegFPGACtrl:           "FPGACtrl",
	RegFPGAStatus:         "FPGAStatus",
	RegDECtrl:             "DECtrl",
	RegTriggerCtrl:        "TriggerCtrl",
	RegSRAMCtrl:           "SRAMCtrl",
	RegMainCtrl:           "MainCtrl",
	RegMainStatus:         "MainStatus",
	RegNbrAcc:             "NbrAcc",
	RegFFTConf:            "FFTConf",
	RegMemExampleCtrl:     "MemExampleCtrl",
	RegDeMonCtrl:          "DeMonCtrl",
	RegDsMonCtrl:          "DsMonCtrl",
	RegTxMonCtrl:          "TxMonCtrl",
	RegRxMonCtrl:          "RxMonCtrl",
	RegStrmStatus:         "StrmStatus",
	RegStrmConf:           "StrmConf",
	RegStreamerConfigGlob: "StreamerConfigGlob",
	RegStreamerConfigSrcA: "StreamerConfigSrcA",
	RegStreamerConfigSrcB: "StreamerConfigSrcB",
	RegSLC0Ctrl:           "SLC0Ctrl",
	RegSLC0Status:         "SLC0Status",
	RegSLC1Ctrl:           "SLC1Ctrl",
	RegSLC1Status:         "SLC1Status",
}

func (a RegAlias) String() string {
	if name, ok := regNames[a]; ok {
		return name
	}
	return "Unknown"
}

type RegMap map[RegAlias]uint16

// CommonRegMap holds the registers every firmware implements
var CommonRegMap = RegMap{
	RegReadAddr:    0,
	RegStartAddr:   1,
	RegBufferID:    2,
	RegFPGACtrl:    3,
	RegFPGAStatus:  6,
	RegDECtrl:      8,
	RegTriggerCtrl: 12,
	RegMainCtrl:    64,
}

// Firmware names of the register maps
const (
	FirmwareAnalyzer     = "analyzer"
	FirmwareFFT          = "fft"
	FirmwareMemory       = "mem"
	FirmwareBaseStreamer = "basestreamer"
	FirmwareStreamer     = "streamer"
)

var firmwareRegs = map[string]RegMap{
	FirmwareAnalyzer: {
		RegDeMonCtrl: 65,
	},
	FirmwareFFT: {
		RegMainStatus: 65,
		RegNbrAcc:     66,
		RegFFTConf:    67,
	},
	FirmwareMemory: {
		RegSRAMCtrl:       39,
		RegMemExampleCtrl: 66,
	},
	FirmwareBaseStreamer: {
		RegTxMonCtrl:  66,
		RegRxMonCtrl:  67,
		RegStrmStatus: 68,
		RegStrmConf:   73,
		RegSLC0Ctrl:   80,
		RegSLC0Status: 81,
	},
	FirmwareStreamer: {
		RegDsMonCtrl:          65,
		RegTxMonCtrl:          66,
		RegRxMonCtrl:          67,
		RegStrmStatus:         68,
		RegStreamerConfigGlob: 72,
		RegStreamerConfigSrcA: 73,
		RegStreamerConfigSrcB: 74,
		RegSLC0Ctrl:           80,
		RegSLC0Status:         81,
		RegSLC1Ctrl:           84,
		RegSLC1Status:         85,
	},
}

// Register bits
const (
	FPGACtrlEnableDCMs   uint32 = 0x00ff0000
	FPGACtrlEnableDCMAB  uint32 = 0x000c0000
	DECtrlEnable         uint32 = 0x80000000
	FPGAStatusDEClock    uint32 = 0x00100000
	MonitorReady         uint32 = 0x80000000
	MainStatusSpectrum   uint32 = 0x80000000
	MainStatusBusy       uint32 = 0x00010000
	MainCtrlStart        uint32 = 0x00000001
	MainCtrlCaptureMon   uint32 = 0x00001000
	MainCtrlCaptureTx    uint32 = 0x00002000
	MainCtrlCaptureRx    uint32 = 0x00004000
	MemExampleCtrlWrite  uint32 = 0x00000003
	MemExampleCtrlFull   uint32 = 0x00000001
	SLCStatusLinksReady  uint32 = 0x0000005c
	SLCStatusLinkUp      uint32 = 0x00000014
	SLCCtrlResetFlags    uint32 = 0x80000000
	SLCCtrlResetRx       uint32 = 0xc0000000
	SRAMCtrlReset        uint32 = 0x00000001
	SRAMCtrlRead         uint32 = 0x00000002
	TriggerCtrlInitDCM   uint32 = 4
	TriggerCtrlResetTime uint32 = 8
	TriggerCtrlStart     uint32 = 1
)

// Buffer identifiers of the indirect access port
const (
	BufferSRAM          uint32 = 0x04
	BufferDataEntry     uint32 = 0x08
	BufferMonitor       uint32 = 0x0c
	BufferTxMonitor     uint32 = 0x10
	BufferRxMonitor     uint32 = 0x20
	BufferSumOfSpectrum uint32 = 0x81
)

// Regs returns the register map of a firmware, common registers included
func Regs(firmware string) (RegMap, error) {
	specific, ok := firmwareRegs[strings.ToLower(firmware)]
	if !ok {
		return nil, ErrUnknownFirmware{Firmware: firmware}
	}
	regs := RegMap{}
	for alias, addr := range CommonRegMap {
		regs[alias] = addr
	}
	for alias, addr := range specific {
		regs[alias] = addr
	}
	return regs, nil
}

// Firmwares returns the sorted firmware names
func Firmwares() []string {
	names := make([]string, 0, len(firmwareRegs))
	for name := range firmwareRegs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Addr returns the address of alias
func (m RegMap) Addr(alias RegAlias) (uint16, error) {
	addr, ok := m[alias]
	if !ok {
		return 0, ErrUnknownReg{Name: alias.String()}
	}
	return addr, nil
}

// Lookup resolves a register name, e.g. MainCtrl
func (m RegMap) Lookup(name string) (uint16, error) {
	for alias, addr := range m {
		if strings.EqualFold(alias.String(), name) {
			return addr, nil
		}
	}
	return 0, ErrUnknownReg{Name: name}
}

// Addrs returns the sorted register addresses of the map
func (m RegMap) Addrs() []uint16 {
	addrs := make([]uint16, 0, len(m))
	for _, addr := range m {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}
