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
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/driver/ifc"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

// Bus reads and writes the registers of a logic device
type Bus struct {
	drv    ifc.LogicDevice
	id     driver.Session
	device string
	regs   RegMap

	ioLog      io.Writer
	state      *RegState
	instrument string
}

func NewBus(drv ifc.LogicDevice, id driver.Session, regs RegMap) *Bus {
	return &Bus{
		drv:    drv,
		id:     id,
		device: LogicDevice,
		regs:   regs,
	}
}

// WithIOLog logs every register access to w
func (b *Bus) WithIOLog(w io.Writer) *Bus {
	b.ioLog = w
	return b
}

// WithState records every register value in the register state of instrument
func (b *Bus) WithState(s *RegState, instrument string) *Bus {
	b.state = s
	b.instrument = instrument
	return b
}

func (b *Bus) Regs() RegMap {
	return b.regs
}

// Reg returns the address of alias, it panics on aliases missing from the map
func (b *Bus) Reg(alias RegAlias) uint16 {
	addr, err := b.regs.Addr(alias)
	if err != nil {
		panic(err)
	}
	return addr
}

func (b *Bus) logIO(op string, reg uint16, data []uint32) {
	if b.ioLog == nil {
		return
	}
	for _, v := range data {
		fmt.Fprintf(b.ioLog, "%s %d 0x%08x\n", op, reg, v)
	}
}

func (b *Bus) record(reg uint16, v uint32) {
	if b.state == nil || reg == b.regs[RegReadAddr] {
		return
	}
	if err := b.state.SetReg(b.instrument, &Reg{Addr: reg, Value: v}); err != nil {
		log.Debug("Could not record register %d: %s", reg, err)
	}
}

func (b *Bus) io(reg uint16, data []uint32, write bool) error {
	err := b.drv.LogicDeviceIO(b.id, b.device, int(reg), data, write, 0)
	if err := driver.Filter("LogicDeviceIO", err); err != nil {
		return xerrors.Errorf("register %d: %w", reg, err)
	}
	return nil
}

func (b *Bus) Read(reg uint16) (uint32, error) {
	data := []uint32{0}
	if err := b.io(reg, data, false); err != nil {
		return 0, err
	}
	b.logIO("R", reg, data)
	b.record(reg, data[0])
	return data[0], nil
}

func (b *Bus) Write(reg uint16, v uint32) error {
	data := []uint32{v}
	if err := b.io(reg, data, true); err != nil {
		return err
	}
	b.logIO("W", reg, data)
	b.record(reg, v)
	return nil
}

// Modify clears then sets bits of a register
func (b *Bus) Modify(reg uint16, clear, set uint32) (uint32, error) {
	v, err := b.Read(reg)
	if err != nil {
		return 0, err
	}
	v = v&^clear | set
	return v, b.Write(reg, v)
}

// ReadBlock reads n words from the same register, e.g. the indirect access port
func (b *Bus) ReadBlock(reg uint16, n int) ([]uint32, error) {
	data := make([]uint32, n)
	if n == 0 {
		return data, nil
	}
	if err := b.io(reg, data, false); err != nil {
		return nil, err
	}
	b.logIO("R", reg, data)
	return data, nil
}

// SelectBuffer points the indirect access port at start within buffer id
func (b *Bus) SelectBuffer(id, start uint32) error {
	if err := b.Write(b.Reg(RegStartAddr), start); err != nil {
		return err
	}
	return b.Write(b.Reg(RegBufferID), id)
}

// ReadBuffer reads n words of buffer id from start through the indirect access port
func (b *Bus) ReadBuffer(id, start uint32, n int) ([]uint32, error) {
	if err := b.SelectBuffer(id, start); err != nil {
		return nil, err
	}
	return b.ReadBlock(b.Reg(RegReadAddr), n)
}

// ReadBytes reads n bytes of buffer id, the words are little endian
func (b *Bus) ReadBytes(id, start uint32, n int) ([]byte, error) {
	words, err := b.ReadBuffer(id, start, (n+3)/4)
	if err != nil {
		return nil, err
	}
	return Bytes(words)[:n], nil
}

// Bytes unpacks little endian words
func Bytes(words []uint32) []byte {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[4*i:], w)
	}
	return data
}

// Int8s unpacks the 8-bit samples of little endian words
func Int8s(words []uint32) []int8 {
	data := Bytes(words)
	samples := make([]int8, len(data))
	for i, v := range data {
		samples[i] = int8(v)
	}
	return samples
}

// WaitBits polls reg every interval until reg & mask == want, at most budget times
func (b *Bus) WaitBits(ctx context.Context, reg uint16, mask, want uint32, budget int, interval time.Duration) error {
	return b.WaitBitsAll(ctx, []uint16{reg}, mask, want, budget, interval)
}

// WaitBitsAll is WaitBits over several registers that must all match
func (b *Bus) WaitBitsAll(ctx context.Context, regs []uint16, mask, want uint32, budget int, interval time.Duration) error {
	var last uint32
	var failed uint16
	for i := 0; i < budget; i++ {
		ready := true
		for _, reg := range regs {
			v, err := b.Read(reg)
			if err != nil {
				return err
			}
			if v&mask != want {
				ready = false
				last, failed = v, reg
				break
			}
		}
		if ready {
			return nil
		}
		if interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrWaitBits{Reg: failed, Mask: mask, Want: want, Last: last}
}
