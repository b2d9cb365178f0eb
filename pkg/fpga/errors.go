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
	"fmt"
)

// ErrWaitBits returned when a register never shows the expected bits within the poll budget
type ErrWaitBits struct {
	Reg  uint16
	Mask uint32
	Want uint32
	Last uint32
}

func (e ErrWaitBits) Error() string {
	return fmt.Sprintf("Timeout waiting for register %d: value 0x%08x, mask 0x%08x, want 0x%08x",
		e.Reg, e.Last, e.Mask, e.Want)
}

// ErrUnknownReg returned when a register name is not part of the register map
type ErrUnknownReg struct {
	Name string
}

func (e ErrUnknownReg) Error() string {
	return fmt.Sprintf("Unknown register: %s", e.Name)
}

type ErrUnknownFirmware struct {
	Firmware string
}

func (e ErrUnknownFirmware) Error() string {
	return fmt.Sprintf("Unknown firmware: %s", e.Firmware)
}

// ErrBucketNotFound returned when the register state has no bucket for an instrument
type ErrBucketNotFound struct {
	Name string
}

func (e ErrBucketNotFound) Error() string {
	return fmt.Sprintf("Bucket not found: %s", e.Name)
}

type ErrRegNotFound struct {
	Addr uint16
}

func (e ErrRegNotFound) Error() string {
	return fmt.Sprintf("Key not found: %d", e.Addr)
}

type ErrInvalidHex struct {
	Field string
	Value string
}

func (e ErrInvalidHex) Error() string {
	return fmt.Sprintf("Invalid register %s: %q", e.Field, e.Value)
}
