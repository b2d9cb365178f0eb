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
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

const (
	BucketNamePrefix = "reg_"

	// OpenTimeout bounds the wait for the file lock held by another process
	OpenTimeout = time.Second
)

// Reg is a register value as cached and served by the API
type Reg struct {
	Addr  uint16
	Value uint32
}

// Hex returns the address and value as 0x prefixed hexadecimal strings
func (r *Reg) Hex() (string, string) {
	return fmt.Sprintf("0x%04x", r.Addr), fmt.Sprintf("0x%08x", r.Value)
}

func NewRegFromHex(addr, value string) (*Reg, error) {
	a, err := strconv.ParseUint(addr, 0, 16)
	if err != nil {
		return nil, ErrInvalidHex{Field: "addr", Value: addr}
	}
	v, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return nil, ErrInvalidHex{Field: "value", Value: value}
	}
	return &Reg{Addr: uint16(a), Value: uint32(v)}, nil
}

// RegState caches the last value seen of every register, one bucket per instrument
type RegState struct {
	DB *bbolt.DB
}

func NewRegState(dbPath string) (*RegState, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, err
	}
	return &RegState{DB: db}, nil
}

func addrToByte(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func valueToByte(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func bucketName(instrument string) string {
	return fmt.Sprintf("%s%s", BucketNamePrefix, instrument)
}

func (s *RegState) Close() error {
	return s.DB.Close()
}

// Instruments returns the names of the instruments with recorded registers
func (s *RegState) Instruments() ([]string, error) {
	var names []string
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if len(name) > len(BucketNamePrefix) && string(name[:len(BucketNamePrefix)]) == BucketNamePrefix {
				names = append(names, string(name[len(BucketNamePrefix):]))
			}
			return nil
		})
	})
	return names, err
}

func (s *RegState) SetReg(instrument string, reg *Reg) error {
	log.Debug("Setting register: Instrument: %s Addr: %d Value: 0x%08x", instrument, reg.Addr, reg.Value)
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName(instrument)))
		if err != nil {
			return err
		}
		return b.Put(addrToByte(reg.Addr), valueToByte(reg.Value))
	})
}

func (s *RegState) GetReg(instrument string, addr uint16) (*Reg, error) {
	log.Debug("Getting register: Instrument: %s Addr: %d", instrument, addr)
	var value uint32
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName(instrument)))
		if b == nil {
			return ErrBucketNotFound{Name: bucketName(instrument)}
		}
		valueBytes := b.Get(addrToByte(addr))
		if valueBytes == nil {
			return ErrRegNotFound{Addr: addr}
		}
		value = binary.BigEndian.Uint32(valueBytes)
		return nil
	}); err != nil {
		return nil, err
	}
	return &Reg{Addr: addr, Value: value}, nil
}

// GetRegAll returns the recorded registers of an instrument ordered by address
func (s *RegState) GetRegAll(instrument string) ([]*Reg, error) {
	log.Debug("Getting all registers: Instrument: %s", instrument)
	var regs []*Reg
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName(instrument)))
		if b == nil {
			return ErrBucketNotFound{Name: bucketName(instrument)}
		}
		return b.ForEach(func(k, v []byte) error {
			regs = append(regs, &Reg{
				Addr:  binary.BigEndian.Uint16(k),
				Value: binary.BigEndian.Uint32(v),
			})
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return regs, nil
}
