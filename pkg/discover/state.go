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
	"time"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

const (
	BucketPrefix         = "discover_"
	DeviceDescriptionKey = "device_description"
	OpenTimeout          = time.Second
)

// State stores the instrument descriptions, one bucket per serial number
type State struct {
	DB *bbolt.DB
}

func NewState(dbPath string) (*State, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, err
	}
	return &State{DB: db}, nil
}

func (s *State) Close() error {
	return s.DB.Close()
}

func BucketName(serialNumber string) string {
	return fmt.Sprintf("%s%s", BucketPrefix, serialNumber)
}

func (s *State) SetDeviceDescription(dd *InstrumentDescription) error {
	log.Debug("Setting instrument description: serial: %s", dd.Key())
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketName(dd.Key())))
		if err != nil {
			return err
		}
		ddBytes, err := yaml.Marshal(dd)
		if err != nil {
			return err
		}
		return b.Put([]byte(DeviceDescriptionKey), ddBytes)
	})
}

func (s *State) GetDeviceDescription(serialNumber string) (*InstrumentDescription, error) {
	log.Debug("Getting instrument description: serial: %s", serialNumber)
	dd := &InstrumentDescription{}
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName(serialNumber)))
		if b == nil {
			return ErrBucketNotFound{Name: BucketName(serialNumber)}
		}
		ddBytes := b.Get([]byte(DeviceDescriptionKey))
		if ddBytes == nil {
			return ErrDescriptionNotFound{SerialNumber: serialNumber}
		}
		return yaml.Unmarshal(ddBytes, dd)
	}); err != nil {
		return nil, err
	}
	return dd, nil
}

// GetAllDeviceDescriptions returns the stored descriptions ordered by serial number
func (s *State) GetAllDeviceDescriptions() ([]*InstrumentDescription, error) {
	log.Debug("Getting all instrument descriptions")
	var devices []*InstrumentDescription
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			ddBytes := b.Get([]byte(DeviceDescriptionKey))
			if ddBytes == nil {
				log.Debug("Bucket %s has no description", name)
				return nil
			}
			dd := &InstrumentDescription{}
			if err := yaml.Unmarshal(ddBytes, dd); err != nil {
				log.Error("Error while unmarshalling InstrumentDescription %s", err)
				return err
			}
			devices = append(devices, dd)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return devices, nil
}
