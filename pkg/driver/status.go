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

package driver

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

// Status is a driver call outcome. Negative values are errors, positive ones warnings.
type Status int32

const Success Status = 0

const (
	ErrInstrumentNotFound Status = -(iota + 1)
	ErrAcqTimeout
	ErrProcTimeout
	ErrTimeout
	ErrInvalidHandle
	ErrInvalidParameter
	ErrNotSupported
	ErrBufferOverflow
	ErrAcqRunning
	ErrNoData
	ErrLogicDevice
	ErrUnknownAttribute
)

const (
	WarnSetupAdapted Status = iota + 1
	WarnSimulation
)

var messages = map[Status]string{
	Success:               "Success",
	ErrInstrumentNotFound: "Instrument not found",
	ErrAcqTimeout:         "Acquisition timeout",
	ErrProcTimeout:        "Processing timeout",
	ErrTimeout:            "Operation timeout",
	ErrInvalidHandle:      "Invalid instrument handle",
	ErrInvalidParameter:   "Invalid parameter value",
	ErrNotSupported:       "Function not supported by this instrument",
	ErrBufferOverflow:     "Data array too small for the requested readout",
	ErrAcqRunning:         "Acquisition is still running",
	ErrNoData:             "No data available",
	ErrLogicDevice:        "Logic device access failed",
	ErrUnknownAttribute:   "Unknown configuration attribute",
	WarnSetupAdapted:      "Setup has been adapted to the instrument capabilities",
	WarnSimulation:        "Instrument is simulated",
}

// ErrNoInstrument is returned when discovery finds nothing to work with
var ErrNoInstrument = errors.New("no instrument found")

func (s Status) Error() string {
	return fmt.Sprintf("%s (%d)", ErrorMessage(s), int32(s))
}

func (s Status) IsError() bool {
	return s < Success
}

func (s Status) IsWarning() bool {
	return s > Success
}

// ErrorMessage returns the human readable text of a status
func ErrorMessage(s Status) string {
	if msg, ok := messages[s]; ok {
		return msg
	}
	if s.IsWarning() {
		return fmt.Sprintf("Unknown warning %#x", uint32(s))
	}
	return fmt.Sprintf("Unknown error %#x", uint32(s))
}

// IsWarning reports whether err carries a warning status only
func IsWarning(err error) bool {
	var s Status
	if errors.As(err, &s) {
		return s.IsWarning()
	}
	return false
}

// StatusOf extracts the status from err, Success for nil
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return ErrInvalidParameter
}

// Filter logs warnings and drops them, errors come back wrapped with the call name
func Filter(call string, err error) error {
	if err == nil {
		return nil
	}
	if IsWarning(err) {
		log.Warning("%s: %s", call, ErrorMessage(StatusOf(err)))
		return nil
	}
	return xerrors.Errorf("%s: %w", call, err)
}
