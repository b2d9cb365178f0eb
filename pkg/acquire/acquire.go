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

// Package acquire controls acquisitions: waits with a forced retrigger,
// completion flag polling and the readout of the driver data layouts.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/driver/ifc"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

var (
	// ErrNoTrigger is returned when the acquisition timed out again after the forced trigger
	ErrNoTrigger = errors.New("no trigger after forced retrigger")
	// ErrDataInvalid is returned when an acquisition timed out and was stopped
	ErrDataInvalid = errors.New("data invalid")
	// ErrPollBudget is returned when the completion flag was not set within the poll budget
	ErrPollBudget = errors.New("acquisition poll budget exhausted")
)

// ErrAcqStopped is returned when an acquisition was stopped after a timeout.
// It matches Reason with errors.Is and unwraps to the driver timeout.
type ErrAcqStopped struct {
	Reason  error
	Timeout error
}

func (e ErrAcqStopped) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Timeout)
}

func (e ErrAcqStopped) Is(target error) bool {
	return target == e.Reason
}

func (e ErrAcqStopped) Unwrap() error {
	return e.Timeout
}

type WaitResult struct {
	// Retriggered reports whether ForceTrig was needed to complete the acquisition
	Retriggered bool
}

func isTimeout(err error) bool {
	return errors.Is(err, driver.ErrAcqTimeout) || errors.Is(err, driver.ErrTimeout)
}

func stop(drv ifc.Control, id driver.Session) {
	if err := driver.Filter("StopAcquisition", drv.StopAcquisition(id)); err != nil {
		log.Error("%s", err)
	}
}

// WaitWithRetrigger waits for the end of the acquisition. On a timeout it
// forces one trigger and waits again, a second timeout stops the acquisition.
func WaitWithRetrigger(ctx context.Context, drv ifc.Control, id driver.Session, timeout time.Duration) (*WaitResult, error) {
	if err := ctx.Err(); err != nil {
		stop(drv, id)
		return nil, err
	}
	err := drv.WaitForEndOfAcquisition(id, timeout)
	if err == nil || !isTimeout(err) {
		if err := driver.Filter("WaitForEndOfAcquisition", err); err != nil {
			return nil, err
		}
		return &WaitResult{}, nil
	}

	log.Warning("Acquisition timeout after %v, forcing a trigger", timeout)
	if err := driver.Filter("ForceTrig", drv.ForceTrig(id)); err != nil {
		stop(drv, id)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		stop(drv, id)
		return nil, err
	}
	err = drv.WaitForEndOfAcquisition(id, timeout)
	if err == nil || !isTimeout(err) {
		if err := driver.Filter("WaitForEndOfAcquisition", err); err != nil {
			stop(drv, id)
			return nil, err
		}
		return &WaitResult{Retriggered: true}, nil
	}
	stop(drv, id)
	return nil, ErrAcqStopped{Reason: ErrNoTrigger, Timeout: err}
}

// WaitOrStop waits once for the end of the acquisition and stops it on a timeout
func WaitOrStop(ctx context.Context, drv ifc.Control, id driver.Session, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		stop(drv, id)
		return err
	}
	err := drv.WaitForEndOfAcquisition(id, timeout)
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		stop(drv, id)
		return ErrAcqStopped{Reason: ErrDataInvalid, Timeout: err}
	}
	return driver.Filter("WaitForEndOfAcquisition", err)
}

// PollDone polls AcqDone at most budget times, sleeping interval between
// polls. It stops the acquisition when the budget runs out.
func PollDone(ctx context.Context, drv ifc.Control, id driver.Session, budget int, interval time.Duration) (int, error) {
	for i := 1; i <= budget; i++ {
		done, err := drv.AcqDone(id)
		if err := driver.Filter("AcqDone", err); err != nil {
			return i, err
		}
		if done {
			return i, nil
		}
		if interval > 0 {
			select {
			case <-ctx.Done():
				stop(drv, id)
				return i, ctx.Err()
			case <-time.After(interval):
			}
		} else if err := ctx.Err(); err != nil {
			stop(drv, id)
			return i, err
		}
	}
	stop(drv, id)
	return budget, xerrors.Errorf("%d polls: %w", budget, ErrPollBudget)
}

// Run starts an acquisition and waits for it with WaitWithRetrigger
func Run(ctx context.Context, drv ifc.Control, id driver.Session, timeout time.Duration) (*WaitResult, error) {
	if err := driver.Filter("Acquire", drv.Acquire(id)); err != nil {
		return nil, err
	}
	return WaitWithRetrigger(ctx, drv, id, timeout)
}
