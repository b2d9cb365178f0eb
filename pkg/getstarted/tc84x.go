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

package getstarted

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
	"jinr.ru/greenlab/go-acqiris/pkg/output"
)

const (
	t3BufferSize   = 53248
	t3Wait         = 8 * time.Second
	t3Acquisitions = 1
	t3ValuesPerRow = 12

	// t3RowsPerAcq numbers the rows of consecutive acquisitions apart
	t3RowsPerAcq = 128
)

func init() {
	register(&Program{
		Name:  "tc84x",
		Short: "Time-to-digital converter in common start mode",
		Run:   runTC84x,
	})
}

func runTC84x(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "time-to-digital converter", "", tdc)
	if err != nil {
		return err
	}
	defer s.Close()

	drv := env.Driver
	if err := driver.Filter("T3ConfigMode", drv.T3ConfigMode(s.id, 1, 1, 0)); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := driver.Filter("T3ConfigChannel", drv.T3ConfigChannel(s.id, -1, 1, 0.0, 0)); err != nil {
		return xerrors.Errorf("could not configure %s: %w", s.desc.ModelName, err)
	}
	if err := s.calibrate(); err != nil {
		return err
	}

	var rows [][]float64
	data := make([]float64, t3BufferSize/8)
	for acq := 0; acq < env.loops(t3Acquisitions); acq++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := driver.Filter("T3Acquire", drv.T3Acquire(s.id)); err != nil {
			return err
		}
		if err := driver.Filter("T3WaitForEndOfAcquisition", drv.T3WaitForEndOfAcquisition(s.id, t3Wait)); err != nil {
			env.printf("Acquisition timeout!\n")
			if err := driver.Filter("T3StopAcquisition", drv.T3StopAcquisition(s.id)); err != nil {
				log.Error("%s", err)
			}
			return err
		}
		desc, err := drv.T3ReadData(s.id, 0, &driver.T3ReadParameters{DataType: driver.ReadReal64, NbrSamples: len(data)}, data)
		if err := driver.Filter("T3ReadData", err); err != nil {
			return err
		}
		for n := 0; (n+1)*t3ValuesPerRow <= desc.NbrSamples; n++ {
			row := make([]float64, 0, t3ValuesPerRow+1)
			row = append(row, float64(acq*t3RowsPerAcq+n))
			row = append(row, data[n*t3ValuesPerRow:(n+1)*t3ValuesPerRow]...)
			rows = append(rows, row)
		}
	}
	if err := driver.Filter("T3StopAcquisition", drv.T3StopAcquisition(s.id)); err != nil {
		return err
	}

	return env.save("TC84x.data", func(out *output.Writer) {
		out.Comment("Agilent Acqiris TC84x common start")
		out.Comment("Times in seconds after the start, %d per row", t3ValuesPerRow)
		for _, row := range rows {
			values := make([]interface{}, len(row))
			values[0] = int(row[0])
			for i, v := range row[1:] {
				values[i+1] = v
			}
			out.Values(values...)
		}
	})
}
