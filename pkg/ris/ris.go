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

package ris

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

const (
	DefaultSampInterval = 1.0e-12
	DefaultNbrSamples   = 1000
	DefaultFactor       = 10
	DefaultAccuracy     = 100
	DefaultOutputFile   = "RIS.data"
	MaxAccuracy         = 100
)

// ErrIterationLimit is returned by Run when the iteration cap is reached before every bin is filled
var ErrIterationLimit = errors.New("ris: iteration limit reached")

type Outcome int

const (
	// Rejected: out of range index or outside the acceptance window
	Rejected Outcome = iota
	// Accepted: an empty bin was filled
	Accepted
	// Replaced: the candidate is closer to the bin center than the stored one
	Replaced
	// Kept: the stored candidate is closer to the bin center
	Kept
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Accepted:
		return "accepted"
	case Replaced:
		return "replaced"
	case Kept:
		return "kept"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

type Bin struct {
	Center   float64
	Lower    float64
	Upper    float64
	Filled   bool
	HorPos   float64
	Waveform []float64
}

// Bins holds one bin per oversampling phase
type Bins struct {
	sampInterval float64
	factor       int
	accuracy     int
	bins         []Bin
	filled       int
}

func NewBins(sampInterval float64, factor, accuracy int) (*Bins, error) {
	if sampInterval <= 0 {
		return nil, xerrors.Errorf("ris: invalid sampling interval %g", sampInterval)
	}
	if factor <= 0 {
		return nil, xerrors.Errorf("ris: invalid oversampling factor %d", factor)
	}
	if accuracy < 1 || accuracy > MaxAccuracy {
		return nil, xerrors.Errorf("ris: invalid oversampling accuracy %d", accuracy)
	}
	b := &Bins{
		sampInterval: sampInterval,
		factor:       factor,
		accuracy:     accuracy,
		bins:         make([]Bin, factor),
	}
	tol := b.Tolerance()
	for k := range b.bins {
		center := -sampInterval * (float64(k) + 0.5) / float64(factor)
		b.bins[k] = Bin{
			Center: center,
			Lower:  center - tol,
			Upper:  center + tol,
		}
	}
	return b, nil
}

func (b *Bins) SampInterval() float64 {
	return b.sampInterval
}

func (b *Bins) Factor() int {
	return b.factor
}

func (b *Bins) Accuracy() int {
	return b.accuracy
}

// Tolerance is the half width of the acceptance window. The accuracy is halved
// in integer arithmetic.
func (b *Bins) Tolerance() float64 {
	return 0.01 * float64(b.accuracy/2) * b.sampInterval / float64(b.factor)
}

// Index maps a trigger horizontal position to its bin
func (b *Bins) Index(horPos float64) int {
	return int(math.Abs(horPos) * float64(b.factor) / b.sampInterval)
}

// Offer presents one acquisition to its bin. The waveform is copied when stored.
func (b *Bins) Offer(horPos float64, waveform []float64) (int, Outcome) {
	k := b.Index(horPos)
	if k < 0 || k >= b.factor {
		return k, Rejected
	}
	bin := &b.bins[k]
	if b.accuracy < MaxAccuracy && (horPos < bin.Lower || horPos > bin.Upper) {
		return k, Rejected
	}
	outcome := Accepted
	if bin.Filled {
		if math.Abs(bin.Center-horPos) > math.Abs(bin.Center-bin.HorPos) {
			return k, Kept
		}
		outcome = Replaced
	} else {
		bin.Filled = true
		b.filled++
	}
	bin.HorPos = horPos
	bin.Waveform = append(bin.Waveform[:0], waveform...)
	return k, outcome
}

func (b *Bins) Filled() int {
	return b.filled
}

func (b *Bins) Complete() bool {
	return b.filled == b.factor
}

func (b *Bins) Bin(k int) Bin {
	return b.bins[k]
}

// TimeIncrement is the effective sampling interval of the interleaved waveform
func (b *Bins) TimeIncrement() float64 {
	return b.sampInterval / float64(b.factor)
}

// InitialTime is the time of the first interleaved point
func (b *Bins) InitialTime() float64 {
	return b.bins[b.factor-1].Center
}

// Interleave merges the bins, the last bin first for every sample
func (b *Bins) Interleave() []float64 {
	n := -1
	for _, bin := range b.bins {
		if n < 0 || len(bin.Waveform) < n {
			n = len(bin.Waveform)
		}
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, 0, n*b.factor)
	for d := 0; d < n; d++ {
		for k := b.factor - 1; k >= 0; k-- {
			out = append(out, b.bins[k].Waveform[d])
		}
	}
	return out
}

// Source delivers acquisitions
type Source interface {
	// Acquire returns one waveform and the horizontal position of its trigger
	Acquire(ctx context.Context) (waveform []float64, horPos float64, err error)
}

type Result struct {
	Iterations int
	Skipped    int
}

// Run acquires until every bin is filled. maxIterations <= 0 means no limit.
func Run(ctx context.Context, bins *Bins, src Source, maxIterations int) (*Result, error) {
	res := &Result{}
	for !bins.Complete() {
		if maxIterations > 0 && res.Iterations >= maxIterations {
			return res, xerrors.Errorf("ris: %d of %d bins unfilled after %d iterations: %w",
				bins.factor-bins.filled, bins.factor, res.Iterations, ErrIterationLimit)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		waveform, horPos, err := src.Acquire(ctx)
		if err != nil {
			return res, xerrors.Errorf("ris: could not acquire: %w", err)
		}
		res.Iterations++
		k, outcome := bins.Offer(horPos, waveform)
		if outcome == Rejected {
			res.Skipped++
		}
		log.Debug("RIS acquisition %d: horPos %g bin %d %s", res.Iterations, horPos, k, outcome)
	}
	return res, nil
}
