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
	"bytes"
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"jinr.ru/greenlab/go-acqiris/pkg/output"
)

func TestIndexMonotonic(t *testing.T) {
	for _, tc := range []struct {
		si     float64
		factor int
	}{
		{1e-12, 10},
		{1e-9, 5},
		{0.5e-9, 16},
		{2e-9, 1},
	} {
		b, err := NewBins(tc.si, tc.factor, 100)
		if err != nil {
			t.Fatalf("could not create bins: %+v", err)
		}
		const steps = 1000
		prev := 0
		for i := 0; i < steps; i++ {
			// horPos walks from 0 towards -si without reaching it
			horPos := -tc.si * float64(i) / steps
			k := b.Index(horPos)
			if k < 0 || k > tc.factor-1 {
				t.Fatalf("si=%g F=%d: index %d of horPos %g out of range", tc.si, tc.factor, k, horPos)
			}
			if k < prev {
				t.Fatalf("si=%g F=%d: index not monotonic at horPos %g: %d < %d", tc.si, tc.factor, horPos, k, prev)
			}
			prev = k
		}
		if prev != tc.factor-1 {
			t.Fatalf("si=%g F=%d: last bin never reached, got %d", tc.si, tc.factor, prev)
		}
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Abs(b)
}

func TestNewBins(t *testing.T) {
	b, err := NewBins(1e-9, 10, 50)
	if err != nil {
		t.Fatalf("could not create bins: %+v", err)
	}
	if got, want := b.Tolerance(), 2.5e-11; !near(got, want) {
		t.Fatalf("invalid tolerance: got=%g, want=%g", got, want)
	}
	// integer halving of the accuracy
	b51, err := NewBins(1e-9, 10, 51)
	if err != nil {
		t.Fatalf("could not create bins: %+v", err)
	}
	if b51.Tolerance() != b.Tolerance() {
		t.Fatalf("accuracy 51 and 50 should give the same tolerance: %g != %g", b51.Tolerance(), b.Tolerance())
	}
	bin := b.Bin(3)
	if got, want := bin.Center, -3.5e-10; !near(got, want) {
		t.Fatalf("invalid center: got=%g, want=%g", got, want)
	}
	if bin.Lower >= bin.Center || bin.Upper <= bin.Center {
		t.Fatalf("invalid window [%g, %g] around %g", bin.Lower, bin.Upper, bin.Center)
	}

	for _, tc := range []struct {
		si       float64
		factor   int
		accuracy int
	}{
		{0, 10, 100},
		{-1e-9, 10, 100},
		{1e-9, 0, 100},
		{1e-9, 10, 0},
		{1e-9, 10, 101},
	} {
		if _, err := NewBins(tc.si, tc.factor, tc.accuracy); err == nil {
			t.Errorf("expected an error for si=%g F=%d oa=%d", tc.si, tc.factor, tc.accuracy)
		}
	}
}

func TestAcceptanceWindow(t *testing.T) {
	// bin 0 is centered on -5e-11 and has a half width of 2.5e-11 at 50%
	for _, tc := range []struct {
		name     string
		accuracy int
		horPos   float64
		want     Outcome
	}{
		{"outside window", 50, -1e-11, Rejected},
		{"inside window", 50, -4e-11, Accepted},
		{"full accuracy", 100, -1e-11, Accepted},
		{"out of range", 100, -2e-9, Rejected},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b, err := NewBins(1e-9, 10, tc.accuracy)
			if err != nil {
				t.Fatalf("could not create bins: %+v", err)
			}
			_, got := b.Offer(tc.horPos, []float64{1})
			if got != tc.want {
				t.Fatalf("invalid outcome: got=%v, want=%v", got, tc.want)
			}
			filled := 0
			if tc.want == Accepted {
				filled = 1
			}
			if b.Filled() != filled {
				t.Fatalf("invalid number of filled bins: got=%d, want=%d", b.Filled(), filled)
			}
		})
	}
}

func TestOfferReplace(t *testing.T) {
	b, err := NewBins(1e-9, 10, 100)
	if err != nil {
		t.Fatalf("could not create bins: %+v", err)
	}
	for _, tc := range []struct {
		horPos float64
		value  float64
		want   Outcome
		stored float64
	}{
		{-1e-11, 1, Accepted, 1},
		{-4e-11, 2, Replaced, 2},
		{-2e-11, 3, Kept, 2},
		{-5e-11, 4, Replaced, 4},
	} {
		k, got := b.Offer(tc.horPos, []float64{tc.value})
		if k != 0 {
			t.Fatalf("horPos %g: invalid bin %d", tc.horPos, k)
		}
		if got != tc.want {
			t.Fatalf("horPos %g: invalid outcome: got=%v, want=%v", tc.horPos, got, tc.want)
		}
		if v := b.Bin(0).Waveform[0]; v != tc.stored {
			t.Fatalf("horPos %g: invalid stored waveform: got=%g, want=%g", tc.horPos, v, tc.stored)
		}
	}
	if b.Filled() != 1 {
		t.Fatalf("invalid number of filled bins: %d", b.Filled())
	}
}

func TestOfferCopiesWaveform(t *testing.T) {
	b, err := NewBins(1e-9, 2, 100)
	if err != nil {
		t.Fatalf("could not create bins: %+v", err)
	}
	wf := []float64{1, 2}
	b.Offer(-2e-10, wf)
	wf[0] = 42
	if got := b.Bin(0).Waveform[0]; got != 1 {
		t.Fatalf("stored waveform aliases the input: %g", got)
	}
}

type fakeSource struct {
	horPos []float64
	n      int
	err    error
}

func (s *fakeSource) Acquire(ctx context.Context) ([]float64, float64, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	h := s.horPos[s.n%len(s.horPos)]
	s.n++
	return []float64{h}, h, nil
}

func TestRun(t *testing.T) {
	b, err := NewBins(1e-9, 4, 50)
	if err != nil {
		t.Fatalf("could not create bins: %+v", err)
	}
	src := &fakeSource{horPos: []float64{
		-1.25e-10, // bin 0
		-3e-10,    // bin 1, outside the window
		-3.75e-10, // bin 1
		-6.25e-10, // bin 2
		-8.75e-10, // bin 3
	}}
	res, err := Run(context.Background(), b, src, 0)
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	if res.Iterations != 5 || res.Skipped != 1 {
		t.Fatalf("invalid result: %+v", *res)
	}
	if !b.Complete() {
		t.Fatalf("bins not complete")
	}
	want := []float64{-8.75e-10, -6.25e-10, -3.75e-10, -1.25e-10}
	if got := b.Interleave(); !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid interleaved waveform: got=%v, want=%v", got, want)
	}
}

func TestRunIterationLimit(t *testing.T) {
	b, err := NewBins(1e-9, 4, 100)
	if err != nil {
		t.Fatalf("could not create bins: %+v", err)
	}
	src := &fakeSource{horPos: []float64{-1e-10}}
	res, err := Run(context.Background(), b, src, 5)
	if !errors.Is(err, ErrIterationLimit) {
		t.Fatalf("expected iteration limit error, got %+v", err)
	}
	if res.Iterations != 5 {
		t.Fatalf("invalid number of iterations: %d", res.Iterations)
	}
}

func TestRunErrors(t *testing.T) {
	b, err := NewBins(1e-9, 4, 100)
	if err != nil {
		t.Fatalf("could not create bins: %+v", err)
	}
	boom := errors.New("boom")
	if _, err := Run(context.Background(), b, &fakeSource{err: boom}, 0); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, b, &fakeSource{horPos: []float64{-1e-10}}, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %+v", err)
	}
}

func TestSave(t *testing.T) {
	b, err := NewBins(1e-9, 2, 100)
	if err != nil {
		t.Fatalf("could not create bins: %+v", err)
	}
	b.Offer(-2e-10, []float64{1, 2})
	b.Offer(-7e-10, []float64{3, 4})

	var buf bytes.Buffer
	w := output.NewWriter(&buf)
	if err := Save(w, b, &Result{Iterations: 2}, 1, 2); err != nil {
		t.Fatalf("could not save: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close: %+v", err)
	}
	want := `# Number of samples: 2 S
# Time increment: 5e-10 s
# Initial time: -7.5e-10 s
# Channel: 1
# Oversampling factor: 2
# Oversampling accuracy: 100
# Iterations: 2
# Skipped acquisitions: 0
` + " \n" + `3
1
4
2
`
	if got := buf.String(); got != want {
		t.Fatalf("invalid output:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestParseGlued(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		want Options
		rest []string
	}{
		{
			name: "defaults",
			want: *DefaultOptions(),
		},
		{
			name: "all switches",
			args: []string{"-si1e-8", "-ns2000", "-of5", "-oa25", "-fMyRIS.data"},
			want: Options{SampInterval: 1e-8, NbrSamples: 2000, Factor: 5, Accuracy: 25, OutputFile: "MyRIS.data"},
		},
		{
			name: "out of range values ignored",
			args: []string{"-si0", "-ns100", "-of0", "-oa0", "-f"},
			want: *DefaultOptions(),
		},
		{
			name: "accuracy clamped",
			args: []string{"-oa250"},
			want: Options{SampInterval: DefaultSampInterval, NbrSamples: DefaultNbrSamples, Factor: DefaultFactor, Accuracy: 100, OutputFile: DefaultOutputFile},
		},
		{
			name: "help and extra arguments",
			args: []string{"-h", "extra", "-ns101"},
			want: Options{SampInterval: DefaultSampInterval, NbrSamples: 101, Factor: DefaultFactor, Accuracy: DefaultAccuracy, OutputFile: DefaultOutputFile, Help: true},
			rest: []string{"extra"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			o := DefaultOptions()
			rest, err := o.ParseGlued(tc.args)
			if err != nil {
				t.Fatalf("could not parse: %+v", err)
			}
			if *o != tc.want {
				t.Fatalf("invalid options:\ngot: %+v\nwant:%+v", *o, tc.want)
			}
			if !reflect.DeepEqual(rest, tc.rest) {
				t.Fatalf("invalid remaining args: got=%v, want=%v", rest, tc.rest)
			}
		})
	}

	for _, arg := range []string{"-sixyz", "-ns2k", "-of1.5", "-oa%"} {
		if _, err := DefaultOptions().ParseGlued([]string{arg}); err == nil {
			t.Errorf("expected an error for %q", arg)
		}
	}
}

func TestIsGlued(t *testing.T) {
	for arg, want := range map[string]bool{
		"-h":       true,
		"-si1e-9":  true,
		"-ns2000":  true,
		"-fout":    true,
		"-f":       false,
		"--help":   false,
		"-v":       false,
		"out.data": false,
	} {
		if got := IsGlued(arg); got != want {
			t.Errorf("IsGlued(%q): got=%v, want=%v", arg, got, want)
		}
	}
}
