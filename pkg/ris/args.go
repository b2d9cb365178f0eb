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
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Options are the RIS acquisition settings
type Options struct {
	SampInterval  float64
	NbrSamples    int
	Factor        int
	Accuracy      int
	OutputFile    string
	MaxIterations int
	Help          bool
}

func DefaultOptions() *Options {
	return &Options{
		SampInterval: DefaultSampInterval,
		NbrSamples:   DefaultNbrSamples,
		Factor:       DefaultFactor,
		Accuracy:     DefaultAccuracy,
		OutputFile:   DefaultOutputFile,
	}
}

// MinNbrSamples is the exclusive lower bound of an accepted sample count
const MinNbrSamples = 100

const Usage = `Usage: ris [-h] | [-si] [-ns] [-of] [-oa] [-f]

Options:
	-h Displays this help
	-si Sampling interval
	-ns Number of samples
	-of Oversampling factor
	-oa Oversampling accuracy (1..100%)
	-f Output file
Note: An option value must be glued to the option

Ex:
	ris -si1e-8 -ns2000 -of5 -oa25 -fMyRIS.data
`

// SetSampInterval ignores non positive values
func (o *Options) SetSampInterval(v float64) {
	if v > 0 {
		o.SampInterval = v
	}
}

// SetNbrSamples ignores values not above MinNbrSamples
func (o *Options) SetNbrSamples(v int) {
	if v > MinNbrSamples {
		o.NbrSamples = v
	}
}

// SetFactor ignores non positive values
func (o *Options) SetFactor(v int) {
	if v > 0 {
		o.Factor = v
	}
}

// SetAccuracy ignores non positive values and clamps to MaxAccuracy
func (o *Options) SetAccuracy(v int) {
	if v > 0 {
		o.Accuracy = v
	}
	if o.Accuracy > MaxAccuracy {
		o.Accuracy = MaxAccuracy
	}
}

func (o *Options) String() string {
	return fmt.Sprintf("Output file: %s\nSampling interval: %g\nNumber of samples: %d\nOversampling factor: %d\nOversampling accuracy: %d\n",
		o.OutputFile, o.SampInterval, o.NbrSamples, o.Factor, o.Accuracy)
}

// ParseGlued applies switches with their value glued to them (-si1e-9 -ns2000
// -of5 -oa25 -fout.data). Empty values are ignored as are out of range ones.
// Arguments that are not switches are returned.
func (o *Options) ParseGlued(args []string) ([]string, error) {
	var rest []string
	for _, arg := range args {
		switch {
		case arg == "-h":
			o.Help = true
		case strings.HasPrefix(arg, "-si"):
			if v := arg[3:]; v != "" {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, xerrors.Errorf("ris: invalid sampling interval %q: %w", v, err)
				}
				o.SetSampInterval(f)
			}
		case strings.HasPrefix(arg, "-ns"):
			if v := arg[3:]; v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, xerrors.Errorf("ris: invalid number of samples %q: %w", v, err)
				}
				o.SetNbrSamples(n)
			}
		case strings.HasPrefix(arg, "-of"):
			if v := arg[3:]; v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, xerrors.Errorf("ris: invalid oversampling factor %q: %w", v, err)
				}
				o.SetFactor(n)
			}
		case strings.HasPrefix(arg, "-oa"):
			if v := arg[3:]; v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, xerrors.Errorf("ris: invalid oversampling accuracy %q: %w", v, err)
				}
				o.SetAccuracy(n)
			}
		case strings.HasPrefix(arg, "-f"):
			if v := arg[2:]; v != "" {
				o.OutputFile = v
			}
		default:
			rest = append(rest, arg)
		}
	}
	return rest, nil
}

// IsGlued reports whether arg looks like one of the glued switches
func IsGlued(arg string) bool {
	if arg == "-h" {
		return true
	}
	for _, p := range []string{"-si", "-ns", "-of", "-oa"} {
		if strings.HasPrefix(arg, p) {
			return true
		}
	}
	return strings.HasPrefix(arg, "-f") && len(arg) > 2
}
