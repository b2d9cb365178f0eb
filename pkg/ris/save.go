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
	"jinr.ru/greenlab/go-acqiris/pkg/output"
)

// Save writes the header and the interleaved waveform, one value per line
func Save(w *output.Writer, bins *Bins, res *Result, channel, nbrSamples int) error {
	w.Comment("Number of samples: %d S", nbrSamples)
	w.Comment("Time increment: %s s", output.Format(bins.TimeIncrement()))
	w.Comment("Initial time: %s s", output.Format(bins.InitialTime()))
	w.Field("Channel", channel)
	w.Field("Oversampling factor", bins.Factor())
	w.Field("Oversampling accuracy", bins.Accuracy())
	w.Field("Iterations", res.Iterations)
	w.Field("Skipped acquisitions", res.Skipped)
	w.Line(" ")
	for _, v := range bins.Interleave() {
		w.Values(v)
	}
	return w.Err()
}
