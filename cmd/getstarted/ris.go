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
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-acqiris/pkg/command"
	"jinr.ru/greenlab/go-acqiris/pkg/config"
	"jinr.ru/greenlab/go-acqiris/pkg/ris"
)

const (
	SampIntervalOptionName  = "si"
	NbrSamplesOptionName    = "ns"
	FactorOptionName        = "of"
	AccuracyOptionName      = "oa"
	FileOptionName          = "file"
	MaxIterationsOptionName = "max-iterations"
)

// NormalizeArgs moves the glued ris switches (-si1e-9, -fout.data) behind
// "--" so that they reach the ris command as arguments
func NormalizeArgs(args []string) []string {
	pos := -1
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "--" {
			break
		}
		if args[i] == "getstarted" && args[i+1] == "ris" {
			pos = i + 2
			break
		}
	}
	if pos < 0 {
		return args
	}
	result := append([]string(nil), args[:pos]...)
	var glued, tail []string
	for i, arg := range args[pos:] {
		if arg == "--" {
			tail = args[pos+i+1:]
			break
		}
		if ris.IsGlued(arg) {
			glued = append(glued, arg)
			continue
		}
		result = append(result, arg)
	}
	if len(glued) == 0 && tail == nil {
		return args
	}
	result = append(result, "--")
	result = append(result, glued...)
	return append(result, tail...)
}

func NewRISCommand() *cobra.Command {
	var flags runFlags
	var si float64
	var ns, of, oa, maxIterations int
	var file string
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "ris [-si<interval>] [-ns<samples>] [-of<factor>] [-oa<accuracy>] [-f<file>]",
		Short: "Random interleaved sampling by software",
		Long:  ris.Usage,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ris.DefaultOptions()
			rest, err := opts.ParseGlued(args)
			if err != nil {
				return err
			}
			if len(rest) > 0 {
				return fmt.Errorf("unexpected arguments: %v", rest)
			}
			if opts.Help {
				fmt.Fprint(cmd.OutOrStdout(), ris.Usage)
				return nil
			}
			if cmd.Flags().Changed(SampIntervalOptionName) {
				opts.SetSampInterval(si)
			}
			if cmd.Flags().Changed(NbrSamplesOptionName) {
				opts.SetNbrSamples(ns)
			}
			if cmd.Flags().Changed(FactorOptionName) {
				opts.SetFactor(of)
			}
			if cmd.Flags().Changed(AccuracyOptionName) {
				opts.SetAccuracy(oa)
			}
			if file != "" {
				opts.OutputFile = file
			}
			opts.MaxIterations = maxIterations

			runOpts := flags.options(cfg, cmd)
			runOpts.RIS = opts
			return command.RunProgram(cmd.Context(), cfg, "ris", runOpts)
		},
	}
	flags.bind(cmd)
	cmd.Flags().Float64Var(&si, SampIntervalOptionName, ris.DefaultSampInterval, "Sampling interval")
	cmd.Flags().IntVar(&ns, NbrSamplesOptionName, ris.DefaultNbrSamples, "Number of samples")
	cmd.Flags().IntVar(&of, FactorOptionName, ris.DefaultFactor, "Oversampling factor")
	cmd.Flags().IntVar(&oa, AccuracyOptionName, ris.DefaultAccuracy, "Oversampling accuracy (1..100%)")
	cmd.Flags().StringVar(&file, FileOptionName, "", fmt.Sprintf("Output file. E.g. %s", ris.DefaultOutputFile))
	cmd.Flags().IntVar(&maxIterations, MaxIterationsOptionName, 0, "Stop after this many acquisitions, 0 runs until all bins are filled")

	return cmd
}
