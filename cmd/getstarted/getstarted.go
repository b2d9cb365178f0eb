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
	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-acqiris/pkg/command"
	"jinr.ru/greenlab/go-acqiris/pkg/config"
	"jinr.ru/greenlab/go-acqiris/pkg/getstarted"
)

const (
	LoopsOptionName     = "loops"
	RecordOptionName    = "record"
	OutputDirOptionName = "output-dir"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "getstarted",
		Short: "Run an example acquisition program",
	}
	for _, p := range getstarted.Programs() {
		if p.Name == "ris" {
			cmd.AddCommand(NewRISCommand())
			continue
		}
		cmd.AddCommand(NewProgramCommand(p))
	}
	return cmd
}

// runFlags are the flags shared by all programs
type runFlags struct {
	loops     int
	record    bool
	outputDir string
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.loops, LoopsOptionName, 0, "Number of acquisitions of the looping programs, 0 keeps the default")
	cmd.Flags().BoolVar(&f.record, RecordOptionName, false, "Store instrument descriptions and FPGA registers in the state databases")
	cmd.Flags().StringVar(&f.outputDir, OutputDirOptionName, "", "Directory receiving the data files")
}

func (f *runFlags) options(cfg *config.Config, cmd *cobra.Command) command.RunOptions {
	if f.outputDir != "" {
		cfg.OutputDir = f.outputDir
	}
	return command.RunOptions{
		Record: f.record,
		Loops:  f.loops,
		Out:    cmd.OutOrStdout(),
	}
}

func NewProgramCommand(p *getstarted.Program) *cobra.Command {
	var flags runFlags
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   p.Name,
		Short: p.Short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunProgram(cmd.Context(), cfg, p.Name, flags.options(cfg, cmd))
		},
	}
	flags.bind(cmd)
	return cmd
}
