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

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-acqiris/cmd/completion"
	"jinr.ru/greenlab/go-acqiris/cmd/config"
	"jinr.ru/greenlab/go-acqiris/cmd/discover"
	"jinr.ru/greenlab/go-acqiris/cmd/fpga"
	"jinr.ru/greenlab/go-acqiris/cmd/getstarted"
	"jinr.ru/greenlab/go-acqiris/cmd/serve"
	pkgconfig "jinr.ru/greenlab/go-acqiris/pkg/config"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
)

const (
	LogLevelOptionName = "log-level"
)

func NewRootCommand(out io.Writer) *cobra.Command {
	var logLevel string
	cfg := pkgconfig.NewDefaultConfig()
	cmd := &cobra.Command{
		Use:           "go-acqiris",
		Short:         "Tool to run acquisitions on Acqiris digitizers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
				return err
			}
			log.Init(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.AddCommand(config.NewCommand())
	cmd.AddCommand(discover.NewCommand())
	cmd.AddCommand(getstarted.NewCommand())
	cmd.AddCommand(fpga.NewCommand())
	cmd.AddCommand(serve.NewCommand())
	cmd.AddCommand(completion.NewCommand())
	cmd.PersistentFlags().StringVar(&logLevel, LogLevelOptionName, "", fmt.Sprintf("Log level. %s", log.HelpLevels))
	return cmd
}
