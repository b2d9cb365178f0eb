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

package discover

import (
	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-acqiris/pkg/command"
	"jinr.ru/greenlab/go-acqiris/pkg/config"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find the instruments and store their descriptions",
	}
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewListCommand())
	return cmd
}

func NewRunCommand() *cobra.Command {
	cfg := config.NewDefaultConfig()
	cfg.Load()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover instruments, print and store their descriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := command.RunOptions{Record: true, Out: cmd.OutOrStdout()}
			return command.RunProgram(cmd.Context(), cfg, "discovery", opts)
		},
	}
	return cmd
}
