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

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

type ApiConfig struct {
	Address string `yaml:"address,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// DriverConfig selects the instrument driver and its initialization options
type DriverConfig struct {
	Simulation        bool   `yaml:"simulation"`
	SimulationOptions string `yaml:"simulation_options,omitempty"`
	ResourcePrefix    string `yaml:"resource_prefix,omitempty"`
	Seed              uint64 `yaml:"seed,omitempty"`
	// Instruments are the simulated models found on the bus, PCI::INSTR0 first
	Instruments []string `yaml:"instruments,omitempty"`
}

type AcquisitionConfig struct {
	OutputDir     string `yaml:"output_dir,omitempty"`
	WaitTimeoutMs int    `yaml:"wait_timeout_ms,omitempty"`
	PollBudget    int    `yaml:"poll_budget,omitempty"`
	// FpgaIoLog is the path of the FPGA register access log, empty disables it
	FpgaIoLog string `yaml:"fpga_io_log,omitempty"`
}

type Config struct {
	LogLevel           string `yaml:"log_level,omitempty"`
	DBDir              string `yaml:"db_dir,omitempty"`
	*ApiConfig         `yaml:"api,omitempty"`
	*DriverConfig      `yaml:"driver,omitempty"`
	*AcquisitionConfig `yaml:"acquisition,omitempty"`
	filepath           string
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return ioutil.WriteFile(c.filepath, data, 0644)
}

// Load reads the config file over the defaults. A missing file keeps the defaults.
func (c *Config) Load() error {
	data, err := ioutil.ReadFile(c.filepath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

func (c *Config) RegDBPath() string {
	return filepath.Join(c.DBDir, RegDBFile)
}

func (c *Config) DiscoverDBPath() string {
	return filepath.Join(c.DBDir, DiscoverDBFile)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return home
}

func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ConfigDir, ConfigFile)
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		DBDir:    filepath.Join(homeDir(), ConfigDir),
		ApiConfig: &ApiConfig{
			Address: DefaultApiAddress,
			Port:    DefaultApiPort,
		},
		DriverConfig: &DriverConfig{
			Simulation:        DefaultSimulation,
			SimulationOptions: DefaultSimulationOptions,
			ResourcePrefix:    DefaultResourcePrefix,
			Instruments:       append([]string(nil), DefaultInstruments...),
		},
		AcquisitionConfig: &AcquisitionConfig{
			OutputDir:     DefaultOutputDir,
			WaitTimeoutMs: DefaultWaitTimeoutMs,
			PollBudget:    DefaultPollBudget,
		},
		filepath: DefaultConfigPath(),
	}
}
