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

package command

import (
	"errors"
	"fmt"

	"github.com/imroc/req"

	"jinr.ru/greenlab/go-acqiris/pkg/command/ifc"
	"jinr.ru/greenlab/go-acqiris/pkg/config"
	"jinr.ru/greenlab/go-acqiris/pkg/discover"
	"jinr.ru/greenlab/go-acqiris/pkg/srv"
)

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

var _ ifc.ApiClient = &ApiClient{}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d%s", cfg.Address, cfg.Port, srv.ApiPrefix),
	}
}

func (c *ApiClient) regReadUrl(device, addr string) string {
	return fmt.Sprintf("%s/reg/r/%s/%s", c.ApiPrefix, device, addr)
}

func (c *ApiClient) regWriteUrl(device string) string {
	return fmt.Sprintf("%s/reg/w/%s", c.ApiPrefix, device)
}

// get requests url and decodes the JSON response into v
func get(url string, v interface{}) error {
	r, err := req.Get(url)
	if err != nil {
		return err
	}
	if r.Response().StatusCode != 200 {
		return errors.New(r.Response().Status)
	}
	return r.ToJSON(v)
}

// ListDevices sends request to get the descriptions of the discovered instruments
func (c *ApiClient) ListDevices() ([]*discover.InstrumentDescription, error) {
	var devices []*discover.InstrumentDescription
	if err := get(fmt.Sprintf("%s/devices", c.ApiPrefix), &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// Instruments sends request to get the instruments with recorded registers
func (c *ApiClient) Instruments() ([]string, error) {
	var names []string
	if err := get(fmt.Sprintf("%s/reg", c.ApiPrefix), &names); err != nil {
		return nil, err
	}
	return names, nil
}

// RegRead sends request to get the value of a register of a device
func (c *ApiClient) RegRead(device, addr string) (string, error) {
	reg := &srv.RegHex{}
	if err := get(c.regReadUrl(device, addr), reg); err != nil {
		return "", err
	}
	return reg.Value, nil
}

// RegReadAll sends request to get values of all registers of a device
func (c *ApiClient) RegReadAll(device string) (map[string]string, error) {
	var regs []*srv.RegHex
	if err := get(c.regReadUrl(device, "all"), &regs); err != nil {
		return nil, err
	}
	result := make(map[string]string)
	for _, reg := range regs {
		result[reg.Addr] = reg.Value
	}
	return result, nil
}

// RegWrite sends request to write the value to a register of a device
func (c *ApiClient) RegWrite(device, addr, value string) error {
	reg := &srv.RegHex{
		Addr:  addr,
		Value: value,
	}
	r, err := req.Post(c.regWriteUrl(device), req.BodyJSON(reg))
	if err != nil {
		return err
	}
	if r.Response().StatusCode != 200 {
		return errors.New(r.Response().Status)
	}
	return nil
}
