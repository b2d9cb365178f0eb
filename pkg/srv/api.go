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

// go-acqiris API
//
// # RESTful APIs to inspect the instruments and registers recorded by go-acqiris
//
// Terms Of Service:
//
// Schemes: http
// Host: localhost:8003
// BasePath: /api
// Version: 1.0.0
// Contact:
//
//	Consumes:
//	- application/json
//
//	Produces:
//	- application/json
//
// swagger:meta
package srv

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/config"
	"jinr.ru/greenlab/go-acqiris/pkg/discover"
	"jinr.ru/greenlab/go-acqiris/pkg/fpga"
	"jinr.ru/greenlab/go-acqiris/pkg/log"
	"jinr.ru/greenlab/go-acqiris/pkg/srv/ifc"
)

const (
	ApiPrefix       = "/api"
	DocsPath        = "docs"
	SpecPath        = "/swagger.json"
	shutdownTimeout = 5 * time.Second
)

//go:embed swagger.json
var swaggerJSON []byte

// Success response
// swagger:response okResp
type RespOk struct {
	// in:body
	Body struct {
		// HTTP status code 200 - OK
		Code int `json:"code"`
	}
}

// Error Bad Request
// swagger:response badReq
type ReqBadRequest struct {
	// in:body
	Body struct {
		// HTTP status code 400 -  Bad Request
		Code int `json:"code"`
	}
}

// RegHex ...
type RegHex struct {
	Addr  string // hexadecimal
	Value string // hexadecimal
}

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	regs  ifc.RegStore
	descs ifc.DescStore
	doc   *loads.Document
}

var _ ifc.ApiServer = &ApiServer{}

func NewApiServer(ctx context.Context, cfg *config.Config, regs ifc.RegStore, descs ifc.DescStore) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s port: %d", cfg.Address, cfg.Port)

	doc, err := loads.Analyzed(json.RawMessage(swaggerJSON), "")
	if err != nil {
		return nil, xerrors.Errorf("could not load API description: %w", err)
	}
	s := &ApiServer{
		Context: ctx,
		Config:  cfg,
		regs:    regs,
		descs:   descs,
		doc:     doc,
	}
	s.configureRouter()
	return s, nil
}

func (s *ApiServer) regReadHex(addr uint16, device string) (*RegHex, error) {
	reg, err := s.regs.GetReg(device, addr)
	if err != nil {
		return nil, err
	}
	hexAddr, hexValue := reg.Hex()
	return &RegHex{
		Addr:  hexAddr,
		Value: hexValue,
	}, nil
}

func (s *ApiServer) regReadAllHex(device string) ([]*RegHex, error) {
	regs, err := s.regs.GetRegAll(device)
	if err != nil {
		return nil, err
	}
	regsHex := []*RegHex{}
	for _, reg := range regs {
		hexAddr, hexValue := reg.Hex()
		regsHex = append(regsHex, &RegHex{Addr: hexAddr, Value: hexValue})
	}
	return regsHex, nil
}

// Handler serves the API, its description and the docs page. Requests are
// logged and panics recovered.
func (s *ApiServer) Handler() http.Handler {
	opts := middleware.RedocOpts{
		BasePath: "/",
		Path:     DocsPath,
		SpecURL:  SpecPath,
		Title:    s.doc.Spec().Info.Title,
	}
	var h http.Handler = s.Router
	h = middleware.Redoc(opts, h)
	h = middleware.Spec("/", s.doc.Raw(), h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(log.ErrorPrinter{}),
		handlers.PrintRecoveryStack(true),
	)(h)
	return handlers.LoggingHandler(log.Writer(), h)
}

// Run serves until the context is done
func (s *ApiServer) Run() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Address, s.Config.Port)
	log.Info("Starting API server: address: %s API version: %s", addr, s.doc.Spec().Info.Version)
	httpServer := &http.Server{
		Handler: s.Handler(),
		Addr:    addr,
	}
	go func() {
		<-s.Context.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error("Could not shut down API server: %s", err)
		}
	}()
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix(ApiPrefix).Subrouter()
	// swagger:operation GET /devices list devices
	// ---
	// summary: list discovered instruments
	// responses:
	//   "200":
	//     "$ref": "#/responses/okResp"
	subRouter.HandleFunc("/devices", s.handleDevices()).Methods("GET")
	subRouter.HandleFunc("/reg", s.handleRegInstruments()).Methods("GET")
	// swagger:operation GET /reg/r/device/addr get register
	// ---
	// summary: read register
	// responses:
	//   "200":
	//     "$ref": "#/responses/okResp"
	//   "400":
	//     "$ref": "#/responses/badReq"
	subRouter.HandleFunc("/reg/r/{device}/{addr:0x[0-9a-fA-F]{1,4}}", s.handleRegRead()).Methods("GET")
	// swagger:operation GET /reg/r/device read all registers
	// ---
	// summary: read all registers
	// responses:
	//   "200":
	//     "$ref": "#/responses/okResp"
	subRouter.HandleFunc("/reg/r/{device}", s.handleRegReadAll()).Methods("GET")
	subRouter.HandleFunc("/reg/r/{device}/all", s.handleRegReadAll()).Methods("GET")
	// swagger:operation POST /reg/w/device write register
	// ---
	// summary: write register
	// responses:
	//   "200":
	//     "$ref": "#/responses/okResp"
	//   "400":
	//     "$ref": "#/responses/badReq"
	subRouter.HandleFunc("/reg/w/{device}", s.handleRegWrite()).Methods("POST")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Could not encode response: %s", err)
	}
}

// regStatus maps register cache errors to HTTP status codes
func regStatus(err error) int {
	if errors.As(err, &fpga.ErrBucketNotFound{}) || errors.As(err, &fpga.ErrRegNotFound{}) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *ApiServer) handleDevices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling devices request")
		descs, err := s.descs.GetAllDeviceDescriptions()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if descs == nil {
			descs = []*discover.InstrumentDescription{}
		}
		writeJSON(w, descs)
	}
}

func (s *ApiServer) handleRegInstruments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := s.regs.Instruments()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, names)
	}
}

func (s *ApiServer) handleRegRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		log.Debug("Handling reg read request: device: %s, addr: %s", vars["device"], vars["addr"])

		addr, err := strconv.ParseUint(vars["addr"], 0, 16)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		regHex, err := s.regReadHex(uint16(addr), vars["device"])
		if err != nil {
			http.Error(w, err.Error(), regStatus(err))
			return
		}

		writeJSON(w, regHex)
	}
}

func (s *ApiServer) handleRegReadAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		log.Debug("Handling reg read all request: device: %s", vars["device"])

		regsHex, err := s.regReadAllHex(vars["device"])
		if err != nil {
			http.Error(w, err.Error(), regStatus(err))
			return
		}

		writeJSON(w, regsHex)
	}
}

func (s *ApiServer) handleRegWrite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		regHex := &RegHex{}
		err := json.NewDecoder(r.Body).Decode(regHex)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.Debug("Handling reg write request: device: %s addr: %s value: %s",
			vars["device"], regHex.Addr, regHex.Value)

		reg, err := fpga.NewRegFromHex(regHex.Addr, regHex.Value)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := s.regs.SetReg(vars["device"], reg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
