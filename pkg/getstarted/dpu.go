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
	"context"

	"golang.org/x/xerrors"

	"jinr.ru/greenlab/go-acqiris/pkg/fpga"
	"jinr.ru/greenlab/go-acqiris/pkg/output"
)

const (
	analyzerFirmwareFile = "MyTestFile.bit"
	fftFirmwareFile      = "AC240FFT2GSs.bit"
	memFirmwareFile      = "ac240mem.bit"

	analyzerSamples = 1000
	fftNbrAcc       = 30
	fftConf         = 0x20
	fftLines        = 16384
	memWords        = 4096
	memChannel2     = 0x80000
)

func init() {
	register(&Program{
		Name:  "analyzers",
		Short: "Custom analyzer firmware, data entry monitor buffer capture",
		Run:   runAnalyzer,
	})
	register(&Program{
		Name:  "mem",
		Short: "AC240 memory example firmware, both channels through the SRAM",
		Run:   runMemory,
	})
	register(&Program{
		Name:  "fft",
		Short: "AC240 FFT firmware, accumulated power spectrum",
		Run:   runFFT,
	})
}

func runAnalyzer(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "analyzer", "", models("AC240", "AC210"))
	if err != nil {
		return err
	}
	defer s.Close()

	setup := &Setup{
		SampInterval: 1e-9,
		Verticals:    []Vertical{{Channel: 1, FullScale: 2.0, Coupling: 1}},
		Trigger:      &Trigger{Pattern: 1, Channel: 1, Level1: 20},
	}
	b, done, err := s.streaming(ctx, fpga.FirmwareAnalyzer, analyzerFirmwareFile, setup)
	if err != nil {
		return err
	}
	defer done()
	defer s.shutdown(b, regValue{fpga.RegDECtrl, 0}, regValue{fpga.RegFPGACtrl, 0})

	if err := enableDataEntry(ctx, b, fpga.FPGACtrlEnableDCMs); err != nil {
		return err
	}
	// a rising edge of the capture bit refills the monitor buffer
	if _, err := b.Modify(b.Reg(fpga.RegMainCtrl), fpga.MainCtrlCaptureMon, 0); err != nil {
		return err
	}
	if _, err := b.Modify(b.Reg(fpga.RegMainCtrl), 0, fpga.MainCtrlCaptureMon); err != nil {
		return err
	}
	ready := fpga.MonitorReady
	if err := b.WaitBits(ctx, b.Reg(fpga.RegDeMonCtrl), ready, ready, bufferBudget, pollInterval); err != nil {
		return xerrors.Errorf("monitor buffer not ready: %w", err)
	}
	words, err := b.ReadBuffer(fpga.BufferMonitor, 0, analyzerSamples/4)
	if err != nil {
		return err
	}
	return env.save("Analyzer.data", func(out *output.Writer) {
		out.Line("Monitoring Buffer")
		for _, v := range fpga.Int8s(words) {
			out.Values(v)
		}
	})
}

func runMemory(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "analyzer", "", models("AC240", "AC210"))
	if err != nil {
		return err
	}
	defer s.Close()

	setup := &Setup{
		SampInterval: 1e-9,
		Verticals: []Vertical{
			{Channel: 1, FullScale: 5.0, Coupling: 3},
			{Channel: 2, FullScale: 5.0, Coupling: 3},
		},
		Trigger: &Trigger{Pattern: 1, Channel: 1, Level1: 20},
	}
	b, done, err := s.streaming(ctx, fpga.FirmwareMemory, memFirmwareFile, setup)
	if err != nil {
		return err
	}
	defer done()
	defer s.shutdown(b, regValue{fpga.RegDECtrl, 0}, regValue{fpga.RegFPGACtrl, 0})

	if err := enableDataEntry(ctx, b, fpga.FPGACtrlEnableDCMs); err != nil {
		return err
	}
	err = writes(b,
		regValue{fpga.RegSRAMCtrl, fpga.SRAMCtrlReset},
		regValue{fpga.RegSRAMCtrl, 0},
		regValue{fpga.RegMemExampleCtrl, fpga.MemExampleCtrlWrite},
	)
	if err != nil {
		return err
	}
	full := fpga.MemExampleCtrlFull
	if err := b.WaitBits(ctx, b.Reg(fpga.RegMemExampleCtrl), full, full, bufferBudget, pollInterval); err != nil {
		return xerrors.Errorf("memory not filled: %w", err)
	}

	if err := b.Write(b.Reg(fpga.RegSRAMCtrl), fpga.SRAMCtrlRead); err != nil {
		return err
	}
	ch1, err := b.ReadBuffer(fpga.BufferSRAM, 0, memWords)
	if err != nil {
		return err
	}
	ch2, err := b.ReadBuffer(fpga.BufferSRAM, memChannel2, memWords)
	if err != nil {
		return err
	}
	s1, s2 := fpga.Int8s(ch1), fpga.Int8s(ch2)
	return env.save("Memory.data", func(out *output.Writer) {
		out.Line("Channel 1\tChannel 2")
		for i := range s1 {
			out.Values(s1[i], s2[i])
		}
	})
}

func runFFT(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "AC240", "", models("AC240"))
	if err != nil {
		return err
	}
	defer s.Close()

	setup := &Setup{
		Combination:  &Combination{Converters: 2, Channels: 1},
		SampInterval: 0.5e-9,
		Verticals:    []Vertical{{Channel: 1, FullScale: 2.0, Coupling: 3}},
		Trigger:      &Trigger{Pattern: 1, Channel: 1, Level1: 20},
	}
	b, done, err := s.streaming(ctx, fpga.FirmwareFFT, fftFirmwareFile, setup)
	if err != nil {
		return err
	}
	defer done()
	defer func() {
		if err := b.Write(b.Reg(fpga.RegMainCtrl), 0); err != nil {
			s.shutdown(b)
			return
		}
		if err := b.WaitBits(ctx, b.Reg(fpga.RegMainStatus), fpga.MainStatusBusy, 0, clockBudget, pollInterval); err != nil {
			env.printf("FFT still busy: %s\n", err)
		}
		s.shutdown(b)
	}()

	err = writes(b,
		regValue{fpga.RegFPGACtrl, 0},
		regValue{fpga.RegFPGACtrl, fpga.FPGACtrlEnableDCMs},
		regValue{fpga.RegDECtrl, 0},
		regValue{fpga.RegDECtrl, fpga.DECtrlEnable},
		regValue{fpga.RegNbrAcc, fftNbrAcc},
		regValue{fpga.RegFFTConf, fftConf},
	)
	if err != nil {
		return err
	}
	clock := fpga.FPGAStatusDEClock
	if err := b.WaitBits(ctx, b.Reg(fpga.RegFPGAStatus), clock, clock, clockBudget, pollInterval); err != nil {
		return xerrors.Errorf("data entry clock not ready: %w", err)
	}
	if err := b.Write(b.Reg(fpga.RegMainCtrl), fpga.MainCtrlStart); err != nil {
		return err
	}
	ready := fpga.MainStatusSpectrum
	if err := b.WaitBits(ctx, b.Reg(fpga.RegMainStatus), ready, ready, bufferBudget, pollInterval); err != nil {
		return xerrors.Errorf("spectrum not ready: %w", err)
	}
	spectrum, err := b.ReadBuffer(fpga.BufferSumOfSpectrum, 0, fftLines)
	if err != nil {
		return err
	}
	return env.save("FFT.data", func(out *output.Writer) {
		out.Line("Power Spectrum")
		for _, v := range spectrum {
			out.Values(v)
		}
	})
}
