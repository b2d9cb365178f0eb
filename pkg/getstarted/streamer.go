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

	"jinr.ru/greenlab/go-acqiris/pkg/driver"
	"jinr.ru/greenlab/go-acqiris/pkg/fpga"
	"jinr.ru/greenlab/go-acqiris/pkg/layers"
	"jinr.ru/greenlab/go-acqiris/pkg/output"
)

const (
	streamerFirmwareFile     = "sc240stream2.bit"
	baseStreamerFirmwareFile = "SC240str1.bit"

	// optical data link bit rate attribute
	attrTxBitRate = "odlTxBitRate"

	streamerMonitorWords = 2048
	baseStreamerSamples  = 2048
	baseStreamerAccum    = 64

	slcCtrlOneLink  uint32 = 0x023f0001
	slcCtrlTwoLinks uint32 = 0x033f0001
	slcCtrlBase     uint32 = 0x023f0003

	streamerGlob       uint32 = 0x85000009
	streamerSource     uint32 = 0x00010200
	streamerEnableMask uint32 = 0x000001f0
	streamerEnable     uint32 = 0x00000140
	streamerRun        uint32 = 0x00000100
	streamerCaptureAll uint32 = 0x00007000
	dsMonitorArm       uint32 = 0x10000000
	txMonitorArm       uint32 = 0x20000000

	baseStreamerRun uint32 = 0x00008100
)

func init() {
	register(&Program{
		Name:  "streamer",
		Short: "SC240 streamer firmware over two optical links, DS and Tx monitors",
		Run:   runStreamer,
	})
	register(&Program{
		Name:  "basestreamer",
		Short: "SC240 base streamer firmware, raw, accumulated and parameter frames",
		Run:   runBaseStreamer,
	})
}

func (s *session) setTxBitRate(rate string) error {
	err := s.env.Driver.SetAttributeString(s.id, 0, attrTxBitRate, rate)
	if err := driver.Filter("SetAttributeString", err); err != nil {
		return xerrors.Errorf("could not set %s to %s: %w", attrTxBitRate, rate, err)
	}
	return nil
}

func runStreamer(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "SC240", "", models("SC240"))
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
		Trigger: &Trigger{Pattern: 1, Channel: 1, Level1: 10},
	}
	b, done, err := s.streaming(ctx, fpga.FirmwareStreamer, streamerFirmwareFile, setup)
	if err != nil {
		return err
	}
	defer done()

	if err := b.Write(b.Reg(fpga.RegTriggerCtrl), fpga.TriggerCtrlStart); err != nil {
		return err
	}
	if err := s.setTxBitRate("2.5G"); err != nil {
		return err
	}
	if err := enableDataEntry(ctx, b, fpga.FPGACtrlEnableDCMAB); err != nil {
		return err
	}
	if err := b.Write(b.Reg(fpga.RegMainCtrl), 0); err != nil {
		return err
	}
	defer func() {
		if _, err := b.Modify(b.Reg(fpga.RegMainCtrl), streamerRun, 0); err != nil {
			env.printf("Could not stop the streamer: %s\n", err)
		}
		s.shutdown(b, regValue{fpga.RegSLC0Ctrl, 0}, regValue{fpga.RegSLC1Ctrl, 0})
	}()

	links, err := env.Driver.GetInstrumentInfo(s.id, "LogDevDataLinks")
	if err := driver.Filter("GetInstrumentInfo", err); err != nil {
		return err
	}
	slc0 := slcCtrlTwoLinks
	if links <= 2 {
		slc0 = slcCtrlOneLink
	}
	err = writes(b,
		regValue{fpga.RegSLC0Ctrl, slc0},
		regValue{fpga.RegSLC1Ctrl, slcCtrlTwoLinks},
	)
	if err != nil {
		return err
	}
	status := []uint16{b.Reg(fpga.RegSLC0Status), b.Reg(fpga.RegSLC1Status)}
	up := fpga.SLCStatusLinkUp
	if err := b.WaitBitsAll(ctx, status, up, up, linkBudget, pollInterval); err != nil {
		return xerrors.Errorf("data links not up: %w", err)
	}
	for _, reg := range []fpga.RegAlias{fpga.RegSLC0Ctrl, fpga.RegSLC1Ctrl} {
		if _, err := b.Modify(b.Reg(reg), 0, fpga.SLCCtrlResetFlags); err != nil {
			return err
		}
	}

	err = writes(b,
		regValue{fpga.RegStreamerConfigGlob, streamerGlob},
		regValue{fpga.RegStreamerConfigSrcA, streamerSource},
		regValue{fpga.RegStreamerConfigSrcB, streamerSource},
	)
	if err != nil {
		return err
	}
	if _, err := b.Modify(b.Reg(fpga.RegMainCtrl), streamerEnableMask, streamerEnable); err != nil {
		return err
	}

	// arm the DS and Tx monitors, then capture both
	if _, err := b.Modify(b.Reg(fpga.RegMainCtrl), streamerCaptureAll, 0); err != nil {
		return err
	}
	err = writes(b,
		regValue{fpga.RegDsMonCtrl, dsMonitorArm},
		regValue{fpga.RegTxMonCtrl, txMonitorArm},
	)
	if err != nil {
		return err
	}
	if _, err := b.Modify(b.Reg(fpga.RegMainCtrl), 0, fpga.MainCtrlCaptureMon|fpga.MainCtrlCaptureTx); err != nil {
		return err
	}
	monitors := []uint16{b.Reg(fpga.RegDsMonCtrl), b.Reg(fpga.RegTxMonCtrl)}
	ready := fpga.MonitorReady
	if err := b.WaitBitsAll(ctx, monitors, ready, ready, bufferBudget, pollInterval); err != nil {
		return xerrors.Errorf("monitor buffers not ready: %w", err)
	}

	ds, err := b.Read(b.Reg(fpga.RegDsMonCtrl))
	if err != nil {
		return err
	}
	in, err := b.ReadBuffer(fpga.BufferMonitor, ds&0xffff, streamerMonitorWords)
	if err != nil {
		return err
	}
	tx, err := b.ReadBuffer(fpga.BufferTxMonitor, 0, streamerMonitorWords)
	if err != nil {
		return err
	}
	inSamples, txSamples := fpga.Int8s(in), fpga.Int8s(tx)
	return env.save("Streamer.data", func(out *output.Writer) {
		out.Line("In Buffer\tTx Buffer")
		for i := range inSamples {
			out.Values(inSamples[i], txSamples[i])
		}
	})
}

func runBaseStreamer(ctx context.Context, env *Env) error {
	s, err := env.open(ctx, "SC240", "", models("SC240"))
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
		Trigger: &Trigger{Pattern: 1, Channel: 1, Level1: 10},
	}
	b, done, err := s.streaming(ctx, fpga.FirmwareBaseStreamer, baseStreamerFirmwareFile, setup)
	if err != nil {
		return err
	}
	defer done()

	err = writes(b,
		regValue{fpga.RegTriggerCtrl, fpga.TriggerCtrlInitDCM},
		regValue{fpga.RegTriggerCtrl, fpga.TriggerCtrlResetTime},
		regValue{fpga.RegTriggerCtrl, fpga.TriggerCtrlStart},
	)
	if err != nil {
		return err
	}
	if err := s.setTxBitRate("2.5G"); err != nil {
		return err
	}
	if err := enableDataEntry(ctx, b, fpga.FPGACtrlEnableDCMs); err != nil {
		return err
	}
	if err := b.Write(b.Reg(fpga.RegMainCtrl), 0); err != nil {
		return err
	}
	defer func() {
		err := writes(b,
			regValue{fpga.RegMainCtrl, 0},
			regValue{fpga.RegSLC0Ctrl, fpga.SLCCtrlResetRx},
			regValue{fpga.RegSLC0Ctrl, 0},
		)
		if err != nil {
			env.printf("Could not stop the streamer: %s\n", err)
		}
		if err := s.setTxBitRate("None"); err != nil {
			env.printf("%s\n", err)
		}
		s.shutdown(b,
			regValue{fpga.RegTriggerCtrl, 0},
			regValue{fpga.RegDECtrl, 0},
			regValue{fpga.RegFPGACtrl, 0},
		)
	}()

	if err := b.Write(b.Reg(fpga.RegSLC0Ctrl), slcCtrlBase); err != nil {
		return err
	}
	linked := fpga.SLCStatusLinksReady
	if err := b.WaitBits(ctx, b.Reg(fpga.RegSLC0Status), linked, linked, linkBudget, pollInterval); err != nil {
		return xerrors.Errorf("data link not up: %w", err)
	}
	if _, err := b.Modify(b.Reg(fpga.RegSLC0Ctrl), 0, fpga.SLCCtrlResetFlags); err != nil {
		return err
	}

	err = writes(b,
		regValue{fpga.RegStrmConf, baseStreamerSamples/16 - 1},
		regValue{fpga.RegMainCtrl, baseStreamerRun | (baseStreamerAccum-1)<<24},
	)
	if err != nil {
		return err
	}
	capture := fpga.MainCtrlCaptureTx | fpga.MainCtrlCaptureRx
	if _, err := b.Modify(b.Reg(fpga.RegMainCtrl), 0, capture); err != nil {
		return err
	}
	monitors := []uint16{b.Reg(fpga.RegTxMonCtrl), b.Reg(fpga.RegRxMonCtrl)}
	ready := fpga.MonitorReady
	if err := b.WaitBitsAll(ctx, monitors, ready, ready, bufferBudget, pollInterval); err != nil {
		return xerrors.Errorf("monitor buffers not ready: %w", err)
	}
	if _, err := b.Modify(b.Reg(fpga.RegMainCtrl), capture, 0); err != nil {
		return err
	}

	size := layers.MonitorBlockSize(baseStreamerSamples)
	var blocks [2]*layers.MonitorBlock
	for i, id := range []uint32{fpga.BufferTxMonitor, fpga.BufferRxMonitor} {
		data, err := b.ReadBytes(id, 0, size)
		if err != nil {
			return err
		}
		if blocks[i], err = layers.DecodeMonitorBlock(data, baseStreamerSamples); err != nil {
			return xerrors.Errorf("could not decode monitor buffer 0x%02x: %w", id, err)
		}
	}
	tx, rx := blocks[0], blocks[1]
	return env.save("BaseStreamer.data", func(out *output.Writer) {
		out.Line("Data Kind\tTx\tRx")
		frame := func(t, r *layers.FrameHeaderLayer) {
			out.Comment("%s", t.Type)
			out.Values("Type", uint8(t.Type), uint8(r.Type))
			out.Values("Timestamp", t.Timestamp(), r.Timestamp())
		}
		frame(tx.Raw, rx.Raw)
		for i := range tx.RawSamples {
			out.Values("Sample", tx.RawSamples[i], rx.RawSamples[i])
		}
		frame(tx.Accumulated, rx.Accumulated)
		for i := range tx.AccSamples {
			out.Values("Sum", tx.AccSamples[i], rx.AccSamples[i])
		}
		frame(tx.Parameters, rx.Parameters)
		for i := range tx.ParamWords {
			out.Values("Parameter", tx.ParamWords[i], rx.ParamWords[i])
		}
	})
}
