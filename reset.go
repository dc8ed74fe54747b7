package nuphase

import (
	"errors"
	"fmt"
	"time"
)

// ResetLevel selects how much of the board state a Reset clears (spec
// §4.9).
type ResetLevel uint8

const (
	// ResetGlobal reloads the FPGA, recalibrates ADC delays, and resets the
	// counters. Open issues this once at startup.
	ResetGlobal ResetLevel = iota
	// ResetAlmostGlobal reloads the FPGA and resets the counters, without
	// recalibrating ADC delays.
	ResetAlmostGlobal
	// ResetCalibrate re-runs ADC-delay alignment and resets the counters,
	// without reloading the FPGA.
	ResetCalibrate
	// ResetCounters clears only the event/trigger/PPS counters.
	ResetCounters
)

// numADCPairs is the number of per-ADC-pair delay registers the
// calibration loop sweeps (one per regAdcDelaysBase slot, two channels per
// pair).
const numADCPairs = NumChan / 2

// allBuffers clears every hardware event buffer in one synchronized
// command.
const allBuffers = ClearMask(1<<NumBuffer - 1)

// These are package vars, not consts, so tests can shrink them instead of
// actually blocking on FPGA-reload and retry timing.
var (
	resetAllSleep           = 20 * time.Second
	adcClkRstRetryDelay     = time.Second
	calibrationWaitTimeout  = time.Second
	calibrationPollInterval = time.Millisecond
)

// errCalibrationDeadline marks a calibration trigger that never produced a
// ready buffer within calibrationWaitTimeout. It is handled the same way
// as a bad peak reading: issue ADC_CLK_RST and retry.
var errCalibrationDeadline = errors.New("nuphase: calibration trigger timed out")

// Reset drives the board(s) through the requested reset level (spec §4.9).
// Every level first disables phased-trigger readout and clears all
// buffers; the counter reset is always performed last for CALIBRATE and
// GLOBAL.
func (d *Device) Reset(level ResetLevel) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	savedEnables := d.lastTrigEnables
	if err := d.setTrigEnablesLocked(TrigEnables{}); err != nil {
		return fmt.Errorf("nuphase: reset: %w: %w", ErrResetFailed, err)
	}
	if err := d.clearLocked(allBuffers); err != nil {
		return fmt.Errorf("nuphase: reset: %w: %w", ErrResetFailed, err)
	}

	switch level {
	case ResetCounters:
		if err := d.resetCountersLocked(); err != nil {
			return err
		}
		return d.setTrigEnablesLocked(savedEnables)
	case ResetAlmostGlobal:
		if err := d.syncedCommandLocked(cmdWord{regResetAll, 0, 0, 2}); err != nil {
			return fmt.Errorf("nuphase: almost-global reset: %w: %w", ErrResetFailed, err)
		}
		time.Sleep(resetAllSleep)
		if err := d.resetCountersLocked(); err != nil {
			return err
		}
		return d.setTrigEnablesLocked(savedEnables)
	case ResetCalibrate:
		if err := d.calibrateLocked(savedEnables); err != nil {
			return err
		}
		return d.resetCountersLocked()
	default: // ResetGlobal
		if err := d.syncedCommandLocked(cmdWord{regResetAll, 0, 0, 1}); err != nil {
			return fmt.Errorf("nuphase: global reset: %w: %w", ErrResetFailed, err)
		}
		time.Sleep(resetAllSleep)
		if err := d.calibrateLocked(savedEnables); err != nil {
			return err
		}
		return d.resetCountersLocked()
	}
}

func (d *Device) setTrigEnablesLocked(e TrigEnables) error {
	cmd := cmdWord{regTrigEnables, 0, 0, e.encode()}
	if err := d.syncedCommandLocked(cmd); err != nil {
		return err
	}
	d.lastTrigEnables = e
	return nil
}

// resetCountersLocked selects timestamp free-running mode, issues the
// synchronized counter reset, and stores the wall-clock midpoint spanning
// that write as start_time (spec §4.9).
func (d *Device) resetCountersLocked() error {
	if err := d.syncedCommandLocked(cmdWord{regTimestamp, 0, 0, 1}); err != nil {
		return fmt.Errorf("nuphase: reset counters: %w: %w", ErrResetFailed, err)
	}
	before := time.Now()
	if err := d.syncedCommandLocked(cmdWord{regResetCtr, 0, 0, 1}); err != nil {
		return fmt.Errorf("nuphase: reset counters: %w: %w", ErrResetFailed, err)
	}
	after := time.Now()
	d.startTime = before.Add(after.Sub(before) / 2)
	return nil
}

// calibrateLocked runs the calpulser-driven ADC-delay alignment of spec
// §4.9: temporarily widen buffer_length to 1024, enable the calpulser at
// state 3, software-trigger an event, and derive each ADC pair's delay
// from the sample index of its two channels' peaks. restoreEnables is
// written back once calibration is done, whether or not it converged.
func (d *Device) calibrateLocked(restoreEnables TrigEnables) error {
	origBufLen := d.bufferLength
	d.bufferLength = 1024
	defer func() {
		d.bufferLength = origBufLen
		_ = d.clearLocked(allBuffers)
		_ = d.setTrigEnablesLocked(restoreEnables)
	}()

	if err := d.syncedCommandLocked(cmdWord{regTrigEnables, 0, 0, 3}); err != nil {
		return err
	}

	var delays [numADCPairs]uint8
	misery := 0
	for attempt := 0; ; attempt++ {
		if attempt > 1 {
			time.Sleep(adcClkRstRetryDelay)
		}

		maxIdx, maxVal, err := d.fireAndMeasureLocked()
		if err != nil && err != errCalibrationDeadline {
			return err
		}

		good := false
		var minMaxI, maxMaxI int
		var minMaxV uint8
		if err == nil {
			minMaxI, maxMaxI, minMaxV = maxIdx[0], maxIdx[0], maxVal[0]
			for ch := 1; ch < NumChan; ch++ {
				if maxIdx[ch] < minMaxI {
					minMaxI = maxIdx[ch]
				}
				if maxIdx[ch] > maxMaxI {
					maxMaxI = maxIdx[ch]
				}
				if maxVal[ch] < minMaxV {
					minMaxV = maxVal[ch]
				}
			}
			good = minMaxV >= MinGoodMaxV && maxMaxI-minMaxI <= 16
		}

		if good {
			for k := 0; k < numADCPairs; k++ {
				delta := (maxIdx[2*k] + maxIdx[2*k+1] - 2*minMaxI) / 2
				delays[k] = uint8(delta) & 0x0F
			}
			break
		}

		if err := d.syncedCommandLocked(cmdWord{regAdcClkRst, 0, 0, 0}); err != nil {
			return err
		}
		misery++
		if misery >= MaxMisery {
			return fmt.Errorf("nuphase: calibrate: %w", ErrCalibrationFailed)
		}
	}

	for k, dl := range delays {
		payload := (dl & 0xF) | 0x10
		cmd := cmdWord{byte(regAdcDelaysBase + k), 0, payload, payload}
		if err := d.syncedCommandLocked(cmd); err != nil {
			return err
		}
	}
	return nil
}

// fireAndMeasureLocked emits a software trigger, waits up to
// calibrationWaitTimeout for a ready buffer, and returns each channel's
// sample index and value of its waveform peak.
func (d *Device) fireAndMeasureLocked() (maxIdx [NumChan]int, maxVal [NumChan]uint8, err error) {
	if err = d.syncedCommandLocked(cmdWord{regSoftTrig, 0, 0, 1}); err != nil {
		return
	}

	deadline := time.Now().Add(calibrationWaitTimeout)
	buf := -1
	for {
		status, rerr := readStatusByte(d.master.bus)
		if rerr != nil {
			err = rerr
			return
		}
		if mask, _ := decodeStatus(status); mask != 0 {
			buf = lowestSetBit(mask)
			break
		}
		if !time.Now().Before(deadline) {
			err = errCalibrationDeadline
			return
		}
		time.Sleep(calibrationPollInterval)
	}

	meta, merr := readBoardMeta(d.master, buf)
	if merr != nil {
		err = merr
		return
	}
	data, werr := readWaveforms(d.master, buf, d.bufferLength, meta.channelReadMask)
	if werr != nil {
		err = werr
		return
	}
	if cerr := d.clearBufferLocked(buf); cerr != nil {
		err = cerr
		return
	}

	for ch := 0; ch < NumChan; ch++ {
		best, bestVal := 0, data[ch][0]
		for i := 1; i < d.bufferLength && i < len(data[ch]); i++ {
			if data[ch][i] > bestVal {
				bestVal, best = data[ch][i], i
			}
		}
		maxIdx[ch], maxVal[ch] = best, bestVal
	}
	return
}
