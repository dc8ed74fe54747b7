package nuphase

import (
	"testing"
	"time"
)

func TestResetCountersIssuesTimestampThenResetCtr(t *testing.T) {
	d, fake, _ := newTestDevice(t, false)
	if err := d.Reset(ResetCounters); err != nil {
		t.Fatalf("Reset(ResetCounters): %v", err)
	}
	// disable enables, clear buffers, select free-run timestamp, reset
	// counters, restore enables.
	if len(fake.Ops) != 5 {
		t.Fatalf("len(Ops) = %d, want 5: %v", len(fake.Ops), fake.Ops)
	}
	if fake.Ops[2].Tx != (cmdWord{regTimestamp, 0, 0, 1}) {
		t.Errorf("Ops[2] = %v, want timestamp free-run select", fake.Ops[2].Tx)
	}
	if fake.Ops[3].Tx != (cmdWord{regResetCtr, 0, 0, 1}) {
		t.Errorf("Ops[3] = %v, want reset-counters command", fake.Ops[3].Tx)
	}
	if d.startTime.IsZero() {
		t.Errorf("startTime not set after Reset(ResetCounters)")
	}
}

func TestResetGlobalSleepsAfterResetAll(t *testing.T) {
	d, fake, _ := newTestDevice(t, false)
	fake.ChunkValue = MinGoodMaxV + 10
	fake.SetRegister(regChanReadMask, 0xFF)
	old := resetAllSleep
	resetAllSleep = time.Millisecond
	defer func() { resetAllSleep = old }()

	start := time.Now()
	if err := d.Reset(ResetGlobal); err != nil {
		t.Fatalf("Reset(ResetGlobal): %v", err)
	}
	if elapsed := time.Since(start); elapsed < resetAllSleep {
		t.Errorf("Reset(ResetGlobal) took %v, want at least resetAllSleep (%v)", elapsed, resetAllSleep)
	}
	if fake.Ops[2].Tx != (cmdWord{regResetAll, 0, 0, 1}) {
		t.Errorf("Ops[2] = %v, want RESET_ALL=1", fake.Ops[2].Tx)
	}
}

func TestResetAlmostGlobalUsesResetAllTwo(t *testing.T) {
	d, fake, _ := newTestDevice(t, false)
	old := resetAllSleep
	resetAllSleep = time.Millisecond
	defer func() { resetAllSleep = old }()

	if err := d.Reset(ResetAlmostGlobal); err != nil {
		t.Fatalf("Reset(ResetAlmostGlobal): %v", err)
	}
	if fake.Ops[2].Tx != (cmdWord{regResetAll, 0, 0, 2}) {
		t.Errorf("Ops[2] = %v, want RESET_ALL=2", fake.Ops[2].Tx)
	}
}

func TestCalibrateConvergesWhenPeakIsGood(t *testing.T) {
	d, fake, _ := newTestDevice(t, false)
	oldTimeout, oldPoll := calibrationWaitTimeout, calibrationPollInterval
	calibrationWaitTimeout, calibrationPollInterval = 50*time.Millisecond, time.Millisecond
	defer func() { calibrationWaitTimeout, calibrationPollInterval = oldTimeout, oldPoll }()

	fake.SetRegister(regStatus, 0x1)
	fake.SetRegister(regChanReadMask, 0xFF)
	fake.ChunkValue = MinGoodMaxV + 10
	if err := d.Reset(ResetCalibrate); err != nil {
		t.Fatalf("Reset(ResetCalibrate): %v", err)
	}
}

func TestCalibrateFailsWhenPeakNeverGood(t *testing.T) {
	d, fake, _ := newTestDevice(t, false)
	oldTimeout, oldPoll, oldRetry := calibrationWaitTimeout, calibrationPollInterval, adcClkRstRetryDelay
	calibrationWaitTimeout, calibrationPollInterval, adcClkRstRetryDelay = 2*time.Millisecond, time.Millisecond, time.Millisecond
	defer func() {
		calibrationWaitTimeout, calibrationPollInterval, adcClkRstRetryDelay = oldTimeout, oldPoll, oldRetry
	}()

	fake.SetRegister(regStatus, 0x1)
	fake.SetRegister(regChanReadMask, 0xFF)
	fake.ChunkValue = MinGoodMaxV - 1
	err := d.Reset(ResetCalibrate)
	if err == nil {
		t.Fatal("Reset(ResetCalibrate): want error, got nil")
	}
}

func TestResetGlobalRestoresTrigEnables(t *testing.T) {
	d, fake, _ := newTestDevice(t, false)
	old := resetAllSleep
	resetAllSleep = time.Millisecond
	defer func() { resetAllSleep = old }()
	fake.ChunkValue = MinGoodMaxV + 10
	fake.SetRegister(regChanReadMask, 0xFF)
	d.lastTrigEnables = TrigEnables{RF: true, External: true}

	if err := d.Reset(ResetGlobal); err != nil {
		t.Fatalf("Reset(ResetGlobal): %v", err)
	}
	if d.lastTrigEnables != (TrigEnables{RF: true, External: true}) {
		t.Errorf("lastTrigEnables = %+v, want restored to RF+External", d.lastTrigEnables)
	}
}
