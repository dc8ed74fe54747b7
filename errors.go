package nuphase

import "errors"

// Sentinel errors from the wait/interrupt primitive and the reset and
// calibration driver (spec §7). Compare with errors.Is.
var (
	// ErrBusy is returned by Wait when another goroutine is already waiting
	// on the same Device.
	ErrBusy = errors.New("nuphase: wait already in progress")
	// ErrAgain is returned by Wait when the cancellation flag was already
	// set on entry; the flag is cleared and the caller should retry.
	ErrAgain = errors.New("nuphase: wait canceled before it started")
	// ErrIntr is returned by Wait when CancelWait unblocked an in-progress
	// wait.
	ErrIntr = errors.New("nuphase: wait interrupted")
	// ErrCalibrationFailed is returned by Reset(ResetCalibrate) and
	// Reset(ResetGlobal) when ADC-delay alignment did not converge within
	// MaxMisery attempts.
	ErrCalibrationFailed = errors.New("nuphase: adc-delay calibration did not converge")
	// ErrResetFailed is returned by Reset when a mandatory step failed.
	ErrResetFailed = errors.New("nuphase: reset failed")
)

// ioFailure wraps a transfer-level SPI/ioctl error with the name of the
// operation that failed (spec §7). Failures are returned one at a time;
// no count of them is kept.
type ioFailure struct {
	op  string
	err error
}

func (e *ioFailure) Error() string {
	return "nuphase: " + e.op + ": " + e.err.Error()
}

func (e *ioFailure) Unwrap() error {
	return e.err
}

func wrapIOErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ioFailure{op: op, err: err}
}
