// Package nuphase is a userspace driver for a phased-array radio-frequency
// data-acquisition board family (generations "NP" and "BN"). A Device talks
// to a master board and an optional slave board over SPI character devices,
// plus an optional GPIO line used as an interrupt-ready indicator.
//
// The driver covers SPI command batching, the board state machine, the
// master/slave synchronized-command protocol, buffer-ring management and
// event readout, the cancellable trigger/wait primitive, and the
// reset/calibration procedure that aligns per-ADC sample delays against an
// onboard calibration pulser.
//
// The GPIO line is accepted as a periph.io/x/conn/v3/gpio.PinIn rather than
// opened internally: callers wire up the real pin (sysfs, memory-mapped, or
// a test fake) the same way a periph.io device driver accepts a spi.Port or
// gpio.PinIO from its caller.
package nuphase
