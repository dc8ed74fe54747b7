//go:build !linux

package nuphase

import (
	"errors"
	"os"
)

// spiFile is a stub on non-Linux hosts: the SPI character device and its
// ioctl protocol are Linux-specific, exactly as in the teacher's
// host/sysfs package.
type spiFile struct {
	f *os.File
}

func (s *spiFile) Ioctl(op uint32, arg uintptr) error {
	return errors.New("nuphase: spidev ioctl is only supported on linux")
}
