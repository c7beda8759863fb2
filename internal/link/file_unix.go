//go:build unix

package link

import (
	"os"

	"golang.org/x/sys/unix"
)

func syncAndChmod(f *os.File, mode os.FileMode) error {
	fd := int(f.Fd())
	if err := unix.Fchmod(fd, uint32(mode.Perm())); err != nil {
		return err
	}
	return unix.Fsync(fd)
}
