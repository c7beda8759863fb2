//go:build windows

package link

import "os"

func syncAndChmod(f *os.File, mode os.FileMode) error {
	if err := f.Chmod(mode); err != nil {
		return err
	}
	return f.Sync()
}
