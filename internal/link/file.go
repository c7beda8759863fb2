package link

import (
	"os"
	"path/filepath"

	"github.com/xyproto/hexlink/internal/diag"
)

// WriteFile replaces path with data. The bytes go to a temporary file in the
// same directory which is synced, given its mode and renamed over path, so a
// failed write leaves any previous file as it was.
func WriteFile(path string, data []byte, executable bool) error {
	mode := os.FileMode(0o644)
	if executable {
		mode = 0o755
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &diag.IOError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &diag.IOError{Op: op, Path: path, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := syncAndChmod(tmp, mode); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &diag.IOError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &diag.IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
