package walletfile

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

const (
	claimRetries = 3
	claimBackoff = 500 * time.Millisecond
)

// Claim atomically renames a request sentinel to its claimed variant so a
// second pass over the same loop cannot reprocess it. Transient rename
// failures from the writing side are retried a bounded number of times.
func Claim(path string) error {
	var err error
	for i := 0; i <= claimRetries; i++ {
		if i > 0 {
			time.Sleep(claimBackoff)
		}
		err = os.Rename(path, Claimed(path))
		if err == nil {
			return nil
		}
	}
	return xerrors.Errorf("failed to claim %s %w", path, err)
}

// RemoveWithRetry removes the claimed request file, retrying transient
// failures. A leftover claimed file is harmless; the error is returned for
// logging only.
func RemoveWithRetry(path string) error {
	var err error
	for i := 0; i <= claimRetries; i++ {
		if i > 0 {
			time.Sleep(claimBackoff)
		}
		err = os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return nil
		}
	}
	return err
}

// AtomicReplace rewrites path through the rename discipline: the existing
// file is moved to a unique temporary name, the new content is written to
// the canonical name, and the temporary is removed only on success. On any
// failure the half-written canonical file is deleted and the original is
// reinstated, so the canonical name never observably holds a truncated file.
func AtomicReplace(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp." + uuid.NewString()

	hadOld := Exists(path)
	if hadOld {
		if err := os.Rename(path, tmp); err != nil {
			return xerrors.Errorf("failed to set aside %s %w", path, err)
		}
	}

	restore := func() {
		_ = os.Remove(path)
		if hadOld {
			_ = os.Rename(tmp, path)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		restore()
		return xerrors.Errorf("failed to create %s %w", path, err)
	}

	if err := write(f); err != nil {
		f.Close()
		restore()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		restore()
		return xerrors.Errorf("failed to sync %s %w", path, err)
	}
	if err := f.Close(); err != nil {
		restore()
		return xerrors.Errorf("failed to close %s %w", path, err)
	}

	if hadOld {
		_ = os.Remove(tmp)
	}
	return nil
}

// WriteFileIfAbsent writes content to path unless the file already exists.
func WriteFileIfAbsent(path string, content []byte) error {
	if Exists(path) {
		return nil
	}
	return os.WriteFile(path, content, 0600)
}

// Backup renames path to path+".back", keeping the pre-recovery original.
func Backup(path string) error {
	return os.Rename(path, path+BackupSuffix)
}
