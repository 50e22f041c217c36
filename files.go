/*
Copyright © 2025 the fwg authors.
This file is part of fwg.

fwg is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

fwg is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with fwg.  If not, see <http://www.gnu.org/licenses/>.
*/

package fwg

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dsanchez-garcia/fwg/internal/hash"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Removal of temporary directories is retried because the JVM can hold
// file locks for a moment after it exits.
const (
	removeAttempts = 5
	removeDelay    = 500 * time.Millisecond
)

// removeAll removes path, retrying on failure.
func removeAll(path string, log logrus.FieldLogger) error {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(removeDelay), removeAttempts-1)
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return os.RemoveAll(path)
	}, b, func(err error, d time.Duration) {
		log.WithFields(logrus.Fields{"path": path, "attempt": attempt}).
			Warnf("deleting temporary directory: %v; retrying in %v", err, d)
	})
	if err != nil {
		return fmt.Errorf("fwg: failed to delete directory %s after %d attempts: %w", path, removeAttempts, err)
	}
	return nil
}

// copyFile copies src to dst, preserving the file mode and modification
// time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, fi.ModTime(), fi.ModTime())
}

// moveFile renames src to dst, falling back to copy and delete when they
// are on different devices.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// fileSize returns a human readable size of path for log messages.
func fileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(fi.Size()))
}

// baseName returns the file name of path without its extension.
func baseName(path string) string {
	b := filepath.Base(path)
	return b[:len(b)-len(filepath.Ext(b))]
}

// tempDir returns the working directory under base for the EPW file at
// path. Files sharing a base name in different directories get different
// directories.
func tempDir(base, path string) string {
	if a, err := filepath.Abs(path); err == nil {
		path = a
	}
	return filepath.Join(base, baseName(path)+"_"+hash.Short(path, 8))
}
