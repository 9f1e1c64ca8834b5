package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	_fileMode = 0o644
	_dirMode  = 0o755
)

// rotation decides when the diagnostics file is renamed aside and reopened.
// A zero splitMB or splitHour disables that trigger.
type rotation struct {
	path      string
	splitMB   int
	splitHour int
	now       func() time.Time
}

// due reports whether the file opened at openedAt should be rotated now.
func (r rotation) due(size int64, openedAt time.Time) bool {
	if r.splitMB > 0 && size >= int64(r.splitMB)<<20 {
		return true
	}
	return r.crossedHour(openedAt, r.now())
}

func (r rotation) crossedHour(openedAt, now time.Time) bool {
	if r.splitHour == 0 {
		return false
	}
	if !now.Before(openedAt.Add(24 * time.Hour)) {
		return true
	}
	if openedAt.YearDay() == now.YearDay() {
		return openedAt.Hour() < r.splitHour && now.Hour() >= r.splitHour
	}
	return now.Hour() >= r.splitHour
}

// backupName returns a free name of the form "<base><ext>.YYYYMMDD-HHMMSS".
func (r rotation) backupName(at time.Time) (string, error) {
	ext := filepath.Ext(r.path)
	base := strings.TrimSuffix(r.path, ext)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("%s%s.%s", base, ext, at.Add(time.Duration(i)*time.Second).Format("20060102-150405"))
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			return name, nil
		} else if err != nil {
			return "", fmt.Errorf("stat backup: %w", err)
		}
	}
	return "", errors.New("no free backup file name")
}

// open creates parent directories and opens the file for appending.
func (r rotation) open() (*os.File, error) {
	if dir := filepath.Dir(r.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, _dirMode); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	fd, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, _fileMode)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return fd, nil
}

// rotate closes fd, renames the file aside and opens a fresh one.
func (r rotation) rotate(fd *os.File) (*os.File, error) {
	if err := fd.Close(); err != nil {
		return nil, fmt.Errorf("close log file: %w", err)
	}
	name, err := r.backupName(r.now())
	if err != nil {
		return nil, err
	}
	if err := os.Rename(r.path, name); err != nil {
		return nil, fmt.Errorf("rename log file: %w", err)
	}
	return r.open()
}
