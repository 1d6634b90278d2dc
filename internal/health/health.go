// Package health derives the run status record from the run log and writes it
// for external monitors.
package health

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DateLayout is the prefix that marks a log line as written on a given day.
const DateLayout = "2006-01-02"

// Status values written to the status record.
const (
	StatusFailure = 0
	StatusSuccess = 1
)

// Messages stored in Status.LastMessage.
const (
	MessageFailure = "An error/warning occured while trying to run the script!"
	MessageSuccess = "No errors found while running the script."
)

var markers = []string{"WARN", "ERROR"}

// Status is the machine-readable health record for the most recent run.
type Status struct {
	Status      int    `json:"status"`
	LastRun     int64  `json:"last_run"`
	LastMessage string `json:"last_message"`
}

// OK reports whether the record signals success.
func (s Status) OK() bool {
	return s.Status == StatusSuccess
}

// Scan reports whether any line written on day carries a warning or error marker.
func Scan(r io.Reader, day time.Time) (bool, error) {
	prefix := day.Format(DateLayout)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		for _, marker := range markers {
			if strings.Contains(line, marker) {
				return true, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("scan log: %w", err)
	}
	return false, nil
}

// ScanFile runs Scan over the log at path. A missing log has nothing to report.
func ScanFile(path string, day time.Time) (bool, error) {
	// #nosec G304 -- path comes from job configuration.
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open log: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle
	return Scan(f, day)
}

// Derive builds the status record for a run finished at now.
func Derive(problemsFound bool, now time.Time) Status {
	if problemsFound {
		return Status{Status: StatusFailure, LastRun: now.Unix(), LastMessage: MessageFailure}
	}
	return Status{Status: StatusSuccess, LastRun: now.Unix(), LastMessage: MessageSuccess}
}

// WriteStatus overwrites the status file at path.
func WriteStatus(path string, status Status) error {
	payload, err := json.MarshalIndent(status, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create status dir: %w", err)
		}
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write status %s: %w", path, err)
	}
	return nil
}

// ReadStatus loads a previously written status file.
func ReadStatus(path string) (Status, error) {
	// #nosec G304 -- path comes from job configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return Status{}, fmt.Errorf("read status %s: %w", path, err)
	}
	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return Status{}, fmt.Errorf("decode status %s: %w", path, err)
	}
	return status, nil
}
