// Package report writes the CSV artifacts of an estimation run: the case
// series (original and smoothed) and the per-day Rt estimates.
//
// Files are written to a temporary path and renamed into place so a reader
// never sees a half-written artifact.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rewired-gh/rtestimate/internal/models"
)

// Writer writes run artifacts below a base directory
type Writer struct {
	dir             string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// Artifacts lists the files written for one run
type Artifacts struct {
	Dir       string
	CasesPath string
	RtPath    string
}

// NewWriter creates a Writer rooted at dir
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, filePermissions: 0o644, dirPermissions: 0o755}
}

// Write stores both CSV files in a directory named after the run time, e.g.
// <dir>/2020-05-01_08-30-00/2020-05-01_08-30-00_Rt.csv.
func (w *Writer) Write(runAt time.Time, original, smoothed models.CaseSeries, estimates []models.Estimate) (*Artifacts, error) {
	stamp := runAt.Format("2006-01-02_15-04-05")
	runDir := filepath.Join(w.dir, stamp)
	if err := os.MkdirAll(runDir, w.dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	a := &Artifacts{
		Dir:       runDir,
		CasesPath: filepath.Join(runDir, stamp+"_cases.csv"),
		RtPath:    filepath.Join(runDir, stamp+"_Rt.csv"),
	}
	if err := w.writeAtomic(a.CasesPath, func(out io.Writer) error {
		return WriteCases(out, original, smoothed)
	}); err != nil {
		return nil, err
	}
	if err := w.writeAtomic(a.RtPath, func(out io.Writer) error {
		return WriteEstimates(out, estimates)
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// WriteCases writes date,original,smoothed rows. Both series must cover the
// same dates in the same order.
func WriteCases(out io.Writer, original, smoothed models.CaseSeries) error {
	if len(original) != len(smoothed) {
		return fmt.Errorf("original has %d days but smoothed has %d", len(original), len(smoothed))
	}
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"date", "original", "smoothed"}); err != nil {
		return err
	}
	for i := range smoothed {
		if !original[i].Date.Equal(smoothed[i].Date) {
			return fmt.Errorf("row %d: date mismatch %s vs %s", i,
				original[i].Date.Format(time.DateOnly), smoothed[i].Date.Format(time.DateOnly))
		}
		if err := cw.Write([]string{
			smoothed[i].Date.Format(time.DateOnly),
			formatFloat(original[i].Count),
			formatFloat(smoothed[i].Count),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEstimates writes date,ML,Low,High rows.
func WriteEstimates(out io.Writer, estimates []models.Estimate) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"date", "ML", "Low", "High"}); err != nil {
		return err
	}
	for _, e := range estimates {
		if err := cw.Write([]string{
			e.Date.Format(time.DateOnly),
			formatFloat(e.MostLikely),
			formatFloat(e.Low),
			formatFloat(e.High),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (w *Writer) writeAtomic(path string, fill func(io.Writer) error) error {
	// Write to temporary file first (atomic write)
	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Rename temp file to actual file
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file on rename failure
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
