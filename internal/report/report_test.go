package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/rtestimate/internal/models"
)

var day = time.Date(2020, time.April, 1, 0, 0, 0, 0, time.UTC)

func testData() (models.CaseSeries, models.CaseSeries, []models.Estimate) {
	original := models.CaseSeries{
		{Date: day, Count: 10},
		{Date: day.AddDate(0, 0, 1), Count: 14},
	}
	smoothed := models.CaseSeries{
		{Date: day, Count: 11},
		{Date: day.AddDate(0, 0, 1), Count: 13},
	}
	estimates := []models.Estimate{
		{Date: day.AddDate(0, 0, 1), MostLikely: 1.25, Low: 0.4, High: 2.1},
	}
	return original, smoothed, estimates
}

func TestWriteCases(t *testing.T) {
	original, smoothed, _ := testData()
	var buf bytes.Buffer

	if err := WriteCases(&buf, original, smoothed); err != nil {
		t.Fatalf("WriteCases failed: %v", err)
	}

	want := "date,original,smoothed\n2020-04-01,10,11\n2020-04-02,14,13\n"
	if buf.String() != want {
		t.Errorf("Unexpected CSV:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteCases_Mismatch(t *testing.T) {
	original, smoothed, _ := testData()

	if err := WriteCases(&bytes.Buffer{}, original[:1], smoothed); err == nil {
		t.Error("Expected error for length mismatch")
	}

	shifted := append(models.CaseSeries{}, smoothed...)
	shifted[1].Date = shifted[1].Date.AddDate(0, 0, 1)
	if err := WriteCases(&bytes.Buffer{}, original, shifted); err == nil {
		t.Error("Expected error for date mismatch")
	}
}

func TestWriteEstimates(t *testing.T) {
	_, _, estimates := testData()
	var buf bytes.Buffer

	if err := WriteEstimates(&buf, estimates); err != nil {
		t.Fatalf("WriteEstimates failed: %v", err)
	}

	want := "date,ML,Low,High\n2020-04-02,1.25,0.4,2.1\n"
	if buf.String() != want {
		t.Errorf("Unexpected CSV:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriter_Write(t *testing.T) {
	dir := t.TempDir()
	original, smoothed, estimates := testData()
	runAt := time.Date(2020, time.April, 10, 8, 30, 0, 0, time.UTC)

	a, err := NewWriter(dir).Write(runAt, original, smoothed, estimates)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if a.Dir != filepath.Join(dir, "2020-04-10_08-30-00") {
		t.Errorf("Unexpected run dir: %s", a.Dir)
	}
	for _, path := range []string{a.CasesPath, a.RtPath} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("artifact missing: %v", err)
		}
		if !strings.HasPrefix(string(data), "date,") {
			t.Errorf("%s: unexpected content %q", path, data)
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Errorf("temp file left behind for %s", path)
		}
	}
	if !strings.HasSuffix(a.RtPath, "2020-04-10_08-30-00_Rt.csv") {
		t.Errorf("Unexpected Rt path: %s", a.RtPath)
	}
}
