package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/rtestimate/internal/models"
)

var day = time.Date(2020, time.April, 14, 0, 0, 0, 0, time.UTC)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"1.05", "1\\.05"},
		{"2020-04-14", "2020\\-04\\-14"},
		{"a_b*c", "a\\_b\\*c"},
		{"(x) [y]!", "\\(x\\) \\[y\\]\\!"},
		{"Kaikki sairaanhoitopiirit", "Kaikki sairaanhoitopiirit"},
	}

	for _, tt := range tests {
		result := escapeMarkdownV2(tt.input)
		if result != tt.expected {
			t.Errorf("escapeMarkdownV2(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatMessage(t *testing.T) {
	estimates := []models.Estimate{
		{Date: day.AddDate(0, 0, -1), MostLikely: 1.1, Low: 0.9, High: 1.3},
		{Date: day, MostLikely: 1.25, Low: 1.05, High: 1.45},
	}

	msg := formatMessage("HUS", estimates, nil)

	for _, want := range []string{
		"*Rt estimate: HUS*",
		"2020\\-04\\-14",
		"Rt: *1\\.25* \\[1\\.05 – 1\\.45\\]",
		"📈 Trend: \\+0\\.15 \\(was 1\\.10\\)",
		"growing",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatMessage_SingleEstimate(t *testing.T) {
	msg := formatMessage("HUS", []models.Estimate{
		{Date: day, MostLikely: 0.8, Low: 0.6, High: 0.95},
	}, nil)

	if strings.Contains(msg, "Trend") {
		t.Errorf("single estimate should not report a trend:\n%s", msg)
	}
	if !strings.Contains(msg, "shrinking") {
		t.Errorf("expected shrinking note:\n%s", msg)
	}
}

func TestFormatMessage_NoVerdictWhenIntervalContainsOne(t *testing.T) {
	msg := formatMessage("HUS", []models.Estimate{
		{Date: day, MostLikely: 1.0, Low: 0.7, High: 1.4},
	}, nil)

	if strings.Contains(msg, "growing") || strings.Contains(msg, "shrinking") {
		t.Errorf("interval contains 1, expected no verdict:\n%s", msg)
	}
}

func TestFormatMessage_Revision(t *testing.T) {
	estimates := []models.Estimate{
		{Date: day, MostLikely: 1.25, Low: 1.05, High: 1.45},
	}
	rev := &models.Revision{
		Overlap:         4,
		MaxShift:        0.3,
		MaxShiftDate:    day.AddDate(0, 0, -2),
		PreviousVerdict: models.VerdictUncertain,
		Verdict:         models.VerdictGrowing,
		Significant:     true,
	}

	msg := formatMessage("HUS", estimates, rev)

	if !strings.Contains(msg, "Verdict changed: uncertain → growing") {
		t.Errorf("missing verdict change:\n%s", msg)
	}
	if !strings.Contains(msg, "Revised by \\+0\\.30 on 2020\\-04\\-12") {
		t.Errorf("missing revision line:\n%s", msg)
	}

	rev.Significant = false
	if msg := formatMessage("HUS", estimates, rev); strings.Contains(msg, "Revised") {
		t.Errorf("insignificant revision should be omitted:\n%s", msg)
	}
}

func TestTrendEmoji(t *testing.T) {
	tests := []struct {
		delta    float64
		expected string
	}{
		{0.1, "📈"},
		{-0.1, "📉"},
		{0.001, "➡️"},
		{0, "➡️"},
	}

	for _, tt := range tests {
		if got := trendEmoji(tt.delta); got != tt.expected {
			t.Errorf("trendEmoji(%v) = %s, expected %s", tt.delta, got, tt.expected)
		}
	}
}

func TestFormatError(t *testing.T) {
	msg := formatError("HUS", errors.New("no data for region"))

	if !strings.Contains(msg, "Rt estimation failed: HUS") {
		t.Errorf("unexpected error message:\n%s", msg)
	}
	if !strings.Contains(msg, "no data for region") {
		t.Errorf("error text missing:\n%s", msg)
	}
}
