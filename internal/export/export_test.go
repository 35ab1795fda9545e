package export

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sentinel-guard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendCSV(t *testing.T) {
	var buf bytes.Buffer
	err := TrendCSV(&buf, []model.TrendPoint{{Time: "10:00", Count: 4}, {Time: "11:00", Count: 7, Traffic: 2048}})
	require.NoError(t, err)

	assert.Equal(t, "Time,Attacks,Traffic(Bytes)\n10:00,4,0\n11:00,7,2048\n", buf.String())
}

func TestTrendCSV_Empty(t *testing.T) {
	assert.ErrorIs(t, TrendCSV(io.Discard, nil), ErrEmpty)
}

func TestThreatsCSV_QuotesDetails(t *testing.T) {
	var buf bytes.Buffer
	err := ThreatsCSV(&buf, []model.ThreatEvent{{
		ID: "T-1", Type: "DDoS", SourceIP: "1.1.1.1", TargetIP: "2.2.2.2",
		RiskLevel: model.RiskHigh, Status: model.StatusPending, Details: "a, b",
	}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"a, b"`)
}

func TestMarkdown_AddsTitle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, "Daily", "body"))
	assert.Equal(t, "# Daily\n\nbody", buf.String())

	buf.Reset()
	require.NoError(t, Markdown(&buf, "Daily", "# Own heading\n"))
	assert.Equal(t, "# Own heading\n", buf.String())
}

func TestDefaultFileNames(t *testing.T) {
	now := time.Date(2025, 6, 7, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "threat_analysis_2025-06-07.csv", DefaultTrendFileName(now))
	assert.Equal(t, "security-report-2025-06-07.md", DefaultReportFileName(now))
}

func TestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "trend.csv")
	require.NoError(t, ToFile(path, func(w io.Writer) error {
		return TrendCSV(w, []model.TrendPoint{{Time: "t", Count: 1}})
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "t,1,0")

	failed := filepath.Join(t.TempDir(), "empty.csv")
	assert.ErrorIs(t, ToFile(failed, func(w io.Writer) error { return TrendCSV(w, nil) }), ErrEmpty)
	_, err = os.Stat(failed)
	assert.True(t, os.IsNotExist(err))
}
