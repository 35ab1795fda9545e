package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sentinel-guard/internal/model"
)

// DefaultTrendFileName returns threat_analysis_<YYYY-MM-DD>.csv.
func DefaultTrendFileName(now time.Time) string {
	return fmt.Sprintf("threat_analysis_%s.csv", now.Format("2006-01-02"))
}

// DefaultReportFileName returns security-report-<YYYY-MM-DD>.md.
func DefaultReportFileName(now time.Time) string {
	return fmt.Sprintf("security-report-%s.md", now.Format("2006-01-02"))
}

var ErrEmpty = errors.New("nothing to export")

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func TrendCSV(w io.Writer, points []model.TrendPoint) error {
	if len(points) == 0 {
		return ErrEmpty
	}
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{p.Time, strconv.FormatInt(p.Count, 10), strconv.FormatInt(p.Traffic, 10)})
	}
	return writeCSV(w, []string{"Time", "Attacks", "Traffic(Bytes)"}, rows)
}

func TrafficCSV(w io.Writer, stats []model.TrafficStat) error {
	if len(stats) == 0 {
		return ErrEmpty
	}
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{s.StatTime, s.AttackType, s.SourceIP, s.TargetIP, strconv.Itoa(s.AttackCount)})
	}
	return writeCSV(w, []string{"Time", "AttackType", "SourceIP", "TargetIP", "Attacks"}, rows)
}

func ThreatsCSV(w io.Writer, events []model.ThreatEvent) error {
	if len(events) == 0 {
		return ErrEmpty
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{e.ID, e.Timestamp, e.Type, e.SourceIP, e.TargetIP, string(e.RiskLevel), string(e.Status), e.Details})
	}
	return writeCSV(w, []string{"ID", "Time", "Type", "SourceIP", "TargetIP", "RiskLevel", "Status", "Details"}, rows)
}

// Markdown writes report content, adding a title heading when the content
// does not start with one.
func Markdown(w io.Writer, title, content string) error {
	if content == "" {
		return ErrEmpty
	}
	if title != "" && (len(content) < 2 || content[:2] != "# ") {
		if _, err := fmt.Fprintf(w, "# %s\n\n", title); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, content)
	return err
}

// ToFile creates path (and its directory) and hands it to write.
func ToFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
