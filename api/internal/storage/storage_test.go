package storage

import (
	"context"
	"io"
	"math"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(now time.Time) *Storage {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewStorage(logger)
	s.SetClock(func() time.Time { return now })
	return s
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, Page(items, 1, 2))
	assert.Equal(t, []int{5}, Page(items, 3, 2))
	assert.Empty(t, Page(items, 4, 2))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Page(items, 0, 0))
	assert.Empty(t, Page([]int{}, 1, 10))

	assert.NotPanics(t, func() {
		assert.Empty(t, Page(items, 9300000000000000, 1000))
		assert.Empty(t, Page(items, math.MaxInt, math.MaxInt))
		assert.Equal(t, items, Page(items, 1, math.MaxInt))
	})
}

func TestAlerts_NewestFirstAndLookup(t *testing.T) {
	s := newTestStorage(time.Date(2025, 4, 1, 12, 0, 0, 0, time.Local))

	first := s.AddAlert(model.ThreatAlert{ThreatID: "T-1", ThreatLevel: 3, ImpactScope: "1.1.1.1:1 -> 2.2.2.2:80 | XSS"})
	second := s.AddAlert(model.ThreatAlert{ThreatLevel: 1, ImpactScope: "3.3.3.3:1 -> 2.2.2.2:80 | DDoS"})

	assert.Equal(t, model.StatusPending, first.Status)
	assert.NotEmpty(t, second.ThreatID)
	assert.Equal(t, "2025-04-01 12:00:00", first.OccurTime)

	list, total := s.ListAlerts(1, 10)
	assert.Equal(t, 2, total)
	assert.Equal(t, second.ThreatID, list[0].ThreatID)

	got, ok := s.GetAlert("T-1")
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	_, ok = s.GetAlert(strconv.Itoa(second.ID))
	assert.True(t, ok)

	_, ok = s.SetAlertStatus("T-1", model.StatusResolved)
	require.True(t, ok)
	assert.EqualValues(t, 1, s.ActiveThreats())

	_, ok = s.SetAlertStatus("missing", model.StatusResolved)
	assert.False(t, ok)
}

func TestTrend_Buckets(t *testing.T) {
	now := time.Date(2025, 4, 10, 15, 30, 0, 0, time.Local)
	s := newTestStorage(now)

	s.AddAlert(model.ThreatAlert{OccurTime: "2025-04-10 15:05:00"})
	s.AddAlert(model.ThreatAlert{OccurTime: "2025-04-10T14:59:59"})
	s.AddAlert(model.ThreatAlert{OccurTime: "2025-04-09 16:00:00"})
	s.AddAlert(model.ThreatAlert{OccurTime: "2025-04-05 09:00:00"})
	s.AddAlert(model.ThreatAlert{OccurTime: "not a time"})

	hourly, err := s.Trend("24h")
	require.NoError(t, err)
	require.Len(t, hourly, 24)
	assert.Equal(t, "2025-04-09 16:00", hourly[0].Time)
	assert.EqualValues(t, 1, hourly[0].Count)
	assert.EqualValues(t, 1, hourly[22].Count)
	assert.EqualValues(t, 1, hourly[23].Count)
	assert.EqualValues(t, 3, s.AttacksToday())

	daily, err := s.Trend("7d")
	require.NoError(t, err)
	require.Len(t, daily, 7)
	assert.Equal(t, "2025-04-04", daily[0].Time)
	assert.EqualValues(t, 1, daily[1].Count)
	assert.EqualValues(t, 1, daily[5].Count)
	assert.EqualValues(t, 2, daily[6].Count)

	monthly, err := s.Trend("30d")
	require.NoError(t, err)
	assert.Len(t, monthly, 30)

	_, err = s.Trend("1y")
	assert.ErrorIs(t, err, ErrUnknownRange)
}

func TestHosts_CRUD(t *testing.T) {
	s := newTestStorage(time.Now())
	host := s.CreateHost(model.HostCollectionConfig{HostIP: "10.0.0.1", CollectFreq: 60, CollectStatus: model.CollectRunning})

	paused := model.CollectPaused
	updated, ok := s.UpdateHost(host.ID, model.HostCollectionUpdate{CollectStatus: &paused})
	require.True(t, ok)
	assert.Equal(t, model.CollectPaused, updated.CollectStatus)
	assert.Equal(t, 60, updated.CollectFreq)

	assert.EqualValues(t, 1, s.HostCount())
	assert.True(t, s.DeleteHost(host.ID))
	assert.False(t, s.DeleteHost(host.ID))
}

func TestProcesses_Update(t *testing.T) {
	s := newTestStorage(time.Now())
	proc := s.AddProcess(model.ProcessRecord{PID: 42, Name: "nc", Status: model.ProcessAbnormal, AbnormalReason: "shell"})

	got, ok, err := s.UpdateProcess(proc.ID, map[string]interface{}{"processStatus": model.ProcessRunning, "abnormalReason": ""})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.ProcessRunning, got.Status)
	assert.Empty(t, got.AbnormalReason)

	_, ok, err = s.UpdateProcess(proc.ID, map[string]interface{}{"processStatus": "zombie"})
	assert.True(t, ok)
	assert.Error(t, err)

	_, ok, _ = s.UpdateProcess(999, nil)
	assert.False(t, ok)
}

func TestIngest_RecordsTraffic(t *testing.T) {
	s := newTestStorage(time.Now())
	s.Ingest(model.ThreatAlert{ImpactScope: "6.6.6.6:1 -> 10.0.0.5:80 | DDoS"})
	s.Ingest(model.ThreatAlert{ImpactScope: "6.6.6.6:2 -> 10.0.0.5:80 | DDoS"})
	s.Ingest(model.ThreatAlert{ImpactScope: "garbage"})

	stats, total := s.ListTraffic(1, 10)
	require.Equal(t, 2, total)
	assert.Equal(t, "DDoS", stats[0].AttackType)
	assert.Equal(t, 2, stats[0].AttackCount)
	assert.Equal(t, "0.0.0.0", stats[1].SourceIP)
}

func TestBlockedIPs(t *testing.T) {
	s := newTestStorage(time.Now())
	s.BlockIP("9.9.9.9")
	s.BlockIP("1.1.1.1")
	assert.Equal(t, []string{"1.1.1.1", "9.9.9.9"}, s.BlockedIPs())
	assert.True(t, s.UnblockIP("1.1.1.1"))
	assert.False(t, s.UnblockIP("1.1.1.1"))
}

func TestReports(t *testing.T) {
	s := newTestStorage(time.Now())
	a := s.AddReport("first", "daily", "# a")
	b := s.AddReport("second", "weekly", "# b")

	reports := s.ListReports()
	require.Len(t, reports, 2)
	assert.Equal(t, b.ID, reports[0].ID)

	assert.True(t, s.RenameReport(a.ID, "renamed"))
	assert.True(t, s.DeleteReport(b.ID))
	reports = s.ListReports()
	require.Len(t, reports, 1)
	assert.Equal(t, "renamed", reports[0].Title)
}

func TestSeed(t *testing.T) {
	s := newTestStorage(time.Now())
	s.Seed(rand.New(rand.NewSource(1)))

	assert.EqualValues(t, 5, s.HostCount())
	orgs, _ := s.ListOrgs(1, 10)
	assert.Len(t, orgs, 2)
	_, total := s.ListAlerts(1, 1)
	assert.Equal(t, 8, total)
	_, ok := s.HostStatus("192.168.1.10")
	assert.True(t, ok)
}

func TestMemoryQueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	_, ok, err := q.Pop(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, q.Push(ctx, "10.0.0.5", "BLOCK_IP 6.6.6.6"))
	require.NoError(t, q.Push(ctx, "10.0.0.5", "UNBLOCK_IP 6.6.6.6"))
	n, _ := q.Len(ctx, "10.0.0.5")
	assert.EqualValues(t, 2, n)

	cmd, ok, _ := q.Pop(ctx, "10.0.0.5")
	assert.True(t, ok)
	assert.Equal(t, "BLOCK_IP 6.6.6.6", cmd)
	cmd, _, _ = q.Pop(ctx, "10.0.0.5")
	assert.Equal(t, "UNBLOCK_IP 6.6.6.6", cmd)
	n, _ = q.Len(ctx, "10.0.0.5")
	assert.Zero(t, n)
}
