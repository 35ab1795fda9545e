package hoststat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sentinel-guard/internal/model"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/sirupsen/logrus"
)

const gigabyte = 1 << 30

// Sampler reads the live status of the machine the server runs on.
type Sampler struct {
	hostname string
	diskPath string
	logger   *logrus.Logger
}

func NewSampler(diskPath string, logger *logrus.Logger) *Sampler {
	if diskPath == "" {
		diskPath = "/"
	}
	s := &Sampler{diskPath: diskPath, logger: logger}
	if info, err := host.Info(); err == nil {
		s.hostname = info.Hostname
	} else {
		logger.Warnf("Failed to read host info: %v", err)
	}
	return s
}

func (s *Sampler) Hostname() string {
	return s.hostname
}

// IsLocal reports whether hostID names this machine.
func (s *Sampler) IsLocal(hostID string) bool {
	switch strings.ToLower(hostID) {
	case "local", "localhost", "127.0.0.1", "::1":
		return true
	}
	return s.hostname != "" && strings.EqualFold(hostID, s.hostname)
}

// Sample collects a status snapshot. Individual probe failures leave their
// fields zero; an error is returned only when every probe fails.
func (s *Sampler) Sample(ctx context.Context, hostID string) (model.HostStatus, error) {
	status := model.HostStatus{
		HostID:      hostID,
		FileStatus:  "normal",
		MonitorTime: time.Now().Format(model.TimeLayout),
	}
	failures := 0

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		status.CPUUsage = round(percents[0])
	} else {
		failures++
		s.logger.Debugf("cpu probe failed: %v", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		status.MemoryUsage = round(vm.UsedPercent)
	} else {
		failures++
		s.logger.Debugf("memory probe failed: %v", err)
	}

	if usage, err := disk.UsageWithContext(ctx, s.diskPath); err == nil {
		status.DiskUsage = round(usage.UsedPercent)
		status.DiskInfo = fmt.Sprintf("%s %.1f/%.1f GB", usage.Path,
			float64(usage.Used)/gigabyte, float64(usage.Total)/gigabyte)
	} else {
		failures++
		s.logger.Debugf("disk probe failed: %v", err)
	}

	if conns, err := net.ConnectionsWithContext(ctx, "inet"); err == nil {
		status.NetworkConn = len(conns)
	} else {
		failures++
		s.logger.Debugf("network probe failed: %v", err)
	}

	if failures == 4 {
		return status, fmt.Errorf("failed to sample host %s", hostID)
	}
	return status, nil
}

func round(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
