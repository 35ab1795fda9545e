package storage

import (
	"fmt"
	"math/rand"

	"sentinel-guard/internal/ids"
	"sentinel-guard/internal/model"
)

// SampleAttackTypes are the attack labels used for demo data.
var SampleAttackTypes = []string{
	"SQL Injection",
	"XSS",
	"Port Scan",
	"Brute Force",
	"DDoS",
	"Command Injection",
}

// RandomAlert builds a plausible IDS alert for demo traffic.
func RandomAlert(r *rand.Rand) model.ThreatAlert {
	src := fmt.Sprintf("%d.%d.%d.%d", 11+r.Intn(200), r.Intn(256), r.Intn(256), 1+r.Intn(254))
	dst := fmt.Sprintf("192.168.1.%d", 10+r.Intn(5))
	ports := []int{22, 80, 443, 3306, 8080}
	return model.ThreatAlert{
		ThreatLevel: 1 + r.Intn(4),
		ImpactScope: fmt.Sprintf("%s:%d -> %s:%d | %s",
			src, 1024+r.Intn(60000), dst, ports[r.Intn(len(ports))],
			SampleAttackTypes[r.Intn(len(SampleAttackTypes))]),
	}
}

// Seed fills the store with demo organizations, hosts, processes, tracing
// results and a few alerts.
func (s *Storage) Seed(r *rand.Rand) {
	s.CreateOrg(model.OrgInfo{OrgName: "Security Operations", MemberCount: 6, MaxMemberCount: 20, AdminPermission: 1})
	s.CreateOrg(model.OrgInfo{OrgName: "Network Team", MemberCount: 3, MaxMemberCount: 10})

	for i, freq := range []int{30, 60, 60, 120, 300} {
		status := model.CollectRunning
		if i == 3 {
			status = model.CollectPaused
		}
		host := s.CreateHost(model.HostCollectionConfig{
			HostIP:        fmt.Sprintf("192.168.1.%d", 10+i),
			CollectFreq:   freq,
			CollectStatus: status,
		})
		s.PutHostStatus(model.HostStatus{
			HostID:      host.HostIP,
			CPUUsage:    float64(5 + r.Intn(60)),
			MemoryUsage: float64(20 + r.Intn(60)),
			NetworkConn: 10 + r.Intn(200),
			DiskUsage:   float64(30 + r.Intn(50)),
			DiskInfo:    "/dev/sda1",
			FileStatus:  "normal",
		})
	}

	procs := []model.ProcessRecord{
		{PID: 1, Name: "systemd", Status: model.ProcessRunning},
		{PID: 812, Name: "sshd", Status: model.ProcessRunning},
		{PID: 1290, Name: "nginx", Status: model.ProcessRunning},
		{PID: 4242, Name: "xmrig", Status: model.ProcessAbnormal, AbnormalReason: "High CPU usage from unknown binary"},
		{PID: 5120, Name: "nc", Status: model.ProcessAbnormal, AbnormalReason: "Reverse shell pattern"},
	}
	for _, p := range procs {
		s.AddProcess(p)
	}

	s.AddTracing(model.TracingResult{
		ThreatSource:  "External scanner",
		MaliciousIP:   "45.33.32.156",
		AttackCmd:     "nmap -sS -p 1-1024 192.168.1.10",
		MalwareOrigin: "N/A",
		AttackPath:    "45.33.32.156 -> edge-fw -> 192.168.1.10",
		FlowChart:     "graph LR; A[45.33.32.156] --> B[edge-fw] --> C[192.168.1.10]",
	})

	for i := 0; i < 8; i++ {
		s.Ingest(RandomAlert(r))
	}

	if s.logger != nil {
		s.logger.Infof("Seeded store with %d hosts and %d processes", s.HostCount(), len(procs))
	}
}

// Ingest stores an IDS alert and counts it in the traffic statistics.
func (s *Storage) Ingest(alert model.ThreatAlert) model.ThreatAlert {
	stored := s.AddAlert(alert)
	scope, _ := ids.Parse(stored.ImpactScope)
	s.RecordTraffic(scope.AttackType, scope.SourceIP, scope.TargetIP)
	return stored
}
