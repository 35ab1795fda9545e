package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"sentinel-guard/internal/ids"
	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
)

const recentAlerts = 20

// AlertSource is the part of the store the service reads and writes.
type AlertSource interface {
	LatestAlerts(n int) []model.ThreatAlert
	AddReport(title, reportType, content string) model.ReportHistory
}

// Service answers trace questions and writes threat reports, using the AI
// endpoint when it is reachable and local rules otherwise.
type Service struct {
	ai     *AIClient
	store  AlertSource
	tmpl   *template.Template
	logger *logrus.Logger
	now    func() time.Time
}

func NewService(ai *AIClient, store AlertSource, logger *logrus.Logger) *Service {
	funcMap := template.FuncMap{
		"risk": func(level int) string {
			return string(model.RiskFromLevel(level))
		},
		"cell": func(s string) string {
			return strings.ReplaceAll(s, "|", `\|`)
		},
	}
	return &Service{
		ai:     ai,
		store:  store,
		tmpl:   template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplate)),
		logger: logger,
		now:    time.Now,
	}
}

// ReportName maps a report type to its display name.
func ReportName(reportType string) string {
	switch reportType {
	case "Daily":
		return "Daily Security Report"
	case "Weekly":
		return "Weekly Situation Report"
	default:
		return "Special Analysis"
	}
}

// Trace answers a free-form question about current threats.
func (s *Service) Trace(ctx context.Context, req model.TraceRequest) model.TraceAnswer {
	answer, err := s.ai.Ask(ctx, req.Question, req.TopK)
	if err == nil {
		return model.TraceAnswer{Answer: answer}
	}
	if s.ai.Enabled() {
		s.logger.Warnf("AI trace failed, using rule-based answer: %v", err)
	}
	return model.TraceAnswer{Answer: s.ruleBasedTrace()}
}

func (s *Service) ruleBasedTrace() string {
	summary := summarize(s.store.LatestAlerts(recentAlerts))

	var b strings.Builder
	b.WriteString("**(Automatic reply: AI service unavailable)**\n\n")
	b.WriteString("Rule-based analysis of recent alerts:\n\n")
	if summary.Total == 0 {
		b.WriteString("1. **Attack signature**: no recent alerts to analyse.\n")
		b.WriteString("2. **Recommendation**: keep monitoring.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "1. **Attack signature**: %d recent alerts, most frequent type %q.\n",
		summary.Total, summary.TopType)
	fmt.Fprintf(&b, "2. **Recommendation**: add source IP %s to the block list.\n", summary.TopSource)
	b.WriteString("\n(Check the AI agent service status.)")
	return b.String()
}

// Generate writes a report of the given type from the latest alerts and
// saves it to the history.
func (s *Service) Generate(ctx context.Context, reportType string) (model.ReportHistory, error) {
	if reportType == "" {
		reportType = "Daily"
	}
	name := ReportName(reportType)
	alerts := s.store.LatestAlerts(recentAlerts)
	s.logger.Infof("Generating %s from %d alerts", name, len(alerts))

	content, err := s.ai.Ask(ctx, buildPrompt(alerts, name), 1)
	if err != nil {
		if s.ai.Enabled() {
			s.logger.Warnf("AI report failed, rendering locally: %v", err)
		}
		content, err = s.render(name, alerts)
		if err != nil {
			return model.ReportHistory{}, err
		}
	}

	title := s.now().Format("2006-01-02") + " " + name
	saved := s.store.AddReport(title, reportType, content)
	s.logger.Infof("Report saved: %d (%s)", saved.ID, title)
	return saved, nil
}

type promptAlert struct {
	Time  string `json:"time"`
	Level int    `json:"level"`
	Scope string `json:"scope"`
	Type  string `json:"type"`
}

func buildPrompt(alerts []model.ThreatAlert, name string) string {
	items := make([]promptAlert, 0, len(alerts))
	for _, a := range alerts {
		scope, _ := ids.Parse(a.ImpactScope)
		items = append(items, promptAlert{Time: a.OccurTime, Level: a.ThreatLevel, Scope: a.ImpactScope, Type: scope.AttackType})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior network security analyst. Write a professional %s from the following threat data.\n", name)
	b.WriteString("Data (JSON):\n")
	data, err := json.Marshal(items)
	if err != nil {
		b.WriteString("unavailable")
	} else {
		b.Write(data)
	}
	b.WriteString("\n\nRequirements:\n")
	b.WriteString("1. Use Markdown.\n")
	b.WriteString("2. Include key findings, threat distribution, high-risk event tracing and defence recommendations.\n")
	b.WriteString("3. Keep the tone professional and objective.")
	return b.String()
}

type typeCount struct {
	Type  string
	Count int
}

type alertSummary struct {
	Total     int
	High      int
	TopType   string
	TopSource string
	Types     []typeCount
}

func summarize(alerts []model.ThreatAlert) alertSummary {
	summary := alertSummary{Total: len(alerts)}
	types := make(map[string]int)
	sources := make(map[string]int)
	for _, a := range alerts {
		scope, _ := ids.Parse(a.ImpactScope)
		types[scope.AttackType]++
		sources[scope.SourceIP]++
		if model.RiskFromLevel(a.ThreatLevel) == model.RiskHigh {
			summary.High++
		}
	}

	for t, n := range types {
		summary.Types = append(summary.Types, typeCount{Type: t, Count: n})
	}
	sort.Slice(summary.Types, func(i, j int) bool {
		if summary.Types[i].Count != summary.Types[j].Count {
			return summary.Types[i].Count > summary.Types[j].Count
		}
		return summary.Types[i].Type < summary.Types[j].Type
	})
	if len(summary.Types) > 0 {
		summary.TopType = summary.Types[0].Type
	}

	best := 0
	for ip, n := range sources {
		if n > best || (n == best && ip < summary.TopSource) {
			best, summary.TopSource = n, ip
		}
	}
	return summary
}

func (s *Service) render(name string, alerts []model.ThreatAlert) (string, error) {
	data := struct {
		Name      string
		Generated string
		Summary   alertSummary
		Alerts    []model.ThreatAlert
	}{
		Name:      name,
		Generated: s.now().Format(model.TimeLayout),
		Summary:   summarize(alerts),
		Alerts:    alerts,
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

const reportTemplate = `# {{.Name}}

Generated: {{.Generated}}

## Key findings

- Alerts analysed: {{.Summary.Total}}
- High risk alerts: {{.Summary.High}}
{{- if .Summary.TopType}}
- Most frequent attack: {{.Summary.TopType}}
- Most active source: {{.Summary.TopSource}}
{{- end}}

## Threat distribution
{{range .Summary.Types}}
- {{.Type}}: {{.Count}}
{{- else}}
No alerts recorded.
{{- end}}

## Recent events

| Time | Risk | Scope | Status |
|------|------|-------|--------|
{{- range .Alerts}}
| {{.OccurTime}} | {{risk .ThreatLevel}} | {{cell .ImpactScope}} | {{.Status}} |
{{- end}}

## Recommendations

- Block persistent sources at the perimeter.
- Review hosts targeted by high risk events.
`
