package ids

import (
	"strconv"
	"testing"
	"time"

	"sentinel-guard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedDecoder() *Decoder {
	at := time.Date(2025, 3, 1, 14, 5, 9, 0, time.Local)
	return &Decoder{Now: func() time.Time { return at }}
}

func TestParse_FullScope(t *testing.T) {
	s, err := Parse("192.168.1.121:12785 -> 10.0.0.5:80 | DDoS ")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.121", s.SourceIP)
	assert.Equal(t, "12785", s.SourcePort)
	assert.Equal(t, "10.0.0.5", s.TargetIP)
	assert.Equal(t, "80", s.TargetPort)
	assert.Equal(t, "DDoS", s.AttackType)
}

func TestParse_ExtraFieldsIgnored(t *testing.T) {
	s, err := Parse("10.1.1.1:1 -> 10.2.2.2:2 | XSS | extra | more")
	require.NoError(t, err)

	assert.Equal(t, "XSS", s.AttackType)
	assert.Equal(t, "10.2.2.2", s.TargetIP)
}

func TestParse_WithoutPorts(t *testing.T) {
	s, err := Parse("1.2.3.4 -> 5.6.7.8 | Port Scan")
	require.NoError(t, err)

	assert.Equal(t, "1.2.3.4", s.SourceIP)
	assert.Equal(t, "5.6.7.8", s.TargetIP)
	assert.Empty(t, s.SourcePort)
	assert.Equal(t, "Port Scan", s.AttackType)
}

func TestParse_IPv6(t *testing.T) {
	s, err := Parse("[fe80::1]:443 -> ::1 | SQL Injection")
	require.NoError(t, err)

	assert.Equal(t, "fe80::1", s.SourceIP)
	assert.Equal(t, "443", s.SourcePort)
	assert.Equal(t, "::1", s.TargetIP)
}

func TestParse_MissingPipe(t *testing.T) {
	s, err := Parse("1.2.3.4:1 -> 5.6.7.8:2")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "1.2.3.4", s.SourceIP)
	assert.Equal(t, "5.6.7.8", s.TargetIP)
	assert.Equal(t, UnknownAttack, s.AttackType)
}

func TestParse_MissingArrow(t *testing.T) {
	s, err := Parse("garbage | XSS")
	require.Error(t, err)

	assert.Equal(t, UnknownIP, s.SourceIP)
	assert.Equal(t, UnknownIP, s.TargetIP)
	assert.Equal(t, "XSS", s.AttackType)
}

func TestParse_Garbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "|", "->", "::::", "| ->"} {
		assert.NotPanics(t, func() {
			s := ScopeOrDefault(raw)
			assert.NotEmpty(t, s.SourceIP)
			assert.NotEmpty(t, s.TargetIP)
			assert.NotEmpty(t, s.AttackType)
		}, raw)
	}
}

func TestScope_String(t *testing.T) {
	s := ScopeOrDefault("10.0.0.1:22 -> 10.0.0.2:22 | Brute Force")
	assert.Equal(t, "10.0.0.1:22 -> 10.0.0.2:22 | Brute Force", s.String())
}

func TestRiskFromLevel(t *testing.T) {
	cases := map[int]model.RiskLevel{
		1:  model.RiskLow,
		2:  model.RiskMedium,
		3:  model.RiskHigh,
		4:  model.RiskHigh,
		0:  model.RiskMedium,
		5:  model.RiskMedium,
		-1: model.RiskMedium,
	}
	for level, want := range cases {
		assert.Equal(t, want, model.RiskFromLevel(level), "level %d", level)
	}
}

func TestDecode_StreamFrame(t *testing.T) {
	frame := []byte(`{"id":7,"threatId":"T-100","threatLevel":3,"impactScope":"192.168.1.121:12785 -> 10.0.0.5:80 | DDoS","occurTime":"2025-03-01T14:00:00"}`)

	event, err := fixedDecoder().Decode(frame)
	require.NoError(t, err)

	assert.Equal(t, "T-100", event.ID)
	assert.Equal(t, "DDoS", event.Type)
	assert.Equal(t, "192.168.1.121", event.SourceIP)
	assert.Equal(t, "10.0.0.5", event.TargetIP)
	assert.Equal(t, "2025-03-01 14:00:00", event.Timestamp)
	assert.Equal(t, model.RiskHigh, event.RiskLevel)
	assert.Equal(t, model.StatusPending, event.Status)
	assert.Equal(t, "192.168.1.121:12785 -> 10.0.0.5:80 | DDoS", event.Details)
}

func TestDecode_Fallbacks(t *testing.T) {
	event, err := fixedDecoder().Decode([]byte(`{"threatLevel":"9"}`))
	require.NoError(t, err)

	assert.Equal(t, "IDS-"+strconv.FormatInt(fixedDecoder().Now().UnixMilli(), 10), event.ID)
	assert.Equal(t, "14:05:09", event.Timestamp)
	assert.Equal(t, model.RiskMedium, event.RiskLevel)
	assert.Equal(t, UnknownIP, event.SourceIP)
	assert.Equal(t, UnknownAttack, event.Type)
	assert.Equal(t, NoDetails, event.Details)
}

func TestDecode_NumericID(t *testing.T) {
	event, err := fixedDecoder().Decode([]byte(`{"id":42,"threatLevel":1,"impactScope":"a -> b | c"}`))
	require.NoError(t, err)

	assert.Equal(t, "42", event.ID)
	assert.Equal(t, model.RiskLow, event.RiskLevel)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.Error(t, err)
}

func TestAdapt_KeepsStatus(t *testing.T) {
	event := Adapt(model.ThreatAlert{ID: 3, ThreatLevel: 2, ImpactScope: "1.1.1.1 -> 2.2.2.2 | XSS", Status: model.StatusBlocked})
	assert.Equal(t, "3", event.ID)
	assert.Equal(t, model.StatusBlocked, event.Status)
}
