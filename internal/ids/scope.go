package ids

import (
	"fmt"
	"net"
	"strings"
)

const (
	UnknownIP     = "0.0.0.0"
	UnknownAttack = "未知攻击"
)

// Scope is the structured form of an impactScope line such as
// "192.168.1.121:12785 -> 10.0.0.5:80 | DDoS".
type Scope struct {
	SourceIP   string
	SourcePort string
	TargetIP   string
	TargetPort string
	AttackType string
}

type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid impact scope %q: %s", e.Raw, e.Reason)
}

func defaultScope() Scope {
	return Scope{
		SourceIP:   UnknownIP,
		TargetIP:   UnknownIP,
		AttackType: UnknownAttack,
	}
}

// Parse splits an impactScope line into its parts. Whatever cannot be
// extracted keeps its placeholder value, so the returned Scope is always
// usable; the error reports the first missing piece.
func Parse(raw string) (Scope, error) {
	s := defaultScope()
	line := strings.TrimSpace(raw)
	if line == "" {
		return s, &ParseError{Raw: raw, Reason: "empty"}
	}

	var perr *ParseError
	flow, rest, hasType := strings.Cut(line, "|")
	// Fields after the attack type are ignored.
	attack, _, _ := strings.Cut(rest, "|")
	if attack = strings.TrimSpace(attack); hasType && attack != "" {
		s.AttackType = attack
	} else {
		perr = &ParseError{Raw: raw, Reason: "missing attack type"}
	}

	src, dst, hasArrow := strings.Cut(flow, "->")
	if !hasArrow {
		if perr == nil {
			perr = &ParseError{Raw: raw, Reason: "missing \"->\" separator"}
		}
		return s, perr
	}

	s.SourceIP, s.SourcePort = splitEndpoint(src)
	s.TargetIP, s.TargetPort = splitEndpoint(dst)
	if s.SourceIP == "" {
		s.SourceIP = UnknownIP
	}
	if s.TargetIP == "" {
		s.TargetIP = UnknownIP
	}

	if perr != nil {
		return s, perr
	}
	return s, nil
}

// ScopeOrDefault is Parse without the error.
func ScopeOrDefault(raw string) Scope {
	s, _ := Parse(raw)
	return s
}

func splitEndpoint(endpoint string) (host, port string) {
	endpoint = strings.TrimSpace(endpoint)
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		return h, p
	}
	// bare IPv6 literal without a port
	if ip := net.ParseIP(endpoint); ip != nil {
		return endpoint, ""
	}
	host, port, _ = strings.Cut(endpoint, ":")
	return strings.TrimSpace(host), strings.TrimSpace(port)
}

// String renders the scope back into impactScope form.
func (s Scope) String() string {
	return fmt.Sprintf("%s -> %s | %s",
		joinEndpoint(s.SourceIP, s.SourcePort),
		joinEndpoint(s.TargetIP, s.TargetPort),
		s.AttackType)
}

func joinEndpoint(host, port string) string {
	if port == "" {
		return host
	}
	return net.JoinHostPort(host, port)
}
