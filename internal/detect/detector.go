// Package detect inspects request metadata for known attack signatures:
// injection tokens, path traversal, malicious client signatures, and
// header/body size anomalies. Detection is decoupled from blocking so policy
// can evolve without touching detection logic, and so false positives degrade
// into visibility rather than outage. The detector never mutates request
// flow; it only reports findings.
package detect

import (
	"fmt"
	"strings"

	"gatekeeper/internal/models"
)

// Rule names, one per pattern class.
const (
	RuleInjection       = "injection_pattern"
	RuleTraversal       = "path_traversal"
	RuleClientSignature = "malicious_client_signature"
	RuleHeaderAnomaly   = "header_anomaly"
	RuleOversizedBody   = "oversized_body"
)

const maxExcerptLen = 120

// Finding is a single pattern match.
type Finding struct {
	Rule     string
	Severity models.Severity
	Excerpt  string
}

// Event converts the finding into a security event attributed to identity.
func (f Finding) Event(identity, route string) models.SecurityEvent {
	return models.NewSecurityEvent(
		models.EventSuspiciousPattern, f.Severity, identity, route,
		fmt.Sprintf("%s: %s", f.Rule, f.Excerpt),
	)
}

// injectionTokens are control keywords combined with statement-terminator
// syntax. Matching is case-insensitive against path and query.
var injectionTokens = []string{
	"union select",
	"or 1=1",
	"' or '",
	"; drop table",
	"; delete from",
	"exec(",
	"<script",
	"javascript:",
}

// traversalTokens cover literal and percent-encoded parent-directory hops.
var traversalTokens = []string{
	"../",
	"..\\",
	"%2e%2e%2f",
	"%2e%2e/",
	"..%2f",
	"%2e%2e%5c",
}

// Detector holds the configured ceilings and pattern additions. Safe for
// concurrent use; all state is immutable after construction.
type Detector struct {
	maxHeaderCount int
	maxHeaderBytes int
	maxBodyBytes   int64
	blockedAgents  []string
	injection      []string
}

// NewDetector builds a detector from configuration. Configured extra
// injection tokens and blocked agent substrings extend the built-in sets.
func NewDetector(cfg models.DetectorConfig) *Detector {
	injection := make([]string, 0, len(injectionTokens)+len(cfg.ExtraInjection))
	injection = append(injection, injectionTokens...)
	for _, tok := range cfg.ExtraInjection {
		injection = append(injection, strings.ToLower(tok))
	}

	agents := make([]string, 0, len(cfg.BlockedAgents))
	for _, a := range cfg.BlockedAgents {
		agents = append(agents, strings.ToLower(a))
	}

	return &Detector{
		maxHeaderCount: cfg.MaxHeaderCount,
		maxHeaderBytes: cfg.MaxHeaderBytes,
		maxBodyBytes:   cfg.MaxBodyBytes,
		blockedAgents:  agents,
		injection:      injection,
	}
}

// Inspect runs every pattern class against the request view. Classes are
// independent and non-short-circuiting: all run, all findings are reported.
func (d *Detector) Inspect(view models.RequestView) []Finding {
	var findings []Finding

	findings = append(findings, d.checkInjection(view)...)
	findings = append(findings, d.checkTraversal(view)...)
	findings = append(findings, d.checkClientSignature(view)...)
	findings = append(findings, d.checkHeaders(view)...)
	findings = append(findings, d.checkBodySize(view)...)

	return findings
}

func (d *Detector) checkInjection(view models.RequestView) []Finding {
	target := strings.ToLower(view.Path + "?" + view.RawQuery)

	var findings []Finding
	for _, tok := range d.injection {
		if idx := strings.Index(target, tok); idx >= 0 {
			findings = append(findings, Finding{
				Rule:     RuleInjection,
				Severity: models.SeverityHigh,
				Excerpt:  excerpt(target, idx),
			})
		}
	}
	return findings
}

func (d *Detector) checkTraversal(view models.RequestView) []Finding {
	target := strings.ToLower(view.Path + "?" + view.RawQuery)

	for _, tok := range traversalTokens {
		if idx := strings.Index(target, tok); idx >= 0 {
			return []Finding{{
				Rule:     RuleTraversal,
				Severity: models.SeverityHigh,
				Excerpt:  excerpt(target, idx),
			}}
		}
	}
	return nil
}

func (d *Detector) checkClientSignature(view models.RequestView) []Finding {
	sig := strings.ToLower(view.ClientSignature)
	if sig == "" {
		return nil
	}

	for _, agent := range d.blockedAgents {
		if strings.Contains(sig, agent) {
			return []Finding{{
				Rule:     RuleClientSignature,
				Severity: models.SeverityMedium,
				Excerpt:  truncate(view.ClientSignature),
			}}
		}
	}
	return nil
}

func (d *Detector) checkHeaders(view models.RequestView) []Finding {
	var findings []Finding

	if d.maxHeaderCount > 0 && len(view.Headers) > d.maxHeaderCount {
		findings = append(findings, Finding{
			Rule:     RuleHeaderAnomaly,
			Severity: models.SeverityMedium,
			Excerpt:  fmt.Sprintf("%d headers exceeds maximum %d", len(view.Headers), d.maxHeaderCount),
		})
	}

	if d.maxHeaderBytes > 0 {
		for name, values := range view.Headers {
			size := len(name)
			for _, v := range values {
				size += len(v)
			}
			if size > d.maxHeaderBytes {
				findings = append(findings, Finding{
					Rule:     RuleHeaderAnomaly,
					Severity: models.SeverityMedium,
					Excerpt:  fmt.Sprintf("header %s is %d bytes, maximum %d", name, size, d.maxHeaderBytes),
				})
			}
		}
	}

	return findings
}

func (d *Detector) checkBodySize(view models.RequestView) []Finding {
	if d.maxBodyBytes > 0 && view.ContentLength > d.maxBodyBytes {
		return []Finding{{
			Rule:     RuleOversizedBody,
			Severity: models.SeverityMedium,
			Excerpt:  fmt.Sprintf("declared body of %d bytes exceeds ceiling %d", view.ContentLength, d.maxBodyBytes),
		}}
	}
	return nil
}

// excerpt returns a bounded slice of target around the match position.
func excerpt(target string, idx int) string {
	start := idx - 20
	if start < 0 {
		start = 0
	}
	end := start + maxExcerptLen
	if end > len(target) {
		end = len(target)
	}
	return target[start:end]
}

func truncate(s string) string {
	if len(s) > maxExcerptLen {
		return s[:maxExcerptLen]
	}
	return s
}
