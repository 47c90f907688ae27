package policy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/planora/planora/pkg/tools"
)

// externalCommPatterns are substrings of tool names that imply a
// message leaving the workspace
var externalCommPatterns = []string{
	"send_telegram",
	"send_email",
	"send_sms",
	"post_webhook",
}

// writeVerbs are leading verbs of tool names that imply a mutation
var writeVerbs = []string{
	"create",
	"add",
	"update",
	"delete",
	"send",
	"export",
	"write",
}

// Decision is the outcome of evaluating one tool call against policy
type Decision struct {
	Allowed              bool   `json:"allowed"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Reason               string `json:"reason,omitempty"`
}

// Access is the outcome of a path or domain check
type Access struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Engine evaluates tool calls against a per-workspace Config.
// All decision methods are pure; the engine holds no mutable state.
type Engine struct {
	redactor *Redactor
}

// NewEngine creates a policy engine
func NewEngine() *Engine {
	return &Engine{
		redactor: NewRedactor(),
	}
}

// DecideExecution evaluates whether a tool may run and whether it
// needs human confirmation. Rules apply in order:
//  1. HIGH risk always requires confirmation, overriding the tool's
//     own flag.
//  2. External-communication tools require confirmation when the
//     workspace says so.
//  3. Write tools are denied when their operation type is absent from
//     the write allow-list.
//  4. Everything else runs with the tool's own confirmation flag.
func (e *Engine) DecideExecution(toolName string, risk tools.RiskLevel, toolRequiresConfirmation bool, cfg Config) Decision {
	if risk == tools.RiskHigh {
		return Decision{
			Allowed:              true,
			RequiresConfirmation: true,
			Reason:               "high risk tools always require confirmation",
		}
	}

	if isExternalCommunication(toolName) && cfg.ExternalCommunicationRequiresConfirmation {
		return Decision{
			Allowed:              true,
			RequiresConfirmation: true,
			Reason:               "external communication requires confirmation",
		}
	}

	if operation, ok := writeOperationType(toolName); ok {
		if !cfg.AllowsWriteOperation(operation) {
			log.Warn().
				Str("tool", toolName).
				Str("operation", operation).
				Msg("Write operation blocked by policy")
			return Decision{
				Allowed: false,
				Reason:  fmt.Sprintf("write operation %q is not allowed in this workspace", operation),
			}
		}
	}

	return Decision{
		Allowed:              true,
		RequiresConfirmation: toolRequiresConfirmation,
	}
}

// CanAccessPath checks a file path against the workspace's path lists.
// Blocked prefixes win; an empty allow-list allows everything else.
func (e *Engine) CanAccessPath(path string, cfg Config) Access {
	for _, blocked := range cfg.BlockedFilePaths {
		if blocked != "" && strings.HasPrefix(path, blocked) {
			return Access{
				Allowed: false,
				Reason:  fmt.Sprintf("path is blocked by prefix %q", blocked),
			}
		}
	}

	if len(cfg.AllowedFilePaths) == 0 {
		return Access{Allowed: true}
	}

	for _, allowed := range cfg.AllowedFilePaths {
		if allowed != "" && strings.HasPrefix(path, allowed) {
			return Access{Allowed: true}
		}
	}

	return Access{
		Allowed: false,
		Reason:  "path is outside the allowed prefixes",
	}
}

// CanAccessDomain checks a domain against the workspace's domain lists.
// A list entry matches the domain itself and any subdomain of it.
func (e *Engine) CanAccessDomain(domain string, cfg Config) Access {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))

	for _, blocked := range cfg.BlockedDomains {
		if domainMatches(domain, blocked) {
			return Access{
				Allowed: false,
				Reason:  fmt.Sprintf("domain is blocked by %q", blocked),
			}
		}
	}

	if len(cfg.AllowedDomains) == 0 {
		return Access{Allowed: true}
	}

	for _, allowed := range cfg.AllowedDomains {
		if domainMatches(domain, allowed) {
			return Access{Allowed: true}
		}
	}

	return Access{
		Allowed: false,
		Reason:  "domain is not in the allow list",
	}
}

// Redact applies PII redaction to text when the workspace enables it
func (e *Engine) Redact(text string, cfg Config) string {
	if !cfg.RedactPII {
		return text
	}
	return e.redactor.Redact(text)
}

// isExternalCommunication checks a tool name against the fixed
// external-communication patterns
func isExternalCommunication(toolName string) bool {
	for _, pattern := range externalCommPatterns {
		if strings.Contains(toolName, pattern) {
			return true
		}
	}
	return false
}

// writeOperationType extracts the resource-type tag from a write tool
// name: "create_task" implies a write on "task". Returns false for
// tool names that do not imply a write.
func writeOperationType(toolName string) (string, bool) {
	isWrite := false
	for _, verb := range writeVerbs {
		if strings.Contains(toolName, verb) {
			isWrite = true
			break
		}
	}
	if !isWrite {
		return "", false
	}

	parts := strings.Split(toolName, "_")
	return parts[len(parts)-1], true
}

// domainMatches reports whether domain equals entry or is a
// subdomain of it
func domainMatches(domain, entry string) bool {
	entry = strings.ToLower(strings.TrimSuffix(entry, "."))
	if entry == "" {
		return false
	}
	return domain == entry || strings.HasSuffix(domain, "."+entry)
}
