// Package safety implements SafetyPolicy, the pure decision function that
// classifies a proposed tool action as auto-approve, ask-user, or reject,
// and ApprovalBroker, the async component that consults the human operator
// and caches session approvals. Grounded on the teacher's
// internal/agent/approval.go ApprovalChecker decision ladder, generalized
// from a three-way allow/deny/pending result into the spec's
// AutoApprove{sandbox_type}/AskUser/Reject{reason} outcomes.
package safety

import (
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/codexrun/agentcore/pkg/codex"
)

// ErrJustificationRequired is returned by RequireJustification when a
// DangerFullAccess transition is attempted without a justification string.
var ErrJustificationRequired = errors.New("safety: DangerFullAccess requires a justification string")

// Decision is the outcome of SafetyPolicy.Assess.
type Decision string

const (
	DecisionAutoApprove Decision = "auto_approve"
	DecisionAskUser      Decision = "ask_user"
	DecisionReject       Decision = "reject"
)

// SandboxType names the concrete OS sandbox an AutoApprove decision should
// run the action under.
type SandboxType string

const (
	SandboxNone           SandboxType = "none"
	SandboxMacosSeatbelt  SandboxType = "macos_seatbelt"
	SandboxLinuxSeccomp   SandboxType = "linux_seccomp"
)

// SafetyCheck is the result of assessing a proposed action.
type SafetyCheck struct {
	Decision    Decision
	SandboxType SandboxType
	Reason      string
}

// ActionKind tags the variant of Action being assessed.
type ActionKind string

const (
	ActionPatch ActionKind = "patch"
	ActionShell ActionKind = "shell"
)

// Action is the proposed operation SafetyPolicy is asked to assess.
type Action struct {
	Kind ActionKind

	// Cwd is the turn's working directory, used to resolve writable roots.
	Cwd string

	// ActionPatch.
	AffectedFiles []string

	// ActionShell.
	Argv []string
}

// ApprovedCache is the session-scoped exact-argv approval cache (spec §3,
// §8: "Approval cache is exact-match: argv differing by a single token is
// not auto-approved from cache.").
type ApprovedCache struct {
	mu    sync.RWMutex
	argvs map[string]struct{}
}

// NewApprovedCache returns an empty cache.
func NewApprovedCache() *ApprovedCache {
	return &ApprovedCache{argvs: make(map[string]struct{})}
}

// Record adds argv to the cache (ReviewDecision = ApprovedForSession).
func (c *ApprovedCache) Record(argv []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.argvs[cacheKey(argv)] = struct{}{}
}

// Contains reports whether argv exactly matches a previously recorded entry.
func (c *ApprovedCache) Contains(argv []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.argvs[cacheKey(argv)]
	return ok
}

func cacheKey(argv []string) string {
	return strings.Join(argv, "\x00")
}

// hostSandboxType picks the platform sandbox for an auto-approved shell
// action under a workspace-write policy (spec §4.5 decision 4).
func hostSandboxType() SandboxType {
	switch runtime.GOOS {
	case "darwin":
		return SandboxMacosSeatbelt
	case "linux":
		return SandboxLinuxSeccomp
	default:
		return SandboxNone
	}
}

// RequireJustification implements decision 6: every DangerFullAccess
// approval must carry a justification string; the caller is expected to
// log an "admin" audit event when this returns an error.
func RequireJustification(sandbox codex.SandboxPolicy, justification string) error {
	if sandbox.Kind != codex.SandboxDangerFullAccess {
		return nil
	}
	if strings.TrimSpace(justification) == "" {
		return ErrJustificationRequired
	}
	return nil
}

// Assess is the pure decision function described in spec §4.5.
func Assess(
	action Action,
	approval codex.ApprovalPolicy,
	sandbox codex.SandboxPolicy,
	cache *ApprovedCache,
	withEscalatedPermissions bool,
) SafetyCheck {
	switch action.Kind {
	case ActionPatch:
		return assessPatch(action, approval, sandbox)
	case ActionShell:
		return assessShell(action, approval, sandbox, cache, withEscalatedPermissions)
	default:
		return SafetyCheck{Decision: DecisionReject, Reason: "unknown action kind"}
	}
}

// assessPatch implements decisions 1-2.
func assessPatch(action Action, approval codex.ApprovalPolicy, sandbox codex.SandboxPolicy) SafetyCheck {
	withinRoots := true
	for _, f := range action.AffectedFiles {
		if !sandbox.AllowsWrite(action.Cwd, f) {
			withinRoots = false
			break
		}
	}
	if withinRoots {
		return SafetyCheck{Decision: DecisionAutoApprove, SandboxType: SandboxNone, Reason: "patch within writable workspace"}
	}
	switch approval {
	case codex.ApprovalUnlessTrusted, codex.ApprovalOnFailure:
		return SafetyCheck{Decision: DecisionAskUser, Reason: "patch writes outside workspace roots"}
	default:
		return SafetyCheck{Decision: DecisionReject, Reason: "patch writes outside workspace roots"}
	}
}

// assessShell implements decisions 3-5.
func assessShell(
	action Action,
	approval codex.ApprovalPolicy,
	sandbox codex.SandboxPolicy,
	cache *ApprovedCache,
	withEscalatedPermissions bool,
) SafetyCheck {
	// Decision 5: escalated permissions while approval policy is Never.
	if withEscalatedPermissions && approval == codex.ApprovalNever {
		return SafetyCheck{Decision: DecisionReject, Reason: "escalated permissions requested under Never approval policy"}
	}

	// Decision 3: session-approved cache, exact match.
	if cache != nil && cache.Contains(action.Argv) {
		return SafetyCheck{Decision: DecisionAutoApprove, SandboxType: SandboxNone, Reason: "command in session-approved cache"}
	}

	// Decision 4: workspace policy with network restrictions auto-approves
	// under the host sandbox.
	if sandbox.Kind == codex.SandboxWorkspaceWrite && !sandbox.NetworkAccess {
		return SafetyCheck{Decision: DecisionAutoApprove, SandboxType: hostSandboxType(), Reason: "workspace-write sandbox with network disabled"}
	}

	if sandbox.Kind == codex.SandboxReadOnly {
		return SafetyCheck{Decision: DecisionAutoApprove, SandboxType: hostSandboxType(), Reason: "read-only sandbox"}
	}

	switch approval {
	case codex.ApprovalAlways:
		return SafetyCheck{Decision: DecisionAutoApprove, SandboxType: hostSandboxType(), Reason: "approval policy always-approves"}
	case codex.ApprovalNever:
		return SafetyCheck{Decision: DecisionReject, Reason: "approval policy never-approves and no cache hit"}
	default:
		return SafetyCheck{Decision: DecisionAskUser, Reason: "no automatic rule matched"}
	}
}
