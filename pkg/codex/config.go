package codex

import "time"

// ApprovalPolicy controls when SafetyPolicy may auto-approve a proposed
// action without consulting the human operator.
type ApprovalPolicy string

const (
	ApprovalNever         ApprovalPolicy = "never"
	ApprovalOnFailure     ApprovalPolicy = "on-failure"
	ApprovalUnlessTrusted ApprovalPolicy = "unless-trusted"
	ApprovalAlways        ApprovalPolicy = "always"
)

// SandboxKind tags the variant of a SandboxPolicy.
type SandboxKind string

const (
	SandboxDangerFullAccess SandboxKind = "danger-full-access"
	SandboxReadOnly         SandboxKind = "read-only"
	SandboxWorkspaceWrite   SandboxKind = "workspace-write"
)

// SandboxPolicy is the tagged union describing what a spawned child process
// may read, write, and whether it may reach the network.
type SandboxPolicy struct {
	Kind SandboxKind

	// WorkspaceWrite fields, populated only when Kind == SandboxWorkspaceWrite.
	WritableRoots        []string
	NetworkAccess        bool
	ExcludeTmpdirEnvVar  bool
	ExcludeSlashTmp      bool
}

// AllowsWrite reports whether the policy allows writing to path, which must
// already be resolved relative to cwd.
func (p SandboxPolicy) AllowsWrite(cwd string, path string) bool {
	switch p.Kind {
	case SandboxDangerFullAccess:
		return true
	case SandboxReadOnly:
		return false
	case SandboxWorkspaceWrite:
		roots := append([]string{cwd}, p.WritableRoots...)
		for _, root := range roots {
			if withinRoot(root, path) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func withinRoot(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	rel, ok := relPrefix(root, path)
	return ok && rel
}

// relPrefix is a minimal path-prefix check that does not depend on the
// filepath package's platform-specific separator handling, since both sides
// are expected to already be cleaned absolute paths by the caller.
func relPrefix(root, path string) (bool, bool) {
	if len(path) < len(root) {
		return false, true
	}
	if path[:len(root)] != root {
		return false, true
	}
	if len(path) == len(root) {
		return true, true
	}
	sep := path[len(root)]
	return sep == '/' || sep == '\\', true
}

// SessionConfig is the immutable snapshot of session-scoped configuration
// taken at session creation. Mutating it requires an OverrideTurnContext
// operation, which takes effect at the next turn boundary.
type SessionConfig struct {
	Cwd              string
	ApprovalPolicy   ApprovalPolicy
	SandboxPolicy    SandboxPolicy
	ModelFamily      string
	ReasoningEffort  string
	EnabledTools     ToolsConfig
	MCPServers       []string
	UserInstructions string
	BaseInstructions string
	HistoryPolicy    HistoryPolicy
	CodexHome        string
}

// HistoryPolicy controls what is persisted to the rollout and replayed on
// resume.
type HistoryPolicy struct {
	PersistAll bool
	MaxItems   int
}

// ToolsConfig snapshots which tools are enabled for a model family; see
// spec §4.4.
type ToolsConfig struct {
	ShellType               ShellType
	PlanTool                bool
	ApplyPatchToolType       ApplyPatchToolType
	WebSearchRequest         bool
	IncludeViewImageTool     bool
	ExperimentalUnifiedExec  bool
}

// ShellType selects which shell tool surface is exposed to the model.
type ShellType string

const (
	ShellDefault     ShellType = "default"
	ShellLocal       ShellType = "local"
	ShellStreamable  ShellType = "streamable"
)

// ApplyPatchToolType selects how apply-patch is exposed to the model.
type ApplyPatchToolType string

const (
	ApplyPatchNone     ApplyPatchToolType = ""
	ApplyPatchFunction ApplyPatchToolType = "function"
	ApplyPatchFreeform ApplyPatchToolType = "freeform"
)

// Clone returns a deep-enough copy of the config suitable for a frozen
// per-turn TurnContext snapshot.
func (c SessionConfig) Clone() SessionConfig {
	clone := c
	clone.SandboxPolicy.WritableRoots = append([]string(nil), c.SandboxPolicy.WritableRoots...)
	clone.MCPServers = append([]string(nil), c.MCPServers...)
	return clone
}

// OverrideTurnContext carries per-turn configuration overrides; it is
// applied at the next turn boundary, never mid-turn.
type OverrideTurnContext struct {
	Cwd              *string
	ApprovalPolicy   *ApprovalPolicy
	SandboxPolicy    *SandboxPolicy
	ModelFamily      *string
	ReasoningEffort  *string
	UserInstructions *string
}

// Apply returns a new SessionConfig with the override fields applied.
func (o OverrideTurnContext) Apply(base SessionConfig) SessionConfig {
	next := base.Clone()
	if o.Cwd != nil {
		next.Cwd = *o.Cwd
	}
	if o.ApprovalPolicy != nil {
		next.ApprovalPolicy = *o.ApprovalPolicy
	}
	if o.SandboxPolicy != nil {
		next.SandboxPolicy = *o.SandboxPolicy
	}
	if o.ModelFamily != nil {
		next.ModelFamily = *o.ModelFamily
	}
	if o.ReasoningEffort != nil {
		next.ReasoningEffort = *o.ReasoningEffort
	}
	if o.UserInstructions != nil {
		next.UserInstructions = *o.UserInstructions
	}
	return next
}

// DefaultRequestTimeout bounds a single model request when the caller does
// not specify one explicitly.
const DefaultRequestTimeout = 10 * time.Minute
