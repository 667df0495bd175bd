package sandbox

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/codexrun/agentcore/pkg/codex"
)

// wrapForPlatform prepends whatever platform-specific wrapper argv is needed
// to run argv under policy. DangerFullAccess never wraps, on any platform.
func wrapForPlatform(argv []string, policy codex.SandboxPolicy, cwd string) ([]string, error) {
	if policy.Kind == codex.SandboxDangerFullAccess {
		return argv, nil
	}

	switch runtime.GOOS {
	case "linux":
		return wrapLinux(argv, policy)
	case "darwin":
		return wrapDarwin(argv, policy, cwd)
	case "windows":
		return wrapWindowsWSL(argv, policy, cwd)
	default:
		return argv, nil
	}
}

// linuxSandboxHelper is the name of the helper binary that installs seccomp
// filters and, for WorkspaceWrite, landlock rules before exec-ing the real
// argv. It ships alongside the main binary (see cmd/codexcore).
const linuxSandboxHelper = "codexcore-linux-sandbox"

func wrapLinux(argv []string, policy codex.SandboxPolicy) ([]string, error) {
	if _, err := exec.LookPath(linuxSandboxHelper); err != nil {
		// No helper installed: fall through unwrapped. The safety policy
		// engine is responsible for requiring explicit approval whenever
		// SandboxType resolves to none on a platform that requested
		// sandboxing.
		return argv, nil
	}

	wrapped := []string{linuxSandboxHelper, "--mode=" + string(policy.Kind)}
	if policy.Kind == codex.SandboxWorkspaceWrite {
		for _, root := range policy.WritableRoots {
			wrapped = append(wrapped, "--writable-root="+root)
		}
		if policy.NetworkAccess {
			wrapped = append(wrapped, "--network=allow")
		}
	}
	wrapped = append(wrapped, "--")
	return append(wrapped, argv...), nil
}

func wrapDarwin(argv []string, policy codex.SandboxPolicy, cwd string) ([]string, error) {
	if _, err := exec.LookPath("sandbox-exec"); err != nil {
		return argv, nil
	}
	profile := seatbeltProfile(policy, cwd)
	wrapped := []string{"sandbox-exec", "-p", profile}
	return append(wrapped, argv...), nil
}

// seatbeltProfile generates a minimal Seatbelt profile mirroring policy.
func seatbeltProfile(policy codex.SandboxPolicy, cwd string) string {
	var sb strings.Builder
	sb.WriteString("(version 1)\n(deny default)\n(allow process-exec)\n(allow process-fork)\n(allow file-read*)\n")

	switch policy.Kind {
	case codex.SandboxReadOnly:
		// file-read* above already covers read-only access; no writes allowed.
	case codex.SandboxWorkspaceWrite:
		roots := append([]string{cwd}, policy.WritableRoots...)
		for _, root := range roots {
			if root == "" {
				continue
			}
			fmt.Fprintf(&sb, "(allow file-write* (subpath %q))\n", root)
		}
		if policy.NetworkAccess {
			sb.WriteString("(allow network*)\n")
		}
	}
	return sb.String()
}

func wrapWindowsWSL(argv []string, policy codex.SandboxPolicy, cwd string) ([]string, error) {
	if _, err := exec.LookPath("wsl.exe"); err != nil {
		// WSL unavailable: fall back to None. The policy engine will have
		// required explicit approval for any action that reaches here.
		return argv, nil
	}

	wslCwd := toWSLPath(cwd)
	wrapped := []string{"wsl.exe", "--cd", wslCwd, "--exec", "codexcore", "debug", "landlock",
		"-c", "sandbox_mode=" + string(policy.Kind)}
	return append(wrapped, argv...), nil
}

// toWSLPath translates a host Windows path (e.g. C:\work) to its WSL mount
// form (/mnt/c/work).
func toWSLPath(p string) string {
	if len(p) < 2 || p[1] != ':' {
		return p
	}
	drive := strings.ToLower(string(p[0]))
	rest := strings.ReplaceAll(p[2:], "\\", "/")
	return "/mnt/" + drive + rest
}
