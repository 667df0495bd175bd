package rollout

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// gitInfo best-effort resolves the current branch and commit hash of the
// working directory the process was started in. Absence of a repository is
// not an error; SessionMeta simply omits the fields.
func gitInfo() (branch, commit string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	branch = runGit(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	commit = runGit(ctx, "rev-parse", "HEAD")
	return branch, commit
}

func runGit(ctx context.Context, args ...string) string {
	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
