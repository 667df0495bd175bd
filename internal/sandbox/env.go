package sandbox

import "strings"

// sensitivePrefixes are environment variable name prefixes cleared before
// any spawn, regardless of sandbox policy: dynamic linker and profiler
// variables that could redirect a sandboxed child's code path.
var sensitivePrefixes = []string{
	"LD_",
	"DYLD_",
	"NODE_OPTIONS",
	"PYTHONSTARTUP",
	"PERL5OPT",
}

// hygienicEnv builds a child environment from overrides, with LD_*/DYLD_*
// and known profiler variables cleared. It does not inherit the parent
// process's environment implicitly; callers must pass through anything the
// child legitimately needs (PATH, HOME, etc.) via overrides.
func hygienicEnv(overrides map[string]string) []string {
	env := make([]string, 0, len(overrides))
	for k, v := range overrides {
		if isSensitiveEnvVar(k) {
			continue
		}
		env = append(env, k+"="+v)
	}
	return env
}

func isSensitiveEnvVar(name string) bool {
	for _, prefix := range sensitivePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
