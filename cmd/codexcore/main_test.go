package main

import "testing"

func TestBuildRootCmdRegistersSubcommands(t *testing.T) {
	root := buildRootCmd()
	want := map[string]bool{"proto": false, "exec": false, "debug": false}
	for _, c := range root.Commands() {
		name := c.Name()
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestResolveCodexHomeUsesFlagOverEnv(t *testing.T) {
	root := buildRootCmd()
	root.SetArgs([]string{"exec", "--codex-home", "/custom/home", "--help"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}
