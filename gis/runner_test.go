package gis

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestPrepareArgs(t *testing.T) {
	args := []string{
		"input=roads",
		"afcolumn=",
		"alayer= ",
		"bad=a=b",
		"--overwrite",
		"-n",
		"thresh=100",
	}
	got := PrepareArgs(args)
	want := []string{"input=roads", "--overwrite", "-n", "thresh=100"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestRunnerRejectsUnknownModule(t *testing.T) {
	r := NewRunner(time.Second).WithExec(func(ctx context.Context, name string, args []string) ([]byte, error) {
		t.Fatal("exec should not be reached")
		return nil, nil
	})

	if _, err := r.Run(context.Background(), NewCommand("rm")); err == nil {
		t.Error("expected error for disallowed module")
	}
}

func TestRunnerExecutesAllowedModule(t *testing.T) {
	var gotName string
	var gotArgs []string
	r := NewRunner(time.Second).WithExec(func(ctx context.Context, name string, args []string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return []byte("ok\n"), nil
	})

	cmd := NewCommand("v.net.path").
		Arg("input", "roads").
		Arg("afcolumn", "").
		Flag("--overwrite")
	out, err := r.Run(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "ok\n" {
		t.Errorf("expected output 'ok', got %q", out)
	}
	if gotName != "v.net.path" {
		t.Errorf("expected module v.net.path, got %q", gotName)
	}
	want := "input=roads --overwrite"
	if strings.Join(gotArgs, " ") != want {
		t.Errorf("expected args %q, got %q", want, strings.Join(gotArgs, " "))
	}
}

func TestCommandString(t *testing.T) {
	cmd := NewCommand("v.edit").Arg("map", "pts").Arg("tool", "create").Flag("-n")
	if got := cmd.String(); got != "v.edit map=pts tool=create -n" {
		t.Errorf("unexpected command string %q", got)
	}
}
