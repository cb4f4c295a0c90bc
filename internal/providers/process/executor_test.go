//go:build !windows

package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartClassifiesFailures(t *testing.T) {
	dir := t.TempDir()
	notExec := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(notExec, []byte("hello"), 0o644))

	tests := []struct {
		name  string
		spec  Spec
		class error
	}{
		{name: "empty path", spec: Spec{}, class: ErrTargetNotFound},
		{name: "missing file", spec: Spec{Path: filepath.Join(dir, "missing")}, class: ErrTargetNotFound},
		{name: "missing command", spec: Spec{Path: "definitely-not-a-command-xyz"}, class: ErrTargetNotFound},
		{name: "not executable", spec: Spec{Path: notExec}, class: ErrPermissionDenied},
		{name: "directory", spec: Spec{Path: dir}, class: ErrPermissionDenied},
		{name: "missing working dir", spec: Spec{Path: "sh", Dir: filepath.Join(dir, "nope")}, class: ErrTargetNotFound},
	}

	e := NewExecutor(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := e.Start(context.Background(), tt.spec)
			require.Error(t, err)
			assert.Nil(t, h)
			assert.ErrorIs(t, err, tt.class)

			var startErr *StartError
			assert.ErrorAs(t, err, &startErr)
		})
	}
}

func TestStartCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor(nil).Start(ctx, Spec{Path: "sleep", Args: []string{"1"}})
	assert.ErrorIs(t, err, ErrSpawnFailed)
}

func TestHandleObservesNaturalExit(t *testing.T) {
	h, err := NewExecutor(nil).Start(context.Background(), Spec{Path: "sh", Args: []string{"-c", "exit 3"}})
	require.NoError(t, err)
	assert.Positive(t, h.PID())

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.False(t, h.Alive())
	assert.Equal(t, 3, h.ExitCode())
	assert.NoError(t, h.Kill(), "killing an exited process succeeds")
}

func TestTerminateStopsCooperativeProcess(t *testing.T) {
	h, err := NewExecutor(nil).Start(context.Background(), Spec{Path: "sleep", Args: []string{"30"}})
	require.NoError(t, err)
	require.True(t, h.Alive())

	require.NoError(t, h.Terminate())
	assert.True(t, h.Wait(5*time.Second, 10*time.Millisecond))
	assert.False(t, h.Alive())
}

func TestKillStopsProcessIgnoringTerm(t *testing.T) {
	h, err := NewExecutor(nil).Start(context.Background(), Spec{
		Path: "sh",
		Args: []string{"-c", `trap "" TERM; sleep 30`},
	})
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, h.Terminate())
	assert.False(t, h.Wait(300*time.Millisecond, 20*time.Millisecond), "TERM is ignored")

	require.NoError(t, h.Kill())
	assert.True(t, h.Wait(5*time.Second, 10*time.Millisecond))
}

func TestGroupOutlivesLeader(t *testing.T) {
	h, err := NewExecutor(nil).Start(context.Background(), Spec{
		Path: "sh",
		Args: []string{"-c", `(trap "" TERM; exec sleep 30) & wait`},
	})
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, h.Terminate())
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("leader did not exit")
	}
	assert.False(t, h.Alive())
	assert.True(t, h.Running(), "the TERM-ignoring child is still in the group")
	assert.False(t, h.Wait(200*time.Millisecond, 20*time.Millisecond))

	require.NoError(t, h.Kill())
	assert.True(t, h.Wait(5*time.Second, 10*time.Millisecond))
	assert.False(t, h.Running())
	assert.NoError(t, h.Kill(), "killing an emptied group succeeds")
}

func TestStartPassesEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	h, err := NewExecutor(nil).Start(context.Background(), Spec{
		Path: "sh",
		Args: []string{"-c", `printf "%s:%s" "$LAUNCHER_TEST" "$(pwd)" > out`},
		Dir:  dir,
		Env:  []string{"LAUNCHER_TEST=yes"},
	})
	require.NoError(t, err)
	require.True(t, h.Wait(5*time.Second, 10*time.Millisecond))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, []string{"yes:" + dir, "yes:" + resolved}, string(data))
}

func TestAdoptPollsLiveness(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	waited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waited)
	}()

	h := Adopt(cmd.Process)
	assert.Nil(t, h.Done())
	assert.True(t, h.Alive())

	require.NoError(t, h.Kill())
	<-waited
	assert.Eventually(t, func() bool { return !h.Alive() }, 5*time.Second, 20*time.Millisecond)
}
