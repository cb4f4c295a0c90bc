//go:build !windows

package lifecycle

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/events"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/launcher"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/android"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/android/androidtest"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/process"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window/windowtest"
)

func newDesktopService(rec *recorder, windows *window.Manager) *Service {
	return New(Options{
		Launchers:       launcher.NewSet(launcher.NewDesktop(process.NewExecutor(nil), windows, nil)),
		Windows:         windows,
		GracefulTimeout: time.Second,
		FinalTimeout:    2 * time.Second,
		ConfirmPoll:     20 * time.Millisecond,
		Publisher:       rec,
	})
}

func TestDesktopNaturalExitIsACrash(t *testing.T) {
	rec := &recorder{}
	svc := newDesktopService(rec, window.NewManager(nil, nil))

	def := catalog.Definition{ID: "short", Kind: catalog.KindDesktop, Target: "sh", Args: []string{"-c", "sleep 0.2"}}
	res, err := svc.Launch(context.Background(), def, "alice")
	require.NoError(t, err)
	require.NotNil(t, res.Instance)
	assert.Equal(t, instance.StateRunning, res.Instance.State)
	assert.NotZero(t, res.Instance.PID)

	require.Eventually(t, func() bool {
		_, err := svc.Instance(res.InstanceID)
		return err != nil
	}, 5*time.Second, 20*time.Millisecond)

	crashed := rec.ofType(events.TypeInstanceCrashed)
	require.Len(t, crashed, 1)
	assert.Equal(t, "exited", crashed[0].Detail)
	assert.Empty(t, rec.ofType(events.TypeInstanceClosed))
}

func TestDesktopCloseIsNotACrash(t *testing.T) {
	rec := &recorder{}
	svc := newDesktopService(rec, window.NewManager(nil, nil))

	def := catalog.Definition{ID: "sleeper", Kind: catalog.KindDesktop, Target: "sleep", Args: []string{"30"}}
	res, err := svc.Launch(context.Background(), def, "alice")
	require.NoError(t, err)

	closed := svc.CloseOne(context.Background(), res.InstanceID, time.Second)
	assert.True(t, closed.Success)
	assert.Equal(t, MethodGraceful, closed.Method)

	// give a late exit notification the chance to misfire
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.ofType(events.TypeInstanceCrashed))
	assert.Len(t, rec.ofType(events.TypeInstanceClosed), 1)
}

func TestDesktopForcedEscalation(t *testing.T) {
	svc := newDesktopService(&recorder{}, window.NewManager(nil, nil))

	def := catalog.Definition{
		ID:     "stubborn",
		Kind:   catalog.KindDesktop,
		Target: "sh",
		Args:   []string{"-c", `trap "" TERM; sleep 30`},
	}
	res, err := svc.Launch(context.Background(), def, "alice")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	closed := svc.CloseOne(context.Background(), res.InstanceID, 100*time.Millisecond)
	took := time.Since(start)

	assert.True(t, closed.Success, closed.Error)
	assert.Equal(t, MethodForced, closed.Method)
	assert.GreaterOrEqual(t, took, 100*time.Millisecond)
	assert.Less(t, took, 2*time.Second)
	assert.Zero(t, svc.Registry().Count())
}

func TestCloseAllForUserKillsWholeProcessGroup(t *testing.T) {
	rec := &recorder{}
	svc := newDesktopService(rec, window.NewManager(nil, nil))

	// the wrapper dies on TERM, the helper it spawned does not
	def := catalog.Definition{
		ID:     "wrapper",
		Kind:   catalog.KindDesktop,
		Target: "sh",
		Args:   []string{"-c", `(trap "" TERM; exec sleep 30) & wait`},
	}
	res, err := svc.Launch(context.Background(), def, "alice")
	require.NoError(t, err)
	pgid := res.Instance.PID
	time.Sleep(100 * time.Millisecond)

	closed := svc.CloseAllForUser(context.Background(), "alice", 200*time.Millisecond)
	require.True(t, closed.Success, closed.Failed)
	require.Len(t, closed.Entries, 1)
	assert.Equal(t, MethodForced, closed.Entries[0].Method)
	assert.Empty(t, svc.Registry().GetByUser("alice"))

	require.Eventually(t, func() bool {
		return errors.Is(syscall.Kill(-pgid, 0), syscall.ESRCH)
	}, 5*time.Second, 20*time.Millisecond, "no member of the group survives")
	assert.Empty(t, rec.ofType(events.TypeInstanceCrashed))
}

func TestCloseAllForUserMixedKinds(t *testing.T) {
	rec := &recorder{}
	backend := windowtest.New()
	windows := window.NewManager(backend, nil)
	bridge := androidtest.New(android.StatusAvailable)
	exec := process.NewExecutor(nil)

	svc := New(Options{
		Launchers: launcher.NewSet(
			launcher.NewDesktop(exec, windows, nil),
			launcher.NewWeb(launcher.WebOptions{
				Opener:  launcher.Opener{Command: "true", Wait: time.Second},
				Tracker: launcher.TrackerOptions{Grace: time.Minute},
			}, exec, windows, nil),
			launcher.NewAndroid(bridge, windows, nil),
		),
		Windows:         windows,
		GracefulTimeout: time.Second,
		FinalTimeout:    time.Second,
		ConfirmPoll:     20 * time.Millisecond,
		Publisher:       rec,
	})

	defs := []catalog.Definition{
		{ID: "sleeper", Kind: catalog.KindDesktop, Target: "sleep", Args: []string{"30"}},
		{ID: "intranet", Kind: catalog.KindWeb, Target: "https://intranet.example.com", WindowTitle: "Intranet*"},
		{ID: "mail", Name: "Mail", Kind: catalog.KindAndroid, Target: "com.example.mail"},
	}
	for _, def := range defs {
		_, err := svc.Launch(context.Background(), def, "alice")
		require.NoError(t, err, def.ID)
	}
	backend.Add(window.Ref{ID: "0x1", Title: "Intranet - Browser"})
	backend.Add(window.Ref{ID: "0x2", Title: "Mail"})
	_, err := svc.Launch(context.Background(), defs[0], "bob")
	require.NoError(t, err)

	res := svc.CloseAllForUser(context.Background(), "alice", time.Second)
	require.True(t, res.Success, "%+v", res.Entries)
	require.Len(t, res.Entries, 3)

	kinds := make([]catalog.Kind, 0, len(res.Entries))
	for _, e := range res.Entries {
		assert.True(t, e.Success)
		kinds = append(kinds, e.Kind)
	}
	assert.ElementsMatch(t, []catalog.Kind{catalog.KindDesktop, catalog.KindWeb, catalog.KindAndroid}, kinds)
	assert.Empty(t, svc.Instances("alice"))
	assert.Len(t, svc.Instances("bob"), 1)
	assert.ElementsMatch(t, []string{"0x1", "0x2"}, backend.Closed())

	all := svc.ShutdownAll(context.Background(), time.Second, time.Second)
	assert.True(t, all.Success)
	assert.Zero(t, svc.Registry().Count())
}
