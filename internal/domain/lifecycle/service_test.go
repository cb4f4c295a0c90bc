package lifecycle

import (
	"context"
	"errors"
	"sync"
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
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window/windowtest"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

func TestLaunchRegistersRunningInstance(t *testing.T) {
	rec := &recorder{}
	fake := newFakeLauncher(catalog.KindDesktop)
	svc := newTestService(rec, fake)

	res, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.Instance)
	assert.Equal(t, instance.StateRunning, res.Instance.State)
	assert.Equal(t, "alice", res.Instance.Owner)

	inst, err := svc.Instance(res.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, instance.StateRunning, inst.State)
	assert.Len(t, svc.Instances("alice"), 1)
	assert.Empty(t, svc.Instances("bob"))
	assert.Len(t, rec.ofType(events.TypeLaunchSucceeded), 1)
}

func TestLaunchFailureRegistersNothing(t *testing.T) {
	tests := []struct {
		name   string
		def    catalog.Definition
		setup  func(f *fakeLauncher)
		reason launcher.Reason
	}{
		{
			name: "launcher failure",
			def:  desktopDef("calc"),
			setup: func(f *fakeLauncher) {
				f.launchErr = launcher.Fail(desktopDef("calc"), launcher.ReasonTargetNotFound, "", nil)
			},
			reason: launcher.ReasonTargetNotFound,
		},
		{
			name:   "untyped launcher error",
			def:    desktopDef("calc"),
			setup:  func(f *fakeLauncher) { f.launchErr = errors.New("boom") },
			reason: launcher.ReasonSpawnFailed,
		},
		{
			name:   "no launcher for kind",
			def:    catalog.Definition{ID: "docs", Kind: catalog.KindFolder, Target: "/srv/docs"},
			reason: launcher.ReasonUnsupportedKind,
		},
		{
			name:   "invalid definition",
			def:    catalog.Definition{ID: "portal", Kind: catalog.KindWeb, Target: "ftp://portal"},
			reason: launcher.ReasonInvalidDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			fake := newFakeLauncher(catalog.KindDesktop)
			if tt.setup != nil {
				tt.setup(fake)
			}
			svc := newTestService(rec, fake)

			res, err := svc.Launch(context.Background(), tt.def, "alice")
			require.ErrorIs(t, err, launcher.ErrLaunchFailed)
			assert.False(t, res.Success)
			assert.Equal(t, tt.reason, res.Reason)
			assert.NotEmpty(t, res.Error)
			assert.Zero(t, svc.Registry().Count())
			assert.Len(t, rec.ofType(events.TypeLaunchFailed), 1)
		})
	}
}

func TestLaunchAndroidWhileSubsystemDisabled(t *testing.T) {
	rec := &recorder{}
	bridge := androidtest.New(android.StatusDisabled)
	svc := newTestService(rec, launcher.NewAndroid(bridge, window.NewManager(nil, nil), nil))

	def := catalog.Definition{ID: "mail", Kind: catalog.KindAndroid, Target: "com.example.mail"}
	res, err := svc.Launch(context.Background(), def, "alice")

	require.ErrorIs(t, err, launcher.ErrSubsystemUnavailable)
	assert.Equal(t, launcher.ReasonSubsystemUnavailable, res.Reason)
	assert.Contains(t, res.Error, "disabled")
	assert.Zero(t, svc.Registry().Count())

	failed := rec.ofType(events.TypeLaunchFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "disabled", failed[0].Data["subsystem_status"])
}

func TestCloseOneGraceful(t *testing.T) {
	rec := &recorder{}
	fake := newFakeLauncher(catalog.KindDesktop)
	svc := newTestService(rec, fake)

	res, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
	require.NoError(t, err)

	closed := svc.CloseOne(context.Background(), res.InstanceID, time.Second)
	assert.True(t, closed.Success)
	assert.Equal(t, MethodGraceful, closed.Method)

	_, err = svc.Instance(res.InstanceID)
	assert.ErrorIs(t, err, instance.ErrInstanceNotFound)
	graceful, forced, released := fake.counts()
	assert.Equal(t, 1, graceful)
	assert.Zero(t, forced)
	assert.Equal(t, 1, released)
	assert.Len(t, rec.ofType(events.TypeInstanceClosed), 1)
}

func TestCloseOneIsIdempotent(t *testing.T) {
	fake := newFakeLauncher(catalog.KindDesktop)
	svc := newTestService(&recorder{}, fake)

	res, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
	require.NoError(t, err)

	first := svc.CloseOne(context.Background(), res.InstanceID, time.Second)
	second := svc.CloseOne(context.Background(), res.InstanceID, time.Second)
	unknown := svc.CloseOne(context.Background(), id.NewInstanceID(), time.Second)

	assert.True(t, first.Success)
	assert.True(t, second.Success)
	assert.Equal(t, MethodAlreadyClosed, second.Method)
	assert.True(t, unknown.Success)
	graceful, _, _ := fake.counts()
	assert.Equal(t, 1, graceful)
}

func TestCloseOneEscalates(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fakeLauncher)
	}{
		{name: "graceful ignored", setup: func(f *fakeLauncher) { f.ignoreGraceful = true }},
		{name: "no graceful path", setup: func(f *fakeLauncher) { f.noGraceful = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeLauncher(catalog.KindDesktop)
			tt.setup(fake)
			svc := newTestService(&recorder{}, fake)

			res, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
			require.NoError(t, err)

			start := time.Now()
			closed := svc.CloseOne(context.Background(), res.InstanceID, 100*time.Millisecond)
			assert.True(t, closed.Success)
			assert.Equal(t, MethodForced, closed.Method)
			assert.Less(t, time.Since(start), time.Second)
			_, forced, _ := fake.counts()
			assert.Equal(t, 1, forced)
		})
	}
}

func TestCloseOneUnconfirmedIsReportedAndRemoved(t *testing.T) {
	rec := &recorder{}
	fake := newFakeLauncher(catalog.KindDesktop)
	fake.ignoreGraceful = true
	fake.ignoreForce = true
	svc := newTestService(rec, fake)

	res, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
	require.NoError(t, err)

	closed := svc.CloseOne(context.Background(), res.InstanceID, 50*time.Millisecond)
	assert.False(t, closed.Success)
	assert.Equal(t, MethodForced, closed.Method)

	var timeoutErr *CloseTimeoutError
	require.ErrorAs(t, closed.Err, &timeoutErr)
	assert.Equal(t, res.InstanceID, timeoutErr.InstanceID)
	assert.Equal(t, PhaseForced, timeoutErr.Phase)

	assert.Zero(t, svc.Registry().Count())
	assert.Len(t, rec.ofType(events.TypeCloseFailed), 1)
}

func TestConcurrentClosesShareOneSequence(t *testing.T) {
	fake := newFakeLauncher(catalog.KindDesktop)
	fake.gracefulDelay = 50 * time.Millisecond
	svc := newTestService(&recorder{}, fake)

	res, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]CloseResult, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.CloseOne(context.Background(), res.InstanceID, time.Second)
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.True(t, r.Success)
	}
	graceful, _, released := fake.counts()
	assert.Equal(t, 1, graceful)
	assert.Equal(t, 1, released)
}

func TestShutdownAllIsBoundedRegardlessOfCount(t *testing.T) {
	const graceful, final = 100 * time.Millisecond, 100 * time.Millisecond

	for _, n := range []int{1, 25} {
		fake := newFakeLauncher(catalog.KindDesktop)
		fake.ignoreGraceful = true
		fake.ignoreForce = true
		svc := newTestService(&recorder{}, fake)
		for i := 0; i < n; i++ {
			_, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
			require.NoError(t, err)
		}

		start := time.Now()
		res := svc.ShutdownAll(context.Background(), graceful, final)
		took := time.Since(start)

		assert.Less(t, took, graceful+final+400*time.Millisecond, "n=%d", n)
		assert.False(t, res.Success)
		assert.Len(t, res.Entries, n)
		assert.Len(t, res.Failed, n)
		assert.Zero(t, svc.Registry().Count())
	}
}

func TestShutdownAllRefusesNewLaunches(t *testing.T) {
	rec := &recorder{}
	fake := newFakeLauncher(catalog.KindDesktop)
	svc := newTestService(rec, fake)
	_, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
	require.NoError(t, err)

	res := svc.ShutdownAll(context.Background(), time.Second, time.Second)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Graceful)
	assert.Len(t, rec.ofType(events.TypeShutdownComplete), 1)

	launched, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
	require.ErrorIs(t, err, launcher.ErrLaunchFailed)
	assert.Equal(t, launcher.ReasonShuttingDown, launched.Reason)
}

func TestCloseAllForUserClosesOnlyThatUser(t *testing.T) {
	rec := &recorder{}
	fake := newFakeLauncher(catalog.KindDesktop)
	svc := newTestService(rec, fake)

	for _, owner := range []string{"alice", "alice", "alice", "bob"} {
		_, err := svc.Launch(context.Background(), desktopDef("calc"), owner)
		require.NoError(t, err)
	}

	res := svc.CloseAllForUser(context.Background(), "alice", time.Second)
	assert.True(t, res.Success)
	assert.Equal(t, ScopeUser, res.Scope)
	assert.Len(t, res.Entries, 3)
	assert.Empty(t, res.Failed)
	assert.Empty(t, svc.Registry().GetByUser("alice"))
	assert.Len(t, svc.Registry().GetByUser("bob"), 1)

	userClosed := rec.ofType(events.TypeUserClosed)
	require.Len(t, userClosed, 1)
	assert.Equal(t, "alice", userClosed[0].Owner)

	// the seal is lifted once the close completes
	_, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
	assert.NoError(t, err)
}

func TestCloseAllForUserReportsEveryFailure(t *testing.T) {
	fake := newFakeLauncher(catalog.KindDesktop)
	fake.ignoreGraceful = true
	fake.ignoreForce = true
	svc := newTestService(&recorder{}, fake)

	var ids []id.InstanceID
	for i := 0; i < 3; i++ {
		res, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
		require.NoError(t, err)
		ids = append(ids, res.InstanceID)
	}

	res := svc.CloseAllForUser(context.Background(), "alice", 50*time.Millisecond)
	assert.False(t, res.Success)
	assert.ElementsMatch(t, ids, res.Failed)
	for _, e := range res.Entries {
		assert.False(t, e.Success)
		assert.NotEmpty(t, e.Error)
	}
}

func TestCloseAllForUserWaitsForLaunchesInFlight(t *testing.T) {
	block := make(chan struct{})
	fake := newFakeLauncher(catalog.KindDesktop)
	fake.block = block
	fake.entered = make(chan struct{}, 1)
	svc := newTestService(&recorder{}, fake)

	type outcome struct {
		res LaunchResult
		err error
	}
	inFlight := make(chan outcome, 1)
	go func() {
		res, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
		inFlight <- outcome{res, err}
	}()
	<-fake.entered

	closed := make(chan ShutdownResult, 1)
	go func() { closed <- svc.CloseAllForUser(context.Background(), "alice", 2*time.Second) }()

	require.Eventually(t, func() bool {
		return svc.gate.check(desktopDef("calc"), &ticket{owner: "alice", gen: ^uint64(0)}) != nil
	}, time.Second, 5*time.Millisecond)

	_, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
	var launchErr *launcher.LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, launcher.ReasonSessionEnding, launchErr.Reason)

	close(block)

	first := <-inFlight
	require.ErrorIs(t, first.err, launcher.ErrLaunchFailed)
	assert.Equal(t, launcher.ReasonSessionEnding, first.res.Reason)

	res := <-closed
	assert.True(t, res.Success)
	assert.Empty(t, svc.Registry().GetByUser("alice"))
}

func TestCloseAllForUserOutlivedByLaunch(t *testing.T) {
	block := make(chan struct{})
	fake := newFakeLauncher(catalog.KindDesktop)
	fake.block = block
	fake.entered = make(chan struct{}, 1)
	svc := newTestService(&recorder{}, fake)

	type outcome struct {
		res LaunchResult
		err error
	}
	inFlight := make(chan outcome, 1)
	go func() {
		res, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
		inFlight <- outcome{res, err}
	}()
	<-fake.entered

	// the launch outlives the whole close budget
	res := svc.CloseAllForUser(context.Background(), "alice", 50*time.Millisecond)
	require.False(t, res.Success)
	require.Len(t, res.Failed, 1)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "alice", res.Entries[0].Owner)
	var timeoutErr *CloseTimeoutError
	require.ErrorAs(t, res.Entries[0].Err, &timeoutErr)
	assert.Equal(t, PhaseDrain, timeoutErr.Phase)

	// the seal is gone but the stale launch is still refused
	fake.mu.Lock()
	fake.block = nil
	fake.entered = nil
	fake.mu.Unlock()
	close(block)

	late := <-inFlight
	var launchErr *launcher.LaunchError
	require.ErrorAs(t, late.err, &launchErr)
	assert.Equal(t, launcher.ReasonSessionEnding, launchErr.Reason)
	assert.Equal(t, res.Failed[0], late.res.InstanceID)
	assert.Empty(t, svc.Registry().GetByUser("alice"))

	// a launch in the next session is admitted
	next, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
	require.NoError(t, err)
	assert.True(t, next.Success)
	assert.Empty(t, svc.gate.sealedAt, "seal generations are dropped once unused")
}

func TestShutdownAllBoundIncludesLaunchesInFlight(t *testing.T) {
	fake := newFakeLauncher(catalog.KindDesktop)
	fake.ignoreGraceful = true
	fake.ignoreForce = true
	svc := newTestService(&recorder{}, fake)

	var ids []id.InstanceID
	for i := 0; i < 3; i++ {
		res, err := svc.Launch(context.Background(), desktopDef("calc"), "alice")
		require.NoError(t, err)
		ids = append(ids, res.InstanceID)
	}

	block := make(chan struct{})
	fake.mu.Lock()
	fake.block = block
	fake.entered = make(chan struct{}, 1)
	entered := fake.entered
	fake.mu.Unlock()

	inFlight := make(chan LaunchResult, 1)
	go func() {
		res, _ := svc.Launch(context.Background(), desktopDef("calc"), "bob")
		inFlight <- res
	}()
	<-entered

	start := time.Now()
	res := svc.ShutdownAll(context.Background(), 300*time.Millisecond, 300*time.Millisecond)
	took := time.Since(start)

	assert.Less(t, took, 750*time.Millisecond)
	assert.False(t, res.Success)
	assert.Len(t, res.Failed, 4)
	assert.Subset(t, res.Failed, ids)

	close(block)
	late := <-inFlight
	assert.Equal(t, launcher.ReasonShuttingDown, late.Reason)
	assert.Contains(t, res.Failed, late.InstanceID)
}

func TestMonitorTickReportsCrash(t *testing.T) {
	rec := &recorder{}
	fake := newFakeLauncher(catalog.KindWeb)
	svc := newTestService(rec, fake)

	def := catalog.Definition{ID: "portal", Kind: catalog.KindWeb, Target: "https://portal.example.com"}
	res, err := svc.Launch(context.Background(), def, "alice")
	require.NoError(t, err)

	require.True(t, svc.Tick(context.Background()))
	_, err = svc.Instance(res.InstanceID)
	require.NoError(t, err, "a live instance survives a tick")

	fake.exit(res.InstanceID)
	require.True(t, svc.Tick(context.Background()))

	_, err = svc.Instance(res.InstanceID)
	assert.ErrorIs(t, err, instance.ErrInstanceNotFound)
	crashed := rec.ofType(events.TypeInstanceCrashed)
	require.Len(t, crashed, 1)
	assert.Equal(t, "window-closed", crashed[0].Detail)
	assert.Equal(t, res.InstanceID.String(), crashed[0].InstanceID)

	// a close after the crash is still a success
	assert.True(t, svc.CloseOne(context.Background(), res.InstanceID, time.Second).Success)
}

func TestFocus(t *testing.T) {
	backend := windowtest.New(window.Ref{ID: "0x7", Title: "Payroll - Portal"})
	fake := newFakeLauncher(catalog.KindWeb)
	fake.title = "Payroll*"
	svc := New(Options{
		Launchers: launcher.NewSet(fake),
		Windows:   window.NewManager(backend, nil),
	})

	res, err := svc.Launch(context.Background(), catalog.Definition{ID: "payroll", Kind: catalog.KindWeb, Target: "https://payroll.example.com"}, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.Focus(context.Background(), res.InstanceID))
	assert.Equal(t, []string{"0x7"}, backend.Activated())

	backend.Remove("0x7")
	assert.ErrorIs(t, svc.Focus(context.Background(), res.InstanceID), ErrNoWindow)
	assert.ErrorIs(t, svc.Focus(context.Background(), id.NewInstanceID()), instance.ErrInstanceNotFound)
}
