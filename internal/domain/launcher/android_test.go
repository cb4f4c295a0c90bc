package launcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/android"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/android/androidtest"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window"
	"github.com/SerVas333/WindowsLauncher/backend/internal/providers/window/windowtest"
)

func mailDefinition() catalog.Definition {
	return catalog.Definition{ID: "mail", Name: "Mail", Kind: catalog.KindAndroid, Target: "com.example.mail"}
}

func TestAndroidLaunchFailsFastWhenNotAvailable(t *testing.T) {
	for _, status := range []android.Status{android.StatusDisabled, android.StatusInitializing, android.StatusSuspended, android.StatusError} {
		t.Run(string(status), func(t *testing.T) {
			bridge := androidtest.New(status)
			a := NewAndroid(bridge, window.NewManager(nil, nil), nil)

			_, err := a.Launch(context.Background(), request(mailDefinition()))
			launchErr := requireReason(t, err, ReasonSubsystemUnavailable)
			assert.ErrorIs(t, err, ErrSubsystemUnavailable)
			assert.Equal(t, status, launchErr.Status)
			assert.Contains(t, err.Error(), string(status))
			assert.Empty(t, bridge.Started())
		})
	}
}

func TestAndroidUnknownPackage(t *testing.T) {
	bridge := androidtest.New(android.StatusAvailable)
	bridge.Known("com.example.other")
	a := NewAndroid(bridge, window.NewManager(nil, nil), nil)

	_, err := a.Launch(context.Background(), request(mailDefinition()))
	requireReason(t, err, ReasonTargetNotFound)
}

func TestAndroidLifecycle(t *testing.T) {
	bridge := androidtest.New(android.StatusAvailable)
	backend := windowtest.New()
	a := NewAndroid(bridge, window.NewManager(backend, nil), nil)

	req := request(mailDefinition())
	tracking, err := a.Launch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "com.example.mail", tracking.Package)
	assert.Equal(t, "*Mail*", tracking.TitlePattern)
	inst := launched(req, tracking)

	assert.True(t, a.IsStillRunning(context.Background(), inst))
	assert.False(t, a.RequestGracefulClose(context.Background(), inst), "no window to close")

	backend.Add(window.Ref{ID: "0x50", Title: "Mail"})
	assert.True(t, a.RequestGracefulClose(context.Background(), inst))
	assert.Equal(t, []string{"0x50"}, backend.Closed())

	assert.True(t, a.ForceClose(context.Background(), inst))
	assert.Equal(t, []string{"com.example.mail"}, bridge.Stopped())
	assert.False(t, a.IsStillRunning(context.Background(), inst))
	assert.True(t, a.RequestGracefulClose(context.Background(), inst), "already gone")
}
