package launcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/catalog"
	"github.com/SerVas333/WindowsLauncher/backend/internal/domain/instance"
	"github.com/SerVas333/WindowsLauncher/backend/internal/shared/id"
)

func request(def catalog.Definition) Request {
	return Request{InstanceID: id.NewInstanceID(), Definition: def, Owner: "alice"}
}

func launched(req Request, tracking instance.Tracking) instance.Instance {
	return instance.Instance{
		ID:         req.InstanceID,
		Definition: req.Definition,
		Owner:      req.Owner,
		Kind:       req.Definition.Kind,
		Tracking:   tracking,
		State:      instance.StateRunning,
		LaunchedAt: time.Now(),
	}
}

func requireReason(t *testing.T, err error, reason Reason) *LaunchError {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrLaunchFailed)
	var launchErr *LaunchError
	require.ErrorAs(t, err, &launchErr)
	require.Equal(t, reason, launchErr.Reason, launchErr.Error())
	return launchErr
}
