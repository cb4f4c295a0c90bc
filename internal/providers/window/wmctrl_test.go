package window

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wmctrlOutput = `0x01e00003 -1 1520   xfce4-panel.Xfce4-panel  host xfce4-panel
0x03c00003  0 12345  gnome-terminal-server.Gnome-terminal  host  user@host: ~/src
0x04a00007  0 2211   chromium.Chromium     host Intranet / Home - Chromium
0x05000001  1 0      N/A  host
`

func TestParseWmctrl(t *testing.T) {
	refs := parseWmctrl([]byte(wmctrlOutput))
	require.Len(t, refs, 3)

	assert.Equal(t, Ref{ID: "0x03c00003", PID: 12345, Class: "gnome-terminal-server.Gnome-terminal", Title: "user@host: ~/src", Source: SourceOS}, refs[0])
	assert.Equal(t, "Intranet / Home - Chromium", refs[1].Title)
	assert.Equal(t, 2211, refs[1].PID)
	assert.Equal(t, "", refs[2].Title)
}

type recordedCall struct {
	name string
	args []string
}

func TestWmctrlBackendCommands(t *testing.T) {
	var calls []recordedCall
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, recordedCall{name: name, args: args})
		if name == "xkill" {
			return nil, errors.New("xkill: not found")
		}
		return []byte(wmctrlOutput), nil
	}
	b := NewWmctrlBackend("/usr/bin/wmctrl", run, nil)
	ctx := context.Background()

	refs, err := b.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, refs)

	require.NoError(t, b.Activate(ctx, refs[0]))
	require.NoError(t, b.Close(ctx, refs[0]))
	// xkill fails and there is no pid to fall back on
	assert.Error(t, b.Kill(ctx, Ref{ID: "0x9"}))

	var got []string
	for _, c := range calls {
		got = append(got, c.name+" "+strings.Join(c.args, " "))
	}
	assert.Equal(t, []string{
		"/usr/bin/wmctrl -lpx",
		"/usr/bin/wmctrl -ia 0x03c00003",
		"/usr/bin/wmctrl -ic 0x03c00003",
		"xkill -id 0x9",
	}, got)
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend("none", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "none", b.Name())

	b, err = NewBackend("wmctrl", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "wmctrl", b.Name())

	t.Setenv("DISPLAY", "")
	b, err = NewBackend("auto", "wmctrl", nil)
	require.NoError(t, err)
	assert.Equal(t, "none", b.Name())

	_, err = NewBackend("x11", "", nil)
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("", "anything"))
	assert.True(t, Match("*chromium", "Intranet / Home - Chromium"))
	assert.True(t, Match("report.xlsx*", "Report.xlsx - Excel"))
	assert.False(t, Match("*word*", "Report.xlsx - Excel"))
}
