package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/dispatcher"
	"github.com/dynamicmaps/overlay/internal/host"
	"github.com/dynamicmaps/overlay/internal/logging"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/dynamicmaps/overlay/internal/session"
	"github.com/dynamicmaps/overlay/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScript(t *testing.T) {
	Logger = slog.Default()
	SlogManager = logging.NewSlogManager()

	w := world.NewMemory()
	cfg := config.DefaultSnapshot()
	cfg.HotZones.Interval = time.Hour
	sess, err := session.New(session.Options{
		Host:   host.NewRecorder(),
		World:  w,
		Source: mapdef.NewFileSource("../../internal/mapdef/testdata"),
		Config: cfg,
	})
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	d, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	sess.Register(d)
	session.RegisterWorld(d, w)
	registerLifecycleHandlers(d)

	script := `
# comment lines and blank lines are skipped

:VERSION:
:WORLD:SESSION: true
:WORLD:SPAWN: bear pmc -50 0 10 Bear
:MAP:LOAD: factory
:MAP:LOAD: labs
:MAP:SHOW:
:SLEEP: 1ms
:LEVEL:UP:
:BOGUS:
`
	var out bytes.Buffer
	require.NoError(t, runScript(d, strings.NewReader(script), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, `:VERSION: "dev"`, lines[0])
	assert.Equal(t, `:WORLD:SESSION: true`, lines[1])
	assert.Equal(t, `:WORLD:SPAWN: "bear"`, lines[2])
	assert.Equal(t, `:MAP:LOAD: "factory"`, lines[3])
	assert.True(t, strings.HasPrefix(lines[4], ":MAP:LOAD: error "), lines[4])
	assert.Equal(t, `:MAP:SHOW: "ok"`, lines[5])
	assert.Equal(t, `:SLEEP: "ok"`, lines[6])
	assert.Equal(t, `:LEVEL:UP: 1`, lines[7])
	assert.True(t, strings.HasPrefix(lines[8], ":BOGUS: error unknown command"), lines[8])

	assert.Equal(t, []string{"bear"}, sess.HotZones().Owned())
}

func TestMetricsWithoutOTel(t *testing.T) {
	OTelProvider = nil
	d, err := dispatcher.New(logging.NewDispatcherLogger(slog.Default()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	registerLifecycleHandlers(d)

	_, err = d.Dispatch(dispatcher.Event{Command: ":METRICS:"})
	assert.Error(t, err)
}

func TestLogCommand(t *testing.T) {
	var buf bytes.Buffer
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(&buf, "debug", nil)

	d, err := dispatcher.New(logging.NewDispatcherLogger(slog.Default()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	registerLifecycleHandlers(d)

	res, err := d.Dispatch(dispatcher.Event{Command: ":LOG:", Args: []string{"warn", "mission", "extraction", "closed"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="extraction closed"`)
	assert.Contains(t, buf.String(), "function=mission")

	_, err = d.Dispatch(dispatcher.Event{Command: ":LOG:", Args: []string{"info"}})
	assert.Error(t, err)
}
