package plugins

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/cosmos/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeHost struct {
	scheduled []string
	prefixes  []string
	sessions  []*discordgo.Session
}

func (h *fakeHost) Sessions() []*discordgo.Session { return h.sessions }
func (h *fakeHost) Release() string                { return "cosmos@test" }
func (h *fakeHost) Uptime() string                 { return "5 minutes" }
func (h *fakeHost) Since(time.Time) string         { return "8 years ago" }
func (h *fakeHost) DefaultPrefixes() []string      { return h.prefixes }
func (h *fakeHost) Schedule(name, schedule string, fn func()) (string, error) {
	h.scheduled = append(h.scheduled, name+"|"+schedule)
	return name, nil
}

type testPlugin struct {
	name string
	cmds []*Command
	err  error
}

func (p *testPlugin) Name() string { return p.name }
func (p *testPlugin) Setup(r *Registry) error {
	if p.err != nil {
		return p.err
	}
	return r.AddCommands(p.name, p.cmds...)
}

func noop(*Context) error { return nil }

func newRegistry(t *testing.T, opts Options) (*Registry, *fakeHost) {
	t.Helper()
	h := &fakeHost{prefixes: []string{"?"}}
	r, err := NewRegistry(zap.NewNop(), h, opts)
	require.NoError(t, err)
	return r, h
}

func TestNewRegistry(t *testing.T) {
	_, err := NewRegistry(nil, &fakeHost{}, Options{})
	assert.Error(t, err)
	_, err = NewRegistry(zap.NewNop(), nil, Options{})
	assert.Error(t, err)
}

func TestLoadAll(t *testing.T) {
	r, h := newRegistry(t, Options{CaseInsensitive: true})
	r.Register(NewCore(), &testPlugin{name: "fun", cmds: []*Command{
		{Name: "Roll", Aliases: []string{"dice"}, Run: noop},
	}})
	require.NoError(t, r.LoadAll())
	require.NoError(t, r.LoadAll())

	assert.Equal(t, []string{"core", "fun"}, r.Plugins())
	assert.Equal(t, []string{"status rotation|@every 15s"}, h.scheduled)

	help, ok := r.Command("HELP")
	require.True(t, ok)
	assert.True(t, help.Inescapable)
	assert.Equal(t, "core", help.Plugin())

	roll, ok := r.Command("DICE")
	require.True(t, ok)
	assert.Equal(t, "Roll", roll.Name)

	cmds := r.Commands()
	require.Len(t, cmds, 6)
	assert.Equal(t, "about", cmds[0].Name)
	assert.Equal(t, "created", cmds[1].Name)
	assert.Equal(t, "Roll", cmds[5].Name)
}

func TestLoadAllFailure(t *testing.T) {
	r, _ := newRegistry(t, Options{})
	r.Register(&testPlugin{name: "broken", err: errors.New("no config")})
	err := r.LoadAll()
	assert.ErrorContains(t, err, "broken")
	assert.Empty(t, r.Plugins())
}

func TestCaseSensitive(t *testing.T) {
	r, _ := newRegistry(t, Options{})
	require.NoError(t, r.AddCommands("x", &Command{Name: "ping", Run: noop}))
	_, ok := r.Command("PING")
	assert.False(t, ok)
	_, ok = r.Command("ping")
	assert.True(t, ok)
}

func TestAddCommandsRejects(t *testing.T) {
	r, _ := newRegistry(t, Options{CaseInsensitive: true})
	require.NoError(t, r.AddCommands("x", &Command{Name: "ping", Aliases: []string{"p"}, Run: noop}))

	tests := []struct {
		name string
		cmd  *Command
	}{
		{"no name", &Command{Run: noop}},
		{"no run", &Command{Name: "pong"}},
		{"duplicate name", &Command{Name: "PING", Run: noop}},
		{"alias collides with command", &Command{Name: "pong", Aliases: []string{"ping"}, Run: noop}},
		{"name collides with alias", &Command{Name: "p", Run: noop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, r.AddCommands("y", tt.cmd))
		})
	}
}

func TestDisableEnableRemove(t *testing.T) {
	r, _ := newRegistry(t, Options{CaseInsensitive: true})
	r.Register(NewCore())
	require.NoError(t, r.LoadAll())

	assert.ErrorIs(t, r.Disable("help"), ErrInescapable)
	assert.ErrorIs(t, r.Disable("h"), ErrInescapable)
	assert.ErrorIs(t, r.Remove("help"), ErrInescapable)
	assert.ErrorIs(t, r.Disable("nope"), ErrCommandNotFound)
	assert.ErrorIs(t, r.Enable("nope"), ErrCommandNotFound)

	require.NoError(t, r.Disable("info"))
	assert.True(t, r.Disabled("about"))
	require.NoError(t, r.Enable("about"))
	assert.False(t, r.Disabled("about"))

	require.NoError(t, r.Remove("prefixes"))
	_, ok := r.Command("prefix")
	assert.False(t, ok)
	_, ok = r.Command("prefixes")
	assert.False(t, ok)
	assert.ErrorIs(t, r.Remove("prefix"), ErrCommandNotFound)
}

func TestStatusText(t *testing.T) {
	c := NewCore()
	h := &fakeHost{prefixes: []string{"?"}}
	assert.Equal(t, "?help", c.StatusText(h, 0))
	assert.Equal(t, "up 5 minutes", c.StatusText(h, 1))
	assert.Equal(t, "release cosmos@test", c.StatusText(h, 2))
	assert.Equal(t, "?help", c.StatusText(h, 3))
	assert.Equal(t, "!help", c.StatusText(&fakeHost{}, 0))
}

func TestOverviewSkipsDisabled(t *testing.T) {
	r, _ := newRegistry(t, Options{})
	c := NewCore()
	r.Register(c)
	require.NoError(t, r.LoadAll())
	require.NoError(t, r.Disable("ping"))

	e := c.overviewEmbed(theme.Default(), "!", r)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "core", e.Fields[0].Name)
	assert.NotContains(t, e.Fields[0].Value, "`ping`")
	assert.Contains(t, e.Fields[0].Value, "`help`")
}

func TestAddCommandsIsAtomic(t *testing.T) {
	r, _ := newRegistry(t, Options{})
	require.NoError(t, r.AddCommands("a", &Command{Name: "x", Run: noop}))

	err := r.AddCommands("b", &Command{Name: "y", Run: noop}, &Command{Name: "x", Run: noop})
	assert.ErrorContains(t, err, `command "x" already registered`)
	_, ok := r.Command("y")
	assert.False(t, ok)

	err = r.AddCommands("b", &Command{Name: "z", Run: noop}, &Command{Name: "w", Aliases: []string{"z"}, Run: noop})
	assert.Error(t, err)
	_, ok = r.Command("z")
	assert.False(t, ok)

	names := make([]string, 0)
	for _, c := range r.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"x"}, names)
}

func TestCreatedText(t *testing.T) {
	h := &fakeHost{}
	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{"163454407999094786", "163454407999094786 was created 8 years ago (Sun, 27 Mar 2016 01:09:27 UTC).", false},
		{"<@163454407999094786>", "163454407999094786 was created 8 years ago (Sun, 27 Mar 2016 01:09:27 UTC).", false},
		{"<@!163454407999094786>", "163454407999094786 was created 8 years ago (Sun, 27 Mar 2016 01:09:27 UTC).", false},
		{"<#163454407999094786>", "163454407999094786 was created 8 years ago (Sun, 27 Mar 2016 01:09:27 UTC).", false},
		{"not an id", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := CreatedText(h, tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRotateStatusLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := discordgo.New("Bot test-token")
	require.NoError(t, err)
	h := &fakeHost{prefixes: []string{"?"}, sessions: []*discordgo.Session{s}}

	c := NewCore()
	c.rotateStatus(h, zap.New(core))

	failed := logs.FilterMessage("status update failed")
	require.Equal(t, 1, failed.Len())
	assert.Equal(t, zapcore.DebugLevel, failed.All()[0].Level)
	assert.Equal(t, uint64(1), c.tick.Load())
}
