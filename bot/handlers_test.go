package bot

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/cosmos/config"
	"github.com/intrntsrfr/cosmos/failure"
	"github.com/intrntsrfr/cosmos/monitor"
	"github.com/intrntsrfr/cosmos/plugins"
	"github.com/intrntsrfr/cosmos/theme"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recorder stands in for the discord REST API and keeps every request body.
type recorder struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (r *recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	body := map[string]any{}
	if req.Body != nil {
		_ = json.NewDecoder(req.Body).Decode(&body)
	}
	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	r.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"id":"99","channel_id":"c1"}`)),
		Request:    req,
	}, nil
}

func (r *recorder) sent() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any{}, r.bodies...)
}

func embedDescription(body map[string]any) string {
	embeds, _ := body["embeds"].([]any)
	if len(embeds) == 0 {
		return ""
	}
	e, _ := embeds[0].(map[string]any)
	d, _ := e["description"].(string)
	return d
}

type profiles map[string]bool

func (p profiles) IsPrime(uid string) bool {
	return p[uid]
}

type testCommands struct{}

func (testCommands) Name() string { return "test" }
func (testCommands) Setup(r *plugins.Registry) error {
	return r.AddCommands("test",
		&plugins.Command{Name: "echo", Run: func(ctx *plugins.Context) error {
			return ctx.Reply(strings.Join(ctx.Args, " "))
		}},
		&plugins.Command{Name: "fancy", Prime: true, Run: func(ctx *plugins.Context) error {
			return ctx.Reply("fancy")
		}},
		&plugins.Command{Name: "server", GuildOnly: true, Run: func(ctx *plugins.Context) error {
			return ctx.Reply("in a server")
		}},
		&plugins.Command{Name: "explode", Run: func(*plugins.Context) error {
			return errors.New("database on fire")
		}},
		&plugins.Command{Name: "gate", Run: func(*plugins.Context) error {
			return failure.New(failure.NotPrime, "")
		}},
		&plugins.Command{Name: "checked", Checks: []plugins.CheckFunc{
			func(*plugins.Context) error { return failure.New(failure.FunctionDisabled, "custom check said no") },
		}, Run: func(ctx *plugins.Context) error {
			return ctx.Reply("unreachable")
		}},
	)
}

func dispatchBot(t *testing.T) (*Bot, *discordgo.Session, *recorder, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	cfg := config.Default()
	cfg.Cosmos.Prefixes = []string{"!"}
	cfg.Cosmos.Owners = []string{"owner"}

	mon, err := monitor.New(log)
	require.NoError(t, err)
	m, err := newMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	b := &Bot{Config: cfg, Log: log, Monitor: mon, Theme: theme.Default(), metrics: m}
	r, err := plugins.NewRegistry(log, b, plugins.Options{CaseInsensitive: true})
	require.NoError(t, err)
	r.Register(testCommands{})
	require.NoError(t, r.LoadAll())
	b.Plugins = r
	b.ready.Store(true)

	s, err := discordgo.New("Bot test-token")
	require.NoError(t, err)
	rec := &recorder{}
	s.Client = &http.Client{Transport: rec}
	return b, s, rec, logs
}

func message(content, author, guild string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "1",
		ChannelID: "c1",
		GuildID:   guild,
		Content:   content,
		Author:    &discordgo.User{ID: author},
	}
}

func TestDispatch(t *testing.T) {
	b, s, rec, _ := dispatchBot(t)
	b.dispatch(s, message("!echo hello there", "u1", ""))
	b.dispatch(s, message("!ECHO loud", "u1", ""))
	b.dispatch(s, message("echo no prefix", "u1", ""))
	b.dispatch(s, message("!nothing", "u1", ""))
	b.dispatch(s, message("!", "u1", ""))

	sent := rec.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "hello there", sent[0]["content"])
	assert.Equal(t, "loud", sent[1]["content"])
}

func TestDispatchChecks(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(b *Bot)
		msg     *discordgo.Message
		reply   string
		isEmbed bool
	}{
		{
			name:    "disabled command",
			setup:   func(b *Bot) { require.NoError(t, b.Plugins.Disable("echo")) },
			msg:     message("!echo hi", "u1", ""),
			reply:   "This function is disabled here.",
			isEmbed: true,
		},
		{
			name:    "bot disabled for users",
			setup:   func(b *Bot) { b.Config.Cosmos.Disabled = true },
			msg:     message("!echo hi", "u1", ""),
			reply:   "Cosmos is currently disabled.",
			isEmbed: true,
		},
		{
			name:  "bot disabled except owners",
			setup: func(b *Bot) { b.Config.Cosmos.Disabled = true },
			msg:   message("!echo hi", "owner", ""),
			reply: "hi",
		},
		{
			name:  "prime without gating",
			msg:   message("!fancy", "u1", ""),
			reply: "fancy",
		},
		{
			name:    "prime gated user",
			setup:   func(b *Bot) { b.ProfileCache = profiles{} },
			msg:     message("!fancy", "u1", ""),
			reply:   "Click here to get prime and unlock all features including this.",
			isEmbed: true,
		},
		{
			name:  "prime user",
			setup: func(b *Bot) { b.ProfileCache = profiles{"u1": true} },
			msg:   message("!fancy", "u1", ""),
			reply: "fancy",
		},
		{
			name:    "guild only in direct message",
			msg:     message("!server", "u1", ""),
			reply:   "This command can only be used in a server.",
			isEmbed: true,
		},
		{
			name:  "guild only in guild",
			setup: func(b *Bot) { b.GuildCache = guildPrefixes{} },
			msg:   message("!server", "u1", "g1"),
			reply: "in a server",
		},
		{
			name:    "command check",
			msg:     message("!checked", "u1", ""),
			reply:   "custom check said no",
			isEmbed: true,
		},
		{
			name:    "check failure returned by command",
			msg:     message("!gate", "u1", ""),
			reply:   "Click here to get prime and unlock all features including this.",
			isEmbed: true,
		},
		{
			name:    "command error",
			msg:     message("!explode", "u1", ""),
			reply:   "Something went wrong running that command.",
			isEmbed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, s, rec, _ := dispatchBot(t)
			if tt.setup != nil {
				tt.setup(b)
			}
			b.dispatch(s, tt.msg)

			sent := rec.sent()
			require.Len(t, sent, 1)
			if tt.isEmbed {
				assert.Equal(t, tt.reply, embedDescription(sent[0]))
			} else {
				assert.Equal(t, tt.reply, sent[0]["content"])
			}
		})
	}
}

func TestDispatchCapturesErrors(t *testing.T) {
	b, s, _, logs := dispatchBot(t)
	b.dispatch(s, message("!explode", "u1", "g1"))

	captured := logs.FilterMessage("captured error")
	require.Equal(t, 1, captured.Len())
	assert.Contains(t, captured.All()[0].ContextMap()["error"], "guild cache extension point")
}

func TestDispatchCommandErrorCaptured(t *testing.T) {
	b, s, _, logs := dispatchBot(t)
	b.dispatch(s, message("!explode", "u1", ""))

	captured := logs.FilterMessage("captured error")
	require.Equal(t, 1, captured.Len())
	assert.Equal(t, "database on fire", captured.All()[0].ContextMap()["error"])
}

func TestMessageCreateIgnoresBots(t *testing.T) {
	b, s, rec, _ := dispatchBot(t)

	m := message("!echo hi", "u2", "")
	m.Author.Bot = true
	b.messageCreateHandler(s, &discordgo.MessageCreate{Message: m})

	b.ready.Store(false)
	b.messageCreateHandler(s, &discordgo.MessageCreate{Message: message("!echo hi", "u1", "")})

	assert.Empty(t, rec.sent())
}

func TestMessageCreateRecovers(t *testing.T) {
	b, s, _, logs := dispatchBot(t)
	require.NoError(t, b.Plugins.AddCommands("test", &plugins.Command{Name: "panic", Run: func(*plugins.Context) error {
		panic("boom")
	}}))

	assert.NotPanics(t, func() {
		b.messageCreateHandler(s, &discordgo.MessageCreate{Message: message("!panic", "u1", "")})
	})
	assert.Equal(t, 1, logs.FilterMessage("recovered from panic").Len())
}
