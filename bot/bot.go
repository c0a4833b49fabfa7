// Package bot holds the cosmos bot context, the staged bootstrap that fills
// it and the message dispatch that runs on top of it.
package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/cosmos/config"
	"github.com/intrntsrfr/cosmos/database"
	"github.com/intrntsrfr/cosmos/discord"
	"github.com/intrntsrfr/cosmos/emotes"
	"github.com/intrntsrfr/cosmos/imageproc"
	"github.com/intrntsrfr/cosmos/kvstore"
	"github.com/intrntsrfr/cosmos/monitor"
	"github.com/intrntsrfr/cosmos/plugins"
	"github.com/intrntsrfr/cosmos/scheduler"
	"github.com/intrntsrfr/cosmos/server"
	"github.com/intrntsrfr/cosmos/theme"
	"github.com/intrntsrfr/cosmos/utils"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// GuildCache serves per-guild prefix overrides. The bool is false when the
// guild has no override.
type GuildCache interface {
	GuildPrefixes(guildID string) ([]string, bool)
}

// ProfileCache reports whether a user has prime.
type ProfileCache interface {
	IsPrime(userID string) bool
}

type Options struct {
	Version string
	Release string

	// ConfigPath is read when Config is nil.
	ConfigPath string
	Config     *config.Config
	// Logger replaces the logger built from the configuration.
	Logger *zap.Logger

	GuildCache   GuildCache
	ProfileCache ProfileCache
	Plugins      []plugins.Plugin

	// Registerer and Gatherer default to a registry private to the bot.
	// Gatherer may be left nil when Registerer is a *prometheus.Registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// Bot is the context shared by every subsystem. The bootstrap fills the
// fields in stage order, see StageReports.
type Bot struct {
	Time           *utils.Time
	Utilities      *utils.Utility
	Config         *config.Config
	Discord        *discord.Discord
	Log            *zap.Logger
	Monitor        *monitor.Handler
	DB             database.DB
	ChannelDB      *database.ChannelDB
	Cache          *kvstore.Store
	Emotes         *emotes.Registry
	Scheduler      *scheduler.Scheduler
	Plugins        *plugins.Registry
	Theme          *theme.Theme
	ImageProcessor *imageproc.Client
	Server         *server.Server

	// Both are nil unless a deployment installs them.
	ProfileCache ProfileCache
	GuildCache   GuildCache

	opts            Options
	version         string
	release         string
	caseInsensitive bool
	metrics         *metrics
	gatherer        prometheus.Gatherer

	mu          sync.Mutex
	initialized bool
	closed      bool
	stages      []server.StageReport
	ready       atomic.Bool
}

var ErrAlreadyInitialized = errors.New("bot already initialized")

// New builds a bot and runs the bootstrap. ctx bounds everything started
// during the bootstrap that keeps running afterwards.
func New(ctx context.Context, opts Options) (*Bot, error) {
	b := &Bot{
		opts:         opts,
		GuildCache:   opts.GuildCache,
		ProfileCache: opts.ProfileCache,
	}

	reg, gatherer := opts.Registerer, opts.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	}
	if gatherer == nil {
		g, ok := reg.(prometheus.Gatherer)
		if !ok {
			return nil, errors.New("a gatherer is required when the registerer cannot gather")
		}
		gatherer = g
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	b.metrics, b.gatherer = m, gatherer

	if err := b.Initialize(ctx, opts.Version, opts.Release); err != nil {
		if cerr := b.Close(); cerr != nil && b.Log != nil {
			b.Log.Error("teardown after failed bootstrap", zap.Error(cerr))
		}
		return nil, err
	}
	return b, nil
}

// Initialize runs every bootstrap stage once.
func (b *Bot) Initialize(ctx context.Context, version, release string) error {
	b.mu.Lock()
	if b.initialized {
		b.mu.Unlock()
		return ErrAlreadyInitialized
	}
	b.initialized = true
	b.mu.Unlock()

	b.version, b.release = version, release
	if err := b.runStages(ctx, b.defaultStages()); err != nil {
		return err
	}
	b.ready.Store(true)
	b.Log.Info("bootstrap complete", zap.Duration("took", b.Time.Uptime()))
	return nil
}

// Run opens the gateway and blocks until ctx is done, then tears the bot
// down.
func (b *Bot) Run(ctx context.Context) error {
	if !b.ready.Load() {
		return errors.New("bot is not initialized")
	}
	if err := b.Discord.Open(); err != nil {
		return errors.Join(fmt.Errorf("opening gateway: %w", err), b.Close())
	}
	b.Log.Info("gateway open", zap.Int("shards", len(b.Discord.Sessions())))

	<-ctx.Done()
	b.Log.Info("shutting down")
	return b.Close()
}

// Close stops every started subsystem in reverse bootstrap order.
func (b *Bot) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	b.ready.Store(false)

	var errs []error
	if b.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, b.Server.Shutdown(ctx))
		cancel()
	}
	if b.Scheduler != nil {
		b.Scheduler.Stop()
	}
	if b.Cache != nil {
		errs = append(errs, b.Cache.Close())
	}
	if b.DB != nil {
		errs = append(errs, b.DB.Close())
	}
	if b.Monitor != nil {
		b.Monitor.Flush(2 * time.Second)
	}
	if b.Discord != nil {
		errs = append(errs, b.Discord.Close())
	}
	return errors.Join(errs...)
}

// ReleaseTag is the tag the bootstrap derived from version and release.
func (b *Bot) ReleaseTag() string {
	return fmt.Sprintf("v%s-%s", b.version, b.release)
}

func (b *Bot) Ready() bool {
	return b.ready.Load()
}

func (b *Bot) Release() string {
	if b.Config == nil {
		return b.ReleaseTag()
	}
	return b.Config.Sentry.Release
}

func (b *Bot) Uptime() string {
	if b.Utilities == nil {
		return ""
	}
	return b.Utilities.Uptime()
}

// Since renders how long ago t was.
func (b *Bot) Since(t time.Time) string {
	if b.Utilities == nil {
		return t.String()
	}
	return b.Utilities.Since(t)
}

func (b *Bot) Sessions() []*discordgo.Session {
	if b.Discord == nil {
		return nil
	}
	return b.Discord.Sessions()
}

func (b *Bot) DefaultPrefixes() []string {
	return slices.Clone(b.Config.Cosmos.Prefixes)
}

func (b *Bot) Schedule(name, schedule string, fn func()) (string, error) {
	if b.Scheduler == nil {
		return "", errors.New("scheduler is not running")
	}
	return b.Scheduler.Add(name, schedule, fn)
}

// StageReports lists the bootstrap stages run so far.
func (b *Bot) StageReports() []server.StageReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.stages)
}

func (b *Bot) CommandInfo() []server.CommandInfo {
	if b.Plugins == nil {
		return nil
	}
	cmds := b.Plugins.Commands()
	out := make([]server.CommandInfo, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, server.CommandInfo{
			Name:        c.Name,
			Plugin:      c.Plugin(),
			Aliases:     c.Aliases,
			Description: c.Description,
			Inescapable: c.Inescapable,
			Prime:       c.Prime,
			Disabled:    b.Plugins.Disabled(c.Name),
		})
	}
	return out
}
