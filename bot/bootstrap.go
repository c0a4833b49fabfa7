package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/intrntsrfr/cosmos/config"
	"github.com/intrntsrfr/cosmos/database"
	"github.com/intrntsrfr/cosmos/discord"
	"github.com/intrntsrfr/cosmos/emotes"
	"github.com/intrntsrfr/cosmos/failure"
	"github.com/intrntsrfr/cosmos/imageproc"
	"github.com/intrntsrfr/cosmos/kvstore"
	"github.com/intrntsrfr/cosmos/logger"
	"github.com/intrntsrfr/cosmos/monitor"
	"github.com/intrntsrfr/cosmos/plugins"
	"github.com/intrntsrfr/cosmos/scheduler"
	"github.com/intrntsrfr/cosmos/server"
	"github.com/intrntsrfr/cosmos/theme"
	"github.com/intrntsrfr/cosmos/utils"
	"go.uber.org/zap"
)

// ErrStageOrder is returned when a stage runs before a field it needs has
// been provided.
var ErrStageOrder = errors.New("stage run out of order")

// Fields a stage can need or provide.
const (
	fieldTime      = "time"
	fieldUtilities = "utilities"
	fieldConfig    = "config"
	fieldDiscord   = "discord"
	fieldLog       = "log"
	fieldMonitor   = "monitor"
	fieldDB        = "db"
	fieldCache     = "cache"
	fieldEmotes    = "emotes"
	fieldScheduler = "scheduler"
	fieldPlugins   = "plugins"
	fieldTheme     = "theme"
	fieldImages    = "image processor"
	fieldMisc      = "misc"
	fieldServer    = "server"
)

type stage struct {
	name     string
	needs    []string
	provides string
	run      func(ctx context.Context) error
}

func (b *Bot) defaultStages() []stage {
	return []stage{
		{name: "time", provides: fieldTime, run: b.initTime},
		{name: "utilities", needs: []string{fieldTime}, provides: fieldUtilities, run: b.initUtilities},
		{name: "config", provides: fieldConfig, run: b.initConfig},
		{name: "framework", needs: []string{fieldConfig}, provides: fieldDiscord, run: b.initDiscord},
		{name: "logger", needs: []string{fieldConfig}, provides: fieldLog, run: b.initLogger},
		{name: "monitor", needs: []string{fieldLog, fieldConfig}, provides: fieldMonitor, run: b.initMonitor},
		{name: "database", needs: []string{fieldLog, fieldConfig, fieldDiscord}, provides: fieldDB, run: b.initDatabase},
		{name: "cache", needs: []string{fieldLog, fieldConfig}, provides: fieldCache, run: b.initCache},
		{name: "emotes", needs: []string{fieldLog, fieldConfig}, provides: fieldEmotes, run: b.initEmotes},
		{name: "scheduler", needs: []string{fieldLog}, provides: fieldScheduler, run: b.initScheduler},
		{name: "plugins", needs: []string{fieldLog, fieldConfig, fieldUtilities, fieldScheduler}, provides: fieldPlugins, run: b.initPlugins},
		{name: "theme", needs: []string{fieldLog, fieldConfig}, provides: fieldTheme, run: b.initTheme},
		{name: "image processor", needs: []string{fieldConfig}, provides: fieldImages, run: b.initImageProcessor},
		{name: "misc", needs: []string{fieldPlugins}, provides: fieldMisc, run: b.initMisc},
		{name: "server", needs: []string{fieldLog, fieldConfig, fieldPlugins}, provides: fieldServer, run: b.initServer},
	}
}

// runStages runs stages in order and records how long each took. Any
// failure aborts the run as a failure.Fatal.
func (b *Bot) runStages(ctx context.Context, stages []stage) error {
	provided := make(map[string]bool, len(stages))
	logged := 0

	for i, st := range stages {
		for _, need := range st.needs {
			if !provided[need] {
				return failure.Wrap(failure.Fatal,
					fmt.Errorf("%w: %s needs %s", ErrStageOrder, st.name, need),
					"bootstrap failed")
			}
		}

		clock := b.Time
		if clock == nil {
			clock = utils.NewTime()
		}
		took, err := clock.Measure(func() error { return st.run(ctx) })

		b.mu.Lock()
		b.stages = append(b.stages, server.StageReport{
			Index:    i + 1,
			Name:     st.name,
			Provides: st.provides,
			Duration: took,
		})
		reports := b.stages
		b.mu.Unlock()
		b.metrics.observeStage(st.name, took.Seconds())

		// stages before the logger are logged once it exists
		if b.Log != nil {
			for ; logged < len(reports); logged++ {
				r := reports[logged]
				b.Log.Info("stage complete", zap.Int("stage", r.Index), zap.String("name", r.Name), zap.Duration("took", r.Duration))
			}
		}

		if err != nil {
			if b.Log != nil {
				b.Log.Error("stage failed", zap.String("name", st.name), zap.Error(err))
			}
			return failure.Wrap(failure.Fatal, err, "stage "+st.name+" failed")
		}
		provided[st.provides] = true
	}
	return nil
}

func (b *Bot) initTime(context.Context) error {
	b.Time = utils.NewTime()
	return nil
}

func (b *Bot) initUtilities(context.Context) error {
	b.Utilities = utils.New(b.Time)
	return nil
}

func (b *Bot) initConfig(context.Context) error {
	cfg := b.opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(b.opts.ConfigPath); err != nil {
			return err
		}
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	cfg.SetRelease(b.ReleaseTag())
	b.Config = cfg
	return nil
}

func (b *Bot) initDiscord(context.Context) error {
	d, err := discord.New(b.Config.Cosmos.Token, b.Config.Cosmos.Shards)
	if err != nil {
		return err
	}
	b.caseInsensitive = true
	d.AddHandler(b.readyHandler)
	d.AddHandler(b.disconnectHandler)
	d.AddHandler(b.messageCreateHandler)
	b.Discord = d
	return nil
}

func (b *Bot) initLogger(context.Context) error {
	l := b.opts.Logger
	if l == nil {
		var err error
		if l, err = logger.New(b.Config.Logging); err != nil {
			return err
		}
	}
	b.Log = logger.WithIdentity(l, b.Config.Cosmos.Name, b.Config.Sentry.Release)
	return nil
}

func (b *Bot) initMonitor(context.Context) error {
	h, err := monitor.New(b.Log)
	if err != nil {
		return err
	}
	b.Monitor = h
	if err := h.Init(b.Config.Sentry.Raw); err != nil {
		if failure.Is(err, failure.BadCredential) {
			b.Log.Warn("invalid sentry DSN provided", zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}

func (b *Bot) initDatabase(context.Context) error {
	db, err := database.Open(b.Config.DB, b.Log)
	if err != nil {
		return err
	}
	b.DB = db
	cdb, err := database.NewChannelDB(b.Discord.Sess, b.Config.DB.ChannelID)
	if err != nil {
		return err
	}
	b.ChannelDB = cdb
	return nil
}

func (b *Bot) initCache(context.Context) error {
	s, err := kvstore.NewStore(b.Config.Cache, b.Log)
	if err != nil {
		return err
	}
	b.Cache = s
	return nil
}

func (b *Bot) initEmotes(context.Context) error {
	r, err := emotes.New(b.Log, b.Config.Emotes)
	if err != nil {
		return err
	}
	b.Emotes = r
	return nil
}

func (b *Bot) initScheduler(context.Context) error {
	s, err := scheduler.New(b.Log)
	if err != nil {
		return err
	}
	s.Start()
	b.Scheduler = s
	return nil
}

func (b *Bot) initPlugins(context.Context) error {
	r, err := plugins.NewRegistry(b.Log, b, plugins.Options{CaseInsensitive: b.caseInsensitive})
	if err != nil {
		return err
	}
	b.Plugins = r
	r.Register(plugins.NewCore())
	r.Register(b.opts.Plugins...)
	return r.LoadAll()
}

func (b *Bot) initTheme(context.Context) error {
	t, err := theme.Load(b.Config.Theme, b.Log)
	if err != nil {
		return err
	}
	b.Theme = t
	return nil
}

func (b *Bot) initImageProcessor(ctx context.Context) error {
	c, err := imageproc.New(ctx, b.Config.ImageProcessor)
	if err != nil {
		return err
	}
	b.ImageProcessor = c
	return nil
}

// initMisc checks the help command cannot be escaped. The flag is set when
// the command is registered.
func (b *Bot) initMisc(context.Context) error {
	help, ok := b.Plugins.Command("help")
	if !ok {
		return errors.New("help command is not registered")
	}
	if !help.Inescapable {
		return errors.New("help command must be inescapable")
	}
	return nil
}

func (b *Bot) initServer(ctx context.Context) error {
	s, err := server.New(b.Config.Server, b.Log, b, b.gatherer)
	if err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	b.Server = s
	return nil
}
