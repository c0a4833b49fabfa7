package bot

import (
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/cosmos/failure"
	"github.com/intrntsrfr/cosmos/plugins"
	"go.uber.org/zap"
)

// Optional guild cache capabilities the dispatcher uses when present.
type (
	guildPrime interface {
		GuildPrime(guildID string) bool
	}
	guildDisabler interface {
		CommandDisabled(guildID, name string) bool
	}
)

func (b *Bot) readyHandler(s *discordgo.Session, r *discordgo.Ready) {
	b.Log.Info("logged in",
		zap.String("user", r.User.String()),
		zap.Int("shard", s.ShardID),
		zap.Int("guilds", len(r.Guilds)),
	)
	if err := b.Emotes.Load(s); err != nil {
		b.Log.Warn("some emote guilds failed to load", zap.Error(err))
	}
}

func (b *Bot) disconnectHandler(s *discordgo.Session, _ *discordgo.Disconnect) {
	b.Log.Info("disconnected", zap.Int("shard", s.ShardID))
}

func (b *Bot) messageCreateHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || !b.ready.Load() {
		return
	}
	defer b.Monitor.Recover()
	b.dispatch(s, m.Message)
}

// matchPrefix returns the longest prefix content starts with.
func matchPrefix(content string, prefixes []string) (string, bool) {
	best := ""
	for _, p := range prefixes {
		if strings.HasPrefix(content, p) && len(p) > len(best) {
			best = p
		}
	}
	return best, best != ""
}

func (b *Bot) dispatch(s *discordgo.Session, m *discordgo.Message) {
	prefixes, err := b.Prefixes(m)
	if err != nil {
		b.Monitor.Capture(err, map[string]string{"guild": m.GuildID, "stage": "prefixes"})
		return
	}
	prefix, ok := matchPrefix(m.Content, prefixes)
	if !ok {
		return
	}
	args := strings.Fields(strings.TrimPrefix(m.Content, prefix))
	if len(args) == 0 {
		return
	}
	cmd, ok := b.Plugins.Command(args[0])
	if !ok {
		return
	}

	ctx := &plugins.Context{
		Session:  s,
		Message:  m,
		Prefix:   prefix,
		Prefixes: prefixes,
		Args:     args[1:],
		Command:  cmd,
		Registry: b.Plugins,
		Theme:    b.Theme,
		Log:      b.Log.Named("command").With(zap.String("command", cmd.Name)),
		Started:  time.Now(),
	}

	if err := b.check(ctx); err != nil {
		b.metrics.countCommand(cmd.Name, "check_failed")
		b.reply(ctx, err)
		return
	}

	err = cmd.Run(ctx)
	switch {
	case err == nil:
		b.metrics.countCommand(cmd.Name, "ok")
	case failure.KindOf(err).CheckFailure():
		b.metrics.countCommand(cmd.Name, "check_failed")
		b.reply(ctx, err)
	default:
		b.metrics.countCommand(cmd.Name, "error")
		b.Monitor.Capture(err, map[string]string{
			"command": cmd.Name,
			"guild":   m.GuildID,
			"channel": m.ChannelID,
		})
		b.reply(ctx, failure.Wrap(failure.Degraded, err, "Something went wrong running that command."))
	}
}

// check runs the built-in checks, then the command's own.
func (b *Bot) check(ctx *plugins.Context) error {
	m, cmd := ctx.Message, ctx.Command

	if b.Config.Cosmos.Disabled && !slices.Contains(b.Config.Cosmos.Owners, m.Author.ID) {
		return failure.New(failure.BotDisabled, "")
	}

	if !cmd.Inescapable {
		if b.Plugins.Disabled(cmd.Name) {
			return failure.New(failure.FunctionDisabled, "")
		}
		if gd, ok := b.GuildCache.(guildDisabler); ok && ctx.InGuild() && gd.CommandDisabled(m.GuildID, cmd.Name) {
			return failure.New(failure.FunctionDisabled, "")
		}
	}

	if cmd.GuildOnly && !ctx.InGuild() {
		return failure.New(failure.FunctionDisabled, "This command can only be used in a server.")
	}

	if cmd.Prime {
		if err := b.checkPrime(m); err != nil {
			return err
		}
	}

	for _, c := range cmd.Checks {
		if err := c(ctx); err != nil {
			return err
		}
	}
	return nil
}

// checkPrime passes when no prime gating is installed, when the user is
// prime or when the guild is.
func (b *Bot) checkPrime(m *discordgo.Message) error {
	gp, guildGating := b.GuildCache.(guildPrime)
	guildGating = guildGating && m.GuildID != ""
	if b.ProfileCache == nil && !guildGating {
		return nil
	}
	if b.ProfileCache != nil && b.ProfileCache.IsPrime(m.Author.ID) {
		return nil
	}
	if guildGating && gp.GuildPrime(m.GuildID) {
		return nil
	}
	if b.ProfileCache != nil {
		return failure.New(failure.UserNotPrime, "")
	}
	return failure.New(failure.GuildNotPrime, "")
}

func (b *Bot) reply(ctx *plugins.Context, err error) {
	var e *discordgo.MessageEmbed
	if failure.KindOf(err).CheckFailure() {
		e = b.Theme.WarnEmbed("Not allowed", failure.Message(err))
	} else {
		e = b.Theme.ErrorEmbed("Error", failure.Message(err))
	}
	if rerr := ctx.ReplyEmbed(e); rerr != nil {
		ctx.Log.Warn("failed to send reply", zap.Error(rerr))
	}
}
