package plugins

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/cosmos/theme"
	"github.com/intrntsrfr/cosmos/utils"
	"go.uber.org/zap"
)

// Core is the built-in plugin every bot loads. Its help command is always
// inescapable.
type Core struct {
	tick atomic.Uint64
}

func NewCore() *Core {
	return &Core{}
}

func (c *Core) Name() string {
	return "core"
}

func (c *Core) Setup(r *Registry) error {
	err := r.AddCommands(c.Name(),
		&Command{
			Name:        "help",
			Aliases:     []string{"h"},
			Description: "Shows all commands, or details about a single command.",
			Usage:       "help [command]",
			Inescapable: true,
			Run:         c.help,
		},
		&Command{
			Name:        "ping",
			Description: "Checks the gateway latency.",
			Usage:       "ping",
			Run:         c.ping,
		},
		&Command{
			Name:        "prefix",
			Aliases:     []string{"prefixes"},
			Description: "Shows the prefixes usable here.",
			Usage:       "prefix",
			Run:         c.prefix,
		},
		&Command{
			Name:        "created",
			Aliases:     []string{"age"},
			Description: "Shows when a user, channel or other ID was created.",
			Usage:       "created [id, mention or channel]",
			Run:         c.created,
		},
		&Command{
			Name:        "about",
			Aliases:     []string{"info"},
			Description: "Shows information about the bot.",
			Usage:       "about",
			Run:         c.about,
		},
	)
	if err != nil {
		return err
	}

	host, log := r.Host(), r.Log()
	_, err = host.Schedule("status rotation", "@every 15s", func() {
		c.rotateStatus(host, log)
	})
	return err
}

// StatusText returns the presence shown on the given rotation tick.
func (c *Core) StatusText(host Host, tick uint64) string {
	prefix := "!"
	if ps := host.DefaultPrefixes(); len(ps) > 0 {
		prefix = ps[0]
	}
	switch tick % 3 {
	case 0:
		return prefix + "help"
	case 1:
		return "up " + host.Uptime()
	default:
		return "release " + host.Release()
	}
}

func (c *Core) rotateStatus(host Host, log *zap.Logger) {
	text := c.StatusText(host, c.tick.Add(1)-1)
	for _, s := range host.Sessions() {
		if err := s.UpdateGameStatus(0, text); err != nil {
			log.Debug("status update failed", zap.Int("shard", s.ShardID), zap.Error(err))
		}
	}
}

func (c *Core) help(ctx *Context) error {
	th := ctx.Theme
	if th == nil {
		th = theme.Default()
	}

	if len(ctx.Args) > 0 {
		cmd, ok := ctx.Registry.Command(ctx.Args[0])
		if !ok {
			return ctx.Reply(fmt.Sprintf("No command called `%s`.", ctx.Args[0]))
		}
		return ctx.ReplyEmbed(c.commandEmbed(th, ctx.Prefix, cmd))
	}
	return ctx.ReplyEmbed(c.overviewEmbed(th, ctx.Prefix, ctx.Registry))
}

func (c *Core) overviewEmbed(th *theme.Theme, prefix string, r *Registry) *discordgo.MessageEmbed {
	e := th.Embed("Help", fmt.Sprintf("Use `%shelp <command>` for details.", prefix))
	groups := make(map[string][]string)
	var order []string
	for _, cmd := range r.Commands() {
		if r.Disabled(cmd.Name) {
			continue
		}
		if _, ok := groups[cmd.Plugin()]; !ok {
			order = append(order, cmd.Plugin())
		}
		groups[cmd.Plugin()] = append(groups[cmd.Plugin()], "`"+cmd.Name+"`")
	}
	for _, p := range order {
		theme.AddEmbedField(e, p, strings.Join(groups[p], " "), false)
	}
	return e
}

func (c *Core) commandEmbed(th *theme.Theme, prefix string, cmd *Command) *discordgo.MessageEmbed {
	e := th.Embed(cmd.Name, cmd.Description)
	if cmd.Usage != "" {
		theme.AddEmbedField(e, "Usage", "`"+prefix+cmd.Usage+"`", false)
	}
	if len(cmd.Aliases) > 0 {
		theme.AddEmbedField(e, "Aliases", strings.Join(cmd.Aliases, ", "), false)
	}
	if cmd.Prime {
		theme.AddEmbedField(e, "Prime", "yes", true)
	}
	return e
}

func (c *Core) ping(ctx *Context) error {
	latency := ctx.Session.HeartbeatLatency().Round(time.Millisecond)
	return ctx.Reply(fmt.Sprintf("Pong! Gateway latency: %v", latency))
}

func (c *Core) prefix(ctx *Context) error {
	quoted := make([]string, 0, len(ctx.Prefixes))
	for _, p := range ctx.Prefixes {
		if strings.HasPrefix(p, "<@") {
			continue
		}
		quoted = append(quoted, "`"+p+"`")
	}
	return ctx.Reply("Prefixes: " + strings.Join(quoted, ", "))
}

func (c *Core) created(ctx *Context) error {
	id := ctx.Message.Author.ID
	if len(ctx.Args) > 0 {
		id = ctx.Args[0]
	}
	text, err := CreatedText(ctx.Registry.Host(), id)
	if err != nil {
		return ctx.Reply("That is not a valid ID.")
	}
	return ctx.Reply(text)
}

// CreatedText describes when the snowflake in arg was created. arg may be a
// raw ID, a user mention or a channel mention.
func CreatedText(host Host, arg string) (string, error) {
	id := utils.TrimUserMention(utils.TrimChannelString(arg))
	at, err := utils.ParseSnowflake(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s was created %s (%s).", id, host.Since(at), at.UTC().Format(time.RFC1123)), nil
}

func (c *Core) about(ctx *Context) error {
	th := ctx.Theme
	if th == nil {
		th = theme.Default()
	}
	host := ctx.Registry.Host()
	e := th.Embed("About", "")
	theme.AddEmbedField(e, "Release", host.Release(), true)
	theme.AddEmbedField(e, "Uptime", host.Uptime(), true)
	theme.AddEmbedField(e, "Shards", fmt.Sprint(len(host.Sessions())), true)
	theme.AddEmbedField(e, "Plugins", strings.Join(ctx.Registry.Plugins(), ", "), false)
	theme.AddEmbedField(e, "Commands", fmt.Sprint(len(ctx.Registry.Commands())), true)
	return ctx.ReplyEmbed(e)
}
