// Package plugins holds the plugin registry and the command metadata the
// dispatcher works with.
//
// Plugins are compiled in and registered before startup; LoadAll runs their
// Setup in registration order, giving each one the registry so it can add
// its commands and reach the host bot.
package plugins

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/cosmos/theme"
	"go.uber.org/zap"
)

// Host is what plugins may use of the running bot.
type Host interface {
	Sessions() []*discordgo.Session
	Release() string
	Uptime() string
	// Since renders how long ago t was.
	Since(t time.Time) string
	DefaultPrefixes() []string
	Schedule(name, schedule string, fn func()) (string, error)
}

type Plugin interface {
	Name() string
	Setup(r *Registry) error
}

type CheckFunc func(ctx *Context) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	// Inescapable commands can be neither disabled nor removed.
	Inescapable bool
	// Prime commands need the invoking user to be prime when a profile
	// cache is installed.
	Prime     bool
	GuildOnly bool
	Checks    []CheckFunc
	Run       func(ctx *Context) error

	plugin string
}

// Plugin returns the name of the plugin that registered the command.
func (c *Command) Plugin() string {
	return c.plugin
}

// Context is built by the dispatcher for every command invocation.
type Context struct {
	Session  *discordgo.Session
	Message  *discordgo.Message
	Prefix   string
	Prefixes []string
	Args     []string
	Command  *Command
	Registry *Registry
	Theme    *theme.Theme
	Log      *zap.Logger
	Started  time.Time
}

func (c *Context) Reply(content string) error {
	_, err := c.Session.ChannelMessageSendReply(c.Message.ChannelID, content, c.Message.Reference())
	return err
}

func (c *Context) ReplyEmbed(e *discordgo.MessageEmbed) error {
	_, err := c.Session.ChannelMessageSendEmbedReply(c.Message.ChannelID, e, c.Message.Reference())
	return err
}

// InGuild reports whether the invocation came from a guild channel.
func (c *Context) InGuild() bool {
	return c.Message.GuildID != ""
}
