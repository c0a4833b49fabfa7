// Package emotes keeps the custom emojis cosmos uses in its replies.
package emotes

import (
	"errors"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/cosmos/config"
	"go.uber.org/zap"
)

// Source is the part of a discord session the registry loads emojis from.
type Source interface {
	GuildEmojis(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Emoji, error)
}

type Registry struct {
	mu       sync.RWMutex
	log      *zap.Logger
	guilds   []string
	fallback string
	emojis   map[string]*discordgo.Emoji
}

func New(log *zap.Logger, c config.Emotes) (*Registry, error) {
	if log == nil {
		return nil, errors.New("emotes: logger is required")
	}
	return &Registry{
		log:      log.Named("emotes"),
		guilds:   c.Guilds,
		fallback: c.Fallback,
		emojis:   make(map[string]*discordgo.Emoji),
	}, nil
}

// Load fetches the emojis of every configured emote guild. Names are
// case-insensitive; a later guild overrides an earlier one.
func (r *Registry) Load(src Source) error {
	var errs []error
	for _, gid := range r.guilds {
		emojis, err := src.GuildEmojis(gid)
		if err != nil {
			r.log.Warn("failed to fetch guild emojis", zap.String("guild", gid), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		r.Add(emojis...)
		r.log.Info("loaded emotes", zap.String("guild", gid), zap.Int("count", len(emojis)))
	}
	return errors.Join(errs...)
}

func (r *Registry) Add(emojis ...*discordgo.Emoji) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range emojis {
		if e == nil || e.Name == "" {
			continue
		}
		r.emojis[strings.ToLower(e.Name)] = e
	}
}

func (r *Registry) Emoji(name string) (*discordgo.Emoji, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.emojis[strings.ToLower(name)]
	return e, ok
}

// Get returns the emoji in message format, or the fallback when unknown.
func (r *Registry) Get(name string) string {
	if e, ok := r.Emoji(name); ok {
		return e.MessageFormat()
	}
	return r.fallback
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.emojis)
}
