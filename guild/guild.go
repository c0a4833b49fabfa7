// Package guild is the guild-scope extension. It serves per-guild settings
// from the database through the badger cache and is installed into a bot
// as its guild cache.
package guild

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/intrntsrfr/cosmos/database"
	"github.com/intrntsrfr/cosmos/kvstore"
	"go.uber.org/zap"
)

const cacheTTL = 10 * time.Minute

// Store is the cache the settings are kept in.
type Store interface {
	Get(key string, v interface{}) error
	SetWithTTL(key string, v interface{}, ttl time.Duration) error
	Delete(key string) error
}

type settings struct {
	Prefixes []string
	Disabled []string
	Prime    bool
}

type Cache struct {
	db    database.DB
	store Store
	log   *zap.Logger
}

func New(db database.DB, store Store, log *zap.Logger) (*Cache, error) {
	if db == nil || store == nil {
		return nil, errors.New("guild: database and store are required")
	}
	if log == nil {
		return nil, errors.New("guild: logger is required")
	}
	return &Cache{db: db, store: store, log: log.Named("guild")}, nil
}

func key(gid string) string {
	return "guild:" + gid
}

func (c *Cache) settings(gid string) (*settings, error) {
	var s settings
	err := c.store.Get(key(gid), &s)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		c.log.Warn("cache read failed, falling back to database", zap.String("guild", gid), zap.Error(err))
	}

	g, err := c.db.GetGuild(gid)
	if errors.Is(err, database.ErrGuildNotFound) {
		s = settings{}
	} else if err != nil {
		return nil, err
	} else {
		s = settings{Prefixes: g.Prefixes, Disabled: g.Disabled, Prime: g.Prime}
	}

	if err := c.store.SetWithTTL(key(gid), s, cacheTTL); err != nil {
		c.log.Warn("failed to cache guild settings", zap.String("guild", gid), zap.Error(err))
	}
	return &s, nil
}

// GuildPrefixes returns the prefix override for gid. The bool is false when
// the guild has none.
func (c *Cache) GuildPrefixes(gid string) ([]string, bool) {
	s, err := c.settings(gid)
	if err != nil {
		c.log.Error("failed to load guild settings", zap.String("guild", gid), zap.Error(err))
		return nil, false
	}
	if len(s.Prefixes) == 0 {
		return nil, false
	}
	return slices.Clone(s.Prefixes), true
}

// GuildPrime reports whether gid has prime.
func (c *Cache) GuildPrime(gid string) bool {
	s, err := c.settings(gid)
	return err == nil && s.Prime
}

// CommandDisabled reports whether gid disabled the named command.
func (c *Cache) CommandDisabled(gid, name string) bool {
	s, err := c.settings(gid)
	return err == nil && slices.Contains(s.Disabled, name)
}

// SetPrefixes stores a prefix override for gid. An empty list clears it.
func (c *Cache) SetPrefixes(gid string, prefixes []string) error {
	return c.update(gid, func(g *database.Guild) {
		g.Prefixes = slices.Clone(prefixes)
	})
}

func (c *Cache) SetPrime(gid string, prime bool) error {
	return c.update(gid, func(g *database.Guild) {
		g.Prime = prime
	})
}

func (c *Cache) update(gid string, fn func(g *database.Guild)) error {
	g, err := c.db.GetGuild(gid)
	if errors.Is(err, database.ErrGuildNotFound) {
		if err := c.db.CreateGuild(gid); err != nil {
			return fmt.Errorf("creating guild %s: %w", gid, err)
		}
		g, err = c.db.GetGuild(gid)
	}
	if err != nil {
		return err
	}
	fn(g)
	if err := c.db.UpdateGuild(gid, g); err != nil {
		return fmt.Errorf("updating guild %s: %w", gid, err)
	}
	return c.Invalidate(gid)
}

// Invalidate drops the cached settings for gid.
func (c *Cache) Invalidate(gid string) error {
	return c.store.Delete(key(gid))
}
