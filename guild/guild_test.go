package guild

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/intrntsrfr/cosmos/config"
	"github.com/intrntsrfr/cosmos/database"
	"github.com/intrntsrfr/cosmos/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*Cache, database.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewJsonDatabase(filepath.Join(dir, "data.json"), zap.NewNop())
	require.NoError(t, err)
	store, err := kvstore.NewStore(config.Cache{Dir: filepath.Join(dir, "cache"), TTL: time.Hour}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c, err := New(db, store, zap.NewNop())
	require.NoError(t, err)
	return c, db
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestGuildPrefixes(t *testing.T) {
	c, db := newTestCache(t)

	_, ok := c.GuildPrefixes("1")
	assert.False(t, ok)

	require.NoError(t, c.SetPrefixes("1", []string{"$"}))
	got, ok := c.GuildPrefixes("1")
	require.True(t, ok)
	assert.Equal(t, []string{"$"}, got)

	got[0] = "%"
	again, _ := c.GuildPrefixes("1")
	assert.Equal(t, []string{"$"}, again)

	g, err := db.GetGuild("1")
	require.NoError(t, err)
	assert.Equal(t, []string{"$"}, g.Prefixes)

	require.NoError(t, c.SetPrefixes("1", nil))
	_, ok = c.GuildPrefixes("1")
	assert.False(t, ok)
}

func TestCachedUntilInvalidated(t *testing.T) {
	c, db := newTestCache(t)
	require.NoError(t, db.CreateGuild("2"))
	require.NoError(t, db.UpdateGuild("2", &database.Guild{ID: "2", Prefixes: []string{"?"}, Disabled: []string{"ping"}}))

	got, ok := c.GuildPrefixes("2")
	require.True(t, ok)
	assert.Equal(t, []string{"?"}, got)
	assert.True(t, c.CommandDisabled("2", "ping"))
	assert.False(t, c.CommandDisabled("2", "help"))

	require.NoError(t, db.UpdateGuild("2", &database.Guild{ID: "2", Prefixes: []string{"."}}))
	got, _ = c.GuildPrefixes("2")
	assert.Equal(t, []string{"?"}, got)

	require.NoError(t, c.Invalidate("2"))
	got, _ = c.GuildPrefixes("2")
	assert.Equal(t, []string{"."}, got)
}

func TestGuildPrime(t *testing.T) {
	c, _ := newTestCache(t)
	assert.False(t, c.GuildPrime("3"))
	require.NoError(t, c.SetPrime("3", true))
	assert.True(t, c.GuildPrime("3"))
}
