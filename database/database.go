package database

import (
	"errors"
	"fmt"

	"github.com/intrntsrfr/cosmos/config"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	ErrGuildExists   = errors.New("guild already exists")
	ErrGuildNotFound = errors.New("guild does not exist")
)

type DB interface {
	GetConn() *sqlx.DB
	Close() error

	CreateGuild(gid string) error
	UpdateGuild(gid string, gc *Guild) error
	GetGuild(gid string) (*Guild, error)
}

// Guild holds the per-guild settings cosmos persists.
type Guild struct {
	ID       string   `json:"id" db:"id"`
	Prefixes []string `json:"prefixes" db:"prefixes"`
	Disabled []string `json:"disabled" db:"disabled"`
	Prime    bool     `json:"prime" db:"prime"`
}

// Open picks the backend named by c.Driver.
func Open(c config.DB, log *zap.Logger) (DB, error) {
	if log == nil {
		return nil, errors.New("database: logger is required")
	}
	log = log.Named("database")
	switch c.Driver {
	case "postgres":
		return NewPSQLDatabase(c.ConnStr, log)
	case "json", "":
		return NewJsonDatabase(c.Path, log)
	default:
		return nil, fmt.Errorf("unknown database driver %q", c.Driver)
	}
}
