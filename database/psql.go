package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const schemaGuild = `
CREATE TABLE IF NOT EXISTS guilds (
	id       TEXT PRIMARY KEY,
	prefixes TEXT[] NOT NULL DEFAULT '{}',
	disabled TEXT[] NOT NULL DEFAULT '{}',
	prime    BOOLEAN NOT NULL DEFAULT FALSE
);
`

type PsqlDB struct {
	pool *sqlx.DB
	log  *zap.Logger
}

type psqlGuild struct {
	ID       string         `db:"id"`
	Prefixes pq.StringArray `db:"prefixes"`
	Disabled pq.StringArray `db:"disabled"`
	Prime    bool           `db:"prime"`
}

func NewPSQLDatabase(connStr string, log *zap.Logger) (*PsqlDB, error) {
	pool, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		log.Error("unable to connect to db", zap.Error(err))
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(schemaGuild); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	log.Info("established postgres connection")
	return &PsqlDB{pool: pool, log: log}, nil
}

func (p *PsqlDB) GetConn() *sqlx.DB {
	return p.pool
}

func (p *PsqlDB) Close() error {
	return p.pool.Close()
}

func (p *PsqlDB) CreateGuild(gid string) error {
	res, err := p.pool.Exec("INSERT INTO guilds (id) VALUES ($1) ON CONFLICT DO NOTHING;", gid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGuildExists
	}
	return nil
}

func (p *PsqlDB) UpdateGuild(gid string, gc *Guild) error {
	res, err := p.pool.Exec("UPDATE guilds SET prefixes = $2, disabled = $3, prime = $4 WHERE id = $1;",
		gid, pq.StringArray(gc.Prefixes), pq.StringArray(gc.Disabled), gc.Prime)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGuildNotFound
	}
	return nil
}

func (p *PsqlDB) GetGuild(gid string) (*Guild, error) {
	var g psqlGuild
	err := p.pool.Get(&g, "SELECT id, prefixes, disabled, prime FROM guilds WHERE id = $1;", gid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGuildNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Guild{ID: g.ID, Prefixes: g.Prefixes, Disabled: g.Disabled, Prime: g.Prime}, nil
}
