package database

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//
// JSON implementation DB
//

type JsonDB struct {
	path  string
	log   *zap.Logger
	state *state
}

type state struct {
	sync.Mutex
	Guilds map[string]*Guild `json:"guilds"`
}

func NewJsonDatabase(path string, log *zap.Logger) (*JsonDB, error) {
	db := &JsonDB{
		path: path,
		log:  log,
		state: &state{
			Guilds: make(map[string]*Guild),
		},
	}
	err := db.load()
	return db, err
}

func (j *JsonDB) Close() error {
	return j.save()
}

func (j *JsonDB) load() error {
	d, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		j.log.Info("no data file found, using default", zap.String("path", j.path))
		return nil
	}
	if err != nil {
		return err
	}

	s := &state{}
	if err := json.Unmarshal(d, s); err != nil {
		return err
	}
	if s.Guilds == nil {
		s.Guilds = make(map[string]*Guild)
	}
	j.state = s
	j.log.Info("data file loaded", zap.String("path", j.path), zap.Int("guilds", len(s.Guilds)))
	return nil
}

func (j *JsonDB) save() error {
	j.state.Lock()
	d, err := json.Marshal(j.state)
	j.state.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(j.path, d, 0644)
}

func (j *JsonDB) GetConn() *sqlx.DB {
	return nil
}

func (j *JsonDB) CreateGuild(gid string) error {
	j.state.Lock()
	defer j.state.Unlock()
	if _, ok := j.state.Guilds[gid]; ok {
		return ErrGuildExists
	}
	j.state.Guilds[gid] = &Guild{ID: gid}
	return nil
}

func (j *JsonDB) UpdateGuild(gid string, gc *Guild) error {
	j.state.Lock()
	defer j.state.Unlock()
	if _, ok := j.state.Guilds[gid]; !ok {
		return ErrGuildNotFound
	}
	g := *gc
	g.ID = gid
	j.state.Guilds[gid] = &g
	return nil
}

func (j *JsonDB) GetGuild(gid string) (*Guild, error) {
	j.state.Lock()
	defer j.state.Unlock()
	if v, ok := j.state.Guilds[gid]; ok {
		g := *v
		return &g, nil
	}
	return nil, ErrGuildNotFound
}
