package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

type Discord struct {
	token    string
	Sess     *discordgo.Session
	sessions []*discordgo.Session
}

// New creates one session per shard with every gateway intent enabled.
// A shardCount below one asks discord for its recommendation.
func New(token string, shardCount int) (*Discord, error) {
	if token == "" {
		return nil, errors.New("discord: token is required")
	}
	d := &Discord{token: token}

	if shardCount < 1 {
		n, err := recommendedShards(d.token)
		if err != nil {
			return nil, fmt.Errorf("fetching recommended shards: %w", err)
		}
		shardCount = n
	}

	for i := 0; i < shardCount; i++ {
		s, err := discordgo.New("Bot " + d.token)
		if err != nil {
			return nil, err
		}

		s.State.TrackVoice = false
		s.ShardCount = shardCount
		s.ShardID = i
		s.Identify.Intents = discordgo.IntentsAll

		d.sessions = append(d.sessions, s)
	}
	d.Sess = d.sessions[0]

	return d, nil
}

// AddHandler registers h on every shard.
func (d *Discord) AddHandler(h interface{}) {
	for _, s := range d.sessions {
		s.AddHandler(h)
	}
}

func (d *Discord) Sessions() []*discordgo.Session {
	return d.sessions
}

// Open opens the Discord sessions.
func (d *Discord) Open() error {
	for _, sess := range d.sessions {
		if err := sess.Open(); err != nil {
			return fmt.Errorf("opening shard %d: %w", sess.ShardID, err)
		}
	}
	return nil
}

// Close closes the Discord sessions
func (d *Discord) Close() error {
	var errs []error
	for _, sess := range d.sessions {
		if err := sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing shard %d: %w", sess.ShardID, err))
		}
	}
	return errors.Join(errs...)
}

// SelfID returns the bot's own user ID once a shard has received Ready.
func (d *Discord) SelfID() string {
	for _, s := range d.sessions {
		s.State.RLock()
		u := s.State.User
		s.State.RUnlock()
		if u != nil {
			return u.ID
		}
	}
	return ""
}

// recommendedShards asks discord for the recommended shardcount for the bot given the token.
func recommendedShards(token string) (int, error) {
	req, err := http.NewRequest("GET", discordgo.EndpointGatewayBot, nil)
	if err != nil {
		return -1, err
	}
	req.Header.Add("Authorization", "Bot "+token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return -1, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return -1, fmt.Errorf("gateway/bot returned %s", res.Status)
	}

	resp := &discordgo.GatewayBotResponse{}
	if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
		return -1, err
	}
	if resp.Shards < 1 {
		return 1, nil
	}
	return resp.Shards, nil
}
