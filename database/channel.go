package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	codeBlockOpen  = "```json\n"
	codeBlockClose = "\n```"
	// discord rejects message content above this many characters
	maxMessageLength = 2000
)

var ErrDocumentTooLarge = errors.New("document does not fit in a single message")

// Messenger is the part of *discordgo.Session the channel database uses.
type Messenger interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// ChannelDB stores small JSON documents as messages in a private discord
// channel. The message ID is the document key.
type ChannelDB struct {
	sess      Messenger
	channelID string
}

func NewChannelDB(sess Messenger, channelID string) (*ChannelDB, error) {
	if sess == nil {
		return nil, errors.New("channel database: session is required")
	}
	return &ChannelDB{sess: sess, channelID: channelID}, nil
}

// Enabled reports whether a channel was configured.
func (c *ChannelDB) Enabled() bool {
	return c.channelID != ""
}

// Set stores v as a new document and returns its key.
func (c *ChannelDB) Set(v any) (string, error) {
	content, err := c.encode(v)
	if err != nil {
		return "", err
	}
	msg, err := c.sess.ChannelMessageSend(c.channelID, content)
	if err != nil {
		return "", fmt.Errorf("storing document: %w", err)
	}
	return msg.ID, nil
}

// Update replaces the document at key.
func (c *ChannelDB) Update(key string, v any) error {
	content, err := c.encode(v)
	if err != nil {
		return err
	}
	if _, err := c.sess.ChannelMessageEdit(c.channelID, key, content); err != nil {
		return fmt.Errorf("updating document %s: %w", key, err)
	}
	return nil
}

// Get decodes the document at key into v.
func (c *ChannelDB) Get(key string, v any) error {
	if !c.Enabled() {
		return errors.New("channel database: no channel configured")
	}
	msg, err := c.sess.ChannelMessage(c.channelID, key)
	if err != nil {
		return fmt.Errorf("fetching document %s: %w", key, err)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(msg.Content, codeBlockOpen), codeBlockClose)
	return json.Unmarshal([]byte(body), v)
}

func (c *ChannelDB) Delete(key string) error {
	if !c.Enabled() {
		return errors.New("channel database: no channel configured")
	}
	return c.sess.ChannelMessageDelete(c.channelID, key)
}

func (c *ChannelDB) encode(v any) (string, error) {
	if !c.Enabled() {
		return "", errors.New("channel database: no channel configured")
	}
	d, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	content := codeBlockOpen + string(d) + codeBlockClose
	if len(content) > maxMessageLength {
		return "", ErrDocumentTooLarge
	}
	return content, nil
}
