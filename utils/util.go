package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const discordEpoch = 1420070400000

// Utility bundles small helpers shared by plugins and handlers.
type Utility struct {
	time *Time
}

func New(t *Time) *Utility {
	return &Utility{time: t}
}

func TrimChannelString(chStr string) string {
	chStr = strings.TrimPrefix(chStr, "<#")
	chStr = strings.TrimSuffix(chStr, ">")
	return chStr
}

func TrimUserMention(s string) string {
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	s = strings.TrimSuffix(s, ">")
	return s
}

func ParseSnowflake(id string) (time.Time, error) {
	n, err := strconv.ParseInt(id, 0, 63)
	if err != nil {
		return time.Now(), err
	}
	return time.Unix(((n>>22)+discordEpoch)/1000, 0), nil
}

// MentionPrefixes returns the two forms discord uses to mention a user,
// with the trailing space a command needs after the mention.
func MentionPrefixes(userID string) []string {
	if userID == "" {
		return nil
	}
	return []string{fmt.Sprintf("<@%s> ", userID), fmt.Sprintf("<@!%s> ", userID)}
}

// Since renders how long ago t was, eg. "3 hours ago".
func (u *Utility) Since(t time.Time) string {
	return humanize.RelTime(t, u.time.Now(), "ago", "from now")
}

// Uptime renders how long cosmos has been running.
func (u *Utility) Uptime() string {
	return strings.TrimSuffix(humanize.RelTime(u.time.Started(), u.time.Now(), "", ""), " ")
}

func (u *Utility) Time() *Time {
	return u.time
}
