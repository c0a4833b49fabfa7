package bot

import (
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/cosmos/failure"
	"github.com/intrntsrfr/cosmos/utils"
)

// Prefixes returns the prefixes accepted for m. Guild messages use the
// guild's override when it has one; direct messages always use the
// defaults. Mentioning the bot is always accepted.
//
// The returned slice is never shared with the configuration.
func (b *Bot) Prefixes(m *discordgo.Message) ([]string, error) {
	prefixes := slices.Clone(b.Config.Cosmos.Prefixes)

	if m.GuildID != "" {
		if b.GuildCache == nil {
			return nil, failure.New(failure.ConfigMisuse,
				"guild cache extension point must be installed before per-guild prefixes can be used")
		}
		if override, ok := b.GuildCache.GuildPrefixes(m.GuildID); ok && len(override) > 0 {
			prefixes = slices.Clone(override)
		}
	}

	var out []string
	if id := b.selfID(); id != "" {
		out = utils.MentionPrefixes(id)
	}
	for _, p := range prefixes {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *Bot) selfID() string {
	if b.Discord == nil {
		return ""
	}
	return b.Discord.SelfID()
}
