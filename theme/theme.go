package theme

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/cosmos/config"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Color int

const (
	Red    Color = 0xC80000
	Orange Color = 0xF08152
	Blue   Color = 0x61D1ED
	Green  Color = 0x00C800
	White  Color = 0xFFFFFF
)

type Theme struct {
	Primary Color  `yaml:"primary"`
	Success Color  `yaml:"success"`
	Warning Color  `yaml:"warning"`
	Danger  Color  `yaml:"danger"`
	Footer  string `yaml:"footer"`
	Icon    string `yaml:"icon"`
}

func Default() *Theme {
	return &Theme{
		Primary: Blue,
		Success: Green,
		Warning: Orange,
		Danger:  Red,
	}
}

// Load starts from the default theme, applies the configured primary colour
// and then any overrides found in the theme file.
func Load(c config.Theme, log *zap.Logger) (*Theme, error) {
	if log == nil {
		return nil, errors.New("theme: logger is required")
	}
	t := Default()
	if c.Primary != 0 {
		t.Primary = Color(c.Primary)
	}
	if c.Path == "" {
		return t, nil
	}

	d, err := os.ReadFile(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Named("theme").Warn("theme file not found, using default", zap.String("path", c.Path))
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(d, t); err != nil {
		return nil, fmt.Errorf("parsing theme %s: %w", c.Path, err)
	}
	return t, nil
}

func (t *Theme) embed(c Color, title, description string) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Color:       int(c),
		Title:       title,
		Description: description,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if t.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: t.Footer, IconURL: t.Icon}
	}
	return e
}

func (t *Theme) Embed(title, description string) *discordgo.MessageEmbed {
	return t.embed(t.Primary, title, description)
}

func (t *Theme) SuccessEmbed(title, description string) *discordgo.MessageEmbed {
	return t.embed(t.Success, title, description)
}

func (t *Theme) WarnEmbed(title, description string) *discordgo.MessageEmbed {
	return t.embed(t.Warning, title, description)
}

func (t *Theme) ErrorEmbed(title, description string) *discordgo.MessageEmbed {
	return t.embed(t.Danger, title, description)
}

func AddEmbedField(e *discordgo.MessageEmbed, name, value string, inline bool) *discordgo.MessageEmbed {
	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline})
	return e
}
