package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/intrntsrfr/cosmos/bot"
	"github.com/intrntsrfr/cosmos/guild"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var noGuildCache bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, err := bot.New(ctx, bot.Options{
			Version:    Version,
			Release:    Release,
			ConfigPath: configPath,
		})
		if err != nil {
			return err
		}
		defer b.Log.Sync()

		// installed after bootstrap since it reads through the bot's
		// database and cache; no message is handled until Run
		if !noGuildCache {
			gc, err := guild.New(b.DB, b.Cache, b.Log)
			if err != nil {
				b.Close()
				return err
			}
			b.GuildCache = gc
		}

		if err := b.Run(ctx); err != nil {
			b.Log.Error("bot stopped with error", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&noGuildCache, "no-guild-cache", false, "disable per-guild prefixes")
}
