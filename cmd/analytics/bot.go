package main

import (
	"errors"

	"absence-analytics/internal/config"
	"absence-analytics/internal/handler"
	"absence-analytics/pkg/telegram"

	"github.com/spf13/cobra"
)

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Serve reports through the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			if cfg.TelegramToken == "" {
				return errors.New("TELEGRAM_BOT_TOKEN is not set")
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			// Создаем клиент Telegram
			client, err := telegram.NewClient(cfg.TelegramToken, cfg.TelegramDebug)
			if err != nil {
				return err
			}
			a.log.Infof("Authorized on account %s", client.Bot.Self.UserName)

			botHandler := handler.NewHandler(client, a.analytics, a.calendar, a.log)
			updates := client.Bot.GetUpdatesChan(client.UpdateConfig)

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				client.Stop()
			}()

			a.log.Info("Bot started. Press Ctrl+C to stop.")
			botHandler.HandleUpdates(ctx, updates)
			a.log.Info("Bot stopped gracefully")
			return nil
		},
	}
}
