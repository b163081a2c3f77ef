package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/deskbot/assistant"
	"github.com/quailyquaily/deskbot/db"
	"github.com/quailyquaily/deskbot/internal/channelruntime/discord"
	"github.com/quailyquaily/deskbot/internal/logutil"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and relay conversations to the assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			var store *db.Store
			if viper.GetBool("db.enabled") {
				cfg := db.DefaultConfig()
				cfg.DSN = strings.TrimSpace(viper.GetString("db.dsn"))
				store, err = db.Open(cfg)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				logger.Info("db_open", "driver", cfg.Driver)
			}

			client := assistant.New(
				strings.TrimSpace(viper.GetString("openai.endpoint")),
				strings.TrimSpace(viper.GetString("openai.api_key")),
			)

			deps := discord.Dependencies{
				Logger:  logger,
				Backend: client,
			}
			if store != nil {
				deps.Recorder = store
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return discord.Run(ctx, deps, discord.RunOptions{
				BotToken:         viper.GetString("discord.bot_token"),
				GuildID:          viper.GetString("discord.guild_id"),
				CommandChannelID: viper.GetString("discord.command_channel_id"),
				TicketCategoryID: viper.GetString("discord.ticket_category_id"),
				AssistantID:      viper.GetString("openai.assistant_id"),
				PollInterval:     viper.GetDuration("relay.poll_interval"),
				RunDeadline:      viper.GetDuration("relay.run_deadline"),
				SessionWindow:    viper.GetDuration("relay.session_window"),
				TicketLifetime:   viper.GetDuration("relay.ticket_lifetime"),
				RatePenalty:      viper.GetDuration("relay.rate_penalty"),
				ReplyLimit:       viper.GetInt("relay.reply_limit"),
				MaxConcurrency:   viper.GetInt("relay.max_concurrency"),
				QueueSize:        viper.GetInt("relay.queue_size"),
				ThreadCacheCap:   viper.GetInt("relay.thread_cache_cap"),
			})
		},
	}

	cmd.Flags().String("discord-bot-token", "", "Discord bot token.")
	cmd.Flags().String("discord-guild-id", "", "Guild the bot serves.")
	cmd.Flags().String("discord-command-channel-id", "", "Channel that accepts !start and !ticket.")
	cmd.Flags().String("discord-ticket-category-id", "", "Category ticket channels are created under (optional).")
	cmd.Flags().String("openai-api-key", "", "Assistants API key.")
	cmd.Flags().String("openai-assistant-id", "", "Assistant id runs are created against.")
	cmd.Flags().String("openai-endpoint", "", "Assistants API base URL.")
	cmd.Flags().Bool("db-enabled", false, "Record interactions and ticket events to sqlite.")
	cmd.Flags().String("db-dsn", "", "SQLite path (defaults to ~/.deskbot/deskbot.sqlite).")

	_ = viper.BindPFlag("discord.bot_token", cmd.Flags().Lookup("discord-bot-token"))
	_ = viper.BindPFlag("discord.guild_id", cmd.Flags().Lookup("discord-guild-id"))
	_ = viper.BindPFlag("discord.command_channel_id", cmd.Flags().Lookup("discord-command-channel-id"))
	_ = viper.BindPFlag("discord.ticket_category_id", cmd.Flags().Lookup("discord-ticket-category-id"))
	_ = viper.BindPFlag("openai.api_key", cmd.Flags().Lookup("openai-api-key"))
	_ = viper.BindPFlag("openai.assistant_id", cmd.Flags().Lookup("openai-assistant-id"))
	_ = viper.BindPFlag("openai.endpoint", cmd.Flags().Lookup("openai-endpoint"))
	_ = viper.BindPFlag("db.enabled", cmd.Flags().Lookup("db-enabled"))
	_ = viper.BindPFlag("db.dsn", cmd.Flags().Lookup("db-dsn"))

	return cmd
}
