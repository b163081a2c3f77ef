package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Assistants backend.
	viper.SetDefault("openai.endpoint", "https://api.openai.com")
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.assistant_id", "")

	// Discord surface.
	viper.SetDefault("discord.bot_token", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.command_channel_id", "")
	viper.SetDefault("discord.ticket_category_id", "")

	// Relay behavior.
	viper.SetDefault("relay.poll_interval", 1*time.Second)
	viper.SetDefault("relay.run_deadline", 5*time.Minute)
	viper.SetDefault("relay.session_window", 10*time.Minute)
	viper.SetDefault("relay.ticket_lifetime", 10*time.Minute)
	viper.SetDefault("relay.rate_penalty", 20*time.Second)
	viper.SetDefault("relay.reply_limit", 1999)
	viper.SetDefault("relay.max_concurrency", 3)
	viper.SetDefault("relay.queue_size", 16)
	viper.SetDefault("relay.thread_cache_cap", 1024)

	// Persistence.
	viper.SetDefault("db.enabled", false)
	viper.SetDefault("db.dsn", "")
}
