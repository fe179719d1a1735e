package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

type Config struct {
	ServerPort   string
	RedisURL     string
	DiscordToken string
	GuildID      string

	// FeedURL is the Meetup group's RSS endpoint.
	FeedURL string

	// AIEndpoint/AISecret configure the category classifier. Both may be
	// empty, which disables classification gracefully.
	AIEndpoint string
	AISecret   string

	// Muted computes and logs notifications without delivering them.
	Muted bool

	// InPersonMention/OnlineMention are the role mentions prepended to
	// announcements, selected by the event's online flag.
	InPersonMention string
	OnlineMention   string

	// Timezone is the civil zone used for "tomorrow"/"soon" bucketing,
	// regardless of any event's own locale.
	Timezone *time.Location
}

func LoadConfig() (*Config, error) {
	tzName := getEnv("TIMEZONE", "America/Chicago")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		RedisURL:        os.Getenv("REDIS_URL"),
		DiscordToken:    os.Getenv("DISCORD_TOKEN"),
		GuildID:         os.Getenv("DISCORD_GUILD_ID"),
		FeedURL:         getEnv("MEETUP_FEED_URL", "https://www.meetup.com/chicago-anime-hangouts/events/rss"),
		AIEndpoint:      os.Getenv("DO_AI_ENDPOINT"),
		AISecret:        os.Getenv("DO_AI_SECRET"),
		Muted:           getEnv("MUTE_NOTIFICATIONS", "false") == "true",
		InPersonMention: getEnv("IN_PERSON_MENTION", "<@&1366086187906895923>"),
		OnlineMention:   getEnv("ONLINE_MENTION", "<@&1366085997917638826>"),
		Timezone:        tz,
	}

	// Validate required fields
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.DiscordToken == "" {
		return nil, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return nil, errors.New("DISCORD_GUILD_ID is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
