// Package discord adapts a discordgo session to the service-layer
// collaborator interfaces: guild scheduled events and channel messaging.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"rallybot/internal/models"
	"rallybot/internal/services"
)

type Client struct {
	session *discordgo.Session
	guildID string

	// channels caches channel name -> id, built lazily on first send.
	mu       sync.Mutex
	channels map[string]string
}

// New opens an authenticated gateway session. Failure here is fatal to
// the process; there is no degraded mode without the chat platform.
func New(token, guildID string) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open discord session: %w", err)
	}

	return &Client{
		session: session,
		guildID: guildID,
	}, nil
}

func (c *Client) Close() error {
	return c.session.Close()
}

func (c *Client) CreateScheduledEvent(ctx context.Context, event *models.ScheduledEvent) (int64, error) {
	params := &discordgo.GuildScheduledEventParams{
		Name:               event.Name,
		Description:        event.Description,
		ScheduledStartTime: &event.StartTime,
		ScheduledEndTime:   event.EndTime,
		EntityType:         discordgo.GuildScheduledEventEntityTypeExternal,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
		EntityMetadata: &discordgo.GuildScheduledEventEntityMetadata{
			Location: event.Location,
		},
	}

	created, err := c.session.GuildScheduledEventCreate(c.guildID, params, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to create scheduled event %q: %w", event.Name, err)
	}
	return parseSnowflake(created.ID)
}

func (c *Client) ScheduledEvent(ctx context.Context, snowflakeID int64) (*models.ScheduledEvent, error) {
	remote, err := c.session.GuildScheduledEvent(c.guildID, formatSnowflake(snowflakeID), false, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, services.ErrRemoteNotFound
		}
		return nil, fmt.Errorf("failed to fetch scheduled event %d: %w", snowflakeID, err)
	}
	return fromGuildScheduledEvent(remote)
}

func (c *Client) EditScheduledEvent(ctx context.Context, snowflakeID int64, update *models.EventUpdate) error {
	params := &discordgo.GuildScheduledEventParams{}
	if update.Name != nil {
		params.Name = *update.Name
	}
	if update.Description != nil {
		params.Description = *update.Description
	}
	if update.StartTime != nil {
		params.ScheduledStartTime = update.StartTime
	}
	if update.EndTime != nil {
		params.ScheduledEndTime = update.EndTime
	}
	if update.Location != nil {
		params.EntityMetadata = &discordgo.GuildScheduledEventEntityMetadata{
			Location: *update.Location,
		}
	}

	_, err := c.session.GuildScheduledEventEdit(c.guildID, formatSnowflake(snowflakeID), params, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return services.ErrRemoteNotFound
		}
		return fmt.Errorf("failed to edit scheduled event %d: %w", snowflakeID, err)
	}
	return nil
}

func (c *Client) ListScheduledEvents(ctx context.Context) ([]*models.ScheduledEvent, error) {
	remotes, err := c.session.GuildScheduledEvents(c.guildID, false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled events: %w", err)
	}

	events := make([]*models.ScheduledEvent, 0, len(remotes))
	for _, remote := range remotes {
		event, err := fromGuildScheduledEvent(remote)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// SendMessage posts text to the named channel, resolving the name
// through a lazily built cache of the guild's channels.
func (c *Client) SendMessage(ctx context.Context, channelName, text string) error {
	channelID, err := c.channelID(ctx, channelName)
	if err != nil {
		return err
	}

	_, err = c.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", channelName, err)
	}
	return nil
}

func (c *Client) channelID(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channels == nil {
		channels, err := c.session.GuildChannels(c.guildID, discordgo.WithContext(ctx))
		if err != nil {
			return "", fmt.Errorf("failed to fetch guild channels: %w", err)
		}
		c.channels = make(map[string]string, len(channels))
		for _, channel := range channels {
			c.channels[channel.Name] = channel.ID
		}
	}

	id, ok := c.channels[name]
	if !ok {
		return "", fmt.Errorf("channel %q not found in guild", name)
	}
	return id, nil
}

func fromGuildScheduledEvent(remote *discordgo.GuildScheduledEvent) (*models.ScheduledEvent, error) {
	id, err := parseSnowflake(remote.ID)
	if err != nil {
		return nil, err
	}

	return &models.ScheduledEvent{
		SnowflakeID: id,
		Name:        remote.Name,
		Description: remote.Description,
		StartTime:   remote.ScheduledStartTime,
		EndTime:     remote.ScheduledEndTime,
		Location:    remote.EntityMetadata.Location,
	}, nil
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}

func parseSnowflake(id string) (int64, error) {
	parsed, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad snowflake id %q: %w", id, err)
	}
	return parsed, nil
}

func formatSnowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}
