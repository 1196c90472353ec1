package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/latoulicious/Hokko/pkg/common"
)

// MessageAPI is the part of the Discord REST client the messenger uses
type MessageAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Messenger posts, edits and deletes channel messages over the Discord REST API
type Messenger struct {
	api MessageAPI
}

// NewMessenger creates a messenger. *discordgo.Session satisfies MessageAPI.
func NewMessenger(api MessageAPI) *Messenger {
	return &Messenger{api: api}
}

// Send posts a message and returns its id
func (m *Messenger) Send(ctx context.Context, channelID snowflake.ID, msg *discordgo.MessageSend) (snowflake.ID, error) {
	sent, err := m.api.ChannelMessageSendComplex(channelID.String(), msg, discordgo.WithContext(ctx))
	if err != nil {
		return 0, mapError(err)
	}

	id, err := snowflake.Parse(sent.ID)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", sent.ID, err)
	}
	return id, nil
}

// Edit replaces the content of a message
func (m *Messenger) Edit(ctx context.Context, channelID, messageID snowflake.ID, msg *discordgo.MessageEdit) error {
	msg.Channel = channelID.String()
	msg.ID = messageID.String()

	_, err := m.api.ChannelMessageEditComplex(msg, discordgo.WithContext(ctx))
	return mapError(err)
}

// Delete removes a message
func (m *Messenger) Delete(ctx context.Context, channelID, messageID snowflake.ID) error {
	return mapError(m.api.ChannelMessageDelete(channelID.String(), messageID.String(), discordgo.WithContext(ctx)))
}

// mapError turns "unknown message" and "unknown channel" responses into
// common.ErrMessageGone
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return fmt.Errorf("%w: %v", common.ErrMessageGone, err)
		}
	}
	return err
}
