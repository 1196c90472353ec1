package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latoulicious/Hokko/pkg/common"
)

type fakeAPI struct {
	sent    []string
	edited  []*discordgo.MessageEdit
	deleted []string
	err     error
}

func (f *fakeAPI) ChannelMessageSendComplex(channelID string, _ *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, channelID)
	return &discordgo.Message{ID: "555", ChannelID: channelID}, nil
}

func (f *fakeAPI) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.edited = append(f.edited, m)
	return &discordgo.Message{ID: m.ID}, nil
}

func (f *fakeAPI) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func restError(code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{Status: "404 Not Found"},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "Unknown"},
	}
}

func TestMessenger_RoundTrip(t *testing.T) {
	api := &fakeAPI{}
	m := NewMessenger(api)
	ctx := context.Background()

	id, err := m.Send(ctx, 42, &discordgo.MessageSend{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(555), id)
	assert.Equal(t, []string{"42"}, api.sent)

	require.NoError(t, m.Edit(ctx, 42, id, &discordgo.MessageEdit{}))
	require.Len(t, api.edited, 1)
	assert.Equal(t, "42", api.edited[0].Channel)
	assert.Equal(t, "555", api.edited[0].ID)

	require.NoError(t, m.Delete(ctx, 42, id))
	assert.Equal(t, []string{"555"}, api.deleted)
}

func TestMessenger_MapsGoneMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		gone bool
	}{
		{name: "unknown message", err: restError(discordgo.ErrCodeUnknownMessage), gone: true},
		{name: "unknown channel", err: restError(discordgo.ErrCodeUnknownChannel), gone: true},
		{name: "missing permissions", err: restError(discordgo.ErrCodeMissingPermissions)},
		{name: "network", err: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMessenger(&fakeAPI{err: tt.err})

			err := m.Edit(context.Background(), 1, 2, &discordgo.MessageEdit{})
			require.Error(t, err)
			assert.Equal(t, tt.gone, errors.Is(err, common.ErrMessageGone))

			err = m.Delete(context.Background(), 1, 2)
			assert.Equal(t, tt.gone, errors.Is(err, common.ErrMessageGone))
		})
	}
}

func TestUserVoiceChannel(t *testing.T) {
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID: "10",
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "1", ChannelID: "20", GuildID: "10"},
		},
	}))

	id, err := UserVoiceChannel(state, "10", "1")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(20), id)

	_, err = UserVoiceChannel(state, "10", "2")
	assert.ErrorIs(t, err, ErrNotInVoice)

	_, err = UserVoiceChannel(state, "99", "1")
	assert.Error(t, err)
}
