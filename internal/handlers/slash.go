package handlers

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/internal/commands"
	"github.com/latoulicious/Hokko/pkg/player"
)

// DefaultTimeout bounds the handling of one interaction
const DefaultTimeout = 30 * time.Second

// InteractionAPI answers interactions
type InteractionAPI interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseDelete(interaction *discordgo.Interaction, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageEdit(interaction *discordgo.Interaction, messageID string, data *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Router dispatches slash commands and button presses
type Router struct {
	api      InteractionAPI
	music    *commands.Music
	browsers *player.BrowserRegistry
	logger   *zap.Logger
	timeout  time.Duration
}

// NewRouter creates a router answering through api
func NewRouter(api InteractionAPI, music *commands.Music, browsers *player.BrowserRegistry, logger *zap.Logger) *Router {
	return &Router{
		api:      api,
		music:    music,
		browsers: browsers,
		logger:   logger.Named("interactions"),
		timeout:  DefaultTimeout,
	}
}

// InteractionCreate is the discordgo handler for interactions
func (r *Router) InteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	r.Handle(ctx, i.Interaction)
}

// Handle answers one interaction
func (r *Router) Handle(ctx context.Context, i *discordgo.Interaction) {
	// Commands only work inside guilds; ignore bots and DMs
	if i.Member == nil || i.Member.User == nil || i.Member.User.Bot {
		return
	}

	req, err := baseRequest(i)
	if err != nil {
		r.logger.Warn("Malformed interaction", zap.String("interaction_id", i.ID), zap.Error(err))
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleCommand(ctx, i, req)
	case discordgo.InteractionMessageComponent:
		r.handleComponent(ctx, i, req)
	default:
		r.logger.Debug("Unknown interaction type", zap.Stringer("type", i.Type))
	}
}

func (r *Router) handleCommand(ctx context.Context, i *discordgo.Interaction, req commands.Request) {
	data := i.ApplicationCommandData()
	req.Name = data.Name

	for _, option := range data.Options {
		switch option.Type {
		case discordgo.ApplicationCommandOptionSubCommand:
			req.Subcommand = option.Name
		case discordgo.ApplicationCommandOptionString:
			if option.Name == "query" {
				req.Query = option.StringValue()
			}
		}
	}

	// Acknowledge the interaction immediately
	err := r.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		r.logger.Error("Error acknowledging interaction", zap.String("command", req.Name), zap.Error(err))
		return
	}

	reply := r.music.Handle(ctx, req)

	if reply.Ephemeral {
		r.sendEphemeral(i, reply)
		return
	}

	_, err = r.api.InteractionResponseEdit(i, &discordgo.WebhookEdit{
		Content:    &reply.Content,
		Embeds:     embeds(reply.Embed),
		Components: &reply.Components,
	})
	if err != nil {
		r.logger.Error("Error sending interaction response", zap.String("command", req.Name), zap.Error(err))
	}
}

// sendEphemeral replaces the public deferred response with a private followup
func (r *Router) sendEphemeral(i *discordgo.Interaction, reply commands.Reply) {
	if err := r.api.InteractionResponseDelete(i); err != nil {
		r.logger.Warn("Error deleting deferred response", zap.Error(err))
	}

	msg, err := r.api.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
		Content:    reply.Content,
		Embeds:     *embeds(reply.Embed),
		Components: reply.Components,
		Flags:      discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		r.logger.Error("Error sending followup", zap.Error(err))
		if reply.Browser != nil {
			reply.Browser.Close()
		}
		return
	}

	if reply.Browser != nil {
		messageID := msg.ID
		reply.Browser.Attach(func() {
			_, err := r.api.FollowupMessageEdit(i, messageID, &discordgo.WebhookEdit{
				Components: &[]discordgo.MessageComponent{},
			})
			if err != nil {
				r.logger.Debug("Failed to detach queue browser", zap.Error(err))
			}
		})
	}
}

func (r *Router) handleComponent(ctx context.Context, i *discordgo.Interaction, req commands.Request) {
	customID := i.MessageComponentData().CustomID

	if control, ok := player.ParseControl(customID); ok {
		r.handleControl(ctx, i, req, control)
		return
	}
	if id, action, ok := player.ParseBrowserCustomID(customID); ok {
		r.handleBrowser(i, id, action)
		return
	}

	r.logger.Debug("Unhandled component", zap.String("custom_id", customID))
}

func (r *Router) handleControl(ctx context.Context, i *discordgo.Interaction, req commands.Request, control player.Control) {
	err := r.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		r.logger.Error("Error acknowledging button", zap.Stringer("control", control), zap.Error(err))
		return
	}

	reply := r.music.Button(ctx, req, control)
	if reply == nil {
		return
	}

	_, err = r.api.FollowupMessageCreate(i, false, &discordgo.WebhookParams{
		Content: reply.Content,
		Embeds:  *embeds(reply.Embed),
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		r.logger.Error("Error sending followup", zap.Error(err))
	}
}

func (r *Router) handleBrowser(i *discordgo.Interaction, id, action string) {
	data := &discordgo.InteractionResponseData{
		Components: []discordgo.MessageComponent{},
	}

	b, ok := r.browsers.Get(id)
	if ok && !b.Ended() && b.Navigate(action) && !b.Ended() {
		data.Embeds = []*discordgo.MessageEmbed{b.Embed()}
		data.Components = b.Components()
	}

	err := r.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	})
	if err != nil {
		r.logger.Warn("Error updating queue browser", zap.String("browser_id", id), zap.Error(err))
	}
}

func baseRequest(i *discordgo.Interaction) (commands.Request, error) {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return commands.Request{}, err
	}
	channelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return commands.Request{}, err
	}
	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return commands.Request{}, err
	}
	return commands.Request{GuildID: guildID, ChannelID: channelID, UserID: userID}, nil
}

func embeds(embed *discordgo.MessageEmbed) *[]*discordgo.MessageEmbed {
	out := []*discordgo.MessageEmbed{}
	if embed != nil {
		out = append(out, embed)
	}
	return &out
}
