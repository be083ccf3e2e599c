// Package telegram encapsulates the chat transport: receiving updates and
// rendering composed responses into telegram messages.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"booru-bot/internal/compose"
	"booru-bot/internal/dispatcher"
)

// Deps is a carrier of dependencies for Bot.
type Deps struct {
	EventDispatcher *dispatcher.EventDispatcher
	Log             *zap.Logger
}

// Opts is a carrier of options for Bot.
type Opts struct {
	Token string
	Debug bool
}

// Bot wraps a third-party telegram API implementation.
type Bot struct {
	api             *tgbotapi.BotAPI
	eventDispatcher *dispatcher.EventDispatcher
	log             *zap.Logger
}

// NewBot instantiates the underlying BotAPI instance and returns a new
// configured Bot.
func NewBot(deps Deps, opts Opts) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to init bot-api instance: %w", err)
	}
	deps.Log.Info("authorized on account", zap.String("name", api.Self.UserName))
	api.Debug = opts.Debug

	return &Bot{
		api:             api,
		eventDispatcher: deps.EventDispatcher,
		log:             deps.Log,
	}, nil
}

// Listen runs the update receiving loop. Each update is handled in its own
// goroutine, so a slow download never blocks dispatch of the next event.
func (b *Bot) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil {
				b.log.Warn("got empty message in update", zap.Int("update_id", update.UpdateID))
				continue
			}
			go b.handle(ctx, update.Message)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	b.log.Info("received message",
		zap.String("from", msg.From.UserName),
		zap.Int64("chat", msg.Chat.ID),
		zap.String("text", msg.Text),
	)

	reply := b.eventDispatcher.DispatchMessage(ctx, dispatcher.Event{
		Text:    msg.Text,
		UserID:  strconv.FormatInt(msg.From.ID, 10),
		GroupID: msg.Chat.ID,
		IsGroup: msg.Chat.IsGroup() || msg.Chat.IsSuperGroup(),
	})
	if reply.Empty() {
		return
	}

	if reply.Picture != nil {
		b.sendPicture(msg, reply.Picture)
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply.Text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		b.log.Error("failed to send reply", zap.Error(err))
	}
}

// sendPicture renders the composed parts in order: texts as messages, image
// blobs as photo uploads.
func (b *Bot) sendPicture(msg *tgbotapi.Message, resp *compose.Response) {
	for i, part := range resp.Parts {
		switch part.Kind {
		case compose.KindText:
			out := tgbotapi.NewMessage(msg.Chat.ID, part.Text)
			if _, err := b.api.Send(out); err != nil {
				b.log.Error("failed to send text part", zap.Error(err))
			}
		case compose.KindImage:
			data, err := part.Blob.Bytes()
			if err != nil {
				b.log.Error("failed to decode image part", zap.Error(err))
				continue
			}
			photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{
				Name:  fmt.Sprintf("image-%d", i),
				Bytes: data,
			})
			if _, err := b.api.Send(photo); err != nil {
				b.log.Error("failed to send image part", zap.Error(err))
			}
		}
	}
}
