// Package telegram is an optional chat front end over the same per-user
// orchestrators the web API uses.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"foodseer/internal/chat"
	"foodseer/internal/session"
)

const (
	cmdRestart   = "assistant_restart"
	cmdAlternate = "assistant_alternate"
	cmdOrder     = "assistant_order"
)

const busyReply = "One moment, I'm still working on your last message."

type Bot struct {
	api     *tgbotapi.BotAPI
	s       sender
	manager *chat.Manager
}

func New(botToken string, manager *chat.Manager) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:     api,
		s:       botAPISender{api: api},
		manager: manager,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message != nil {
			b.handleIncomingMessage(ctx, update.Message)
			continue
		}
		if update.CallbackQuery != nil {
			b.handleCallback(ctx, update.CallbackQuery)
			continue
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	log.Printf("incoming message from %d (@%s): %q", userID, msg.From.UserName, msg.Text)

	o := b.manager.For(ctx, userID)

	if msg.IsCommand() {
		if msg.Command() == "start" {
			b.replayTranscript(o, msg.Chat.ID)
		}
		return
	}

	before := len(o.Messages())
	err := o.SendMessage(ctx, msg.Text)
	b.reportOutcome(o, msg.Chat.ID, before, err)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	o := b.manager.For(ctx, cb.From.ID)
	chatID := cb.Message.Chat.ID
	before := len(o.Messages())

	switch cb.Data {
	case cmdRestart:
		b.reportOutcome(o, chatID, 0, o.Restart(ctx))
	case cmdAlternate:
		b.reportOutcome(o, chatID, before, o.RequestAlternateSuggestion(ctx))
	case cmdOrder:
		err := o.OrderRecommended(ctx)
		switch {
		case errors.Is(err, chat.ErrNoRecommendation):
			b.sendText(chatID, "There's nothing to order yet - ask me for a recommendation first!")
		case err != nil:
			log.Printf("order failed for user %d: %v", cb.From.ID, err)
			b.sendText(chatID, "Sorry, placing the order failed. Please try again.")
		default:
			b.sendText(chatID, "Order placed. Enjoy your meal!")
		}
	}
}

// reportOutcome sends every transcript entry the operation appended.
func (b *Bot) reportOutcome(o *chat.Orchestrator, chatID int64, since int, err error) {
	if errors.Is(err, chat.ErrBusy) {
		b.sendText(chatID, busyReply)
		return
	}
	if err != nil {
		log.Printf("conversation operation failed: %v", err)
		return
	}

	msgs := o.Messages()
	if since > len(msgs) {
		since = 0
	}
	for _, m := range msgs[since:] {
		b.render(chatID, m)
	}
}

func (b *Bot) replayTranscript(o *chat.Orchestrator, chatID int64) {
	for _, m := range o.Messages() {
		b.render(chatID, m)
	}
}

func (b *Bot) render(chatID int64, m session.Message) {
	switch {
	case m.Role == session.RoleSystem && m.Content == session.RecommendationCard && m.Food != nil:
		text := fmt.Sprintf("Your personalized recommendation:\n%s - $%.2f", m.Food.FoodName, m.Food.Price)
		if len(m.Food.Allergies) > 0 {
			text += "\nContains: " + strings.Join(m.Food.Allergies, ", ")
		} else {
			text += "\nNo common allergens"
		}
		out := tgbotapi.NewMessage(chatID, text)
		out.ReplyMarkup = recommendationKeyboard()
		if _, err := b.s.Send(out); err != nil {
			log.Printf("failed to send recommendation card: %v", err)
		}
	case m.Role == session.RoleAssistant:
		b.sendText(chatID, m.Content)
	}
}

func recommendationKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Order this now", cmdOrder),
			tgbotapi.NewInlineKeyboardButtonData("Another suggestion", cmdAlternate),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Start over", cmdRestart),
		),
	)
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}
