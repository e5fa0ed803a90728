// Package telegram sends Run notifications and listens for the /cancel
// command, adapted from the teacher's hand-rolled net/http client/sender/
// listener trio onto github.com/go-telegram-bot-api/telegram-bot-api/v5.
package telegram

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Notifier sends fire-and-forget messages to one authorized chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewNotifier builds a Notifier bound to a single bot token and chat.
func NewNotifier(token, chatID string, log zerolog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, err
	}
	return &Notifier{bot: bot, chatID: id, log: log}, nil
}

// Notify sends text to the configured chat, logging (never panicking) on
// failure — notification delivery is best-effort and never blocks the Run.
func (n *Notifier) Notify(text string) {
	if n == nil || n.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Msg("telegram notify failed")
	}
}

// Listener long-polls getUpdates and dispatches authorized-chat commands.
type Listener struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewListener builds a Listener sharing the same bot/chat as a Notifier
// would, but with its own *tgbotapi.BotAPI instance (the SDK's update
// channel owns the polling loop's lifecycle).
func NewListener(token, chatID string, log zerolog.Logger) (*Listener, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, err
	}
	return &Listener{bot: bot, chatID: id, log: log}, nil
}

// Listen blocks, invoking onCommand for every text message from the
// authorized chat, until stop is closed.
func (l *Listener) Listen(stop <-chan struct{}, onCommand func(text string)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := l.bot.GetUpdatesChan(u)

	for {
		select {
		case <-stop:
			l.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			if update.Message.Chat.ID != l.chatID {
				l.log.Warn().Int64("chat_id", update.Message.Chat.ID).Str("username", update.Message.From.UserName).Msg("unauthorized telegram access attempt")
				continue
			}
			onCommand(update.Message.Text)
		}
	}
}
