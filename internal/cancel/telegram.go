package cancel

import (
	"strings"

	"github.com/billygk/perpx/internal/telegram"
	"github.com/rs/zerolog"
)

// TelegramAdapter listens on an authorized Telegram chat and requests
// cancellation when it receives the literal command `/cancel` (spec §9:
// "stdin being one adapter" — this is the other one). Runs until stop is
// closed.
func TelegramAdapter(listener *telegram.Listener, signal *Signal, stop <-chan struct{}, log zerolog.Logger) {
	listener.Listen(stop, func(text string) {
		if strings.EqualFold(strings.TrimSpace(text), "/cancel") {
			log.Info().Msg("user-cancel received via telegram")
			signal.Request()
		}
	})
}
