package cancel

import (
	"bufio"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// StdinAdapter reads stdin line by line; the literal line `cancel`
// (case-insensitive, trimmed) requests cancellation (spec §6 "User
// surface"). On EOF it exits silently — user-cancel simply becomes
// unreachable for the rest of the Run (spec §7.e).
func StdinAdapter(r io.Reader, signal *Signal, log zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "cancel") {
			log.Info().Msg("user-cancel received via stdin")
			signal.Request()
			return
		}
	}
}
