package chat

import (
	"time"

	"github.com/ecowatch/ecowatch/internal/constants"
)

// reconnectCapAttempt is the attempt from which the delay saturates:
// 1s << 5 = 32s already exceeds the 30s cap.
const reconnectCapAttempt = 6

// ReconnectDelay returns the backoff delay for the given reconnect attempt
// (1-based): 1s, 2s, 4s, 8s, 16s, then capped at 30s.
func ReconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt >= reconnectCapAttempt {
		return constants.ChatReconnectMaxDelay
	}

	delay := constants.ChatReconnectBaseDelay << (attempt - 1)
	if delay > constants.ChatReconnectMaxDelay {
		return constants.ChatReconnectMaxDelay
	}
	return delay
}
