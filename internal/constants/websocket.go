package constants

import "time"

// ChatSocketPath is the path of the violation chat WebSocket endpoint.
const ChatSocketPath = "/api/ws/violation-chat"

// ChatReconnectBaseDelay is the delay before the first chat reconnect attempt.
const ChatReconnectBaseDelay = 1 * time.Second

// ChatReconnectMaxDelay caps the exponential reconnect backoff.
const ChatReconnectMaxDelay = 30 * time.Second

// ChatDefaultPageSize is the page size used when loading chat history.
const ChatDefaultPageSize = 50
