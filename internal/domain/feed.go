package domain

import "time"

// ConnectionState is the state of the market feed connection.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "DISCONNECTED"
	ConnConnecting   ConnectionState = "CONNECTING"
	ConnConnected    ConnectionState = "CONNECTED"
	ConnBackoffWait  ConnectionState = "BACKOFF_WAIT"
)

// ConnectionStatus is delivered to observers on every state change.
type ConnectionStatus struct {
	State      ConnectionState
	Attempt    int
	RetryAfter time.Duration
	Err        error
	At         time.Time
}
