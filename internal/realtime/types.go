// Package realtime implements the GraphQL-over-WebSocket subscriber used
// when a project's control plane advertises realtime transport (spec.md
// §4.5).
package realtime

import "github.com/mbc-net/ai-support-agent/internal/command"

// State is one node of the subscriber's connection state machine.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateInitialised  State = "initialised"
	StateAcked        State = "acked"
	StateReconnecting State = "reconnecting"
	StateClosing      State = "closing"
	StateTerminal     State = "terminal"
)

// envelope is the graphql-ws wire message shape: {type, id?, payload?}.
type envelope struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgStart          = "start"
	msgStartAck       = "start_ack"
	msgData           = "data"
	msgKeepAlive      = "ka"
	msgError          = "error"
	msgComplete       = "complete"
	msgStop           = "stop"
)

type connectionAckPayload struct {
	ConnectionTimeoutMS int `json:"connectionTimeoutMs"`
}

type dataPayload struct {
	Data struct {
		OnMessage command.Notification `json:"onMessage"`
	} `json:"data"`
}

const defaultKeepAliveTimeout = 30_000 // ms, used until the server's connection_ack overrides it

const (
	reconnectBaseDelayMS = 1000
	maxReconnectAttempts = 5
)
