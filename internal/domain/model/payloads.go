package model

// ServerVersion is reported to clients in the connected handshake.
const ServerVersion = "1.0.0"

// ConnectedPayload is the handshake sent down a push channel as soon as the
// subscription is registered. Receipt of it moves a client to the Connected
// state.
type ConnectedPayload struct {
	Identity      string `json:"identity"`
	ConnectionID  string `json:"connection_id"`
	ServerVersion string `json:"server_version"`
}

// PingPayload is the periodic liveness tick. It carries no state; clients
// treat it as proof the channel is still open.
type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}
