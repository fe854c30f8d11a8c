package model

import "time"

// HubStats is a point-in-time snapshot of the connection registry, exposed
// on the stats endpoint and rendered by the monitor command.
type HubStats struct {
	Connections int           `json:"connections"`
	Registered  uint64        `json:"registered_total"`
	Replaced    uint64        `json:"replaced_total"`
	Uptime      time.Duration `json:"uptime"`
}
