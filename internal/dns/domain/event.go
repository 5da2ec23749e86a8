package domain

import "time"

// TelemetryModule identifies DNS events among the honeypot's other modules.
const TelemetryModule = "DNS"

// Event types reported per query kind.
const (
	EventIPv4Query        = "IPv4-Query"
	EventIPv6Query        = "IPv6-Query"
	EventReverseQuery     = "Reverse-Query"
	EventUnsupportedQuery = "Unsupported-Query"
)

// TelemetryEvent is the security record emitted for every query. JSON names
// follow the honeypot index mapping shared with the other decoy modules.
type TelemetryEvent struct {
	Module      string `json:"module"`
	TimestampMs int64  `json:"@timestamp"`
	SourceAddr  string `json:"sourceIPv4Address"`
	SourcePort  uint16 `json:"sourceTransportPort"`
	DestAddr    string `json:"destinationIPv4Address"`
	DestPort    uint16 `json:"destinationTransportPort"`
	Type        string `json:"type"`
	Description string `json:"command"`
	Success     bool   `json:"success"`
	Sensor      string `json:"sensor,omitempty"`
	Transport   string `json:"transport,omitempty"`
	Zone        string `json:"zone,omitempty"`
}

// Time returns the event timestamp as a time.Time.
func (e TelemetryEvent) Time() time.Time {
	return time.UnixMilli(e.TimestampMs)
}
