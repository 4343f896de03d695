package enums

// ConnectionStatus tracks the lifecycle of one realtime subscription channel.
type ConnectionStatus string

const (
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionError        ConnectionStatus = "error"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionClosed       ConnectionStatus = "closed"
)

// IsTerminal reports whether no further automatic transitions will occur.
func (s ConnectionStatus) IsTerminal() bool {
	return s == ConnectionDisconnected || s == ConnectionClosed
}
