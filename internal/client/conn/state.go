/*
Package conn implements the client's Connection Manager: it owns the single logical
connection to the coordination server, publishes its ConnectionState, and reconnects
with bounded exponential backoff after a transport failure.
*/
package conn

// State is the lifecycle state of the logical connection.
type State int

const (
	// Disconnected is the initial state and the state after an explicit Disconnect.
	Disconnected State = iota

	// Connecting means an explicitly requested connection attempt is in flight.
	Connecting

	// Connected means the transport is up and the session HELLO has been written.
	Connected

	// Reconnecting means the transport failed and the backoff retry loop is running.
	Reconnecting

	// Error means the retry budget is exhausted; only Connect or ForceReconnect leave it.
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Reconnecting:
		return "RECONNECTING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
