package broadcast

import (
	"bytes"
	"encoding/json"
)

// dedup suppresses an event when one with identical type and deep-equal
// data is the most recent entry on the stream. Resend-on-reconnect and
// multi-path triggers (a direct mutation plus a background sync) can emit
// the same logical event twice; only the first should reach clients.
type dedup struct {
	lastType EventType
	lastData []byte
}

// shouldSend reports whether the event differs from the previous one and
// records it as the new most-recent entry if so. Handshake events carry no
// business data and are always sent without updating the stream.
func (d *dedup) shouldSend(t EventType, data any) bool {
	if t == EventConnected {
		return true
	}
	raw, err := json.Marshal(data)
	if err != nil {
		// Undecodable data cannot be compared; let it through.
		return true
	}
	if t == d.lastType && bytes.Equal(raw, d.lastData) {
		return false
	}
	d.lastType = t
	d.lastData = raw
	return true
}
