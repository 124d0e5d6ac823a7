package ws

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// ConnInfo captures identifying metadata for one websocket connection,
// attached at handshake time and carried through teardown reporting.
type ConnInfo struct {
	ConnID      string
	UserID      int64
	DeviceID    string
	UserAgent   string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
