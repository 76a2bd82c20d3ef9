package journal

import (
	"fmt"
	"time"

	"github.com/rickgao/ws-heartbeat/internal/connection"
)

// StatsEvent converts a manager stats snapshot into a stats event.
func StatsEvent(s connection.Stats) Event {
	return Event{
		SessionID: s.SessionID,
		Target:    s.Target,
		Kind:      KindStats,
		Code:      s.Attempts,
		Detail: fmt.Sprintf("phase=%s ready=%s reconnects=%d opens=%d messages=%d pings=%d",
			s.Phase, s.ReadyState, s.Reconnects, s.Opens, s.MessagesIn, s.PingsSent),
		RTT: s.LastRTT,
		At:  time.Now(),
	}
}
