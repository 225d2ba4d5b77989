package sse

import "time"

// StartHeartbeat publishes a "heartbeat" event on s at the given
// interval until stop is closed. The transport's SSE writer treats
// heartbeat events as keep-alive pings rather than data to forward to
// the MCP client.
func StartHeartbeat(s *Stream, interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Heartbeat()
			case <-stop:
				return
			}
		}
	}()
}
