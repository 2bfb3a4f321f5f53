package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sweeney/tilt-lamp/internal/status"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{} // use default options

// handleStream pushes a status frame on connect and after every tracker
// change until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failure")
		return
	}
	defer c.Close()

	// Reader: the page never sends anything, but reading is how a close is noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		changed := s.tracker.Changed()
		frame := status.FormatStatusEvent(s.tracker.Snapshot(), "", "")
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			s.log.WithError(err).Debug("websocket client dropped")
			return
		}

		if !s.awaitChange(c, changed, ping.C, gone) {
			return
		}
	}
}

// awaitChange blocks until the tracker changes, keeping the connection alive
// with pings. It returns false once the stream should end.
func (s *Server) awaitChange(c *websocket.Conn, changed <-chan struct{}, ping <-chan time.Time, gone <-chan struct{}) bool {
	for {
		select {
		case <-changed:
			return true
		case <-ping:
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return false
			}
		case <-gone:
			return false
		case <-s.done:
			c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return false
		}
	}
}
