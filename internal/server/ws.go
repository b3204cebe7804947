package server

import (
	"net/http"
	"time"
)

const writeWait = 10 * time.Second

type streamMessage struct {
	Type  string      `json:"type"`
	Posts interface{} `json:"posts,omitempty"`
	Error string      `json:"error,omitempty"`
}

// handleFeedStream отдает каждому клиенту поток полных снимков ленты
func (s *Server) handleFeedStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("Не удалось обновить соединение до websocket")
		return
	}

	wsClients.Inc()
	defer wsClients.Dec()
	defer conn.Close()

	ctx := r.Context()
	snapshots := s.projector.Watch(ctx)

	// Чтение только ради обнаружения закрытия клиентом
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for snapshot := range snapshots {
		msg := streamMessage{Type: "snapshot", Posts: snapshot.Posts}
		if snapshot.Err != nil {
			msg = streamMessage{Type: "error", Error: snapshot.Err.Error()}
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
		if snapshot.Err != nil {
			return
		}
	}
}
