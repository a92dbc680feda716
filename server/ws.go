package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // mirrors the permissive REST CORS policy
	},
}

// Message is the websocket frame for both directions. Client frames use
// type "query"; server frames use status, stream, answer and error.
type Message struct {
	Type       string      `json:"type"`
	Content    string      `json:"content,omitempty"`
	DocumentID string      `json:"document_id,omitempty"`
	TopK       int         `json:"top_k,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		if msg.Type != "query" {
			s.sendMessage(conn, Message{Type: "error", Content: "unsupported message type: " + msg.Type})
			continue
		}

		s.handleWSQuery(ctx, conn, msg)
	}
}

func (s *Server) handleWSQuery(ctx context.Context, conn *websocket.Conn, msg Message) {
	if errMsg := validateQuery(queryRequest{
		Question:   msg.Content,
		DocumentID: msg.DocumentID,
		TopK:       msg.TopK,
	}, s.config.MaxTopK); errMsg != "" {
		s.sendMessage(conn, Message{Type: "error", Content: errMsg})
		return
	}

	s.sendMessage(conn, Message{Type: "status", Content: "Searching documents..."})

	result, err := s.retrieval.QueryStream(ctx, msg.Content, msg.TopK, msg.DocumentID, func(chunk string) error {
		return conn.WriteJSON(Message{Type: "stream", Content: chunk})
	})
	if err != nil {
		s.sendMessage(conn, Message{Type: "error", Content: err.Error()})
		return
	}

	s.sendMessage(conn, Message{Type: "answer", Content: result.Answer, Data: result})
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn("failed to send websocket message", zap.Error(err))
	}
}
