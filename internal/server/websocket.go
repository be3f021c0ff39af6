package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/goklt/internal/report"
	"github.com/MeKo-Tech/goklt/internal/track"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocket message and response types.
const (
	wsTypeFrame = "frame"
	wsTypeReset = "reset"
	wsTypeError = "error"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are restricted by the CORS setting of the HTTP endpoints only.
		return true
	},
}

// WebSocketRequest is a text message sent by the client. Binary messages
// are treated as a frame request carrying the encoded image.
type WebSocketRequest struct {
	Type  string `json:"type"` // "frame" or "reset"
	Image []byte `json:"image,omitempty"`
	Name  string `json:"name,omitempty"`
}

// WebSocketResponse is sent for every processed request.
type WebSocketResponse struct {
	Type      string        `json:"type"` // "frame", "reset" or "error"
	Frame     *report.Frame `json:"frame,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorType string        `json:"error_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// session is the tracking state of one WebSocket connection. Frames of a
// connection form one sequence.
type session struct {
	manager *track.Manager
	next    int
}

// trackWebSocketHandler streams frames over a WebSocket connection and
// answers each with the tracks after that frame.
func (s *Server) trackWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	manager, err := s.newManager()
	if err != nil {
		s.writeErrorResponse(w, "Failed to create track manager: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer manager.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	s.metrics.websocketConnections.Inc()
	defer s.metrics.websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(conn, &session{manager: manager})
}

// handleWebSocketConnection processes messages until the client goes away.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn, sess *session) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket error", "error", err)
			}
			break
		}
		s.metrics.websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		switch messageType {
		case websocket.BinaryMessage:
			s.processWebSocketFrame(conn, sess, "", data)
		case websocket.TextMessage:
			s.handleWebSocketMessage(conn, sess, data)
		}
	}
	s.logger.Info("WebSocket connection closed", "frames", sess.next)
}

// handleWebSocketMessage processes a JSON text message.
func (s *Server) handleWebSocketMessage(conn WebSocketConnWriter, sess *session, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	switch req.Type {
	case wsTypeFrame:
		if len(req.Image) == 0 {
			s.sendWebSocketError(conn, "invalid_request", "No image data provided")
			return
		}
		s.processWebSocketFrame(conn, sess, req.Name, req.Image)
	case wsTypeReset:
		sess.manager.Reset()
		sess.next = 0
		s.sendWebSocketResponse(conn, WebSocketResponse{Type: wsTypeReset})
	default:
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// processWebSocketFrame tracks one encoded frame of the session.
func (s *Server) processWebSocketFrame(conn WebSocketConnWriter, sess *session, name string, image []byte) {
	if name == "" {
		name = "frame_" + strconv.Itoa(sess.next)
	}
	s.metrics.uploadSizeBytes.Observe(float64(len(image)))

	frame, err := s.trackFrame(sess.manager, sess.next, name, bytes.NewReader(image))
	if err != nil {
		s.metrics.framesTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", err.Error())
		return
	}
	s.metrics.framesTotal.WithLabelValues("websocket", "success").Inc()
	sess.next++

	s.sendWebSocketResponse(conn, WebSocketResponse{Type: wsTypeFrame, Frame: &frame})
}

func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      wsTypeError,
		Error:     message,
		ErrorType: errorType,
	})
}

func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket response", "error", err)
		return
	}
	s.metrics.websocketMessagesTotal.WithLabelValues("sent").Inc()
}
