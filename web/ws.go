package web

import (
	iface "FrameAnnotator/interface"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsReply struct {
	ID     string `json:"_msgid"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// wsMessage turns one websocket frame into a node message. Binary frames
// are raw JPEG; text frames are a JSON envelope or a bare string payload.
func wsMessage(mt int, data []byte) iface.Message {
	if mt == websocket.TextMessage {
		var msg iface.Message
		if err := json.Unmarshal(data, &msg); err == nil && msg.Payload != nil {
			return msg
		}
		return iface.Message{Payload: string(data)}
	}
	return iface.Message{Payload: data}
}

func (s *Server) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the response
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	session := uuid.NewString()
	log := s.log.With(zap.String("session", session))
	log.Info("Websocket connected", zap.String("remote", c.Request.RemoteAddr))

	ctx := c.Request.Context()
	for {
		if s.idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			log.Info("Websocket closed", zap.Error(err))
			return
		}
		s.mon.Request("ws")

		var reply wsReply
		switch mt {
		case websocket.BinaryMessage, websocket.TextMessage:
			msg := wsMessage(mt, data)
			if msg.ID == "" {
				msg.ID = uuid.NewString()
			}
			reply.ID = msg.ID
			res, err := s.node.Input(ctx, msg)
			if err != nil {
				reply.Error = err.Error()
			} else {
				reply.Result = res
			}
		default:
			reply.Error = "unsupported message type"
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn("Websocket write failed", zap.Error(err))
			return
		}
	}
}
