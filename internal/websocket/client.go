package websocket

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"taskhive/pkg/logger"
)

// flexID accepts a team id sent either as a JSON number or a string, since
// browser clients pull the id from route params.
type flexID int

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

type chatPayload struct {
	TeamID  flexID `json:"teamId"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ServeClient reads events from one connection until it drops. Malformed
// frames are logged and skipped; the connection stays open. Every hub send
// races the quit channel so a connection arriving during shutdown cannot
// strand this goroutine.
func (h *Hub) ServeClient(client *Client) {
	select {
	case h.Register <- client:
	case <-h.quit:
		client.Conn.Close()
		return
	}
	defer func() {
		select {
		case h.Unregister <- client:
		case <-h.quit:
			client.Conn.Close()
		}
	}()

	for {
		messageType, raw, err := client.Conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.ErrorLogger.Error("Invalid websocket frame",
				zap.String("client_id", client.ID), zap.Error(err))
			continue
		}

		switch env.Event {
		case "join_team":
			var teamID flexID
			if err := json.Unmarshal(env.Data, &teamID); err != nil {
				logger.ErrorLogger.Error("Invalid join_team payload",
					zap.String("client_id", client.ID), zap.Error(err))
				continue
			}
			select {
			case h.Join <- RoomJoin{Client: client, TeamID: int(teamID)}:
			case <-h.quit:
				return
			}
		case "send_message":
			var msg chatPayload
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				logger.ErrorLogger.Error("Invalid send_message payload",
					zap.String("client_id", client.ID), zap.Error(err))
				continue
			}
			if h.OnChatMessage != nil {
				h.OnChatMessage(int(msg.TeamID), msg.Email, msg.Message)
			}
		default:
			logger.ErrorLogger.Error("Unknown websocket event",
				zap.String("client_id", client.ID), zap.String("event", env.Event))
		}
	}
}
