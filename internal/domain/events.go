package domain

import "encoding/json"

// Realtime event names. Inbound frames use NEW_MESSAGE, START_TYPING,
// STOP_TYPING, ONLINE_USERS and PING; everything else is server to client.
const (
	EventAlert           = "ALERT"
	EventRefetchChats    = "REFETCH_CHATS"
	EventNewAttachment   = "NEW_ATTACHMENT"
	EventNewMessageAlert = "NEW_MESSAGE_ALERT"
	EventNewRequest      = "NEW_REQUEST"
	EventNewMessage      = "NEW_MESSAGE"
	EventStartTyping     = "START_TYPING"
	EventStopTyping      = "STOP_TYPING"
	EventOnlineUsers     = "ONLINE_USERS"
	EventError           = "ERROR"
	EventPing            = "PING"
	EventPong            = "PONG"
)

// NewRequestPayload is the body of NEW_REQUEST.
const NewRequestPayload = "request"

// InboundFrame is a frame read from a client socket.
type InboundFrame struct {
	Event string          `json:"event" validate:"required"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is a frame written to client sockets.
type OutboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// NewMessageEvent is the NEW_MESSAGE request from a client.
type NewMessageEvent struct {
	ChatID  string   `json:"chatId" validate:"required"`
	Members []string `json:"members" validate:"required,min=1,max=100,dive,required"`
	Message string   `json:"message" validate:"required,max=4000"`
}

// TypingEvent is a START_TYPING or STOP_TYPING request.
type TypingEvent struct {
	ChatID  string   `json:"chatId" validate:"required"`
	Members []string `json:"members" validate:"max=100,dive,required"`
}

// OnlineUsersEvent asks for the online snapshot to be pushed to members.
type OnlineUsersEvent struct {
	Members []string `json:"members" validate:"max=100,dive,required"`
}

// MessagePayload is the body of NEW_MESSAGE sent to members.
type MessagePayload struct {
	ChatID  string          `json:"chatId"`
	Message RealtimeMessage `json:"message"`
}

// ChatRefPayload is the body of NEW_MESSAGE_ALERT and typing events.
type ChatRefPayload struct {
	ChatID string `json:"chatId"`
}

// ErrorPayload is the body of ERROR.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
