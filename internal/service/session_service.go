package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/dispatcher"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/persist"
	"github.com/weiawesome/wes-io-chat/internal/presence"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// SessionService drives one socket connection from authentication to close.
type SessionService interface {
	// Connect activates an authenticated client.
	Connect(client *hub.Client, user *domain.User) error
	// HandleMessage processes one inbound frame.
	HandleMessage(client *hub.Client, raw []byte)
	// Disconnect tears the client down. Safe to call more than once.
	Disconnect(client *hub.Client)
	// Wait blocks until in-flight persistence has finished.
	Wait()
}

type sessionServiceImpl struct {
	directory      *presence.Directory
	dispatcher     *dispatcher.Dispatcher
	hub            *hub.Hub
	gateway        persist.Gateway
	validate       *validator.Validate
	persistTimeout time.Duration
	now            func() time.Time
	wg             sync.WaitGroup
}

func NewSessionService(
	directory *presence.Directory,
	d *dispatcher.Dispatcher,
	h *hub.Hub,
	gateway persist.Gateway,
	persistTimeout time.Duration,
) SessionService {
	if persistTimeout <= 0 {
		persistTimeout = 5 * time.Second
	}
	return &sessionServiceImpl{
		directory:      directory,
		dispatcher:     d,
		hub:            h,
		gateway:        gateway,
		validate:       validator.New(),
		persistTimeout: persistTimeout,
		now:            time.Now,
	}
}

func (s *sessionServiceImpl) Connect(client *hub.Client, user *domain.User) error {
	if err := client.Session.Authenticate(user); err != nil {
		return err
	}

	s.hub.Add(client)
	previous := s.directory.Register(user.ID, client.ID)
	if err := client.Session.Activate(); err != nil {
		// closed while registering
		s.directory.Release(user.ID, client.ID)
		s.hub.Remove(client)
		return err
	}

	ctx := client.Context()
	l := log.Ctx(ctx)
	if previous != "" && previous != client.ID {
		l.Debug().Str("previous_conn_id", previous).Msg("newer connection replaces previous")
	}
	audit.Log(ctx, audit.ActionSocketConnect, user.ID, "socket connected")
	return nil
}

func (s *sessionServiceImpl) HandleMessage(client *hub.Client, raw []byte) {
	if !client.Session.IsActive() {
		s.replyError(client, domain.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	var frame domain.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || s.validate.Struct(&frame) != nil {
		s.replyError(client, domain.ErrCodeBadRequest, "Invalid message format")
		return
	}

	switch frame.Event {
	case domain.EventNewMessage:
		var ev domain.NewMessageEvent
		if !s.decode(client, frame, &ev) {
			return
		}
		s.handleNewMessage(client, ev)

	case domain.EventStartTyping, domain.EventStopTyping:
		var ev domain.TypingEvent
		if !s.decode(client, frame, &ev) {
			return
		}
		s.dispatcher.Dispatch(client.Context(), frame.Event, ev.Members,
			domain.ChatRefPayload{ChatID: ev.ChatID}, dispatcher.SkipConn(client.ID))

	case domain.EventOnlineUsers:
		var ev domain.OnlineUsersEvent
		if !s.decode(client, frame, &ev) {
			return
		}
		s.dispatcher.Dispatch(client.Context(), domain.EventOnlineUsers, ev.Members, s.directory.Snapshot())

	case domain.EventPing:
		s.dispatcher.Reply(client.ID, domain.EventPong, nil)

	default:
		s.replyError(client, domain.ErrCodeBadRequest, "Unknown event type")
	}
}

func (s *sessionServiceImpl) handleNewMessage(client *hub.Client, ev domain.NewMessageEvent) {
	user := client.Session.User()
	ctx := log.Enrich(client.Context(), log.FieldUserID, user.ID, log.FieldChatID, ev.ChatID)

	realtime := domain.NewRealtimeMessage(
		domain.NewMessageID(),
		ev.ChatID,
		ev.Message,
		domain.UserSummary{ID: user.ID, Name: user.Name},
		nil,
		s.now(),
	)

	s.dispatcher.Dispatch(ctx, domain.EventNewMessage, ev.Members,
		domain.MessagePayload{ChatID: ev.ChatID, Message: realtime})
	s.dispatcher.Dispatch(ctx, domain.EventNewMessageAlert, ev.Members,
		domain.ChatRefPayload{ChatID: ev.ChatID})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
		defer cancel()

		if _, err := s.gateway.CreateMessage(pctx, user.ID, ev.ChatID, ev.Message, nil); err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).Str("realtime_id", realtime.ID).Msg("failed to persist message")
			audit.LogWithTarget(ctx, audit.ActionPersistFailed, user.ID, ev.ChatID, "message not persisted")
			s.replyError(client, domain.ErrCodePersistence, "Failed to save message")
		}
	}()
}

func (s *sessionServiceImpl) Disconnect(client *hub.Client) {
	prev := client.Session.Disconnect()
	s.hub.Remove(client)

	if prev != domain.StateActive {
		return
	}

	user := client.Session.User()
	ctx := client.Context()
	audit.Log(ctx, audit.ActionSocketClose, user.ID, "socket disconnected")

	// a newer connection for the same user keeps the user online
	if !s.directory.Release(user.ID, client.ID) {
		return
	}
	s.dispatcher.Broadcast(ctx, domain.EventOnlineUsers, s.directory.Snapshot(), dispatcher.SkipConn(client.ID))
}

func (s *sessionServiceImpl) Wait() {
	s.wg.Wait()
}

func (s *sessionServiceImpl) decode(client *hub.Client, frame domain.InboundFrame, v interface{}) bool {
	if len(frame.Data) == 0 {
		s.replyError(client, domain.ErrCodeBadRequest, "Missing data for "+frame.Event)
		return false
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		s.replyError(client, domain.ErrCodeBadRequest, "Invalid data for "+frame.Event)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		l := log.Ctx(client.Context())
		l.Debug().Err(err).Str(log.FieldEvent, frame.Event).Msg("inbound event failed validation")
		s.replyError(client, domain.ErrCodeBadRequest, "Invalid data for "+frame.Event)
		return false
	}
	return true
}

func (s *sessionServiceImpl) replyError(client *hub.Client, code, msg string) {
	s.dispatcher.Reply(client.ID, domain.EventError, domain.ErrorPayload{Code: code, Message: msg})
}
