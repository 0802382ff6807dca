package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// UserService defines accounts and friend requests.
type UserService interface {
	Register(ctx context.Context, req *domain.RegisterRequest, avatar *media.Upload) (*domain.AuthResult, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResult, error)
	GetProfile(ctx context.Context, userID string) (*domain.UserResponse, error)
	GetByUsername(ctx context.Context, username string) (*domain.UserResponse, error)
	// Search finds users by username who are neither the caller nor already friends.
	Search(ctx context.Context, userID, name string) ([]domain.UserSummary, error)
	SendRequest(ctx context.Context, senderID, receiverID string) error
	// AcceptRequest answers a request addressed to userID and returns its sender.
	AcceptRequest(ctx context.Context, userID, requestID string, accept bool) (string, error)
	Notifications(ctx context.Context, userID string) ([]domain.Notification, error)
	// Friends lists the other members of the caller's one-to-one chats. With
	// chatID set, users already in that chat are left out.
	Friends(ctx context.Context, userID, chatID string) ([]domain.UserSummary, error)
}

type userServiceImpl struct {
	users    repository.UserRepository
	chats    repository.ChatRepository
	requests repository.RequestRepository
	media    *media.Store
	tokens   *jwt.Manager
	notifier Notifier
}

func NewUserService(
	users repository.UserRepository,
	chats repository.ChatRepository,
	requests repository.RequestRepository,
	store *media.Store,
	tokens *jwt.Manager,
	notifier Notifier,
) UserService {
	return &userServiceImpl{
		users:    users,
		chats:    chats,
		requests: requests,
		media:    store,
		tokens:   tokens,
		notifier: notifier,
	}
}

func (s *userServiceImpl) Register(ctx context.Context, req *domain.RegisterRequest, avatar *media.Upload) (*domain.AuthResult, error) {
	l := log.Ctx(ctx)

	if avatar == nil {
		return nil, ErrAvatarRequired
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return nil, err
	}

	asset, err := s.media.PutAvatar(ctx, *avatar)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         req.Name,
		Username:     req.Username,
		Bio:          req.Bio,
		PasswordHash: string(hashedPassword),
		Avatar:       asset,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.media.DeleteAll(context.WithoutCancel(ctx), []domain.Asset{asset})
		if errors.Is(err, repository.ErrUsernameExists) {
			return nil, ErrUsernameTaken
		}
		l.Error().Err(err).Msg("failed to create user")
		return nil, err
	}

	audit.Log(ctx, audit.ActionRegister, user.ID, "user registered")
	return s.issue(user)
}

func (s *userServiceImpl) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResult, error) {
	l := log.Ctx(ctx)

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			audit.LogWithDetail(ctx, audit.ActionLoginFailed, "", req.Username, "login failed: user not found")
			return nil, ErrInvalidCredentials
		}
		l.Error().Err(err).Msg("failed to get user by username")
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		audit.LogWithDetail(ctx, audit.ActionLoginFailed, user.ID, req.Username, "login failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	audit.Log(ctx, audit.ActionLogin, user.ID, "user logged in")
	return s.issue(user)
}

func (s *userServiceImpl) issue(user *domain.User) (*domain.AuthResult, error) {
	token, err := s.tokens.IssueSession(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &domain.AuthResult{User: user.ToResponse(), Token: token}, nil
}

func (s *userServiceImpl) GetProfile(ctx context.Context, userID string) (*domain.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userServiceImpl) GetByUsername(ctx context.Context, username string) (*domain.UserResponse, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, mapUserErr(err)
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userServiceImpl) Search(ctx context.Context, userID, name string) ([]domain.UserSummary, error) {
	friends, err := s.friendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	users, err := s.users.Search(ctx, name, append(friends, userID))
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u *domain.User, _ int) domain.UserSummary {
		return u.Summary()
	}), nil
}

func (s *userServiceImpl) SendRequest(ctx context.Context, senderID, receiverID string) error {
	if senderID == receiverID {
		return ErrSelfRequest
	}

	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		return mapUserErr(err)
	}

	_, err := s.requests.FindPendingBetween(ctx, senderID, receiverID)
	switch {
	case err == nil:
		return ErrRequestExists
	case !errors.Is(err, repository.ErrRequestNotFound):
		return err
	}

	friends, err := s.friendIDs(ctx, senderID)
	if err != nil {
		return err
	}
	if lo.Contains(friends, receiverID) {
		return ErrRequestExists
	}

	req := &domain.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     domain.RequestPending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return err
	}

	audit.LogWithTarget(ctx, audit.ActionSendRequest, senderID, receiverID, "friend request sent")
	s.notifier.Notify(domain.EventNewRequest, []string{receiverID}, domain.NewRequestPayload)
	return nil
}

func (s *userServiceImpl) AcceptRequest(ctx context.Context, userID, requestID string, accept bool) (string, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return "", ErrRequestNotFound
		}
		return "", err
	}
	if req.ReceiverID != userID {
		return "", ErrNotReceiver
	}
	if req.Status != domain.RequestPending {
		return "", ErrRequestNotFound
	}

	if !accept {
		if err := s.requests.Delete(ctx, req.ID); err != nil {
			return "", err
		}
		audit.LogWithTarget(ctx, audit.ActionRejectRequest, userID, req.SenderID, "friend request rejected")
		return req.SenderID, nil
	}

	users, err := s.users.GetByIDs(ctx, []string{req.SenderID, req.ReceiverID})
	if err != nil {
		return "", err
	}
	sender, ok := users[req.SenderID]
	if !ok {
		return "", ErrUserNotFound
	}
	receiver, ok := users[req.ReceiverID]
	if !ok {
		return "", ErrUserNotFound
	}

	chat := &domain.Chat{
		Name:      sender.Name + "-" + receiver.Name,
		GroupChat: false,
		CreatorID: sender.ID,
		Members:   []string{sender.ID, receiver.ID},
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return "", err
	}
	if err := s.requests.UpdateStatus(ctx, req.ID, domain.RequestAccepted); err != nil {
		return "", err
	}

	audit.LogWithTarget(ctx, audit.ActionAcceptRequest, userID, req.SenderID, "friend request accepted")
	s.notifier.Notify(domain.EventRefetchChats, chat.Members, nil)
	return req.SenderID, nil
}

func (s *userServiceImpl) Notifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	pending, err := s.requests.ListPendingFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	senders, err := s.users.GetByIDs(ctx, lo.Map(pending, func(r *domain.FriendRequest, _ int) string {
		return r.SenderID
	}))
	if err != nil {
		return nil, err
	}

	out := make([]domain.Notification, 0, len(pending))
	for _, r := range pending {
		sender, ok := senders[r.SenderID]
		if !ok {
			continue
		}
		out = append(out, domain.Notification{ID: r.ID, Sender: sender.Summary()})
	}
	return out, nil
}

func (s *userServiceImpl) Friends(ctx context.Context, userID, chatID string) ([]domain.UserSummary, error) {
	ids, err := s.friendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	if chatID != "" {
		chat, err := s.chats.GetByID(ctx, chatID)
		if err != nil {
			return nil, mapChatErr(err)
		}
		ids = lo.Without(ids, chat.Members...)
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

// friendIDs returns the other member of each of userID's one-to-one chats.
func (s *userServiceImpl) friendIDs(ctx context.Context, userID string) ([]string, error) {
	chats, err := s.chats.ListForMember(ctx, userID, repository.ChatKindDirect)
	if err != nil {
		return nil, err
	}
	ids := lo.FlatMap(chats, func(c *domain.Chat, _ int) []string {
		return lo.Without(c.Members, userID)
	})
	return lo.Uniq(ids), nil
}

func mapUserErr(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}

func mapChatErr(err error) error {
	if errors.Is(err, repository.ErrChatNotFound) {
		return ErrChatNotFound
	}
	return err
}
