package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/samber/lo"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

// AdminService backs the admin console.
type AdminService interface {
	// Verify checks the admin secret and returns an admin token.
	Verify(ctx context.Context, secretKey string) (string, error)
	Users(ctx context.Context) ([]domain.AdminUser, error)
	Chats(ctx context.Context) ([]domain.AdminChat, error)
	Messages(ctx context.Context) ([]domain.AdminMessage, error)
	Dashboard(ctx context.Context) (*domain.DashboardStats, error)
}

type adminServiceImpl struct {
	users     repository.UserRepository
	chats     repository.ChatRepository
	messages  repository.MessageRepository
	tokens    *jwt.Manager
	secretKey string
	now       func() time.Time
}

func NewAdminService(
	users repository.UserRepository,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	tokens *jwt.Manager,
	secretKey string,
) AdminService {
	return &adminServiceImpl{
		users:     users,
		chats:     chats,
		messages:  messages,
		tokens:    tokens,
		secretKey: secretKey,
		now:       time.Now,
	}
}

func (s *adminServiceImpl) Verify(ctx context.Context, secretKey string) (string, error) {
	if s.secretKey == "" || subtle.ConstantTimeCompare([]byte(secretKey), []byte(s.secretKey)) != 1 {
		audit.Log(ctx, audit.ActionAdminLoginFail, "", "admin login failed")
		return "", ErrInvalidAdminKey
	}

	token, err := s.tokens.IssueAdmin()
	if err != nil {
		return "", err
	}
	audit.Log(ctx, audit.ActionAdminLogin, "", "admin logged in")
	return token, nil
}

func (s *adminServiceImpl) Users(ctx context.Context) ([]domain.AdminUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.chats.MembershipCounts(ctx)
	if err != nil {
		return nil, err
	}

	return lo.Map(users, func(u *domain.User, _ int) domain.AdminUser {
		c := counts[u.ID]
		return domain.AdminUser{
			ID:       u.ID,
			Name:     u.Name,
			Username: u.Username,
			Avatar:   u.Avatar.URL,
			Groups:   c.Groups,
			Friends:  c.Friends,
		}
	}), nil
}

func (s *adminServiceImpl) Chats(ctx context.Context) ([]domain.AdminChat, error) {
	chats, err := s.chats.List(ctx)
	if err != nil {
		return nil, err
	}
	messageCounts, err := s.messages.CountGroupedByChat(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.GetByIDs(ctx, lo.Uniq(lo.FlatMap(chats, func(c *domain.Chat, _ int) []string {
		return append(append([]string{}, c.Members...), c.CreatorID)
	})))
	if err != nil {
		return nil, err
	}

	return lo.Map(chats, func(c *domain.Chat, _ int) domain.AdminChat {
		members := summaries(users, c.Members)
		creator := domain.UserSummary{Name: "None"}
		if u, ok := users[c.CreatorID]; ok {
			creator = domain.UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar.URL}
		}
		return domain.AdminChat{
			ID:        c.ID,
			Name:      c.Name,
			GroupChat: c.GroupChat,
			Avatar: lo.Map(lo.Slice(members, 0, 3), func(m domain.UserSummary, _ int) string {
				return m.Avatar
			}),
			Members:       members,
			Creator:       creator,
			TotalMembers:  len(c.Members),
			TotalMessages: messageCounts[c.ID],
		}
	}), nil
}

func (s *adminServiceImpl) Messages(ctx context.Context) ([]domain.AdminMessage, error) {
	msgs, err := s.messages.List(ctx)
	if err != nil {
		return nil, err
	}
	chats, err := s.chats.List(ctx)
	if err != nil {
		return nil, err
	}
	group := lo.SliceToMap(chats, func(c *domain.Chat) (string, bool) {
		return c.ID, c.GroupChat
	})
	users, err := s.users.GetByIDs(ctx, lo.Uniq(lo.Map(msgs, func(m *domain.Message, _ int) string {
		return m.SenderID
	})))
	if err != nil {
		return nil, err
	}

	return lo.Map(msgs, func(m *domain.Message, _ int) domain.AdminMessage {
		sender := domain.UserSummary{ID: m.SenderID}
		if u, ok := users[m.SenderID]; ok {
			sender = u.Summary()
		}
		return domain.AdminMessage{
			ID:          m.ID,
			Content:     m.Content,
			Attachments: m.Attachments,
			Sender:      sender,
			Chat:        m.ChatID,
			GroupChat:   group[m.ChatID],
			CreatedAt:   m.CreatedAt,
		}
	}), nil
}

func (s *adminServiceImpl) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{Messages: make([]int64, domain.DashboardDays)}

	var err error
	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalGroups, err = s.chats.Count(ctx, repository.ChatKindGroup); err != nil {
		return nil, err
	}
	if stats.TotalChats, err = s.chats.Count(ctx, repository.ChatKindAny); err != nil {
		return nil, err
	}
	if stats.TotalMessages, err = s.messages.Count(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	created, err := s.messages.CreatedSince(ctx, now.Add(-domain.DashboardDays*24*time.Hour))
	if err != nil {
		return nil, err
	}
	for _, t := range created {
		days := int(now.Sub(t) / (24 * time.Hour))
		if days < 0 || days >= domain.DashboardDays {
			continue
		}
		stats.Messages[domain.DashboardDays-1-days]++
	}
	return stats, nil
}
