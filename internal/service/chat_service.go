package service

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/samber/lo"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// ChatService defines chats, groups and message history.
type ChatService interface {
	MyChats(ctx context.Context, userID string) ([]domain.ChatListItem, error)
	// MyGroups lists the groups userID administers.
	MyGroups(ctx context.Context, userID string) ([]domain.ChatListItem, error)
	CreateGroup(ctx context.Context, userID string, req *domain.CreateGroupRequest) (*domain.ChatResponse, error)
	AddMembers(ctx context.Context, userID string, req *domain.AddMembersRequest) error
	RemoveMember(ctx context.Context, userID string, req *domain.RemoveMemberRequest) error
	LeaveGroup(ctx context.Context, userID, chatID string) error
	SendAttachments(ctx context.Context, userID, chatID string, files []media.Upload) (*domain.RealtimeMessage, error)
	GetChat(ctx context.Context, userID, chatID string) (*domain.ChatResponse, error)
	GetPopulatedChat(ctx context.Context, userID, chatID string) (*domain.PopulatedChat, error)
	RenameGroup(ctx context.Context, userID, chatID, name string) error
	DeleteChat(ctx context.Context, userID, chatID string) error
	Messages(ctx context.Context, userID, chatID string, page, perPage int) (*domain.MessagePage, error)
}

type chatServiceImpl struct {
	chats          repository.ChatRepository
	messages       repository.MessageRepository
	users          repository.UserRepository
	media          *media.Store
	notifier       Notifier
	maxAttachments int
	// pick returns a uniform index in [0, n).
	pick func(n int) int
}

func NewChatService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	store *media.Store,
	notifier Notifier,
	maxAttachments int,
) ChatService {
	if maxAttachments <= 0 {
		maxAttachments = 5
	}
	return &chatServiceImpl{
		chats:          chats,
		messages:       messages,
		users:          users,
		media:          store,
		notifier:       notifier,
		maxAttachments: maxAttachments,
		pick:           rand.IntN,
	}
}

func (s *chatServiceImpl) MyChats(ctx context.Context, userID string) ([]domain.ChatListItem, error) {
	chats, err := s.chats.ListForMember(ctx, userID, repository.ChatKindAny)
	if err != nil {
		return nil, err
	}
	return s.listItems(ctx, userID, chats)
}

func (s *chatServiceImpl) MyGroups(ctx context.Context, userID string) ([]domain.ChatListItem, error) {
	chats, err := s.chats.ListForMember(ctx, userID, repository.ChatKindGroup)
	if err != nil {
		return nil, err
	}
	return s.listItems(ctx, userID, chats)
}

func (s *chatServiceImpl) listItems(ctx context.Context, userID string, chats []*domain.Chat) ([]domain.ChatListItem, error) {
	users, err := s.users.GetByIDs(ctx, lo.Uniq(lo.FlatMap(chats, func(c *domain.Chat, _ int) []string {
		return c.Members
	})))
	if err != nil {
		return nil, err
	}

	items := make([]domain.ChatListItem, 0, len(chats))
	for _, c := range chats {
		others := summaries(users, lo.Without(c.Members, userID))
		item := domain.ChatListItem{
			ID:        c.ID,
			Name:      c.Name,
			GroupChat: c.GroupChat,
			Members:   others,
			Creator:   c.CreatorID,
		}
		if c.GroupChat {
			item.Avatar = lo.Map(summaries(users, lo.Slice(c.Members, 0, 3)), func(u domain.UserSummary, _ int) string {
				return u.Avatar
			})
		} else if len(others) > 0 {
			item.Avatar = []string{others[0].Avatar}
		}
		if item.Avatar == nil {
			item.Avatar = []string{}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *chatServiceImpl) CreateGroup(ctx context.Context, userID string, req *domain.CreateGroupRequest) (*domain.ChatResponse, error) {
	members := lo.Uniq(append(lo.Without(req.Members, userID), userID))
	if len(members) < domain.MinGroupMembers+1 {
		return nil, ErrGroupTooSmall
	}
	if len(members) > domain.MaxGroupMembers {
		return nil, ErrGroupLimit
	}
	if err := s.requireUsers(ctx, members); err != nil {
		return nil, err
	}

	chat := &domain.Chat{
		Name:      req.Name,
		GroupChat: true,
		CreatorID: userID,
		Members:   members,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}

	audit.LogWithTarget(ctx, audit.ActionCreateGroup, userID, chat.ID, "group created")
	s.notifier.Notify(domain.EventAlert, chat.Members, "Welcome to "+chat.Name+" group.")
	s.notifier.Notify(domain.EventRefetchChats, lo.Without(chat.Members, userID), nil)

	resp := chat.ToResponse()
	return &resp, nil
}

func (s *chatServiceImpl) AddMembers(ctx context.Context, userID string, req *domain.AddMembersRequest) error {
	chat, err := s.groupAsAdmin(ctx, userID, req.ChatID)
	if err != nil {
		return err
	}

	added := lo.Without(lo.Uniq(req.Members), chat.Members...)
	if len(added) == 0 {
		return ErrAlreadyInGroup
	}
	if len(chat.Members)+len(added) > domain.MaxGroupMembers {
		return ErrGroupLimit
	}
	if err := s.requireUsers(ctx, added); err != nil {
		return err
	}

	if err := s.chats.AddMembers(ctx, chat.ID, added); err != nil {
		if errors.Is(err, repository.ErrAlreadyMember) {
			return ErrAlreadyInGroup
		}
		return err
	}

	audit.LogWithTarget(ctx, audit.ActionAddMembers, userID, chat.ID, "members added")
	s.notifier.Notify(domain.EventAlert, append(chat.Members, added...), "Added to the group.")
	s.notifier.Notify(domain.EventRefetchChats, added, nil)
	return nil
}

func (s *chatServiceImpl) RemoveMember(ctx context.Context, userID string, req *domain.RemoveMemberRequest) error {
	chat, err := s.groupAsAdmin(ctx, userID, req.ChatID)
	if err != nil {
		return err
	}
	if !chat.HasMember(req.UserID) {
		return ErrUserNotInGroup
	}

	removed, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return mapUserErr(err)
	}

	remaining := lo.Without(chat.Members, req.UserID)
	if err := s.dropMember(ctx, chat, req.UserID, remaining); err != nil {
		return err
	}

	audit.LogWithTarget(ctx, audit.ActionRemoveMember, userID, chat.ID, "member removed")
	s.notifier.Notify(domain.EventAlert, remaining, removed.Name+" has been removed from the group.")
	s.notifier.Notify(domain.EventRefetchChats, chat.Members, nil)
	return nil
}

func (s *chatServiceImpl) LeaveGroup(ctx context.Context, userID, chatID string) error {
	chat, err := s.getGroup(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasMember(userID) {
		return ErrNotGroupMember
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return mapUserErr(err)
	}

	remaining := lo.Without(chat.Members, userID)
	if err := s.dropMember(ctx, chat, userID, remaining); err != nil {
		return err
	}

	audit.LogWithTarget(ctx, audit.ActionLeaveGroup, userID, chat.ID, "left group")
	s.notifier.Notify(domain.EventAlert, remaining, user.Name+" has left the group.")
	return nil
}

// dropMember removes userID from chat. A departing creator hands the group to a
// random remaining member; an emptied group is deleted.
func (s *chatServiceImpl) dropMember(ctx context.Context, chat *domain.Chat, userID string, remaining []string) error {
	if len(remaining) == 0 {
		return s.deleteWithObjects(ctx, chat.ID)
	}

	newCreator := ""
	if chat.IsCreator(userID) {
		newCreator = remaining[s.pick(len(remaining))]
	}
	if err := s.chats.RemoveMember(ctx, chat.ID, userID, newCreator); err != nil {
		if errors.Is(err, repository.ErrNotMember) {
			return ErrUserNotInGroup
		}
		return mapChatErr(err)
	}
	return nil
}

func (s *chatServiceImpl) SendAttachments(ctx context.Context, userID, chatID string, files []media.Upload) (*domain.RealtimeMessage, error) {
	if len(files) == 0 {
		return nil, ErrNoAttachments
	}
	if len(files) > s.maxAttachments {
		return nil, ErrTooManyFiles
	}

	chat, err := s.memberChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}

	assets, err := s.media.PutAll(ctx, media.FolderAttachments, files)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ChatID:      chat.ID,
		SenderID:    userID,
		Content:     "",
		Attachments: assets,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.media.DeleteAll(context.WithoutCancel(ctx), assets)
		return nil, err
	}

	realtime := domain.NewRealtimeMessage(msg.ID, chat.ID, "", user.Summary(), assets, msg.CreatedAt)
	audit.LogWithTarget(ctx, audit.ActionSendAttachments, userID, chat.ID, "attachments sent")
	s.notifier.Notify(domain.EventNewMessage, chat.Members, domain.MessagePayload{ChatID: chat.ID, Message: realtime})
	s.notifier.Notify(domain.EventNewMessageAlert, chat.Members, domain.ChatRefPayload{ChatID: chat.ID})
	return &realtime, nil
}

func (s *chatServiceImpl) GetChat(ctx context.Context, userID, chatID string) (*domain.ChatResponse, error) {
	chat, err := s.memberChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	resp := chat.ToResponse()
	return &resp, nil
}

func (s *chatServiceImpl) GetPopulatedChat(ctx context.Context, userID, chatID string) (*domain.PopulatedChat, error) {
	chat, err := s.memberChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	users, err := s.users.GetByIDs(ctx, append(chat.Members, chat.CreatorID))
	if err != nil {
		return nil, err
	}

	out := &domain.PopulatedChat{
		ID:        chat.ID,
		Name:      chat.Name,
		GroupChat: chat.GroupChat,
		Members:   summaries(users, chat.Members),
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}
	if creator, ok := users[chat.CreatorID]; ok {
		summary := creator.Summary()
		out.Creator = &summary
	}
	return out, nil
}

func (s *chatServiceImpl) RenameGroup(ctx context.Context, userID, chatID, name string) error {
	chat, err := s.groupAsAdmin(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if err := s.chats.UpdateName(ctx, chat.ID, name); err != nil {
		return mapChatErr(err)
	}

	audit.LogWithDetail(ctx, audit.ActionRenameGroup, userID, name, "group renamed")
	s.notifier.Notify(domain.EventRefetchChats, chat.Members, nil)
	return nil
}

func (s *chatServiceImpl) DeleteChat(ctx context.Context, userID, chatID string) error {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return mapChatErr(err)
	}
	if !chat.HasMember(userID) {
		return ErrNoChatAccess
	}

	if err := s.deleteWithObjects(ctx, chat.ID); err != nil {
		return err
	}

	others := lo.Without(chat.Members, userID)
	audit.LogWithTarget(ctx, audit.ActionDeleteChat, userID, chat.ID, "chat deleted")
	s.notifier.Notify(domain.EventAlert, others, chat.Name)
	s.notifier.Notify(domain.EventRefetchChats, others, nil)
	return nil
}

// deleteWithObjects removes the chat with its messages, then the stored
// attachment objects.
func (s *chatServiceImpl) deleteWithObjects(ctx context.Context, chatID string) error {
	assets, err := s.messages.AttachmentsByChat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.chats.Delete(ctx, chatID); err != nil {
		return mapChatErr(err)
	}
	s.media.DeleteAll(context.WithoutCancel(ctx), assets)
	return nil
}

func (s *chatServiceImpl) Messages(ctx context.Context, userID, chatID string, page, perPage int) (*domain.MessagePage, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}
	if perPage < 1 {
		perPage = domain.DefaultResultPerPage
	}

	if _, err := s.memberChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	total, err := s.messages.CountByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByChat(ctx, chatID, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}

	users, err := s.users.GetByIDs(ctx, lo.Uniq(lo.Map(msgs, func(m *domain.Message, _ int) string {
		return m.SenderID
	})))
	if err != nil {
		return nil, err
	}

	// stored newest first, returned oldest first
	out := make([]domain.MessageResponse, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		sender := domain.UserSummary{ID: m.SenderID}
		if u, ok := users[m.SenderID]; ok {
			sender = u.Summary()
		}
		out = append(out, domain.MessageResponse{
			ID:          m.ID,
			Content:     m.Content,
			Attachments: m.Attachments,
			Sender:      sender,
			Chat:        m.ChatID,
			CreatedAt:   m.CreatedAt,
		})
	}

	return &domain.MessagePage{
		TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
		Messages:   out,
	}, nil
}

func (s *chatServiceImpl) memberChat(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, mapChatErr(err)
	}
	if !chat.HasMember(userID) {
		return nil, ErrNoChatAccess
	}
	return chat, nil
}

func (s *chatServiceImpl) getGroup(ctx context.Context, chatID string) (*domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, mapChatErr(err)
	}
	if !chat.GroupChat {
		return nil, ErrNotGroup
	}
	return chat, nil
}

func (s *chatServiceImpl) groupAsAdmin(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	chat, err := s.getGroup(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsCreator(userID) {
		return nil, ErrNotAdmin
	}
	return chat, nil
}

func (s *chatServiceImpl) requireUsers(ctx context.Context, ids []string) error {
	found, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(lo.Uniq(ids)) {
		l := log.Ctx(ctx)
		l.Debug().Int("requested", len(ids)).Int("found", len(found)).Msg("unknown users in group request")
		return ErrInvalidGroupArg
	}
	return nil
}

// summaries resolves ids in order, skipping unknown users.
func summaries(users map[string]*domain.User, ids []string) []domain.UserSummary {
	out := make([]domain.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out
}
