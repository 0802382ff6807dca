package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/mocks"
	"github.com/weiawesome/wes-io-chat/internal/repository"
)

func newChatService(t *testing.T, f *fixture) (*chatServiceImpl, *mocks.MockNotifier) {
	t.Helper()
	notifier := mocks.NewMockNotifier(gomock.NewController(t))
	svc := NewChatService(f.chats, f.messages, f.users, f.store, notifier, 5).(*chatServiceImpl)
	return svc, notifier
}

func TestChatLists(t *testing.T) {
	ctx := context.Background()

	t.Run("should list chats with the caller left out", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
		f.chat(t, "alice-bob", false, alice.ID, alice.ID, bob.ID)
		f.chat(t, "team", true, alice.ID, alice.ID, bob.ID, carol.ID)
		f.chat(t, "bobs", true, bob.ID, bob.ID, alice.ID, carol.ID)
		svc, _ := newChatService(t, f)

		chats, err := svc.MyChats(ctx, alice.ID)
		req.NoError(err)
		req.Len(chats, 3)

		byName := map[string]domain.ChatListItem{}
		for _, c := range chats {
			byName[c.Name] = c
			for _, m := range c.Members {
				req.NotEqual(alice.ID, m.ID)
			}
		}

		direct := byName["alice-bob"]
		req.False(direct.GroupChat)
		req.Equal([]string{bob.Avatar.URL}, direct.Avatar)

		team := byName["team"]
		req.Len(team.Avatar, 3)
		req.Len(team.Members, 2)

		groups, err := svc.MyGroups(ctx, alice.ID)
		req.NoError(err)
		req.ElementsMatch([]string{"team", "bobs"}, lo.Map(groups, func(c domain.ChatListItem, _ int) string {
			return c.Name
		}))
		for _, g := range groups {
			req.True(g.GroupChat)
		}
	})
}

func TestChatGroups(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a group with the caller as creator", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
		svc, notifier := newChatService(t, f)

		all := []string{bob.ID, carol.ID, alice.ID}
		notifier.EXPECT().Notify(domain.EventAlert, all, "Welcome to team group.").Return(3)
		notifier.EXPECT().Notify(domain.EventRefetchChats, []string{bob.ID, carol.ID}, nil).Return(2)

		chat, err := svc.CreateGroup(ctx, alice.ID, &domain.CreateGroupRequest{
			Name:    "team",
			Members: []string{bob.ID, carol.ID, bob.ID},
		})
		req.NoError(err)
		req.True(chat.GroupChat)
		req.Equal(alice.ID, chat.Creator)
		req.Equal(all, chat.Members)
	})

	t.Run("should refuse groups that are too small or name unknown users", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		svc, _ := newChatService(t, f)

		_, err := svc.CreateGroup(ctx, alice.ID, &domain.CreateGroupRequest{Name: "g", Members: []string{bob.ID, alice.ID}})
		req.ErrorIs(err, ErrGroupTooSmall)

		_, err = svc.CreateGroup(ctx, alice.ID, &domain.CreateGroupRequest{Name: "g", Members: []string{bob.ID, "ghost"}})
		req.ErrorIs(err, ErrInvalidGroupArg)
	})

	t.Run("should add only new members as admin", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob, carol, dave := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol"), f.user(t, "dave")
		group := f.chat(t, "team", true, alice.ID, alice.ID, bob.ID, carol.ID)
		direct := f.chat(t, "ab", false, alice.ID, alice.ID, bob.ID)
		svc, notifier := newChatService(t, f)

		notifier.EXPECT().Notify(domain.EventAlert, []string{alice.ID, bob.ID, carol.ID, dave.ID}, "Added to the group.").Return(4)
		notifier.EXPECT().Notify(domain.EventRefetchChats, []string{dave.ID}, nil).Return(1)

		err := svc.AddMembers(ctx, bob.ID, &domain.AddMembersRequest{ChatID: group.ID, Members: []string{dave.ID}})
		req.ErrorIs(err, ErrNotAdmin)
		req.ErrorIs(err, domain.ErrAuthorization)

		err = svc.AddMembers(ctx, alice.ID, &domain.AddMembersRequest{ChatID: direct.ID, Members: []string{dave.ID}})
		req.ErrorIs(err, ErrNotGroup)

		err = svc.AddMembers(ctx, alice.ID, &domain.AddMembersRequest{ChatID: group.ID, Members: []string{bob.ID}})
		req.ErrorIs(err, ErrAlreadyInGroup)

		err = svc.AddMembers(ctx, alice.ID, &domain.AddMembersRequest{ChatID: "missing", Members: []string{dave.ID}})
		req.ErrorIs(err, ErrChatNotFound)

		req.NoError(svc.AddMembers(ctx, alice.ID, &domain.AddMembersRequest{ChatID: group.ID, Members: []string{bob.ID, dave.ID}}))

		stored, err := f.chats.GetByID(ctx, group.ID)
		req.NoError(err)
		req.Equal([]string{alice.ID, bob.ID, carol.ID, dave.ID}, stored.Members)
	})

	t.Run("should enforce the member limit", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice := f.user(t, "alice")
		members := []string{alice.ID}
		for i := 0; i < domain.MaxGroupMembers-1; i++ {
			members = append(members, fmt.Sprintf("member-%d", i))
		}
		group := f.chat(t, "full", true, alice.ID, members...)
		extra := f.user(t, "extra")
		svc, _ := newChatService(t, f)

		err := svc.AddMembers(ctx, alice.ID, &domain.AddMembersRequest{ChatID: group.ID, Members: []string{extra.ID}})
		req.ErrorIs(err, ErrGroupLimit)
	})

	t.Run("should hand a group to a random member when its creator is removed", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
		group := f.chat(t, "team", true, alice.ID, alice.ID, bob.ID, carol.ID)
		svc, notifier := newChatService(t, f)
		svc.pick = func(n int) int { return n - 1 }

		notifier.EXPECT().Notify(domain.EventAlert, []string{bob.ID, carol.ID}, "alice has been removed from the group.").Return(2)
		notifier.EXPECT().Notify(domain.EventRefetchChats, []string{alice.ID, bob.ID, carol.ID}, nil).Return(3)

		req.NoError(svc.RemoveMember(ctx, alice.ID, &domain.RemoveMemberRequest{ChatID: group.ID, UserID: alice.ID}))

		stored, err := f.chats.GetByID(ctx, group.ID)
		req.NoError(err)
		req.Equal(carol.ID, stored.CreatorID)
		req.Equal([]string{bob.ID, carol.ID}, stored.Members)

		err = svc.RemoveMember(ctx, carol.ID, &domain.RemoveMemberRequest{ChatID: group.ID, UserID: alice.ID})
		req.ErrorIs(err, ErrUserNotInGroup)
	})

	t.Run("should let members leave and delete an emptied group", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		group := f.chat(t, "pair", true, alice.ID, alice.ID, bob.ID)
		svc, notifier := newChatService(t, f)

		notifier.EXPECT().Notify(domain.EventAlert, []string{bob.ID}, "alice has left the group.").Return(1)
		notifier.EXPECT().Notify(domain.EventAlert, gomock.Len(0), "bob has left the group.").Return(0)

		req.NoError(svc.LeaveGroup(ctx, alice.ID, group.ID))
		req.ErrorIs(svc.LeaveGroup(ctx, alice.ID, group.ID), ErrNotGroupMember)

		stored, err := f.chats.GetByID(ctx, group.ID)
		req.NoError(err)
		req.Equal(bob.ID, stored.CreatorID)

		req.NoError(svc.LeaveGroup(ctx, bob.ID, group.ID))
		_, err = f.chats.GetByID(ctx, group.ID)
		req.ErrorIs(err, repository.ErrChatNotFound)
	})

	t.Run("should rename as admin only", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
		group := f.chat(t, "team", true, alice.ID, alice.ID, bob.ID, carol.ID)
		svc, notifier := newChatService(t, f)
		notifier.EXPECT().Notify(domain.EventRefetchChats, group.Members, nil).Return(3)

		req.ErrorIs(svc.RenameGroup(ctx, bob.ID, group.ID, "mine"), ErrNotAdmin)
		req.NoError(svc.RenameGroup(ctx, alice.ID, group.ID, "renamed"))

		stored, err := f.chats.GetByID(ctx, group.ID)
		req.NoError(err)
		req.Equal("renamed", stored.Name)
	})
}

func TestChatContent(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the chat to members only", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
		chat := f.chat(t, "ab", false, alice.ID, alice.ID, bob.ID)
		svc, _ := newChatService(t, f)

		raw, err := svc.GetChat(ctx, alice.ID, chat.ID)
		req.NoError(err)
		req.Equal([]string{alice.ID, bob.ID}, raw.Members)

		populated, err := svc.GetPopulatedChat(ctx, bob.ID, chat.ID)
		req.NoError(err)
		req.Equal("alice", populated.Members[0].Name)
		req.Equal(alice.ID, populated.Creator.ID)

		_, err = svc.GetChat(ctx, eve.ID, chat.ID)
		req.ErrorIs(err, ErrNoChatAccess)
		_, err = svc.GetChat(ctx, eve.ID, "missing")
		req.ErrorIs(err, ErrChatNotFound)
	})

	t.Run("should store attachments and push them to members", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		chat := f.chat(t, "ab", false, alice.ID, alice.ID, bob.ID)
		svc, notifier := newChatService(t, f)

		notifier.EXPECT().Notify(domain.EventNewMessage, chat.Members, gomock.Any()).Return(2)
		notifier.EXPECT().Notify(domain.EventNewMessageAlert, chat.Members, domain.ChatRefPayload{ChatID: chat.ID}).Return(2)

		msg, err := svc.SendAttachments(ctx, alice.ID, chat.ID, []media.Upload{
			textUpload("a.txt", "one"),
			textUpload("b.txt", "two"),
		})
		req.NoError(err)
		req.Len(msg.Attachments, 2)
		req.Equal(alice.Avatar.URL, msg.Sender.Avatar)
		req.Empty(msg.Content)

		stored, err := f.messages.ListByChat(ctx, chat.ID, 0, 10)
		req.NoError(err)
		req.Len(stored, 1)
		req.Equal(msg.ID, stored[0].ID)
	})

	t.Run("should validate attachment requests", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
		chat := f.chat(t, "ab", false, alice.ID, alice.ID, bob.ID)
		svc, _ := newChatService(t, f)

		_, err := svc.SendAttachments(ctx, alice.ID, chat.ID, nil)
		req.ErrorIs(err, ErrNoAttachments)

		six := make([]media.Upload, 6)
		for i := range six {
			six[i] = textUpload("f.txt", "x")
		}
		_, err = svc.SendAttachments(ctx, alice.ID, chat.ID, six)
		req.ErrorIs(err, ErrTooManyFiles)

		_, err = svc.SendAttachments(ctx, eve.ID, chat.ID, []media.Upload{textUpload("a.txt", "x")})
		req.ErrorIs(err, ErrNoChatAccess)
	})

	t.Run("should delete a chat with its messages and stored files", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
		chat := f.chat(t, "ab", false, alice.ID, alice.ID, bob.ID)
		svc, notifier := newChatService(t, f)
		notifier.EXPECT().Notify(domain.EventNewMessage, gomock.Any(), gomock.Any()).Return(2)
		notifier.EXPECT().Notify(domain.EventNewMessageAlert, gomock.Any(), gomock.Any()).Return(2)
		notifier.EXPECT().Notify(domain.EventAlert, []string{alice.ID}, "ab").Return(1)
		notifier.EXPECT().Notify(domain.EventRefetchChats, []string{alice.ID}, nil).Return(1)

		msg, err := svc.SendAttachments(ctx, alice.ID, chat.ID, []media.Upload{textUpload("a.txt", "x")})
		req.NoError(err)
		key := msg.Attachments[0].PublicID

		req.ErrorIs(svc.DeleteChat(ctx, carol.ID, chat.ID), ErrNoChatAccess)
		req.NoError(svc.DeleteChat(ctx, bob.ID, chat.ID))

		exists, err := f.local.Exists(ctx, key)
		req.NoError(err)
		req.False(exists)
		n, err := f.messages.CountByChat(ctx, chat.ID)
		req.NoError(err)
		req.Zero(n)
	})

	t.Run("should let any member delete a group", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob, carol, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol"), f.user(t, "eve")
		group := f.chat(t, "team", true, alice.ID, alice.ID, bob.ID, carol.ID)
		svc, notifier := newChatService(t, f)
		notifier.EXPECT().Notify(domain.EventAlert, []string{alice.ID, carol.ID}, "team").Return(2)
		notifier.EXPECT().Notify(domain.EventRefetchChats, []string{alice.ID, carol.ID}, nil).Return(2)

		req.ErrorIs(svc.DeleteChat(ctx, eve.ID, group.ID), ErrNoChatAccess)
		req.NoError(svc.DeleteChat(ctx, bob.ID, group.ID))

		_, err := f.chats.GetByID(ctx, group.ID)
		req.ErrorIs(err, repository.ErrChatNotFound)
	})

	t.Run("should page history newest first and return it oldest first", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		alice, bob := f.user(t, "alice"), f.user(t, "bob")
		chat := f.chat(t, "ab", false, alice.ID, alice.ID, bob.ID)
		svc, _ := newChatService(t, f)

		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			req.NoError(f.messages.Create(ctx, &domain.Message{
				ChatID:    chat.ID,
				SenderID:  alice.ID,
				Content:   fmt.Sprintf("m%d", i),
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		first, err := svc.Messages(ctx, bob.ID, chat.ID, 1, 2)
		req.NoError(err)
		req.Equal(3, first.TotalPages)
		req.Equal("m3", first.Messages[0].Content)
		req.Equal("m4", first.Messages[1].Content)
		req.Equal("alice", first.Messages[0].Sender.Name)

		last, err := svc.Messages(ctx, bob.ID, chat.ID, 3, 2)
		req.NoError(err)
		req.Len(last.Messages, 1)
		req.Equal("m0", last.Messages[0].Content)

		_, err = svc.Messages(ctx, bob.ID, chat.ID, 0, 2)
		req.ErrorIs(err, ErrInvalidPage)
		_, err = svc.Messages(ctx, "eve", chat.ID, 1, 2)
		req.ErrorIs(err, ErrNoChatAccess)
	})
}
