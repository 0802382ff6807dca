package service

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/internal/testutil"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

type fixture struct {
	users    *repository.GormUserRepository
	chats    *repository.GormChatRepository
	messages *repository.GormMessageRepository
	requests *repository.GormRequestRepository
	local    *storage.LocalStorage
	store    *media.Store
	tokens   *jwt.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)

	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), PublicPath: "/uploads"})
	require.NoError(t, err)
	tokens, err := jwt.NewManager("test-secret", "test", time.Hour, time.Hour)
	require.NoError(t, err)

	return &fixture{
		users:    repository.NewGormUserRepository(db),
		chats:    repository.NewGormChatRepository(db),
		messages: repository.NewGormMessageRepository(db),
		requests: repository.NewGormRequestRepository(db),
		local:    local,
		store:    media.NewStore(local, 1024*1024, time.Hour),
		tokens:   tokens,
	}
}

// user stores a user named name with username name.
func (f *fixture) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{
		Name:         name,
		Username:     name,
		PasswordHash: "x",
		Avatar:       domain.Asset{PublicID: "avatars/" + name, URL: "/uploads/avatars/" + name},
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) chat(t *testing.T, name string, group bool, creator string, members ...string) *domain.Chat {
	t.Helper()
	c := &domain.Chat{Name: name, GroupChat: group, CreatorID: creator, Members: members}
	require.NoError(t, f.chats.Create(context.Background(), c))
	return c
}

func textUpload(name, body string) media.Upload {
	return media.Upload{
		Filename: name,
		Size:     int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte(body))), nil
		},
	}
}
