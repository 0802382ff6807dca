package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/internal/cache"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/dispatcher"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/persist"
	"github.com/weiawesome/wes-io-chat/internal/presence"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/internal/testutil"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

const (
	testCookie      = "Chat"
	testAdminCookie = "admin-token"
	testAdminKey    = "boss"
)

// testEnv wires every handler over an in-memory database and local storage.
type testEnv struct {
	router    *gin.Engine
	ws        *WSHandler
	tokens    *jwt.Manager
	users     *repository.GormUserRepository
	chats     *repository.GormChatRepository
	messages  *repository.GormMessageRepository
	sessions  service.SessionService
	directory *presence.Directory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	users := repository.NewGormUserRepository(db)
	chats := repository.NewGormChatRepository(db)
	messages := repository.NewGormMessageRepository(db)
	requests := repository.NewGormRequestRepository(db)

	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), PublicPath: "/uploads"})
	require.NoError(t, err)
	store := media.NewStore(local, 1024*1024, time.Hour)

	tokens, err := jwt.NewManager("test-secret", "test", time.Hour, time.Hour)
	require.NoError(t, err)

	dir := presence.NewDirectory()
	h := hub.NewHub()
	d := dispatcher.New(dir, h)

	sessions := service.NewSessionService(dir, d, h, persist.NewDirectGateway(messages), time.Second)
	t.Cleanup(sessions.Wait)
	auth := service.NewAuthenticator(tokens, users, cache.NoopUserCache{}, time.Minute)
	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Minute,
		PongWait:       2 * time.Minute,
		WriteWait:      time.Second,
		MaxMessageSize: 16384,
		SendBuffer:     16,
	}

	authMiddleware := middleware.NewAuthMiddleware(tokens, testCookie, testAdminCookie)
	r := gin.New()
	api := r.Group("/api/v1")
	NewUserHandler(service.NewUserService(users, chats, requests, store, tokens, d), authMiddleware,
		CookieConfig{Name: testCookie, MaxAge: time.Hour}).RegisterRoutes(api)
	NewChatHandler(service.NewChatService(chats, messages, users, store, d, 5), authMiddleware).RegisterRoutes(api)
	NewAdminHandler(service.NewAdminService(users, chats, messages, tokens, testAdminKey), authMiddleware,
		CookieConfig{Name: testAdminCookie, MaxAge: time.Hour}).RegisterRoutes(api)

	return &testEnv{
		router:    r,
		ws:        NewWSHandler(auth, sessions, wsCfg, testCookie, nil),
		tokens:    tokens,
		users:     users,
		chats:     chats,
		messages:  messages,
		sessions:  sessions,
		directory: dir,
	}
}

func (e *testEnv) user(t *testing.T, name string) (*domain.User, string) {
	t.Helper()
	u := &domain.User{
		Name:         name,
		Username:     name,
		PasswordHash: "x",
		Avatar:       domain.Asset{PublicID: "avatars/" + name, URL: "/uploads/avatars/" + name},
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	token, err := e.tokens.IssueSession(u.ID)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) chat(t *testing.T, name string, group bool, creator string, members ...string) *domain.Chat {
	t.Helper()
	c := &domain.Chat{Name: name, GroupChat: group, CreatorID: creator, Members: members}
	require.NoError(t, e.chats.Create(context.Background(), c))
	return c
}

// do serves req, attaching token as the session cookie when set.
func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
