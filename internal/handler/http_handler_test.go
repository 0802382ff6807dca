package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest builds a form with fields and files keyed by form field.
func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, names := range files {
		for _, name := range names {
			fw, err := mw.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = fw.Write([]byte("content of " + name))
			require.NoError(t, err)
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func cookieValue(w *httptest.ResponseRecorder, name string) (string, bool) {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func TestUserRoutes(t *testing.T) {
	registerForm := map[string]string{"name": "Alice", "username": "alice", "password": "secret1", "bio": "hi"}

	t.Run("should register, set the session cookie and log in", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)

		w := env.do(multipartRequest(t, "/api/v1/users/register", registerForm,
			map[string][]string{"avatar": {"me.txt"}}), "")
		req.Equal(http.StatusCreated, w.Code)
		token, ok := cookieValue(w, testCookie)
		req.True(ok)
		req.NotEmpty(token)

		var profile domain.UserResponse
		req.NoError(json.Unmarshal(decode(t, w).Data, &profile))
		req.Equal("alice", profile.Username)
		req.True(strings.HasPrefix(profile.Avatar.URL, "/uploads/avatars/"))

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), token)
		req.Equal(http.StatusOK, w.Code)

		w = env.do(jsonRequest(http.MethodPost, "/api/v1/users/login",
			domain.LoginRequest{Username: "alice", Password: "secret1"}), "")
		req.Equal(http.StatusOK, w.Code)
		_, ok = cookieValue(w, testCookie)
		req.True(ok)
	})

	t.Run("should map registration and login failures to statuses", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)

		w := env.do(multipartRequest(t, "/api/v1/users/register", registerForm, nil), "")
		req.Equal(http.StatusBadRequest, w.Code)
		req.Equal("Please upload avatar", decode(t, w).Message)

		w = env.do(multipartRequest(t, "/api/v1/users/register", registerForm,
			map[string][]string{"avatar": {"a.txt"}}), "")
		req.Equal(http.StatusCreated, w.Code)

		w = env.do(multipartRequest(t, "/api/v1/users/register", registerForm,
			map[string][]string{"avatar": {"b.txt"}}), "")
		req.Equal(http.StatusConflict, w.Code)

		w = env.do(jsonRequest(http.MethodPost, "/api/v1/users/login",
			domain.LoginRequest{Username: "alice", Password: "wrong"}), "")
		req.Equal(http.StatusNotFound, w.Code)
		body := decode(t, w)
		req.Equal("Invalid Credentials", body.Message)
		req.Equal(domain.ErrCodeNotFound, body.Error.Code)
	})

	t.Run("should require a session for protected routes", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)

		w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), "")
		req.Equal(http.StatusUnauthorized, w.Code)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), "garbage")
		req.Equal(http.StatusUnauthorized, w.Code)
	})

	t.Run("should send and accept friend requests", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		alice, aliceToken := env.user(t, "alice")
		bob, bobToken := env.user(t, "bob")

		w := env.do(jsonRequest(http.MethodPut, "/api/v1/users/sendrequest",
			domain.SendRequestRequest{UserID: bob.ID}), aliceToken)
		req.Equal(http.StatusOK, w.Code)

		w = env.do(jsonRequest(http.MethodPut, "/api/v1/users/sendrequest",
			domain.SendRequestRequest{UserID: alice.ID}), aliceToken)
		req.Equal(http.StatusBadRequest, w.Code)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/notification", nil), bobToken)
		req.Equal(http.StatusOK, w.Code)
		var notes []domain.Notification
		req.NoError(json.Unmarshal(decode(t, w).Data, &notes))
		req.Len(notes, 1)
		req.Equal(alice.ID, notes[0].Sender.ID)

		accept := true
		w = env.do(jsonRequest(http.MethodPut, "/api/v1/users/acceptrequest",
			domain.AcceptRequestRequest{RequestID: notes[0].ID, Accept: &accept}), aliceToken)
		req.Equal(http.StatusForbidden, w.Code)

		w = env.do(jsonRequest(http.MethodPut, "/api/v1/users/acceptrequest",
			domain.AcceptRequestRequest{RequestID: notes[0].ID, Accept: &accept}), bobToken)
		req.Equal(http.StatusOK, w.Code)
		req.Equal("Friend Request Accepted", decode(t, w).Message)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/friends", nil), aliceToken)
		req.Equal(http.StatusOK, w.Code)
		var friends []domain.UserSummary
		req.NoError(json.Unmarshal(decode(t, w).Data, &friends))
		req.Len(friends, 1)
		req.Equal(bob.ID, friends[0].ID)
	})
}

func TestChatRoutes(t *testing.T) {
	t.Run("should create a group and guard admin actions", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		_, aliceToken := env.user(t, "alice")
		bob, bobToken := env.user(t, "bob")
		carol, _ := env.user(t, "carol")
		dave, _ := env.user(t, "dave")

		w := env.do(jsonRequest(http.MethodPost, "/api/v1/chats/group",
			domain.CreateGroupRequest{Name: "team", Members: []string{bob.ID, carol.ID}}), aliceToken)
		req.Equal(http.StatusCreated, w.Code)
		var chat domain.ChatResponse
		req.NoError(json.Unmarshal(decode(t, w).Data, &chat))
		req.Len(chat.Members, 3)

		w = env.do(jsonRequest(http.MethodPut, "/api/v1/chats/groupadd",
			domain.AddMembersRequest{ChatID: chat.ID, Members: []string{dave.ID}}), bobToken)
		req.Equal(http.StatusForbidden, w.Code)
		req.Equal("You are not admin", decode(t, w).Message)

		w = env.do(jsonRequest(http.MethodPut, "/api/v1/chats/groupadd",
			domain.AddMembersRequest{ChatID: chat.ID, Members: []string{bob.ID}}), aliceToken)
		req.Equal(http.StatusBadRequest, w.Code)
		req.Equal("Users selected already in the group", decode(t, w).Message)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/chats/mygroups", nil), aliceToken)
		req.Equal(http.StatusOK, w.Code)
		var groups []domain.ChatListItem
		req.NoError(json.Unmarshal(decode(t, w).Data, &groups))
		req.Len(groups, 1)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/chats/mygroups", nil), bobToken)
		req.Equal(http.StatusOK, w.Code)
		groups = nil
		req.NoError(json.Unmarshal(decode(t, w).Data, &groups))
		req.Len(groups, 1)
		req.Equal(chat.ID, groups[0].ID)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/chats/"+chat.ID+"?populate=true", nil), bobToken)
		req.Equal(http.StatusOK, w.Code)
		var populated domain.PopulatedChat
		req.NoError(json.Unmarshal(decode(t, w).Data, &populated))
		req.Equal("alice", populated.Creator.Name)

		w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/chats/groupleave/"+chat.ID, nil), bobToken)
		req.Equal(http.StatusOK, w.Code)
	})

	t.Run("should reject strangers and bad pages", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		alice, aliceToken := env.user(t, "alice")
		bob, _ := env.user(t, "bob")
		_, eveToken := env.user(t, "eve")
		chat := env.chat(t, "ab", false, alice.ID, alice.ID, bob.ID)

		w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/chats/"+chat.ID, nil), eveToken)
		req.Equal(http.StatusForbidden, w.Code)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/chats/missing", nil), aliceToken)
		req.Equal(http.StatusNotFound, w.Code)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/chats/message/"+chat.ID+"?page=abc", nil), aliceToken)
		req.Equal(http.StatusBadRequest, w.Code)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/chats/message/"+chat.ID+"?page=0", nil), aliceToken)
		req.Equal(http.StatusBadRequest, w.Code)
		req.Equal("Invalid page", decode(t, w).Message)
	})

	t.Run("should upload attachments and list them in history", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		alice, aliceToken := env.user(t, "alice")
		bob, bobToken := env.user(t, "bob")
		chat := env.chat(t, "ab", false, alice.ID, alice.ID, bob.ID)

		w := env.do(multipartRequest(t, "/api/v1/chats/sendAttachments",
			map[string]string{"chatId": chat.ID},
			map[string][]string{"files": {"a.txt", "b.txt"}}), aliceToken)
		req.Equal(http.StatusOK, w.Code)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/chats/message/"+chat.ID, nil), bobToken)
		req.Equal(http.StatusOK, w.Code)
		var page domain.MessagePage
		req.NoError(json.Unmarshal(decode(t, w).Data, &page))
		req.Equal(1, page.TotalPages)
		req.Len(page.Messages, 1)
		req.Len(page.Messages[0].Attachments, 2)
		req.Equal("alice", page.Messages[0].Sender.Name)

		w = env.do(multipartRequest(t, "/api/v1/chats/sendAttachments",
			map[string]string{"chatId": chat.ID}, nil), aliceToken)
		req.Equal(http.StatusBadRequest, w.Code)
		req.Equal("Please upload attachments", decode(t, w).Message)
	})
}

func TestAdminRoutes(t *testing.T) {
	t.Run("should verify the key and serve the dashboard", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		env.user(t, "alice")

		w := env.do(jsonRequest(http.MethodPost, "/api/v1/admin/verify",
			domain.AdminVerifyRequest{SecretKey: "guess"}), "")
		req.Equal(http.StatusUnauthorized, w.Code)
		req.Equal("Invalid Admin Key", decode(t, w).Message)

		w = env.do(jsonRequest(http.MethodPost, "/api/v1/admin/verify",
			domain.AdminVerifyRequest{SecretKey: testAdminKey}), "")
		req.Equal(http.StatusOK, w.Code)
		adminToken, ok := cookieValue(w, testAdminCookie)
		req.True(ok)

		r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/admin-dashboard", nil)
		r.AddCookie(&http.Cookie{Name: testAdminCookie, Value: adminToken})
		w = env.do(r, "")
		req.Equal(http.StatusOK, w.Code)
		var stats domain.DashboardStats
		req.NoError(json.Unmarshal(decode(t, w).Data, &stats))
		req.Equal(int64(1), stats.TotalUsers)
		req.Len(stats.Messages, domain.DashboardDays)
	})

	t.Run("should refuse session tokens on admin routes", func(t *testing.T) {
		req := require.New(t)
		env := newTestEnv(t)
		_, token := env.user(t, "alice")

		r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
		r.AddCookie(&http.Cookie{Name: testAdminCookie, Value: token})
		w := env.do(r, "")
		req.Equal(http.StatusUnauthorized, w.Code)
	})
}
