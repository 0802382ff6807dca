package dispatcher

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-chat/internal/presence"
)

type recordingSink struct {
	mu     sync.Mutex
	frames map[string][][]byte
	closed map[string]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{frames: make(map[string][][]byte), closed: make(map[string]bool)}
}

func (s *recordingSink) Deliver(connID string, frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed[connID] {
		return false
	}
	s.frames[connID] = append(s.frames[connID], frame)
	return true
}

func (s *recordingSink) DeliverAll(frame []byte, skipConn string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range []string{"c1", "c2", "c3"} {
		if id == skipConn {
			continue
		}
		s.frames[id] = append(s.frames[id], frame)
		n++
	}
	return n
}

func (s *recordingSink) count(connID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames[connID])
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		n += len(f)
	}
	return n
}

func setup() (*presence.Directory, *recordingSink, *Dispatcher) {
	dir := presence.NewDirectory()
	dir.Register("u1", "c1")
	dir.Register("u2", "c2")
	dir.Register("u3", "c3")
	sink := newRecordingSink()
	return dir, sink, New(dir, sink)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("should deliver one frame per online target", func(t *testing.T) {
		req := require.New(t)
		_, sink, d := setup()

		n := d.Dispatch(ctx, "ALERT", []string{"u1", "u2", "offline"}, "hello")

		req.Equal(2, n)
		req.Equal(1, sink.count("c1"))
		req.Equal(1, sink.count("c2"))
		req.Equal(0, sink.count("c3"))

		var frame struct {
			Event string `json:"event"`
			Data  string `json:"data"`
		}
		req.NoError(json.Unmarshal(sink.frames["c1"][0], &frame))
		req.Equal("ALERT", frame.Event)
		req.Equal("hello", frame.Data)
	})

	t.Run("should emit nothing when every target is offline", func(t *testing.T) {
		req := require.New(t)
		_, sink, d := setup()

		req.Equal(0, d.Dispatch(ctx, "ALERT", []string{"x", "y"}, nil))
		req.Equal(0, d.Dispatch(ctx, "ALERT", nil, nil))
		req.Equal(0, sink.total())
	})

	t.Run("should deliver once when a user is listed twice", func(t *testing.T) {
		req := require.New(t)
		_, sink, d := setup()

		req.Equal(1, d.Dispatch(ctx, "REFETCH_CHATS", []string{"u1", "u1"}, nil))
		req.Equal(1, sink.count("c1"))
	})

	t.Run("should skip the excluded connection", func(t *testing.T) {
		req := require.New(t)
		_, sink, d := setup()

		req.Equal(1, d.Dispatch(ctx, "START_TYPING", []string{"u1", "u2"}, nil, SkipConn("c1")))
		req.Equal(0, sink.count("c1"))
		req.Equal(1, sink.count("c2"))
	})

	t.Run("should omit data when payload is nil", func(t *testing.T) {
		req := require.New(t)
		_, sink, d := setup()

		d.Dispatch(ctx, "REFETCH_CHATS", []string{"u2"}, nil)
		req.JSONEq(`{"event":"REFETCH_CHATS"}`, string(sink.frames["c2"][0]))
	})

	t.Run("should follow the latest connection of a user", func(t *testing.T) {
		req := require.New(t)
		dir, sink, d := setup()
		dir.Register("u1", "c9")

		d.Dispatch(ctx, "ALERT", []string{"u1"}, "x")
		req.Equal(0, sink.count("c1"))
		req.Equal(1, sink.count("c9"))
	})

	t.Run("should not count a connection the sink refused", func(t *testing.T) {
		req := require.New(t)
		_, sink, d := setup()
		sink.closed["c2"] = true

		req.Equal(1, d.Dispatch(ctx, "ALERT", []string{"u1", "u2"}, "x"))
	})

	t.Run("should drop payloads that cannot be encoded", func(t *testing.T) {
		req := require.New(t)
		_, sink, d := setup()

		req.Equal(0, d.Dispatch(ctx, "ALERT", []string{"u1"}, make(chan int)))
		req.Equal(0, sink.total())
	})
}

func TestBroadcastAndReply(t *testing.T) {
	t.Run("should broadcast to all but the skipped connection", func(t *testing.T) {
		req := require.New(t)
		_, sink, d := setup()

		req.Equal(2, d.Broadcast(context.Background(), "ONLINE_USERS", []string{"u1"}, SkipConn("c3")))
		req.Equal(0, sink.count("c3"))
	})

	t.Run("should reply to a single connection", func(t *testing.T) {
		req := require.New(t)
		_, sink, d := setup()

		req.True(d.Reply("c2", "PONG", nil))
		req.False(d.Reply("", "PONG", nil))
		req.JSONEq(`{"event":"PONG"}`, string(sink.frames["c2"][0]))
	})

	t.Run("should notify without a context", func(t *testing.T) {
		req := require.New(t)
		_, sink, d := setup()

		req.Equal(1, d.Notify("NEW_REQUEST", []string{"u3"}, "request"))
		req.Equal(1, sink.count("c3"))
	})
}
