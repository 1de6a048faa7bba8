package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/untiswatch/untiswatch/internal/cache"
	"github.com/untiswatch/untiswatch/internal/config"
	"github.com/untiswatch/untiswatch/internal/timetable"
)

// --- helpers ----------------------------------------------------------------

// stateWith publishes a snapshot of n lessons against an empty store, so the
// resulting diff has n added lessons.
func stateWith(t *testing.T, n int) *cache.State {
	t.Helper()
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	lessons := make([]timetable.Lesson, n)
	for i := range lessons {
		lessons[i] = timetable.Lesson{
			ID:      int64(i + 1),
			Subject: "Math",
			Teacher: "Curie",
			Room:    "R101",
			Start:   start.Add(time.Duration(i) * time.Hour),
			End:     start.Add(time.Duration(i)*time.Hour + 45*time.Minute),
			State:   timetable.StateHeld,
		}
	}
	snap, err := timetable.NewSnapshot(start, lessons, timetable.ComparePolicy{})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return cache.NewStore().Publish(snap, timetable.Compare(nil, snap))
}

// webhookServer records POST bodies onto a channel.
func webhookServer(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()
	got := make(chan []byte, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- body
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func waitBody(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case body := <-ch:
		return body
	case <-time.After(2 * time.Second):
		t.Fatal("no webhook delivery within 2s")
		return nil
	}
}

func assertNoBody(t *testing.T, ch chan []byte) {
	t.Helper()
	select {
	case body := <-ch:
		t.Fatalf("unexpected delivery: %s", body)
	case <-time.After(100 * time.Millisecond):
	}
}

func slackEngine(t *testing.T, srv *httptest.Server, cfg config.NotifyConfig) *Engine {
	t.Helper()
	t.Setenv("TEST_WEBHOOK_URL", srv.URL)
	cfg.Targets = append(cfg.Targets, config.Target{Type: "slack", URLEnv: "TEST_WEBHOOK_URL"})
	return New(cfg)
}

// --- tests ------------------------------------------------------------------

func TestEngine_SendsSlackOnPublish(t *testing.T) {
	srv, got := webhookServer(t)
	e := slackEngine(t, srv, config.NotifyConfig{})

	e.StatePublished(stateWith(t, 2))

	var m map[string]string
	if err := json.Unmarshal(waitBody(t, got), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(m["text"], "Timetable changed: 2 changes") {
		t.Errorf("text: got %q, want it to contain the change count", m["text"])
	}
	if !strings.Contains(m["text"], "Math") {
		t.Errorf("text: got %q, want it to contain the lesson subject", m["text"])
	}
}

func TestEngine_EmptyDiff_NoSend(t *testing.T) {
	srv, got := webhookServer(t)
	e := slackEngine(t, srv, config.NotifyConfig{})

	// Publish the same snapshot twice: the second diff is empty.
	st := stateWith(t, 1)
	empty := &cache.State{
		Snapshot:   st.Snapshot,
		Diff:       timetable.Compare(st.Snapshot, st.Snapshot),
		Generation: st.Generation + 1,
	}
	e.StatePublished(empty)

	assertNoBody(t, got)
}

func TestEngine_BelowThreshold_NoSend(t *testing.T) {
	srv, got := webhookServer(t)
	e := slackEngine(t, srv, config.NotifyConfig{MinChanges: 5})

	e.StatePublished(stateWith(t, 2))

	assertNoBody(t, got)
}

func TestEngine_CooldownSuppressesRepeat(t *testing.T) {
	srv, got := webhookServer(t)
	e := slackEngine(t, srv, config.NotifyConfig{Cooldown: time.Hour})

	base := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }

	e.StatePublished(stateWith(t, 1))
	waitBody(t, got)

	// Ten minutes later: still inside the cooldown window.
	e.now = func() time.Time { return base.Add(10 * time.Minute) }
	e.StatePublished(stateWith(t, 1))
	assertNoBody(t, got)

	// After the window, notifications resume.
	e.now = func() time.Time { return base.Add(2 * time.Hour) }
	e.StatePublished(stateWith(t, 1))
	waitBody(t, got)
}

func TestEngine_HTTPTargetPayload(t *testing.T) {
	srv, got := webhookServer(t)
	t.Setenv("TEST_WEBHOOK_URL", srv.URL)
	e := New(config.NotifyConfig{
		Targets: []config.Target{{Type: "http", URLEnv: "TEST_WEBHOOK_URL"}},
	})

	e.StatePublished(stateWith(t, 3))

	var n Notification
	if err := json.Unmarshal(waitBody(t, got), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Generation != 1 {
		t.Errorf("generation: got %d, want 1", n.Generation)
	}
	if n.Total != 3 {
		t.Errorf("total: got %d, want 3", n.Total)
	}
	if len(n.Changes) != 3 {
		t.Errorf("changes: got %d lines, want 3", len(n.Changes))
	}
}

func TestEngine_Update_ChangesThreshold(t *testing.T) {
	srv, got := webhookServer(t)
	e := slackEngine(t, srv, config.NotifyConfig{MinChanges: 5})

	e.StatePublished(stateWith(t, 2))
	assertNoBody(t, got)

	cfg := e.cfg
	cfg.MinChanges = 1
	e.Update(cfg)

	e.StatePublished(stateWith(t, 2))
	waitBody(t, got)
}

// fakeBot records Telegram sends without touching the network.
type fakeBot struct {
	sent chan struct {
		to   tele.Recipient
		text string
	}
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.sent <- struct {
		to   tele.Recipient
		text string
	}{to, what.(string)}
	return &tele.Message{}, nil
}

func TestEngine_TelegramTarget(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123:abc")
	e := New(config.NotifyConfig{
		Targets: []config.Target{{Type: "telegram", TokenEnv: "TEST_BOT_TOKEN", ChatID: 42}},
	})

	fake := &fakeBot{sent: make(chan struct {
		to   tele.Recipient
		text string
	}, 1)}
	e.bots = map[string]telegramSender{"123:abc": fake}

	e.StatePublished(stateWith(t, 1))

	select {
	case msg := <-fake.sent:
		if msg.to.Recipient() != "42" {
			t.Errorf("recipient: got %q, want 42", msg.to.Recipient())
		}
		if !strings.Contains(msg.text, "Timetable changed: 1 change") {
			t.Errorf("text: got %q, want it to contain the title", msg.text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no telegram send within 2s")
	}
}
