package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/miaoge/backend/internal/analysis/emotion"
	"github.com/zhouzirui/miaoge/backend/internal/model/chat"
	"github.com/zhouzirui/miaoge/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/miaoge/backend/internal/service/chat"
	"github.com/zhouzirui/miaoge/backend/internal/storage"
)

type fakeReplier struct {
	mu      sync.Mutex
	reply   string
	err     error
	history []chat.Message
	query   string
	calls   int
	started chan struct{}
	unblock chan struct{}
}

func (f *fakeReplier) GenerateReply(_ context.Context, history []chat.Message, userContent string) (string, error) {
	f.mu.Lock()
	f.history = history
	f.query = userContent
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.unblock != nil {
		<-f.unblock
	}
	return f.reply, f.err
}

type fixedSource int

func (f fixedSource) IntN(n int) int { return int(f) % n }

func newController(r Replier, opts ...emotion.Option) *Controller {
	p := persona.Default()
	return NewController(r, emotion.NewClassifier(p.EmotionalTraits, opts...), p)
}

func welcomeSession() *chat.Session {
	return chat.NewSession(chat.DefaultSessionID, chat.AssistantMessage(persona.Default().WelcomeMessage, "joy"))
}

func TestSendMessageSuccessComposesPrefix(t *testing.T) {
	replier := &fakeReplier{reply: "不客气"}
	c := newController(replier)
	session := welcomeSession()

	updated, err := c.SendMessage(context.Background(), session, "谢谢你", "")
	require.NoError(t, err)
	require.Equal(t, 3, updated.Len())

	user := updated.Messages[1]
	assert.Equal(t, chat.RoleUser, user.Role)
	assert.Equal(t, "谢谢你", user.Content)
	assert.Empty(t, user.Emotion)

	last, _ := updated.Last()
	assert.Equal(t, chat.RoleAssistant, last.Role)

	joy := persona.Default().EmotionalTraits.JoyExpressions
	prefix, reply, found := strings.Cut(last.Content, " ")
	require.True(t, found)
	assert.Contains(t, joy, prefix)
	assert.Equal(t, "不客气", reply)
	assert.Equal(t, string(emotion.TagForPhrase(prefix)), last.Emotion)

	// input session untouched
	assert.Equal(t, 1, session.Len())
}

func TestSendMessageTagDerivedFromPhrase(t *testing.T) {
	joy := persona.Default().EmotionalTraits.JoyExpressions
	for i, phrase := range joy {
		c := newController(&fakeReplier{reply: "不客气"}, emotion.WithSource(fixedSource(i)))
		updated, err := c.SendMessage(context.Background(), welcomeSession(), "谢谢你", "")
		require.NoError(t, err)

		last, _ := updated.Last()
		assert.Equal(t, phrase+" 不客气", last.Content)
		want := emotion.Thinking
		if strings.Contains(phrase, "啊啊啊") {
			want = emotion.Joy
		}
		assert.Equal(t, string(want), last.Emotion, "phrase %q", phrase)
	}
}

func TestSendMessageFailureAppendsFallback(t *testing.T) {
	replier := &fakeReplier{err: errors.New("dial tcp: connection refused")}
	c := newController(replier)

	updated, err := c.SendMessage(context.Background(), welcomeSession(), "hi", "")
	require.NoError(t, err)
	require.Equal(t, 3, updated.Len())

	assert.Equal(t, "hi", updated.Messages[1].Content)
	assert.Equal(t, chat.RoleUser, updated.Messages[1].Role)

	last, _ := updated.Last()
	assert.Equal(t, "呜呜...出错了，我需要休息一下...", last.Content)
	assert.Equal(t, string(emotion.Sadness), last.Emotion)
}

func TestSendMessageContextWindow(t *testing.T) {
	replier := &fakeReplier{reply: "ok"}
	c := newController(replier)

	session := chat.NewSession("s")
	for i := 0; i < 15; i++ {
		if i%2 == 0 {
			session.Append(chat.UserMessage(fmt.Sprintf("u%d", i), ""))
		} else {
			session.Append(chat.AssistantMessage(fmt.Sprintf("a%d", i), "thinking"))
		}
	}

	_, err := c.SendMessage(context.Background(), session, "next", "")
	require.NoError(t, err)

	require.Len(t, replier.history, 10)
	assert.Equal(t, session.Messages[5:], replier.history)
	assert.Equal(t, "next", replier.query)
}

func TestSendMessageImageOnly(t *testing.T) {
	replier := &fakeReplier{reply: "好可爱"}
	c := newController(replier)
	image := "data:image/png;base64,iVBORw0KGgo="

	updated, err := c.SendMessage(context.Background(), welcomeSession(), "", image)
	require.NoError(t, err)

	user := updated.Messages[1]
	assert.Equal(t, "发送了一张图片", user.Content)
	assert.Equal(t, image, user.Image)
	assert.Equal(t, " [用户发送了一张图片]", replier.query)

	last, _ := updated.Last()
	thinking := persona.Default().EmotionalTraits.ConfusedExpressions
	prefix, _, _ := strings.Cut(last.Content, " ")
	assert.True(t, slices.Contains(thinking, prefix), "empty text routes to thinking, got %q", prefix)
}

func TestSendMessageTextWithImage(t *testing.T) {
	replier := &fakeReplier{reply: "ok"}
	c := newController(replier)

	_, err := c.SendMessage(context.Background(), welcomeSession(), "看看", "data:image/gif;base64,R0lGOD")
	require.NoError(t, err)
	assert.Equal(t, "看看 [用户发送了一张图片]", replier.query)
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	replier := &fakeReplier{reply: "ok"}
	c := newController(replier)
	session := welcomeSession()

	got, err := c.SendMessage(context.Background(), session, "   ", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Same(t, session, got)
	assert.Zero(t, replier.calls)

	_, err = c.SendMessage(context.Background(), nil, "hi", "")
	assert.ErrorIs(t, err, ErrNilSession)
}

func TestSendMessageInFlightGuard(t *testing.T) {
	replier := &fakeReplier{reply: "ok", started: make(chan struct{}), unblock: make(chan struct{})}
	c := newController(replier)
	session := welcomeSession()

	done := make(chan error, 1)
	go func() {
		_, err := c.SendMessage(context.Background(), session, "first", "")
		done <- err
	}()

	<-replier.started
	assert.Equal(t, Sending, c.State(session.ID))

	_, err := c.SendMessage(context.Background(), session, "second", "")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(replier.unblock)
	require.NoError(t, <-done)
	assert.Equal(t, Idle, c.State(session.ID))
	assert.Equal(t, 1, replier.calls)
}

func TestConversePersists(t *testing.T) {
	ctx := context.Background()
	store := chatservice.NewService(storage.NewMemory(), persona.Default(), nil)
	c := newController(&fakeReplier{err: errors.New("boom")})

	updated, err := c.Converse(ctx, store, "", "hi", "")
	require.NoError(t, err)
	require.Equal(t, 3, updated.Len())

	reloaded := store.Load(ctx, chat.DefaultSessionID)
	assert.Equal(t, updated.Messages, reloaded.Messages)

	_, err = c.Converse(ctx, store, "", "", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = c.Converse(ctx, nil, "", "hi", "")
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestApplySearchMode(t *testing.T) {
	assert.Equal(t, "/search 天气", ApplySearchMode("天气", true))
	assert.Equal(t, "天气", ApplySearchMode("天气", false))
	assert.Equal(t, " ", ApplySearchMode(" ", true))
}
