package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/mocks"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func chatPayload(t *testing.T, text string) []byte {
	t.Helper()
	b, err := json.Marshal(ChatPayload{Type: "chat", Message: text, Timestamp: 1700000000000})
	require.NoError(t, err)
	return b
}

func TestChat_Send(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("should ignore blank text without touching the network", func(t *testing.T) {
		req := require.New(t)
		pub := mocks.NewMockDataPublisher(ctrl)
		chat := NewChat(clockwork.NewFakeClock(), pub, nil)

		pub.EXPECT().PublishData(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		for _, text := range []string{"", "   ", "\n\t"} {
			_, err := chat.Send(context.Background(), text)
			req.ErrorIs(err, domain.ErrEmptyMessage)
		}
		req.Zero(chat.Len())
	})

	t.Run("should append the echo before publishing", func(t *testing.T) {
		req := require.New(t)
		pub := mocks.NewMockDataPublisher(ctrl)
		clock := clockwork.NewFakeClock()
		chat := NewChat(clock, pub, nil)
		chat.SetLocal(local("me"))

		pub.EXPECT().
			PublishData(gomock.Any(), ChatTopic, gomock.Any(), true).
			DoAndReturn(func(_ context.Context, _ string, payload []byte, _ bool) error {
				req.Equal(1, chat.Len())
				var p ChatPayload
				req.NoError(json.Unmarshal(payload, &p))
				req.Equal("chat", p.Type)
				req.Equal("hello", p.Message)
				req.Equal(clock.Now().UnixMilli(), p.Timestamp)
				return nil
			}).
			Times(1)

		msg, err := chat.Send(context.Background(), "  hello ")

		req.NoError(err)
		req.True(msg.Local)
		req.Equal("hello", msg.Text)
		req.Equal(domain.ParticipantID("me"), msg.SenderID)
		req.NotEmpty(msg.ID)
	})

	t.Run("should keep the draft when publishing fails", func(t *testing.T) {
		req := require.New(t)
		pub := mocks.NewMockDataPublisher(ctrl)
		chat := NewChat(clockwork.NewFakeClock(), pub, nil)
		chat.SetLocal(local("me"))
		boom := errors.New("data channel closed")

		pub.EXPECT().PublishData(gomock.Any(), ChatTopic, gomock.Any(), true).Return(boom).Times(1)

		msg, err := chat.Send(context.Background(), "are you there?")

		var sendErr *SendError
		req.ErrorAs(err, &sendErr)
		req.Equal("are you there?", sendErr.Draft)
		req.ErrorIs(err, boom)
		req.True(msg.Failed)

		// The echo stays, marked undelivered
		log := chat.Messages()
		req.Len(log, 1)
		req.Equal(msg.ID, log[0].ID)
		req.True(log[0].Failed)
	})

	t.Run("should leave delivered echoes unmarked after a failure", func(t *testing.T) {
		req := require.New(t)
		pub := mocks.NewMockDataPublisher(ctrl)
		clock := clockwork.NewFakeClock()
		chat := NewChat(clock, pub, nil)
		chat.SetLocal(local("me"))

		gomock.InOrder(
			pub.EXPECT().PublishData(gomock.Any(), ChatTopic, gomock.Any(), true).Return(errors.New("data channel closed")),
			pub.EXPECT().PublishData(gomock.Any(), ChatTopic, gomock.Any(), true).Return(nil),
		)

		// Given a failed send
		_, err := chat.Send(context.Background(), "hello")
		req.Error(err)

		// When the restored draft is resent
		clock.Advance(time.Second)
		_, err = chat.Send(context.Background(), "hello")
		req.NoError(err)

		// Then only the first copy reads as undelivered
		log := chat.Messages()
		req.Len(log, 2)
		req.True(log[0].Failed)
		req.False(log[1].Failed)
	})

	t.Run("should reject when rate limited", func(t *testing.T) {
		req := require.New(t)
		pub := mocks.NewMockDataPublisher(ctrl)
		clock := clockwork.NewFakeClock()
		chat := NewChat(clock, pub, NewRateLimiter(clock, 1, time.Second))
		chat.SetLocal(local("me"))

		pub.EXPECT().PublishData(gomock.Any(), ChatTopic, gomock.Any(), true).Return(nil).Times(1)

		_, err := chat.Send(context.Background(), "one")
		req.NoError(err)
		_, err = chat.Send(context.Background(), "two")
		req.ErrorIs(err, domain.ErrRateLimited)
		req.Equal(1, chat.Len())
	})
}

func TestChat_Receive(t *testing.T) {
	t.Run("should drop a repeat within two seconds of receipt", func(t *testing.T) {
		req := require.New(t)
		clock := clockwork.NewFakeClock()
		chat := NewChat(clock, nil, nil)
		bob := remote("bob")

		_, ok := chat.Receive(chatPayload(t, "hi"), bob, ChatTopic)
		req.True(ok)

		clock.Advance(1500 * time.Millisecond)
		_, ok = chat.Receive(chatPayload(t, "hi"), bob, ChatTopic)
		req.False(ok)

		// Another sender with the same text is not a duplicate
		_, ok = chat.Receive(chatPayload(t, "hi"), remote("carol"), ChatTopic)
		req.True(ok)

		clock.Advance(time.Second)
		_, ok = chat.Receive(chatPayload(t, "hi"), bob, ChatTopic)
		req.True(ok)

		req.Equal(3, chat.Len())
	})

	t.Run("should treat exactly two seconds as a repeat", func(t *testing.T) {
		req := require.New(t)
		clock := clockwork.NewFakeClock()
		chat := NewChat(clock, nil, nil)
		bob := remote("bob")

		_, ok := chat.Receive(chatPayload(t, "hi"), bob, ChatTopic)
		req.True(ok)

		clock.Advance(DedupeWindow)
		_, ok = chat.Receive(chatPayload(t, "hi"), bob, ChatTopic)
		req.False(ok)

		clock.Advance(time.Nanosecond)
		_, ok = chat.Receive(chatPayload(t, "hi"), bob, ChatTopic)
		req.True(ok)
		req.Equal(2, chat.Len())
	})

	t.Run("should keep receipt order", func(t *testing.T) {
		req := require.New(t)
		chat := NewChat(clockwork.NewFakeClock(), nil, nil)

		late, _ := json.Marshal(ChatPayload{Type: "chat", Message: "second", Timestamp: 2000})
		early, _ := json.Marshal(ChatPayload{Type: "chat", Message: "first", Timestamp: 1000})
		chat.Receive(late, remote("bob"), ChatTopic)
		chat.Receive(early, remote("bob"), ChatTopic)

		msgs := chat.Messages()
		req.Len(msgs, 2)
		req.Equal("second", msgs[0].Text)
		req.Equal("first", msgs[1].Text)
	})

	t.Run("should ignore foreign input", func(t *testing.T) {
		req := require.New(t)
		chat := NewChat(clockwork.NewFakeClock(), nil, nil)
		chat.SetLocal(local("me"))
		notChat, _ := json.Marshal(ChatPayload{Type: "reaction", Message: "x"})

		cases := []struct {
			payload []byte
			sender  domain.Participant
			topic   string
		}{
			{chatPayload(t, "hi"), remote("bob"), "cursor"},
			{chatPayload(t, "hi"), remote("me"), ChatTopic},
			{chatPayload(t, "hi"), local("me"), ChatTopic},
			{[]byte("{not json"), remote("bob"), ChatTopic},
			{notChat, remote("bob"), ChatTopic},
			{chatPayload(t, "  "), remote("bob"), ChatTopic},
		}
		for _, c := range cases {
			_, ok := chat.Receive(c.payload, c.sender, c.topic)
			req.False(ok)
		}
		req.Zero(chat.Len())
	})

	t.Run("should notify listeners", func(t *testing.T) {
		req := require.New(t)
		chat := NewChat(clockwork.NewFakeClock(), nil, nil)
		var got []domain.ChatMessage
		chat.OnMessage(func(m domain.ChatMessage) { got = append(got, m) })

		chat.Receive(chatPayload(t, "hi"), domain.Participant{ID: "bob"}, ChatTopic)

		req.Len(got, 1)
		req.Equal("bob", got[0].SenderName)
		req.Equal(int64(1700000000000), got[0].Timestamp)
	})
}

func TestRateLimiter_Sliding_Window(t *testing.T) {
	req := require.New(t)
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(clock, 2, time.Second)

	req.True(rl.Allow("me"))
	req.True(rl.Allow("me"))
	req.False(rl.Allow("me"))
	req.True(rl.Allow("bob"))

	clock.Advance(1100 * time.Millisecond)
	req.True(rl.Allow("me"))

	req.True(NewRateLimiter(clock, 0, time.Second).Allow("me"))
}
