package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/danielpatrickdp/sproto/internal/bot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

// #region fake bot api

type call struct {
	method string
	form   map[string]string
}

type fakeServer struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]bool
}

func (f *fakeServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]

		form := make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.calls = append(f.calls, call{method: method, form: form})
		fail := f.fail[method]
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`)
			return
		}
		switch method {
		case "getMe":
			fmt.Fprint(w, `{"ok":true,"result":{"id":7,"is_bot":true,"first_name":"Sproto","username":"sproto_bot"}}`)
		case "sendMessage", "editMessageReplyMarkup":
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":11,"date":0,"chat":{"id":42,"type":"private"}}}`)
		case "answerCallbackQuery":
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		default:
			fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		}
	}
}

func (f *fakeServer) byMethod(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newServerClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	fs := &fakeServer{fail: map[string]bool{}}
	srv := httptest.NewServer(fs.handler(t))
	t.Cleanup(srv.Close)

	c, err := New("123:abc", srv.URL+"/bot%s/%s", "/sproto", 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, fs.byMethod("getMe"), 1)
	return c, fs
}

// #endregion fake bot api

// #region transport

func TestSendRendersInlineKeyboard(t *testing.T) {
	c, fs := newServerClient(t)

	actions := []bot.Action{{Label: bot.UpLabel, Payload: "up|x-1"}, {Label: bot.DownLabel, Payload: "down|x-1"}}
	require.NoError(t, c.Send(context.Background(), 42, "hello there", actions))

	sent := fs.byMethod("sendMessage")
	require.Len(t, sent, 1)
	require.Equal(t, "42", sent[0].form["chat_id"])
	require.Equal(t, "hello there", sent[0].form["text"])

	markup := gjson.Parse(sent[0].form["reply_markup"])
	rows := markup.Get("inline_keyboard").Array()
	require.Len(t, rows, 1)
	require.Equal(t, "up|x-1", rows[0].Get("0.callback_data").String())
	require.Equal(t, bot.DownLabel, rows[0].Get("1.text").String())
}

func TestSendWithoutActionsHasNoKeyboard(t *testing.T) {
	c, fs := newServerClient(t)

	require.NoError(t, c.Send(context.Background(), 42, "Usage: /sproto your text here", nil))
	sent := fs.byMethod("sendMessage")
	require.Len(t, sent, 1)
	_, ok := sent[0].form["reply_markup"]
	require.False(t, ok)
}

func TestAnswerAndClear(t *testing.T) {
	c, fs := newServerClient(t)
	ctx := context.Background()

	require.NoError(t, c.Answer(ctx, "cb-1", ""))
	require.NoError(t, c.ClearActions(ctx, 42, 11))
	require.NoError(t, c.ClearActions(ctx, 42, 0))

	answers := fs.byMethod("answerCallbackQuery")
	require.Len(t, answers, 1)
	require.Equal(t, "cb-1", answers[0].form["callback_query_id"])

	edits := fs.byMethod("editMessageReplyMarkup")
	require.Len(t, edits, 1)
	require.Equal(t, "11", edits[0].form["message_id"])
	_, ok := edits[0].form["reply_markup"]
	require.False(t, ok)
}

func TestAPIErrorsAreWrapped(t *testing.T) {
	c, fs := newServerClient(t)
	fs.fail["editMessageReplyMarkup"] = true

	err := c.ClearActions(context.Background(), 42, 11)
	require.Error(t, err)
	var apiErr *tgbotapi.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 400, apiErr.Code)
}

func TestCanceledContextSkipsCalls(t *testing.T) {
	c, fs := newServerClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, c.Send(ctx, 42, "x", nil), context.Canceled)
	require.ErrorIs(t, c.Answer(ctx, "cb", ""), context.Canceled)
	require.Empty(t, fs.byMethod("sendMessage"))
	require.Empty(t, fs.byMethod("answerCallbackQuery"))
}

func TestLoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	_, err := New("bad", srv.URL+"/bot%s/%s", "sproto", 0, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "telegram login")
}

// #endregion transport

// #region conversion

func commandMessage(text string, entityLen int) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 3,
		From:      &tgbotapi.User{ID: 1001},
		Chat:      &tgbotapi.Chat{ID: 42},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: entityLen}},
	}
}

func TestToEventCommand(t *testing.T) {
	tests := []struct {
		name   string
		msg    *tgbotapi.Message
		wantOK bool
		want   string
	}{
		{"plain", commandMessage("/sproto I love pizza", 7), true, "I love pizza"},
		{"quoted", commandMessage(`/sproto   "I love pizza"  `, 7), true, "I love pizza"},
		{"with bot name", commandMessage("/sproto@sproto_bot hi", 18), true, "hi"},
		{"no argument", commandMessage("/sproto", 7), true, ""},
		{"other command", commandMessage("/start", 6), false, ""},
		{"not a command", &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "sproto hi"}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := ToEvent(tgbotapi.Update{Message: tt.msg}, "sproto")
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			require.NotNil(t, ev.Command)
			require.Nil(t, ev.Selection)
			require.Equal(t, tt.want, ev.Command.Text)
			require.Equal(t, int64(42), ev.Command.ChatID)
			require.Equal(t, "1001", ev.Command.Voter)
		})
	}
}

func TestToEventSelection(t *testing.T) {
	u := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-9",
		From:    &tgbotapi.User{ID: 55},
		Message: &tgbotapi.Message{MessageID: 12, Chat: &tgbotapi.Chat{ID: -100}},
		Data:    "up|abc",
	}}
	ev, ok := ToEvent(u, "sproto")
	require.True(t, ok)
	require.Equal(t, &bot.Selection{ID: "cb-9", ChatID: -100, MessageID: 12, Voter: "55", Payload: "up|abc"}, ev.Selection)

	// inline-mode callbacks carry no message
	ev, ok = ToEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb", Data: "down|z"}}, "sproto")
	require.True(t, ok)
	require.Equal(t, 0, ev.Selection.MessageID)
	require.Equal(t, "0", ev.Selection.Voter)

	_, ok = ToEvent(tgbotapi.Update{UpdateID: 4}, "sproto")
	require.False(t, ok)
}

func TestCommandText(t *testing.T) {
	require.Equal(t, "a b", CommandText(`  "a b"  `))
	require.Equal(t, `it's "fine"`, CommandText(`it's "fine"`))
	require.Equal(t, "", CommandText(`""`))
}

// #endregion conversion

// #region polling

type scriptedAPI struct {
	mu      sync.Mutex
	batches [][]tgbotapi.Update
	errs    []error
	offsets []int
}

func (s *scriptedAPI) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, cfg.Offset)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.mu.Unlock()
		return nil, err
	}
	if len(s.batches) > 0 {
		b := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()
	time.Sleep(time.Millisecond)
	return nil, nil
}

func (s *scriptedAPI) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	return tgbotapi.Message{}, nil
}

func (s *scriptedAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *scriptedAPI) seenOffsets() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.offsets...)
}

func TestEventsPollsAndAdvancesOffset(t *testing.T) {
	api := &scriptedAPI{
		errs: []error{errors.New("connection reset")},
		batches: [][]tgbotapi.Update{
			{
				{UpdateID: 10, Message: commandMessage("/sproto first", 7)},
				{UpdateID: 11, Message: commandMessage("/help", 5)},
			},
			{
				{UpdateID: 12, CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb", From: &tgbotapi.User{ID: 1}, Data: "up|a"}},
			},
		},
	}
	c := NewWithAPI(api, "sproto", 0, zaptest.NewLogger(t))
	c.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	events := c.Events(ctx)

	first := <-events
	require.NotNil(t, first.Command)
	require.Equal(t, "first", first.Command.Text)

	second := <-events
	require.NotNil(t, second.Selection)
	require.Equal(t, "up|a", second.Selection.Payload)

	cancel()
	for range events {
	}

	offsets := api.seenOffsets()
	require.GreaterOrEqual(t, len(offsets), 3)
	require.Equal(t, []int{0, 0, 12}, offsets[:3])
}

func TestEventsStopsOnCancelWhileBlocked(t *testing.T) {
	api := &scriptedAPI{batches: [][]tgbotapi.Update{{
		{UpdateID: 1, Message: commandMessage("/sproto one", 7)},
		{UpdateID: 2, Message: commandMessage("/sproto two", 7)},
	}}}
	c := NewWithAPI(api, "sproto", 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := c.Events(ctx)
	<-events
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			// the second event may already have been in flight
			_, ok = <-events
		}
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

// #endregion polling
