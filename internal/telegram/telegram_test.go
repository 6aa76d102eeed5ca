package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTranslator struct{}

func (echoTranslator) T(key, lang string, _ map[string]any) string { return lang + ":" + key }

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	err      error
	block    chan struct{}
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: f.err == nil}, f.err
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func TestSendMessageWithInlineMarkup(t *testing.T) {
	api := &fakeAPI{}
	bot := NewWithAPI(api, nil)
	kb := NewKeyboards(echoTranslator{})

	require.NoError(t, bot.Send(context.Background(), 100, "hello", kb.FinishTrip("ru", 9)))
	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(100), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "finished_9", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "ru:btn_finish", markup.InlineKeyboard[0][0].Text)
}

func TestSendRejectsUnknownMarkup(t *testing.T) {
	bot := NewWithAPI(&fakeAPI{}, nil)
	err := bot.Send(context.Background(), 1, "x", 42)
	assert.ErrorIs(t, err, ErrUnsupportedMarkup)
}

func TestSendPropagatesTransportError(t *testing.T) {
	bot := NewWithAPI(&fakeAPI{err: errors.New("Forbidden: bot was blocked by the user")}, nil)
	assert.Error(t, bot.Send(context.Background(), 1, "x", nil))
}

func TestSendHonoursCancellation(t *testing.T) {
	api := &fakeAPI{block: make(chan struct{})}
	defer close(api.block)
	bot := NewWithAPI(api, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bot.Send(ctx, 1, "x", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done, cancelDone := context.WithCancel(context.Background())
	cancelDone()
	assert.ErrorIs(t, bot.Send(done, 1, "x", nil), context.Canceled)
}

func TestAcceptOrderCallbackData(t *testing.T) {
	kb := NewKeyboards(echoTranslator{})
	travel := kb.AcceptOrder("uz", 12, false)
	delivery := kb.AcceptOrder("uz", 12, true)
	assert.Equal(t, "accept_travel_12", *travel.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "accept_delivery_12", *delivery.InlineKeyboard[0][0].CallbackData)
}

func TestTopUpPresetsLayout(t *testing.T) {
	kb := NewKeyboards(echoTranslator{})
	m := kb.TopUpPresets("uz", []int64{70000, 140000, 210000})
	require.Len(t, m.InlineKeyboard, 3)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Len(t, m.InlineKeyboard[1], 1)
	assert.Equal(t, "sum_70", *m.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "70 000", m.InlineKeyboard[0][0].Text)
	assert.Equal(t, "back", *m.InlineKeyboard[2][0].CallbackData)
}

func TestPayButtonFirst(t *testing.T) {
	m := NewKeyboards(echoTranslator{}).Pay("en")
	assert.True(t, m.InlineKeyboard[0][0].Pay)
}

func TestPollDispatchesUntilCancelled(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 2)}
	api.updates <- tgbotapi.Update{UpdateID: 1}
	api.updates <- tgbotapi.Update{UpdateID: 2}
	bot := NewWithAPI(api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var seen []int
	done := make(chan struct{})
	go func() {
		bot.Poll(ctx, func(_ context.Context, u tgbotapi.Update) {
			seen = append(seen, u.UpdateID)
			if len(seen) == 2 {
				cancel()
			}
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll did not stop")
	}
	assert.Equal(t, []int{1, 2}, seen)
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
}
