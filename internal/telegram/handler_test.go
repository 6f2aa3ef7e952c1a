package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xsamyy/soltrack/internal/store"
)

type fakeStore struct {
	ensured atomic.Int32
	added   atomic.Int32
}

func (f *fakeStore) EnsureUser(telegramID int64) (store.UserState, bool, error) {
	f.ensured.Add(1)
	return store.UserState{TelegramID: telegramID, Enabled: true}, true, nil
}

func (f *fakeStore) GetUser(telegramID int64) (store.UserState, error) {
	return store.UserState{TelegramID: telegramID, Enabled: true}, nil
}

func (f *fakeStore) SetUserEnabled(int64, bool) error { return nil }

func (f *fakeStore) AddWallet(int64, string, string) error {
	f.added.Add(1)
	return nil
}

func (f *fakeStore) ListWallets(int64) ([]store.WalletSubscription, error) { return nil, nil }
func (f *fakeStore) ToggleWallet(int64, string) (bool, error)              { return true, nil }
func (f *fakeStore) SetAllWallets(int64, bool) error                       { return nil }
func (f *fakeStore) AddToken(int64, string, string) error                  { return nil }
func (f *fakeStore) ListTokens(int64) ([]store.TokenSubscription, error)   { return nil, nil }
func (f *fakeStore) ToggleToken(int64, string) (bool, error)               { return true, nil }
func (f *fakeStore) SetAllTokens(int64, bool) error                        { return nil }

// newTestBot returns a bot wired to a local fake API plus a counter of
// sendMessage calls it served.
func newTestBot(t *testing.T) (*tg.Bot, *atomic.Int32) {
	t.Helper()
	var sent atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			sent.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`))
	}))
	t.Cleanup(srv.Close)

	b, err := tg.New("123456:TESTTOKEN", tg.WithServerURL(srv.URL), tg.WithSkipGetMe())
	require.NoError(t, err)
	return b, &sent
}

func message(text string) *models.Message {
	return &models.Message{Text: text, Chat: models.Chat{ID: 1}}
}

func TestHandleCommandSurvivesCaseLengtheningRunes(t *testing.T) {
	b, sent := newTestBot(t)
	h := New(b, &fakeStore{}, nil, []int64{1}, nil)

	// "Ⱥ" is two bytes but its lowercase form "ⱥ" is three, so an index
	// computed on the lowered text does not fit the original one
	h.handleCommand(context.Background(), message("ȺȺȺȺȺȺ@bot"))

	assert.Equal(t, int32(1), sent.Load(), "expected the unknown-command reply")
}

func TestHandleCommandStripsBotMentionSuffix(t *testing.T) {
	b, _ := newTestBot(t)
	fs := &fakeStore{}
	h := New(b, fs, nil, []int64{1}, nil)

	h.handleCommand(context.Background(), message("/start@soltrack_bot"))

	assert.Equal(t, int32(1), fs.ensured.Load())
}

func TestHandleCommandIsCaseInsensitive(t *testing.T) {
	b, sent := newTestBot(t)
	fs := &fakeStore{}
	h := New(b, fs, nil, []int64{1}, nil)

	h.handleCommand(context.Background(), message("/ADDWALLET 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU trader"))

	assert.Equal(t, int32(1), fs.added.Load())
	assert.Equal(t, int32(1), sent.Load())
}
