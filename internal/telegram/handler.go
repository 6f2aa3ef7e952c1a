package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/0xsamyy/soltrack/internal/health"
	"github.com/0xsamyy/soltrack/internal/store"
	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/mr-tron/base58"
)

// SubscriptionStore is the mutable side of the store the command surface
// drives. The watch set itself is owned by the reconciler; commands only
// flip flags here and the next tick picks them up.
type SubscriptionStore interface {
	EnsureUser(telegramID int64) (store.UserState, bool, error)
	GetUser(telegramID int64) (store.UserState, error)
	SetUserEnabled(telegramID int64, enabled bool) error
	AddWallet(telegramID int64, address, label string) error
	ListWallets(telegramID int64) ([]store.WalletSubscription, error)
	ToggleWallet(telegramID int64, address string) (bool, error)
	SetAllWallets(telegramID int64, enabled bool) error
	AddToken(telegramID int64, mint, symbol string) error
	ListTokens(telegramID int64) ([]store.TokenSubscription, error)
	ToggleToken(telegramID int64, mint string) (bool, error)
	SetAllTokens(telegramID int64, enabled bool) error
}

// Handler coordinates Telegram <-> store/health.
type Handler struct {
	bot       *tg.Bot
	whitelist map[int64]struct{}
	st        SubscriptionStore
	hlth      *health.Health
	killFn    func()
}

// New constructs the Telegram Handler. Only whitelisted users are served;
// updates from anyone else are dropped silently.
func New(bot *tg.Bot, st SubscriptionStore, hlth *health.Health, whitelist []int64, killFn func()) *Handler {
	h := &Handler{
		bot:       bot,
		whitelist: make(map[int64]struct{}, len(whitelist)),
		st:        st,
		hlth:      hlth,
		killFn:    killFn,
	}
	for _, id := range whitelist {
		h.whitelist[id] = struct{}{}
	}
	return h
}

// Run starts long-polling and handles updates until ctx is done.
func (h *Handler) Run(ctx context.Context) {
	h.bot.RegisterHandler(tg.HandlerTypeMessageText, "", tg.MatchTypePrefix, func(c context.Context, b *tg.Bot, u *models.Update) {
		if u.Message == nil {
			return
		}
		if _, ok := h.whitelist[u.Message.Chat.ID]; !ok {
			return
		}
		h.handleCommand(c, u.Message)
	})
	h.bot.Start(ctx)
}

// SendHTML delivers one HTML-formatted message; it satisfies the
// notifier's Sender.
func (h *Handler) SendHTML(ctx context.Context, chatID int64, html string) error {
	disable := true
	_, err := h.bot.SendMessage(ctx, &tg.SendMessageParams{
		ChatID:    chatID,
		Text:      html,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disable,
		},
	})
	return err
}

func (h *Handler) reply(ctx context.Context, chatID int64, html string) {
	if err := h.SendHTML(ctx, chatID, html); err != nil {
		log.Printf("[telegram] send error: %v", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, m *models.Message) {
	raw := strings.TrimSpace(m.Text)
	// strip a /cmd@botname mention suffix before matching
	if idx := strings.IndexRune(raw, '@'); idx != -1 {
		raw = raw[:idx]
	}
	lower := strings.ToLower(raw)
	uid := m.Chat.ID

	switch {
	case lower == "/start":
		_, created, err := h.st.EnsureUser(uid)
		if err != nil {
			h.reply(ctx, uid, fmt.Sprintf("start failed: <code>%v</code>", err))
			return
		}
		if created {
			log.Printf("[telegram] new user %d, default tokens seeded", uid)
		}
		h.replyHelp(ctx, uid)

	case lower == "/help":
		h.replyHelp(ctx, uid)

	case strings.HasPrefix(lower, "/addwallet "):
		args := strings.Fields(raw[len("/addwallet"):])
		if len(args) < 2 {
			h.reply(ctx, uid, "usage: <code>/addwallet &lt;address&gt; &lt;label&gt;</code>")
			return
		}
		addr := args[0]
		label := strings.Join(args[1:], " ")
		if !looksLikeAddress(addr) {
			h.reply(ctx, uid, "that does not look like a Solana address")
			return
		}
		if err := h.st.AddWallet(uid, addr, label); err != nil {
			switch {
			case errors.Is(err, store.ErrDuplicateAddress):
				h.reply(ctx, uid, "this address is already added")
			case errors.Is(err, store.ErrDuplicateLabel):
				h.reply(ctx, uid, "this label is already used")
			default:
				h.reply(ctx, uid, fmt.Sprintf("addwallet failed: <code>%v</code>", err))
			}
			return
		}
		h.reply(ctx, uid, fmt.Sprintf("watching <b>%s</b> as <b>%s</b>", escapeHTML(addr), escapeHTML(label)))

	case lower == "/wallets":
		wallets, err := h.st.ListWallets(uid)
		if err != nil {
			h.reply(ctx, uid, fmt.Sprintf("wallets failed: <code>%v</code>", err))
			return
		}
		if len(wallets) == 0 {
			h.reply(ctx, uid, "<b>No wallets added.</b> Use <code>/addwallet</code>.")
			return
		}
		var b strings.Builder
		b.WriteString("📋 <b>Your wallets:</b>\n")
		for _, w := range wallets {
			b.WriteString(fmt.Sprintf("%s <b>%s</b> <code>%s</code>\n", onOff(w.Enabled), escapeHTML(w.Label), escapeHTML(w.Address)))
		}
		h.reply(ctx, uid, b.String())

	case strings.HasPrefix(lower, "/togglewallet "):
		addr := strings.TrimSpace(raw[len("/togglewallet"):])
		enabled, err := h.st.ToggleWallet(uid, addr)
		if err != nil {
			h.reply(ctx, uid, fmt.Sprintf("togglewallet failed: <code>%v</code>", err))
			return
		}
		h.reply(ctx, uid, fmt.Sprintf("wallet <code>%s</code> is now %s", escapeHTML(addr), onOffWord(enabled)))

	case lower == "/wallets_on" || lower == "/wallets_off":
		enabled := lower == "/wallets_on"
		if err := h.st.SetAllWallets(uid, enabled); err != nil {
			h.reply(ctx, uid, fmt.Sprintf("failed: <code>%v</code>", err))
			return
		}
		h.reply(ctx, uid, fmt.Sprintf("all wallets %s", onOffWord(enabled)))

	case strings.HasPrefix(lower, "/addtoken "):
		args := strings.Fields(raw[len("/addtoken"):])
		if len(args) != 2 {
			h.reply(ctx, uid, "usage: <code>/addtoken &lt;mint&gt; &lt;symbol&gt;</code>")
			return
		}
		mint, symbol := args[0], args[1]
		if !looksLikeAddress(mint) {
			h.reply(ctx, uid, "that does not look like a mint address")
			return
		}
		if err := h.st.AddToken(uid, mint, symbol); err != nil {
			if errors.Is(err, store.ErrDuplicateMint) {
				h.reply(ctx, uid, "this token is already added")
				return
			}
			h.reply(ctx, uid, fmt.Sprintf("addtoken failed: <code>%v</code>", err))
			return
		}
		h.reply(ctx, uid, fmt.Sprintf("tracking token <b>%s</b>", escapeHTML(symbol)))

	case lower == "/tokens":
		tokens, err := h.st.ListTokens(uid)
		if err != nil {
			h.reply(ctx, uid, fmt.Sprintf("tokens failed: <code>%v</code>", err))
			return
		}
		if len(tokens) == 0 {
			h.reply(ctx, uid, "<b>No tokens tracked.</b> Use <code>/addtoken</code>.")
			return
		}
		var b strings.Builder
		b.WriteString("🪙 <b>Your tokens:</b>\n")
		for _, t := range tokens {
			b.WriteString(fmt.Sprintf("%s <b>%s</b> <code>%s</code>\n", onOff(t.Enabled), escapeHTML(t.Symbol), escapeHTML(t.Mint)))
		}
		h.reply(ctx, uid, b.String())

	case strings.HasPrefix(lower, "/toggletoken "):
		mint := strings.TrimSpace(raw[len("/toggletoken"):])
		enabled, err := h.st.ToggleToken(uid, mint)
		if err != nil {
			h.reply(ctx, uid, fmt.Sprintf("toggletoken failed: <code>%v</code>", err))
			return
		}
		h.reply(ctx, uid, fmt.Sprintf("token <code>%s</code> is now %s", escapeHTML(mint), onOffWord(enabled)))

	case lower == "/tokens_on" || lower == "/tokens_off":
		enabled := lower == "/tokens_on"
		if err := h.st.SetAllTokens(uid, enabled); err != nil {
			h.reply(ctx, uid, fmt.Sprintf("failed: <code>%v</code>", err))
			return
		}
		h.reply(ctx, uid, fmt.Sprintf("all tokens %s", onOffWord(enabled)))

	case lower == "/mute" || lower == "/unmute":
		enabled := lower == "/unmute"
		if err := h.st.SetUserEnabled(uid, enabled); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				h.reply(ctx, uid, "use <code>/start</code> first")
				return
			}
			h.reply(ctx, uid, fmt.Sprintf("failed: <code>%v</code>", err))
			return
		}
		if enabled {
			h.reply(ctx, uid, "🔔 notifications enabled")
		} else {
			h.reply(ctx, uid, "🔕 notifications muted")
		}

	case lower == "/health":
		rep := h.hlth.Snapshot()
		msg := fmt.Sprintf(
			"📊 <b>Health Report</b>\n"+
				"- Listeners: <code>%d</code> (open <code>%d</code>, dropped <code>%d</code>)\n"+
				"- Users: <code>%d</code>\n"+
				"- Wallets (store): <code>%d</code>\n"+
				"- Queue depth: <code>%d</code>\n"+
				"- Time: <code>%s</code>",
			rep.Tracked, rep.Open, len(rep.Dropped), rep.Users, rep.Wallets, rep.QueueDepth, rep.GeneratedAt.Format(time.RFC3339),
		)
		h.reply(ctx, uid, msg)

	case lower == "/kill":
		h.reply(ctx, uid, "🛑 shutting down...")
		go func() {
			time.Sleep(200 * time.Millisecond)
			if h.killFn != nil {
				h.killFn()
			} else {
				log.Println("[telegram] killFn not set")
			}
		}()

	default:
		h.reply(ctx, uid, "unknown command. try <code>/help</code>")
	}
}

func (h *Handler) replyHelp(ctx context.Context, chatID int64) {
	help := strings.TrimSpace(`
🛠 <b>soltrack</b>

<b>Wallets:</b>
- <code>/addwallet &lt;address&gt; &lt;label&gt;</code> - Watch a wallet
- <code>/wallets</code> - List your wallets
- <code>/togglewallet &lt;address&gt;</code> - Toggle one wallet
- <code>/wallets_on</code> / <code>/wallets_off</code> - Toggle all

<b>Tokens:</b>
- <code>/addtoken &lt;mint&gt; &lt;symbol&gt;</code> - Track a token
- <code>/tokens</code> - List your tokens
- <code>/toggletoken &lt;mint&gt;</code> - Toggle one token
- <code>/tokens_on</code> / <code>/tokens_off</code> - Toggle all

<b>Misc:</b>
- <code>/mute</code> / <code>/unmute</code> - Pause/resume all notifications
- <code>/health</code> - Show service health
- <code>/kill</code> - Shutdown the service
`)
	h.reply(ctx, chatID, help)
}

// looksLikeAddress checks the base58 shape of a Solana address (32 raw
// bytes). Not an on-curve check; just enough to catch paste errors.
func looksLikeAddress(addr string) bool {
	raw, err := base58.Decode(addr)
	return err == nil && len(raw) == 32
}

func onOff(enabled bool) string {
	if enabled {
		return "🟢"
	}
	return "🔴"
}

func onOffWord(enabled bool) string {
	if enabled {
		return "<b>enabled</b>"
	}
	return "<b>disabled</b>"
}

func escapeHTML(s string) string {
	replacer := strings.NewReplacer(
		`&`, "&amp;",
		`<`, "&lt;",
		`>`, "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(s)
}
