package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/0xsamyy/soltrack/internal/analyzer"
	"github.com/0xsamyy/soltrack/internal/store"
)

// SubscriptionStore is the read side of the subscription store the
// notifier consults per user.
type SubscriptionStore interface {
	GetUser(telegramID int64) (store.UserState, error)
	FindWallet(telegramID int64, address string) (store.WalletSubscription, error)
	FindTokenBySymbol(telegramID int64, symbol string) (store.TokenSubscription, error)
}

// Sender delivers one formatted message to one chat. Fire-and-forget; no
// acknowledgment is tracked.
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, html string) error
}

// Notifier fans a classified event out to every whitelisted user whose
// subscription flags allow it.
type Notifier struct {
	st        SubscriptionStore
	sender    Sender
	whitelist []int64
}

// New constructs a Notifier for the given user whitelist.
func New(st SubscriptionStore, sender Sender, whitelist []int64) *Notifier {
	return &Notifier{st: st, sender: sender, whitelist: whitelist}
}

// Notify evaluates every whitelisted user independently and delivers at
// most one message per qualifying user. A lookup or delivery failure for
// one user never prevents evaluation of the rest.
func (n *Notifier) Notify(ctx context.Context, ev analyzer.Event) {
	for _, uid := range n.whitelist {
		user, err := n.st.GetUser(uid)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Printf("[notify] user %d lookup: %v", uid, err)
			}
			continue
		}

		wallet, err := n.st.FindWallet(uid, ev.TrackedWallet())
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Printf("[notify] wallet lookup for %d: %v", uid, err)
			}
			continue
		}

		symbol := DisplaySymbol(ev.GateSymbol())
		token, err := n.st.FindTokenBySymbol(uid, symbol)
		hasToken := err == nil
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("[notify] token lookup for %d: %v", uid, err)
			continue
		}

		if !ShouldNotify(user, wallet, token, hasToken, ev) {
			continue
		}

		msg := FormatMessage(ev, wallet.Label)
		if err := n.sender.SendHTML(ctx, user.TelegramID, msg); err != nil {
			log.Printf("[notify] send to %d failed: %v", uid, err)
			continue
		}
		log.Printf("[notify] delivered %T for %s to %d (%s)", ev, ev.Sig(), uid, wallet.Label)
	}
}

// ShouldNotify is the gating predicate: no I/O, evaluated over one user's
// state for one event. Transfer and Swap events require an enabled token
// subscription matching the sent symbol; Skipped events only require the
// user and wallet flags, since their purpose is "please check manually".
func ShouldNotify(user store.UserState, wallet store.WalletSubscription, token store.TokenSubscription, hasToken bool, ev analyzer.Event) bool {
	if !user.Enabled || !wallet.Enabled {
		return false
	}
	if _, skipped := ev.(analyzer.SkippedEvent); skipped {
		return true
	}
	return hasToken && token.Enabled
}

// DisplaySymbol maps the wrapped-native symbol to the native display
// symbol; everything else passes through.
func DisplaySymbol(symbol string) string {
	if strings.EqualFold(symbol, "WSOL") {
		return "SOL"
	}
	return symbol
}

// FormatMessage renders the HTML notification for one event, addressed by
// the user's own wallet label.
func FormatMessage(ev analyzer.Event, label string) string {
	switch e := ev.(type) {
	case analyzer.TransferEvent:
		return fmt.Sprintf(
			"📤 <b>TRANSFER</b>\n\n"+
				"👛 <b>Wallet:</b> %s\n"+
				"📦 <b>Amount:</b> %.6f %s\n"+
				"➡️ <b>To:</b> <code>%s</code>\n\n"+
				"🔗 <a href='https://solscan.io/tx/%s'>View on Solscan</a>",
			escapeHTML(label), e.Amount, DisplaySymbol(e.Symbol), shortAddr(e.ToAddress), e.Signature,
		)
	case analyzer.SwapEvent:
		return fmt.Sprintf(
			"💱 <b>SWAP</b>\n\n"+
				"👛 <b>Wallet:</b> %s\n"+
				"📤 <b>Sent:</b> %.6f %s\n"+
				"📥 <b>Received:</b> %.9f %s\n"+
				"🔄 <b>DEX:</b> %s\n\n"+
				"🔗 <a href='https://solscan.io/tx/%s'>View on Solscan</a>",
			escapeHTML(label), e.SentAmount, DisplaySymbol(e.SentSymbol), e.RecvAmount, DisplaySymbol(e.RecvSymbol), escapeHTML(e.Aggregator), e.Signature,
		)
	case analyzer.SkippedEvent:
		return fmt.Sprintf(
			"⚠️ <b>TRANSACTION SKIPPED</b>\n\n"+
				"👛 <b>Wallet:</b> %s\n"+
				"📝 <b>Description:</b>\n"+
				"<i>%s</i>\n\n"+
				"🔎 <a href='https://solscan.io/tx/%s'>Check on Solscan</a>",
			escapeHTML(label), escapeHTML(e.Description), e.Signature,
		)
	default:
		return fmt.Sprintf("activity on %s: https://solscan.io/tx/%s", escapeHTML(label), ev.Sig())
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
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
