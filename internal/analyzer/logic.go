package analyzer

import (
	"math"
	"sort"
	"strings"
)

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	wsolMint = "So11111111111111111111111111111111111111112"
	wetMint  = "WETZjtprkDMCcUxPi9PfWnowMRZkiGGHDb9rABuRZ2U"

	lamportsPerSol = 1_000_000_000

	// deltaDust is the epsilon below which a per-mint balance delta is
	// treated as noise and discarded.
	deltaDust = 1e-9
	// nativeEpsilon is the minimum synthesized SOL delta worth keeping.
	nativeEpsilon = 1e-6
	// nativeDustLamports is the minimum native transfer considered a real
	// payment on the transfer path.
	nativeDustLamports = 100
)

// localSymbols maps well-known mints to their symbols, used when the
// metadata lookup fails.
var localSymbols = map[string]string{
	wetMint:  "WET",
	usdcMint: "USDC",
	wsolMint: "WSOL",
}

// aggregatorNames maps Helius source identifiers to display names.
// Unknown sources are shown raw.
var aggregatorNames = map[string]string{
	"DFLOW":   "DFlow Aggregator v4",
	"JUPITER": "Jupiter",
	"ORCA":    "Orca",
	"RAYDIUM": "Raydium",
}

func aggregatorName(source string) string {
	if name, ok := aggregatorNames[source]; ok {
		return name
	}
	return source
}

// isSpamTransfer recognizes the fan-out airdrop pattern Helius describes
// as a transfer "to multiple accounts".
func isSpamTransfer(tx *HeliusTransaction) bool {
	return strings.Contains(tx.Description, "to multiple accounts")
}

// tokenDeltas nets the tracked wallet's per-mint balance change across all
// token legs: negative where the wallet is the source, positive where it
// is the destination.
func tokenDeltas(tx *HeliusTransaction, wallet string) map[string]float64 {
	deltas := make(map[string]float64)
	for _, t := range tx.TokenTransfers {
		if t.FromUserAccount == wallet {
			deltas[t.Mint] -= t.TokenAmount
		}
		if t.ToUserAccount == wallet {
			deltas[t.Mint] += t.TokenAmount
		}
	}
	return deltas
}

// nativeDelta nets the wallet's SOL change across native legs, in display
// units.
func nativeDelta(tx *HeliusTransaction, wallet string) float64 {
	var d float64
	for _, t := range tx.NativeTransfers {
		if t.FromUserAccount == wallet {
			d -= float64(t.Amount) / lamportsPerSol
		}
		if t.ToUserAccount == wallet {
			d += float64(t.Amount) / lamportsPerSol
		}
	}
	return d
}

// synthesizeNativeLeg attributes the wallet's net SOL movement to the
// wrapped-SOL mint when the token legs alone cannot explain the swap
// (fewer than two mints moved and none of them is WSOL). This recovers
// swaps routed so that only the native leg touches the tracked wallet.
func synthesizeNativeLeg(tx *HeliusTransaction, wallet string, deltas map[string]float64) {
	if _, ok := deltas[wsolMint]; ok || len(deltas) >= 2 {
		return
	}
	deltas[wsolMint] = 0
	if d := nativeDelta(tx, wallet); math.Abs(d) > nativeEpsilon {
		deltas[wsolMint] += d
	}
}

// passthroughLegs re-derives swap legs when the wallet-relative WSOL delta
// came out exactly zero: some aggregators settle token-to-token swaps
// through an intermediary account, leaving the wallet's own deltas empty.
// The sent leg is the first token transfer; the received legs are the
// later transfers whose counter-party matches the same pass-through
// account.
func passthroughLegs(tx *HeliusTransaction, wallet string) map[string]float64 {
	out := make(map[string]float64)
	if len(tx.TokenTransfers) == 0 {
		return out
	}
	first := tx.TokenTransfers[0]
	out[first.Mint] = -first.TokenAmount

	if first.FromUserAccount == wallet {
		pass := first.ToUserAccount
		for _, t := range tx.TokenTransfers[1:] {
			if strings.EqualFold(t.ToUserAccount, pass) {
				out[t.Mint] = t.TokenAmount
			}
		}
		return out
	}

	pass := first.FromUserAccount
	for _, t := range tx.TokenTransfers[1:] {
		if strings.EqualFold(t.FromUserAccount, pass) && strings.EqualFold(t.ToUserAccount, wallet) {
			out[t.Mint] = t.TokenAmount
		}
	}
	return out
}

// dropDust removes entries whose magnitude is below deltaDust.
func dropDust(deltas map[string]float64) {
	for mint, amt := range deltas {
		if math.Abs(amt) <= deltaDust {
			delete(deltas, mint)
		}
	}
}

// swapLegs picks the most negative delta as the sent leg and the most
// positive as the received leg. Mints are visited in sorted order so ties
// resolve deterministically.
func swapLegs(deltas map[string]float64) (sentMint string, sentAmt float64, recvMint string, recvAmt float64) {
	mints := make([]string, 0, len(deltas))
	for mint := range deltas {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	first := true
	for _, mint := range mints {
		amt := deltas[mint]
		if first {
			sentMint, sentAmt = mint, amt
			recvMint, recvAmt = mint, amt
			first = false
			continue
		}
		if amt < sentAmt {
			sentMint, sentAmt = mint, amt
		}
		if amt > recvAmt {
			recvMint, recvAmt = mint, amt
		}
	}
	return sentMint, sentAmt, recvMint, recvAmt
}

func shortenMint(mint string) string {
	if len(mint) <= 6 {
		return mint
	}
	return mint[:6]
}
