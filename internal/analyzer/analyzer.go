package analyzer

import (
	"context"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Analyzer classifies observed signatures into events. Classification is a
// pure function of the fetched record: the same signature with an unchanged
// upstream record yields an identical event.
type Analyzer struct {
	apiURL       string // Helius enhanced-transactions endpoint
	rpcURL       string // mainnet RPC for metadata lookups
	feeThreshold int64  // lamports; above it a TRANSFER is a disguised swap

	httpClient    *http.Client
	metadataCache *sync.Map           // mint -> display symbol
	fetchSem      *semaphore.Weighted // process-wide upstream fetch limiter
}

// New constructs an Analyzer. The semaphore is shared process-wide and
// bounds concurrent upstream fetches independently of the worker count.
func New(apiURL, rpcURL string, fetchSem *semaphore.Weighted, feeThresholdLamports int64) *Analyzer {
	cache := &sync.Map{}
	cache.Store(wsolMint, "WSOL")
	cache.Store(usdcMint, "USDC")

	return &Analyzer{
		apiURL:        apiURL,
		rpcURL:        rpcURL,
		feeThreshold:  feeThresholdLamports,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		metadataCache: cache,
		fetchSem:      fetchSem,
	}
}

// Classify fetches the full record for signature and applies the decision
// procedure. It returns (nil, nil) when the transaction produces no event
// (dust, spam, undeterminable direction) and a non-nil error only for
// upstream fetch failures, which are never retried here.
func (a *Analyzer) Classify(ctx context.Context, signature, wallet string) (Event, error) {
	if err := a.fetchSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer a.fetchSem.Release(1)

	tx, err := fetchTransaction(ctx, signature, a.apiURL, a.httpClient)
	if err != nil {
		return nil, err
	}
	return a.classify(ctx, tx, signature, wallet), nil
}

func (a *Analyzer) classify(ctx context.Context, tx *HeliusTransaction, signature, wallet string) Event {
	txType := tx.Type
	source := tx.Source
	if txType == "UNKNOWN" {
		txType = "SWAP"
	}
	// A plain wallet-to-wallet transfer pays the base fee; anything above
	// the threshold was routed by an aggregator and is really a swap.
	if tx.Fee > a.feeThreshold && (txType == "TRANSFER" || source == "SYSTEM_PROGRAM") {
		txType = "SWAP"
		source = "JUPITER"
	}

	if txType == "TRANSFER" && tx.Fee < a.feeThreshold {
		return a.classifyTransfer(ctx, tx, signature, wallet)
	}

	if txType == "SWAP" {
		if ev := a.classifySwap(ctx, tx, signature, wallet, source); ev != nil {
			return ev
		}
		return nil
	}

	// Anything else is surfaced for manual review rather than dropped.
	log.Printf("[analyzer] tx %s type=%s source=%s skipped", signature, txType, source)
	var amount float64
	symbol := "UNKNOWN"
	if len(tx.TokenTransfers) > 0 {
		t := tx.TokenTransfers[0]
		amount = t.TokenAmount
		symbol = a.resolveSymbol(ctx, t.Mint)
	}
	return SkippedEvent{
		Signature:   signature,
		Wallet:      wallet,
		SentAmount:  amount,
		SentSymbol:  symbol,
		Description: tx.Description,
	}
}

func (a *Analyzer) classifyTransfer(ctx context.Context, tx *HeliusTransaction, signature, wallet string) Event {
	if isSpamTransfer(tx) {
		log.Printf("[analyzer] tx %s is a spam transfer to multiple accounts, skipping", signature)
		return nil
	}

	if len(tx.TokenTransfers) > 0 {
		t := tx.TokenTransfers[0]
		if t.TokenAmount > 0 {
			return TransferEvent{
				Signature:   signature,
				Wallet:      wallet,
				Amount:      t.TokenAmount,
				Symbol:      a.resolveSymbol(ctx, t.Mint),
				ToAddress:   t.ToUserAccount,
				Description: tx.Description,
			}
		}
	}

	if len(tx.NativeTransfers) > 0 {
		t := tx.NativeTransfers[0]
		if t.Amount > nativeDustLamports {
			return TransferEvent{
				Signature:   signature,
				Wallet:      wallet,
				Amount:      float64(t.Amount) / lamportsPerSol,
				Symbol:      "SOL",
				ToAddress:   t.ToUserAccount,
				Description: tx.Description,
			}
		}
	}

	return nil
}

// classifySwap evaluates the balance-delta decision table: wallet-relative
// token deltas, then native-leg synthesis, then pass-through recovery,
// then dust filtering and direction.
func (a *Analyzer) classifySwap(ctx context.Context, tx *HeliusTransaction, signature, wallet, source string) Event {
	deltas := tokenDeltas(tx, wallet)
	synthesizeNativeLeg(tx, wallet, deltas)
	if d, ok := deltas[wsolMint]; ok && d == 0 {
		deltas = passthroughLegs(tx, wallet)
	}
	dropDust(deltas)

	if len(deltas) == 0 {
		log.Printf("[analyzer] dust-only balance changes for tx %s", signature)
		return nil
	}

	sentMint, sentAmt, recvMint, recvAmt := swapLegs(deltas)
	if sentAmt >= 0 || recvAmt <= 0 {
		log.Printf("[analyzer] could not determine swap direction for tx %s", signature)
		return nil
	}

	return SwapEvent{
		Signature:   signature,
		Wallet:      wallet,
		SentAmount:  math.Abs(sentAmt),
		SentSymbol:  a.resolveSymbol(ctx, sentMint),
		RecvAmount:  recvAmt,
		RecvSymbol:  a.resolveSymbol(ctx, recvMint),
		Aggregator:  aggregatorName(source),
		Description: tx.Description,
	}
}

// resolveSymbol returns the display symbol for mint: cache, then on-chain
// metadata, then the local symbol table, then the truncated mint. Failures
// never abort classification; the result is cached either way so a flaky
// RPC is not hammered per event.
func (a *Analyzer) resolveSymbol(ctx context.Context, mint string) string {
	if mint == "" {
		return "UNKNOWN"
	}
	if v, ok := a.metadataCache.Load(mint); ok {
		return v.(string)
	}

	meta, err := fetchOnChainMetadata(ctx, mint, a.rpcURL, a.httpClient)
	if err == nil {
		a.metadataCache.Store(mint, meta.Symbol)
		return meta.Symbol
	}

	symbol, ok := localSymbols[mint]
	if !ok {
		symbol = shortenMint(mint)
	}
	log.Printf("[analyzer] metadata lookup failed for %s (%v), using %s", mint, err, symbol)
	a.metadataCache.Store(mint, symbol)
	return symbol
}
