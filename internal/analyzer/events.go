package analyzer

// Event is one classified transaction observation. Events are ephemeral:
// produced once per signature, consumed once by the notifier, then
// discarded.
type Event interface {
	Sig() string
	// TrackedWallet is the watched address the signature was observed on.
	TrackedWallet() string
	// GateSymbol is the symbol evaluated against a user's token filters.
	GateSymbol() string
}

// TransferEvent is a plain outbound transfer of one asset.
type TransferEvent struct {
	Signature   string
	Wallet      string
	Amount      float64
	Symbol      string
	ToAddress   string
	Description string
}

func (e TransferEvent) Sig() string           { return e.Signature }
func (e TransferEvent) TrackedWallet() string { return e.Wallet }
func (e TransferEvent) GateSymbol() string    { return e.Symbol }

// SwapEvent is an exchange of one asset for another, attributed to the
// aggregator that routed it.
type SwapEvent struct {
	Signature   string
	Wallet      string
	SentAmount  float64
	SentSymbol  string
	RecvAmount  float64
	RecvSymbol  string
	Aggregator  string
	Description string
}

func (e SwapEvent) Sig() string           { return e.Signature }
func (e SwapEvent) TrackedWallet() string { return e.Wallet }
func (e SwapEvent) GateSymbol() string    { return e.SentSymbol }

// SkippedEvent is a transaction the classifier recognized but could not
// interpret with confidence. It is surfaced for manual review rather than
// dropped.
type SkippedEvent struct {
	Signature   string
	Wallet      string
	SentAmount  float64
	SentSymbol  string
	Description string
}

func (e SkippedEvent) Sig() string           { return e.Signature }
func (e SkippedEvent) TrackedWallet() string { return e.Wallet }
func (e SkippedEvent) GateSymbol() string    { return e.SentSymbol }
