package analyzer

import "encoding/json"

// HeliusTransaction is the enhanced transaction record returned by the
// Helius /v0/transactions endpoint, trimmed to the fields classification
// needs.
type HeliusTransaction struct {
	Signature        string           `json:"signature"`
	Timestamp        int64            `json:"timestamp"`
	Fee              int64            `json:"fee"` // lamports
	FeePayer         string           `json:"feePayer"`
	Type             string           `json:"type"`
	Source           string           `json:"source"`
	Description      string           `json:"description"`
	TokenTransfers   []TokenTransfer  `json:"tokenTransfers"`
	NativeTransfers  []NativeTransfer `json:"nativeTransfers"`
	TransactionError *json.RawMessage `json:"transactionError"`
}

// TokenTransfer is one SPL token leg. TokenAmount arrives already scaled
// to display units.
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"`
}

// NativeTransfer is one SOL leg, in lamports.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

// TokenMetadata is the resolved display data for a mint.
type TokenMetadata struct {
	Symbol   string
	Decimals int
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// getAccountInfoResponse is for jsonParsed requests.
type getAccountInfoResponse struct {
	Result struct {
		Value struct {
			Owner string `json:"owner"`
			Data  struct {
				Parsed struct {
					Info struct {
						Decimals int `json:"decimals"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	} `json:"result"`
}

// getAccountInfoBase64Response is for base64 requests.
type getAccountInfoBase64Response struct {
	Result struct {
		Value struct {
			Data []string `json:"data"` // ["base64_string", "base64"]
		} `json:"value"`
	} `json:"result"`
}

type getProgramAccountsResponse struct {
	Result []struct {
		Pubkey string `json:"pubkey"`
	} `json:"result"`
}
