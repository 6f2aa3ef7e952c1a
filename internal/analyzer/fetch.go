package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	splTokenProgramID         = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	metaplexMetadataProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
)

// fetchTransaction loads the enhanced record for one signature. A non-200
// response or an empty payload is an error; the caller treats it as
// "no event, log and drop".
func fetchTransaction(ctx context.Context, signature, apiURL string, client *http.Client) (*HeliusTransaction, error) {
	payload := map[string][]string{"transactions": {signature}}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("helius returned %d: %s", resp.StatusCode, string(bodyBytes))
	}
	var transactions []HeliusTransaction
	if err := json.NewDecoder(resp.Body).Decode(&transactions); err != nil || len(transactions) == 0 {
		return nil, fmt.Errorf("empty or undecodable helius response for %s", signature)
	}
	return &transactions[0], nil
}

func rpcCall(ctx context.Context, rpcURL string, client *http.Client, method string, params []interface{}, result interface{}) error {
	payload := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc %s failed with status %d", method, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// fetchOnChainMetadata resolves a mint's symbol and decimals from its
// Metaplex metadata account.
func fetchOnChainMetadata(ctx context.Context, mint, rpcURL string, client *http.Client) (*TokenMetadata, error) {
	// Mint account: owner program and decimals.
	var accInfo getAccountInfoResponse
	params := []interface{}{mint, map[string]string{"encoding": "jsonParsed"}}
	if err := rpcCall(ctx, rpcURL, client, "getAccountInfo", params, &accInfo); err != nil {
		return nil, fmt.Errorf("getAccountInfo for mint: %w", err)
	}

	owner := accInfo.Result.Value.Owner
	decimals := accInfo.Result.Value.Data.Parsed.Info.Decimals

	if owner != splTokenProgramID {
		return nil, fmt.Errorf("unsupported token program: %s", owner)
	}

	// Locate the Metaplex PDA for the mint.
	var progAccounts getProgramAccountsResponse
	params = []interface{}{
		metaplexMetadataProgramID,
		map[string]interface{}{
			"encoding": "base64",
			"filters": []map[string]interface{}{
				{"memcmp": map[string]interface{}{"offset": 33, "bytes": mint}},
			},
		},
	}
	if err := rpcCall(ctx, rpcURL, client, "getProgramAccounts", params, &progAccounts); err != nil {
		return nil, fmt.Errorf("getProgramAccounts for pda: %w", err)
	}
	if len(progAccounts.Result) == 0 {
		return nil, errors.New("metaplex pda not found")
	}
	pdaAddress := progAccounts.Result[0].Pubkey

	var pdaInfo getAccountInfoBase64Response
	params = []interface{}{pdaAddress, map[string]string{"encoding": "base64"}}
	if err := rpcCall(ctx, rpcURL, client, "getAccountInfo", params, &pdaInfo); err != nil {
		return nil, fmt.Errorf("getAccountInfo for pda: %w", err)
	}
	if len(pdaInfo.Result.Value.Data) < 1 {
		return nil, errors.New("pda has no data")
	}
	rawData, err := base64.StdEncoding.DecodeString(pdaInfo.Result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode pda data: %w", err)
	}

	// Borsh layout: key(1) + updateAuthority(32) + mint(32), then
	// length-prefixed name and symbol strings.
	const headerOffset = 65
	if len(rawData) < headerOffset+4 {
		return nil, errors.New("metadata account data is too short")
	}

	nameLen := binary.LittleEndian.Uint32(rawData[headerOffset : headerOffset+4])
	symbolOffset := headerOffset + 4 + int(nameLen)
	if symbolOffset+4 > len(rawData) {
		return nil, errors.New("name length exceeds buffer")
	}

	symbolLen := binary.LittleEndian.Uint32(rawData[symbolOffset : symbolOffset+4])
	symbolEnd := symbolOffset + 4 + int(symbolLen)
	if symbolEnd > len(rawData) {
		return nil, errors.New("symbol length exceeds buffer")
	}

	symbolBytes := rawData[symbolOffset+4 : symbolEnd]
	symbol := string(bytes.TrimRight(symbolBytes, "\x00"))
	if symbol == "" {
		return nil, errors.New("metadata has empty symbol")
	}

	return &TokenMetadata{Symbol: symbol, Decimals: decimals}, nil
}
