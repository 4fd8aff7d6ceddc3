// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package chainclient provides a mempool-space style REST client supplying
// chain data to the transaction builders.
package chainclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/BoostyLabs/ordinals/bitcoin"
)

// UTXOSource returns spendable outputs of an address.
type UTXOSource interface {
	ListUnspent(ctx context.Context, address string) ([]bitcoin.UTXO, error)
}

// Broadcaster submits a raw transaction to the network.
type Broadcaster interface {
	Broadcast(ctx context.Context, txHex string) (txid string, err error)
}

// defaultTimeout bounds a single request when the caller's context carries no deadline.
const defaultTimeout = 30 * time.Second

// Config defines configuration for Client.
type Config struct {
	// BaseURL is the explorer API root, e.g. https://mempool.space/api.
	BaseURL string
	Timeout time.Duration
}

// Client implements UTXOSource, Broadcaster and the builders' health probe
// on top of a mempool-space compatible HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient is a constructor for Client.
func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// utxoStatus is the confirmation part of an explorer utxo record.
type utxoStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint64 `json:"block_height"`
}

// utxoRecord is one explorer utxo record.
type utxoRecord struct {
	TxID   string     `json:"txid"`
	Vout   uint32     `json:"vout"`
	Value  int64      `json:"value"`
	Status utxoStatus `json:"status"`
}

// ListUnspent returns spendable outputs of the address, confirmed first.
func (c *Client) ListUnspent(ctx context.Context, address string) ([]bitcoin.UTXO, error) {
	body, err := c.get(ctx, "/address/"+address+"/utxo")
	if err != nil {
		return nil, err
	}

	var records []utxoRecord
	if err = json.Unmarshal(body, &records); err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeAPIError).
			WithDetail("reason", "malformed utxo response").WithCause(err)
	}

	utxos := make([]bitcoin.UTXO, 0, len(records))
	for _, record := range records {
		if record.Status.Confirmed {
			utxos = append(utxos, recordToUTXO(record))
		}
	}
	for _, record := range records {
		if !record.Status.Confirmed {
			utxos = append(utxos, recordToUTXO(record))
		}
	}

	return utxos, nil
}

// Broadcast submits the raw transaction hex and returns the resulting txid.
func (c *Client) Broadcast(ctx context.Context, txHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx", strings.NewReader(txHex))
	if err != nil {
		return "", bitcoin.NewError(bitcoin.CodeUnexpectedError).WithCause(err)
	}
	req.Header.Set("Content-Type", "text/plain")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

// TipHeight returns the current chain tip height.
func (c *Client) TipHeight(ctx context.Context) (uint64, error) {
	body, err := c.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}

	height, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, bitcoin.NewError(bitcoin.CodeAPIError).
			WithDetail("reason", "malformed tip height").WithCause(err)
	}

	return height, nil
}

// Health probes the chain tip endpoint, satisfying the builders' pre-flight
// health check.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.TipHeight(ctx)

	return err
}

// get issues a GET request against the API root.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeUnexpectedError).WithCause(err)
	}

	return c.do(req)
}

// do executes the request mapping transport and status failures onto the
// error taxonomy.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		code := bitcoin.CodeNetworkDisconnected
		if isTimeout(err) {
			code = bitcoin.CodeRequestTimeout
		}

		return nil, bitcoin.NewError(code).
			WithDetail("url", req.URL.String()).WithCause(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeNetworkDisconnected).
			WithDetail("url", req.URL.String()).WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, bitcoin.NewError(bitcoin.CodeAPIError).
			WithDetail("url", req.URL.String()).
			WithDetailf("status", "%d", resp.StatusCode).
			WithDetail("body", strings.TrimSpace(string(body)))
	}

	return body, nil
}

// isTimeout reports whether the transport error is a deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var timeoutErr interface{ Timeout() bool }

	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

// recordToUTXO converts an explorer record into the builders' UTXO shape.
func recordToUTXO(record utxoRecord) bitcoin.UTXO {
	return bitcoin.UTXO{
		TxID:  record.TxID,
		Index: record.Vout,
		Value: btcutil.Amount(record.Value),
	}
}
