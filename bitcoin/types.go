// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// DustLimit defines the smallest satoshi amount allowed to be linked
// to an inscription carrier output.
const DustLimit btcutil.Amount = 546

// RevealPostage defines the satoshi amount carried by the reveal
// transaction output that holds the inscribed sat.
const RevealPostage btcutil.Amount = 546

// Network defines supported bitcoin network selector.
type Network string

const (
	// NetworkMainnet defines bitcoin mainnet.
	NetworkMainnet Network = "mainnet"
	// NetworkTestnet defines bitcoin testnet3.
	NetworkTestnet Network = "testnet"
	// NetworkSignet defines bitcoin signet.
	NetworkSignet Network = "signet"
	// NetworkRegtest defines bitcoin regression test network.
	NetworkRegtest Network = "regtest"
)

// ChainParams returns chaincfg parameters for the network.
// Unknown networks fall back to mainnet.
func (n Network) ChainParams() *chaincfg.Params {
	switch n {
	case NetworkTestnet:
		return &chaincfg.TestNet3Params
	case NetworkSignet:
		return &chaincfg.SigNetParams
	case NetworkRegtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// ScriptInfo describes the script type and address of an UTXO locking script.
type ScriptInfo struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// UTXO describes unspent transaction output data.
// Sourced from an external wallet or chain explorer, read-only input to selection.
type UTXO struct {
	TxID         string         `json:"txid"`
	Index        uint32         `json:"vout"`   // output index in transaction outputs.
	Value        btcutil.Amount `json:"value"`  // in satoshi.
	ScriptPubKey []byte         `json:"script"` // locking script, if known.
	ScriptInfo   *ScriptInfo    `json:"scriptInfo,omitempty"`
}

// SatRange describes contiguous span of satoshi ordinal numbers assigned
// to one inscription in a batch, determined by cumulative postage.
type SatRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}
