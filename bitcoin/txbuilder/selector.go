// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/BoostyLabs/ordinals/bitcoin"
)

// SelectUTXOs selects a subset of spendable outputs meeting the target
// amount by deterministic order-preserving accumulation: outputs are taken
// in the caller's order until the running total meets or exceeds the target.
// Not a coin-selection optimizer, reproducible for a fixed input ordering.
func SelectUTXOs(utxos []bitcoin.UTXO, targetAmount btcutil.Amount) (selectedUTXOs []bitcoin.UTXO, totalInputValue btcutil.Amount, _ error) {
	if len(utxos) == 0 {
		return nil, 0, bitcoin.NewError(bitcoin.CodeMissingUTXO)
	}
	if targetAmount <= 0 {
		return nil, 0, bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetailf("targetAmount", "%d", targetAmount)
	}

	selectedUTXOs = make([]bitcoin.UTXO, 0, len(utxos))
	for _, utxo := range utxos {
		if utxo.Value <= 0 {
			return nil, 0, bitcoin.NewError(bitcoin.CodeInvalidUTXO).
				WithDetailf("outpoint", "%s:%d", utxo.TxID, utxo.Index)
		}

		selectedUTXOs = append(selectedUTXOs, utxo)
		totalInputValue += utxo.Value
		if totalInputValue >= targetAmount {
			return selectedUTXOs, totalInputValue, nil
		}
	}

	return nil, 0, bitcoin.NewError(bitcoin.CodeInsufficientFunds).
		WithDetailf("need", "%d", targetAmount).
		WithDetailf("have", "%d", totalInputValue)
}
