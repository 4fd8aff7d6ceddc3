// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/ordinals/bitcoin"
	"github.com/BoostyLabs/ordinals/bitcoin/txbuilder"
)

func TestSelectUTXOs(t *testing.T) {
	utxos := []bitcoin.UTXO{
		{TxID: "5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c", Index: 0, Value: 1000},
		{TxID: "5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c", Index: 1, Value: 5000},
		{TxID: "5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c", Index: 2, Value: 2000},
	}

	t.Run("takes outputs in caller order", func(t *testing.T) {
		selected, total, err := txbuilder.SelectUTXOs(utxos, 1500)
		require.NoError(t, err)
		require.Len(t, selected, 2)
		require.EqualValues(t, 6000, total)
		require.Equal(t, uint32(0), selected[0].Index)
		require.Equal(t, uint32(1), selected[1].Index)
	})

	t.Run("exact match stops accumulation", func(t *testing.T) {
		selected, total, err := txbuilder.SelectUTXOs(utxos, 1000)
		require.NoError(t, err)
		require.Len(t, selected, 1)
		require.EqualValues(t, 1000, total)
	})

	t.Run("all outputs when needed", func(t *testing.T) {
		selected, total, err := txbuilder.SelectUTXOs(utxos, 8000)
		require.NoError(t, err)
		require.Len(t, selected, 3)
		require.EqualValues(t, 8000, total)
	})

	t.Run("no utxos", func(t *testing.T) {
		_, _, err := txbuilder.SelectUTXOs(nil, 1000)
		require.Equal(t, bitcoin.CodeMissingUTXO, bitcoin.ErrorCode(err))
	})

	t.Run("non-positive target", func(t *testing.T) {
		_, _, err := txbuilder.SelectUTXOs(utxos, 0)
		require.Equal(t, bitcoin.CodeInvalidInput, bitcoin.ErrorCode(err))
	})

	t.Run("invalid utxo value", func(t *testing.T) {
		_, _, err := txbuilder.SelectUTXOs([]bitcoin.UTXO{{TxID: "aa", Value: 0}}, 1000)
		require.Equal(t, bitcoin.CodeInvalidUTXO, bitcoin.ErrorCode(err))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, _, err := txbuilder.SelectUTXOs(utxos, 9000)
		require.Equal(t, bitcoin.CodeInsufficientFunds, bitcoin.ErrorCode(err))

		var inscErr *bitcoin.InscriptionError
		require.ErrorAs(t, err, &inscErr)
		require.Equal(t, "9000", inscErr.Details["need"])
		require.Equal(t, "8000", inscErr.Details["have"])
	})
}
