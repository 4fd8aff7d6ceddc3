// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/ordinals/bitcoin"
	"github.com/BoostyLabs/ordinals/bitcoin/fees"
	"github.com/BoostyLabs/ordinals/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/ordinals/bitcoin/txbuilder"
)

const (
	testTxID          = "5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c"
	testChangeAddress = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
)

func mustInscription(t *testing.T, contentType string, body []byte) *inscriptions.Inscription {
	insc, err := inscriptions.New(contentType, body)
	require.NoError(t, err)

	return insc
}

func testUTXOs(values ...btcutil.Amount) []bitcoin.UTXO {
	utxos := make([]bitcoin.UTXO, len(values))
	for idx, value := range values {
		utxos[idx] = bitcoin.UTXO{
			TxID:  testTxID,
			Index: uint32(idx),
			Value: value,
			// P2WPKH witness program, value is irrelevant for unsigned building.
			ScriptPubKey: append([]byte{0x00, 0x14}, make([]byte, 20)...),
		}
	}

	return utxos
}

func outputSum(result *txbuilder.CommitResult) btcutil.Amount {
	var sum btcutil.Amount
	for _, out := range result.Tx.TxOut {
		sum += btcutil.Amount(out.Value)
	}

	return sum
}

func TestBuildCommit(t *testing.T) {
	builder := txbuilder.NewTxBuilder(&chaincfg.MainNetParams)

	prepared, err := builder.PrepareInscription(txbuilder.PrepareParams{
		Inscription: mustInscription(t, "text/plain;charset=utf-8", []byte("Hello, World!")),
	})
	require.NoError(t, err)

	t.Run("single input with change", func(t *testing.T) {
		result, err := builder.BuildCommit(txbuilder.CommitParams{
			Inscription:   prepared,
			Postage:       10_000,
			UTXOs:         testUTXOs(50_000),
			ChangeAddress: testChangeAddress,
			FeeRate:       2,
		})
		require.NoError(t, err)

		// 153 vB estimate at 2 sat/vB.
		require.EqualValues(t, 306, result.Fee)
		require.EqualValues(t, 10_306, result.RequiredAmount)
		require.Len(t, result.SelectedUTXOs, 1)

		require.Len(t, result.Tx.TxOut, 2)
		require.EqualValues(t, 10_000, result.Tx.TxOut[0].Value)
		require.Equal(t, prepared.CommitAddress.PkScript, result.Tx.TxOut[0].PkScript)
		require.EqualValues(t, 50_000-10_000-306, result.Tx.TxOut[1].Value)

		// inputs always reconcile with outputs plus fee exactly.
		require.EqualValues(t, 50_000, outputSum(result)+result.Fee)

		psbtB64, err := result.PSBTBase64()
		require.NoError(t, err)
		require.NotEmpty(t, psbtB64)

		rawHex, err := result.TxHex()
		require.NoError(t, err)
		require.NotEmpty(t, rawHex)

		for _, input := range result.Packet.Inputs {
			require.NotNil(t, input.WitnessUtxo)
		}
	})

	t.Run("dust change folds into fee", func(t *testing.T) {
		// remainder after postage and fee is 400, below the dust limit.
		result, err := builder.BuildCommit(txbuilder.CommitParams{
			Inscription:   prepared,
			Postage:       10_000,
			UTXOs:         testUTXOs(10_000 + 306 + 400),
			ChangeAddress: testChangeAddress,
			FeeRate:       2,
		})
		require.NoError(t, err)

		require.Len(t, result.Tx.TxOut, 1)
		require.EqualValues(t, 306+400, result.Fee)
		require.EqualValues(t, 10_706, outputSum(result)+result.Fee)
	})

	t.Run("fee re-estimated as inputs grow", func(t *testing.T) {
		// the first output alone cannot cover postage plus the single-input
		// fee, selection widens and the fee is recomputed for two inputs.
		result, err := builder.BuildCommit(txbuilder.CommitParams{
			Inscription:   prepared,
			Postage:       10_000,
			UTXOs:         testUTXOs(10_200, 10_000),
			ChangeAddress: testChangeAddress,
			FeeRate:       2,
		})
		require.NoError(t, err)

		require.Len(t, result.SelectedUTXOs, 2)
		// 221 vB estimate for two inputs at 2 sat/vB.
		require.EqualValues(t, 442, result.Fee)
		require.EqualValues(t, 20_200, outputSum(result)+result.Fee)
	})

	t.Run("postage below dust limit", func(t *testing.T) {
		_, err := builder.BuildCommit(txbuilder.CommitParams{
			Inscription:   prepared,
			Postage:       500,
			UTXOs:         testUTXOs(50_000),
			ChangeAddress: testChangeAddress,
			FeeRate:       2,
		})
		require.Equal(t, bitcoin.CodeInvalidInput, bitcoin.ErrorCode(err))
	})

	t.Run("invalid fee rate", func(t *testing.T) {
		_, err := builder.BuildCommit(txbuilder.CommitParams{
			Inscription:   prepared,
			Postage:       10_000,
			UTXOs:         testUTXOs(50_000),
			ChangeAddress: testChangeAddress,
			FeeRate:       0,
		})
		require.Equal(t, bitcoin.CodeInvalidFeeRate, bitcoin.ErrorCode(err))
	})

	t.Run("missing prepared inscription", func(t *testing.T) {
		_, err := builder.BuildCommit(txbuilder.CommitParams{
			Postage:       10_000,
			UTXOs:         testUTXOs(50_000),
			ChangeAddress: testChangeAddress,
			FeeRate:       2,
		})
		require.Equal(t, bitcoin.CodeInvalidInput, bitcoin.ErrorCode(err))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := builder.BuildCommit(txbuilder.CommitParams{
			Inscription:   prepared,
			Postage:       10_000,
			UTXOs:         testUTXOs(600, 700),
			ChangeAddress: testChangeAddress,
			FeeRate:       2,
		})
		require.Equal(t, bitcoin.CodeInsufficientFunds, bitcoin.ErrorCode(err))
	})

	t.Run("funding covers estimated reveal", func(t *testing.T) {
		funding := fees.RevealFundingAmount(len(prepared.InscriptionScript.Script), 2, bitcoin.RevealPostage)
		require.Greater(t, funding, bitcoin.RevealPostage)

		result, err := builder.BuildCommit(txbuilder.CommitParams{
			Inscription:   prepared,
			Postage:       funding,
			UTXOs:         testUTXOs(50_000),
			ChangeAddress: testChangeAddress,
			FeeRate:       2,
		})
		require.NoError(t, err)
		require.EqualValues(t, funding, result.Tx.TxOut[0].Value)
	})
}
