// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/ordinals/bitcoin"
	"github.com/BoostyLabs/ordinals/bitcoin/fees"
	"github.com/BoostyLabs/ordinals/bitcoin/txbuilder"
)

// failingHealth always reports the environment as broken.
type failingHealth struct{}

func (failingHealth) Health(ctx context.Context) error { return errors.New("node unreachable") }

func TestBuildReveal(t *testing.T) {
	ctx := context.Background()
	builder := txbuilder.NewTxBuilder(&chaincfg.MainNetParams)

	t.Run("commit to reveal end to end", func(t *testing.T) {
		prepared, err := builder.PrepareInscription(txbuilder.PrepareParams{
			Inscription: mustInscription(t, "text/plain;charset=utf-8", []byte("Hello, World!")),
		})
		require.NoError(t, err)

		const feeRate = 2
		funding := fees.RevealFundingAmount(len(prepared.InscriptionScript.Script), feeRate, bitcoin.RevealPostage)

		commit, err := builder.BuildCommit(txbuilder.CommitParams{
			Inscription:   prepared,
			Postage:       funding,
			UTXOs:         testUTXOs(50_000),
			ChangeAddress: testChangeAddress,
			FeeRate:       feeRate,
		})
		require.NoError(t, err)
		require.EqualValues(t, funding, commit.Tx.TxOut[0].Value)

		result, err := builder.BuildReveal(ctx, txbuilder.RevealParams{
			UTXO: bitcoin.UTXO{
				TxID:         commit.Tx.TxHash().String(),
				Index:        0,
				Value:        funding,
				ScriptPubKey: prepared.CommitAddress.PkScript,
			},
			Inscription: prepared,
			FeeRate:     feeRate,
		})
		require.NoError(t, err)
		require.NotNil(t, result.Tx)

		// commit output value splits into postage plus reveal fee exactly.
		require.Equal(t, funding-bitcoin.RevealPostage, result.Fee)
		require.EqualValues(t, bitcoin.RevealPostage, result.Tx.TxOut[0].Value)
		require.Equal(t, prepared.CommitAddress.PkScript, result.Tx.TxOut[0].PkScript)

		// witness is the script-path spend carrying the exact prepared script.
		witness := result.Tx.TxIn[0].Witness
		require.Len(t, witness, 3)
		require.Len(t, witness[0], 64) // SigHashDefault schnorr signature.
		require.Equal(t, prepared.InscriptionScript.Script, []byte(witness[1]))
		require.Equal(t, prepared.InscriptionScript.ControlBlock, []byte(witness[2]))

		prevFetcher := txscript.NewCannedPrevOutputFetcher(prepared.CommitAddress.PkScript, int64(funding))
		sigHashes := txscript.NewTxSigHashes(result.Tx, prevFetcher)

		vm, err := txscript.NewEngine(
			prepared.CommitAddress.PkScript, result.Tx, 0, txscript.StandardVerifyFlags,
			nil, sigHashes, int64(funding), prevFetcher,
		)
		require.NoError(t, err)
		require.NoError(t, vm.Execute())

		require.Equal(t, result.Tx.TxHash().String(), result.TransactionID)
		require.NotNil(t, result.InscriptionID)
		require.Equal(t, result.TransactionID+"i0", result.InscriptionID.String())
		require.False(t, result.UnderpaidFeeRate)
		require.NotEmpty(t, result.Hex)
		require.NotEmpty(t, result.Base64)
		require.Positive(t, result.VSize)

		// the retained key must not outlive the signed reveal.
		require.Nil(t, prepared.RevealPrivateKey())
	})

	t.Run("custom destination address", func(t *testing.T) {
		prepared, err := builder.PrepareInscription(txbuilder.PrepareParams{
			Inscription: mustInscription(t, "text/plain;charset=utf-8", []byte("elsewhere")),
		})
		require.NoError(t, err)

		result, err := builder.BuildReveal(ctx, txbuilder.RevealParams{
			UTXO:               bitcoin.UTXO{TxID: testTxID, Index: 0, Value: 5000, ScriptPubKey: prepared.CommitAddress.PkScript},
			Inscription:        prepared,
			FeeRate:            2,
			DestinationAddress: testChangeAddress,
		})
		require.NoError(t, err)
		require.NotEqual(t, prepared.CommitAddress.PkScript, result.Tx.TxOut[0].PkScript)
	})

	t.Run("unsigned when no key available", func(t *testing.T) {
		externalKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		prepared, err := builder.PrepareInscription(txbuilder.PrepareParams{
			Inscription:     mustInscription(t, "text/plain;charset=utf-8", []byte("cold signing")),
			RevealPublicKey: schnorr.SerializePubKey(externalKey.PubKey()),
		})
		require.NoError(t, err)

		result, err := builder.BuildReveal(ctx, txbuilder.RevealParams{
			UTXO:        bitcoin.UTXO{TxID: testTxID, Index: 0, Value: 5000, ScriptPubKey: prepared.CommitAddress.PkScript},
			Inscription: prepared,
			FeeRate:     2,
		})
		require.NoError(t, err)
		require.Nil(t, result.Tx)
		require.NotNil(t, result.Packet)
		require.NotEmpty(t, result.Base64)
		require.Empty(t, result.Hex)
		require.EqualValues(t, 5000-bitcoin.RevealPostage, result.Fee)
		require.Positive(t, result.VSize)

		// the packet carries everything an external signer needs.
		require.NotNil(t, result.Packet.Inputs[0].WitnessUtxo)
		require.Len(t, result.Packet.Inputs[0].TaprootLeafScript, 1)
		require.Equal(t, prepared.CommitAddress.InternalKey, result.Packet.Inputs[0].TaprootInternalKey)
	})

	t.Run("explicit key signs externally prepared inscription", func(t *testing.T) {
		revealKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		prepared, err := builder.PrepareInscription(txbuilder.PrepareParams{
			Inscription:     mustInscription(t, "text/plain;charset=utf-8", []byte("external key")),
			RevealPublicKey: schnorr.SerializePubKey(revealKey.PubKey()),
		})
		require.NoError(t, err)

		result, err := builder.BuildReveal(ctx, txbuilder.RevealParams{
			UTXO:        bitcoin.UTXO{TxID: testTxID, Index: 0, Value: 5000, ScriptPubKey: prepared.CommitAddress.PkScript},
			Inscription: prepared,
			FeeRate:     2,
			PrivateKey:  revealKey,
		})
		require.NoError(t, err)
		require.NotNil(t, result.Tx)
	})

	t.Run("mismatched private key", func(t *testing.T) {
		revealKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		wrongKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		prepared, err := builder.PrepareInscription(txbuilder.PrepareParams{
			Inscription:     mustInscription(t, "text/plain;charset=utf-8", []byte("wrong key")),
			RevealPublicKey: schnorr.SerializePubKey(revealKey.PubKey()),
		})
		require.NoError(t, err)

		_, err = builder.BuildReveal(ctx, txbuilder.RevealParams{
			UTXO:        bitcoin.UTXO{TxID: testTxID, Index: 0, Value: 5000, ScriptPubKey: prepared.CommitAddress.PkScript},
			Inscription: prepared,
			FeeRate:     2,
			PrivateKey:  wrongKey,
		})
		require.Equal(t, bitcoin.CodeSigningError, bitcoin.ErrorCode(err))
	})

	t.Run("value does not cover postage", func(t *testing.T) {
		prepared, err := builder.PrepareInscription(txbuilder.PrepareParams{
			Inscription: mustInscription(t, "text/plain;charset=utf-8", []byte("underfunded")),
		})
		require.NoError(t, err)

		_, err = builder.BuildReveal(ctx, txbuilder.RevealParams{
			UTXO:        bitcoin.UTXO{TxID: testTxID, Index: 0, Value: 546, ScriptPubKey: prepared.CommitAddress.PkScript},
			Inscription: prepared,
			FeeRate:     2,
		})
		require.Equal(t, bitcoin.CodeInvalidUTXO, bitcoin.ErrorCode(err))
	})

	t.Run("invalid fee rate", func(t *testing.T) {
		prepared, err := builder.PrepareInscription(txbuilder.PrepareParams{
			Inscription: mustInscription(t, "text/plain;charset=utf-8", []byte("bad rate")),
		})
		require.NoError(t, err)

		_, err = builder.BuildReveal(ctx, txbuilder.RevealParams{
			UTXO:        bitcoin.UTXO{TxID: testTxID, Index: 0, Value: 5000, ScriptPubKey: prepared.CommitAddress.PkScript},
			Inscription: prepared,
			FeeRate:     -1,
		})
		require.Equal(t, bitcoin.CodeInvalidFeeRate, bitcoin.ErrorCode(err))
	})

	t.Run("missing prepared inscription", func(t *testing.T) {
		_, err := builder.BuildReveal(ctx, txbuilder.RevealParams{
			UTXO:    bitcoin.UTXO{TxID: testTxID, Index: 0, Value: 5000},
			FeeRate: 2,
		})
		require.Equal(t, bitcoin.CodeInvalidInput, bitcoin.ErrorCode(err))
	})

	t.Run("failing health check aborts", func(t *testing.T) {
		guarded := txbuilder.NewTxBuilder(&chaincfg.MainNetParams, txbuilder.WithHealthChecker(failingHealth{}))

		prepared, err := builder.PrepareInscription(txbuilder.PrepareParams{
			Inscription: mustInscription(t, "text/plain;charset=utf-8", []byte("guarded")),
		})
		require.NoError(t, err)

		_, err = guarded.BuildReveal(ctx, txbuilder.RevealParams{
			UTXO:        bitcoin.UTXO{TxID: testTxID, Index: 0, Value: 5000, ScriptPubKey: prepared.CommitAddress.PkScript},
			Inscription: prepared,
			FeeRate:     2,
		})
		require.Equal(t, bitcoin.CodeInitializationFailed, bitcoin.ErrorCode(err))
	})
}
