// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"context"
	"encoding/base64"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/ordinals/bitcoin"
	"github.com/BoostyLabs/ordinals/bitcoin/fees"
	"github.com/BoostyLabs/ordinals/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/ordinals/bitcoin/signer"
)

// RevealParams describes data needed to build the reveal transaction
// spending the commit output via taproot script-path.
type RevealParams struct {
	// UTXO is the commit transaction output, the sole funding input.
	UTXO        bitcoin.UTXO
	Inscription *PreparedInscription
	FeeRate     float64 // sat/vB, the rate the commit phase funded.
	// PrivateKey optionally signs the reveal. The key retained on the
	// prepared inscription is used when nil; with neither present the
	// result carries an unsigned PSBT instead of an extracted transaction.
	PrivateKey *btcec.PrivateKey
	// DestinationAddress optionally receives the inscribed sat,
	// the commit address itself when empty.
	DestinationAddress string
}

// RevealResult describes the built reveal transaction.
type RevealResult struct {
	// Tx is the finalized transaction, nil when no private key was available.
	Tx     *wire.MsgTx
	Packet *psbt.Packet
	Fee    btcutil.Amount
	VSize  int64
	// Hex is the finalized raw transaction encoding, empty when unsigned.
	Hex string
	// Base64 carries the finalized raw transaction when signed,
	// the PSBT otherwise.
	Base64        string
	TransactionID string
	InscriptionID *inscriptions.ID
	// UnderpaidFeeRate reports that the fee allocated by the commit phase
	// implies an effective rate more than 10% below the requested one.
	UnderpaidFeeRate bool
}

// BuildReveal constructs, signs and finalizes the reveal transaction. The
// witness is the script-path spend built from the exact inscription script
// stored on the prepared inscription. The commit output already funded
// postage + reveal fee, so the residual input - postage is the fee; a
// separately computed fee would double-count it.
func (b *TxBuilder) BuildReveal(ctx context.Context, params RevealParams) (*RevealResult, error) {
	// abort early against a known-bad environment.
	if b.health != nil {
		if err := b.health.Health(ctx); err != nil {
			return nil, bitcoin.NewError(bitcoin.CodeInitializationFailed).WithCause(err)
		}
	}

	prepared := params.Inscription
	if prepared == nil || len(prepared.InscriptionScript.Script) == 0 ||
		len(prepared.CommitAddress.PkScript) == 0 {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetail("reason", "prepared inscription with script and commit address is required")
	}
	if err := validateXOnlyKey(prepared.RevealPublicKey, "revealPublicKey"); err != nil {
		return nil, err
	}
	if err := validateXOnlyKey(prepared.CommitAddress.InternalKey, "internalKey"); err != nil {
		return nil, err
	}
	if isZeroBytes(prepared.InscriptionScript.ControlBlock) {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetail("reason", "control block is all zero")
	}
	if params.UTXO.Value <= 0 {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidUTXO).
			WithDetailf("value", "%d", params.UTXO.Value)
	}
	if params.FeeRate <= 0 {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidFeeRate).
			WithDetailf("feeRate", "%v", params.FeeRate)
	}
	if params.UTXO.Value <= bitcoin.RevealPostage {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidUTXO).
			WithDetailf("value", "%d does not cover postage %d", params.UTXO.Value, bitcoin.RevealPostage)
	}

	fee := params.UTXO.Value - bitcoin.RevealPostage

	destinationScript := prepared.CommitAddress.PkScript
	if params.DestinationAddress != "" {
		destinationAddr, err := btcutil.DecodeAddress(params.DestinationAddress, b.networkParams)
		if err != nil {
			return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
				WithDetail("destinationAddress", params.DestinationAddress).WithCause(err)
		}

		destinationScript, err = txscript.PayToAddrScript(destinationAddr)
		if err != nil {
			return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
				WithDetail("destinationAddress", params.DestinationAddress).WithCause(err)
		}
	}

	outPoint, err := outPointFromUTXO(params.UTXO)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidUTXO).
			WithDetailf("outpoint", "%s:%d", params.UTXO.TxID, params.UTXO.Index).WithCause(err)
	}

	tx := wire.NewMsgTx(txVersion)
	tx.AddTxIn(wire.NewTxIn(outPoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(bitcoin.RevealPostage), destinationScript))

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeRevealTxFailed).WithCause(err)
	}

	packet.Inputs[0].WitnessUtxo = wire.NewTxOut(int64(params.UTXO.Value), prepared.CommitAddress.PkScript)
	packet.Inputs[0].SighashType = txscript.SigHashDefault
	packet.Inputs[0].TaprootInternalKey = prepared.CommitAddress.InternalKey
	// the stored script-path data is attached as is, never re-derived.
	packet.Inputs[0].TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
		ControlBlock: prepared.InscriptionScript.ControlBlock,
		Script:       prepared.InscriptionScript.Script,
		LeafVersion:  txscript.TapscriptLeafVersion(prepared.InscriptionScript.LeafVersion),
	}}

	privateKey := params.PrivateKey
	if privateKey == nil {
		privateKey = prepared.RevealPrivateKey()
	}
	if privateKey == nil {
		psbtB64, err := packetBase64(packet)
		if err != nil {
			return nil, bitcoin.NewError(bitcoin.CodeRevealTxFailed).WithCause(err)
		}

		return &RevealResult{
			Packet: packet,
			Fee:    fee,
			VSize:  fees.EstimateRevealVSize(len(prepared.InscriptionScript.Script)),
			Base64: psbtB64,
		}, nil
	}

	if !bytes.Equal(schnorr.SerializePubKey(privateKey.PubKey()), prepared.RevealPublicKey) {
		return nil, bitcoin.NewError(bitcoin.CodeSigningError).
			WithDetail("reason", "private key does not match reveal public key")
	}

	err = signer.SignTaproot(signer.SignTaprootParams{
		Packet:     packet,
		Inputs:     []int{0},
		PrivateKey: privateKey,
	})
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeSigningError).WithCause(err)
	}

	finalTx, err := signer.FinalizeAndExtract(packet)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidTransaction).WithCause(err)
	}

	// the reveal is signed, the credential must not outlive it.
	prepared.EraseRevealPrivateKey()

	// actual vsize is recomputed from real serialized sizes and compared
	// against what the commit phase allocated.
	vsize := fees.ActualVSize(finalTx)
	underpaid := fees.UnderpaysFeeRate(fee, vsize, params.FeeRate)
	if underpaid {
		log.Warnf("reveal %s underpays fee rate: %d sats over %d vB, requested %v sat/vB",
			finalTx.TxHash().String(), fee, vsize, params.FeeRate)
	}

	rawHex, err := txHex(finalTx)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidTransaction).WithCause(err)
	}

	w := bytes.NewBuffer(nil)
	if err = finalTx.Serialize(w); err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidTransaction).WithCause(err)
	}

	txHash := finalTx.TxHash()
	inscriptionID := inscriptions.NewID(&txHash, 0)

	return &RevealResult{
		Tx:               finalTx,
		Packet:           packet,
		Fee:              fee,
		VSize:            vsize,
		Hex:              rawHex,
		Base64:           base64.StdEncoding.EncodeToString(w.Bytes()),
		TransactionID:    txHash.String(),
		InscriptionID:    &inscriptionID,
		UnderpaidFeeRate: underpaid,
	}, nil
}
