// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ErrInvalidInputIndex defines that requested input index is out of packet bounds.
var ErrInvalidInputIndex = errors.New("invalid input index")

// ErrMissingWitnessUTXO defines that an input lacks witness UTXO data required for taproot signing.
var ErrMissingWitnessUTXO = errors.New("input witness utxo is required")

// SignTaprootParams defines parameters for SignTaproot method.
type SignTaprootParams struct {
	Packet     *psbt.Packet
	Inputs     []int // input indexes to sign.
	PrivateKey *btcec.PrivateKey
}

// SignTaproot signs taproot inputs of the packet in place. Inputs carrying a
// TaprootLeafScript are signed as script-path spends using the leaf script
// and control block already attached to the input; the proof is never
// reassembled from a fresh script tree. Inputs without one are signed as
// key-path spends.
func SignTaproot(params SignTaprootParams) error {
	var (
		tx                   = params.Packet.UnsignedTx
		prevOutputFetcherMap = make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	)
	for idx, in := range params.Packet.Inputs {
		if in.WitnessUtxo == nil {
			return ErrMissingWitnessUTXO
		}

		prevOutputFetcherMap[tx.TxIn[idx].PreviousOutPoint] = in.WitnessUtxo
	}

	prevOutputFetcher := txscript.NewMultiPrevOutFetcher(prevOutputFetcherMap)
	for _, input := range params.Inputs {
		if input < 0 || input >= len(params.Packet.Inputs) {
			return ErrInvalidInputIndex
		}

		if err := signTaprootInput(params.Packet, input, prevOutputFetcher, params.PrivateKey); err != nil {
			return err
		}
	}

	return nil
}

// signTaprootInput signs one taproot input as script-path or key-path spend.
func signTaprootInput(packet *psbt.Packet, input int, inputFetcher txscript.PrevOutputFetcher, privateKey *btcec.PrivateKey) error {
	var (
		pInput      = &packet.Inputs[input]
		sigHashes   = txscript.NewTxSigHashes(packet.UnsignedTx, inputFetcher)
		value       = pInput.WitnessUtxo.Value
		pkScript    = pInput.WitnessUtxo.PkScript
		sigHashType = pInput.SighashType
	)

	if len(pInput.TaprootLeafScript) != 0 {
		leaf := pInput.TaprootLeafScript[0]
		tapLeaf := txscript.NewTapLeaf(leaf.LeafVersion, leaf.Script)
		leafHash := tapLeaf.TapHash()

		sig, err := txscript.RawTxInTapscriptSignature(
			packet.UnsignedTx, sigHashes, input,
			value, pkScript, tapLeaf, sigHashType, privateKey,
		)
		if err != nil {
			return err
		}

		pInput.TaprootScriptSpendSig = []*psbt.TaprootScriptSpendSig{{
			XOnlyPubKey: schnorr.SerializePubKey(privateKey.PubKey()),
			LeafHash:    leafHash.CloneBytes(),
			Signature:   sig,
			SigHash:     sigHashType,
		}}

		return nil
	}

	witness, err := txscript.TaprootWitnessSignature(
		packet.UnsignedTx, sigHashes, input,
		value, pkScript, sigHashType, privateKey)
	if err != nil {
		return err
	}

	pInput.TaprootKeySpendSig = witness[0]

	return nil
}

// FinalizeAndExtract finalizes every packet input and extracts the final
// raw transaction. A raw transaction can only be extracted after all inputs
// are signed and finalized.
func FinalizeAndExtract(packet *psbt.Packet) (*wire.MsgTx, error) {
	for idx := range packet.Inputs {
		if err := psbt.Finalize(packet, idx); err != nil {
			return nil, err
		}
	}

	return psbt.Extract(packet)
}
