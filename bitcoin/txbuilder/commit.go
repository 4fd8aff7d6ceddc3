// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/ordinals/bitcoin"
	"github.com/BoostyLabs/ordinals/bitcoin/fees"
)

// txVersion defines transaction version for this builder.
const txVersion int32 = 2

// signHashType defines signature hash type for non-taproot input signing.
const signHashType = txscript.SigHashAll

// CommitParams describes data needed to build a commit transaction funding
// one prepared inscription.
type CommitParams struct {
	Inscription   *PreparedInscription
	Postage       btcutil.Amount // amount the commit output carries, funds reveal postage + fee.
	UTXOs         []bitcoin.UTXO
	ChangeAddress string
	FeeRate       float64 // sat/vB.
}

// CommitResult describes the built unsigned commit transaction with bookkeeping.
type CommitResult struct {
	CommitAddress  string
	Tx             *wire.MsgTx
	Packet         *psbt.Packet
	RequiredAmount btcutil.Amount
	SelectedUTXOs  []bitcoin.UTXO
	Fee            btcutil.Amount
}

// PSBTBase64 returns the unsigned commit transaction as base64 PSBT.
func (r *CommitResult) PSBTBase64() (string, error) {
	return packetBase64(r.Packet)
}

// TxHex returns the unsigned commit transaction as hex.
func (r *CommitResult) TxHex() (string, error) {
	return txHex(r.Tx)
}

// BuildCommit assembles an unsigned transaction funding the inscription
// commit output. One P2TR output at the postage value, plus a change output
// when the remainder is above the dust limit; dust folds into the fee so
// that sum(outputs) + fee == sum(inputs) exactly.
func (b *TxBuilder) BuildCommit(params CommitParams) (*CommitResult, error) {
	if params.Inscription == nil || len(params.Inscription.CommitAddress.PkScript) == 0 {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetail("reason", "prepared inscription with commit address is required")
	}
	// dust violations are rejected before any selection work.
	if params.Postage < bitcoin.DustLimit {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetailf("postage", "%d is below dust limit %d", params.Postage, bitcoin.DustLimit)
	}
	if params.FeeRate <= 0 {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidFeeRate).
			WithDetailf("feeRate", "%v", params.FeeRate)
	}

	selectedUTXOs, totalInput, fee, err := selectWithFee(params.UTXOs, []btcutil.Amount{params.Postage}, params.FeeRate)
	if err != nil {
		return nil, err
	}

	tx, err := assembleCommitTx(selectedUTXOs, []commitOutput{{
		pkScript: params.Inscription.CommitAddress.PkScript,
		amount:   params.Postage,
	}}, b.networkParams, params.ChangeAddress, totalInput, &fee)
	if err != nil {
		return nil, err
	}

	packet, err := packetWithWitnessUTXOs(tx, selectedUTXOs)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeCommitTxFailed).WithCause(err)
	}

	log.Debugf("commit built: address %s, %d inputs, fee %d",
		params.Inscription.CommitAddress.Address, len(selectedUTXOs), fee)

	return &CommitResult{
		CommitAddress:  params.Inscription.CommitAddress.Address,
		Tx:             tx,
		Packet:         packet,
		RequiredAmount: params.Postage + fee,
		SelectedUTXOs:  selectedUTXOs,
		Fee:            fee,
	}, nil
}

// commitOutput describes one inscription carrier output of a commit transaction.
type commitOutput struct {
	pkScript []byte
	amount   btcutil.Amount
}

// selectWithFee selects UTXOs covering postages plus the estimated fee,
// re-estimating the fee as the input count grows until the selection is
// stable or the funds run out.
func selectWithFee(utxos []bitcoin.UTXO, postages []btcutil.Amount, feeRate float64) (selected []bitcoin.UTXO, totalInput, fee btcutil.Amount, err error) {
	var totalPostage btcutil.Amount
	for _, postage := range postages {
		totalPostage += postage
	}

	fee = fees.CalculateFee(fees.EstimateCommitVSize(1, len(postages)), feeRate)
	if fee == fees.InvalidFee {
		return nil, 0, 0, bitcoin.NewError(bitcoin.CodeInvalidFeeRate).
			WithDetailf("feeRate", "%v", feeRate)
	}

	target := totalPostage + fee
	for {
		selected, totalInput, err = SelectUTXOs(utxos, target)
		if err != nil {
			return nil, 0, 0, err
		}

		// more inputs change vsize, recompute with the actual count.
		fee = fees.CalculateFee(fees.EstimateCommitVSize(len(selected), len(postages)), feeRate)
		if totalInput >= totalPostage+fee {
			return selected, totalInput, fee, nil
		}
		if len(selected) == len(utxos) {
			return nil, 0, 0, bitcoin.NewError(bitcoin.CodeInsufficientFunds).
				WithDetailf("need", "%d", totalPostage+fee).
				WithDetailf("have", "%d", totalInput)
		}

		target = totalPostage + fee
	}
}

// assembleCommitTx builds the unsigned commit transaction: one carrier
// output per inscription in order, then a change output when the remainder
// is above the dust limit. A dust remainder folds into the fee, updating it
// through the pointer, so input and output sums always reconcile exactly.
func assembleCommitTx(selectedUTXOs []bitcoin.UTXO, outputs []commitOutput, networkParams *chaincfg.Params,
	changeAddress string, totalInput btcutil.Amount, fee *btcutil.Amount) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(txVersion)
	for _, utxo := range selectedUTXOs {
		outPoint, err := outPointFromUTXO(utxo)
		if err != nil {
			return nil, bitcoin.NewError(bitcoin.CodeInvalidUTXO).
				WithDetailf("outpoint", "%s:%d", utxo.TxID, utxo.Index).WithCause(err)
		}

		tx.AddTxIn(wire.NewTxIn(outPoint, nil, nil))
	}

	var totalPostage btcutil.Amount
	for _, output := range outputs {
		tx.AddTxOut(wire.NewTxOut(int64(output.amount), output.pkScript))
		totalPostage += output.amount
	}

	change := totalInput - totalPostage - *fee
	if change > bitcoin.DustLimit {
		changeAddr, err := btcutil.DecodeAddress(changeAddress, networkParams)
		if err != nil {
			return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
				WithDetail("changeAddress", changeAddress).WithCause(err)
		}

		changeScript, err := txscript.PayToAddrScript(changeAddr)
		if err != nil {
			return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
				WithDetail("changeAddress", changeAddress).WithCause(err)
		}

		tx.AddTxOut(wire.NewTxOut(int64(change), changeScript))
	} else {
		// dust change is folded into the fee.
		*fee = totalInput - totalPostage
	}

	return tx, nil
}

// packetWithWitnessUTXOs converts the unsigned transaction into a PSBT with
// witness UTXO data populated for every input.
func packetWithWitnessUTXOs(tx *wire.MsgTx, selectedUTXOs []bitcoin.UTXO) (*psbt.Packet, error) {
	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	for idx, utxo := range selectedUTXOs {
		packet.Inputs[idx].WitnessUtxo = wire.NewTxOut(int64(utxo.Value), utxo.ScriptPubKey)
		packet.Inputs[idx].SighashType = signHashType
	}

	return packet, nil
}

// outPointFromUTXO converts UTXO reference into wire outpoint.
func outPointFromUTXO(utxo bitcoin.UTXO) (*wire.OutPoint, error) {
	utxoHash, err := chainhash.NewHashFromStr(utxo.TxID)
	if err != nil {
		return nil, err
	}

	return wire.NewOutPoint(utxoHash, utxo.Index), nil
}

// packetBase64 returns serialized PSBT in base64 encoding.
func packetBase64(packet *psbt.Packet) (string, error) {
	if packet == nil {
		return "", bitcoin.NewError(bitcoin.CodeInvalidTransaction).
			WithDetail("reason", "no PSBT packet")
	}

	w := bytes.NewBuffer(nil)
	if err := packet.Serialize(w); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(w.Bytes()), nil
}

// txHex returns serialized transaction in hex encoding.
func txHex(tx *wire.MsgTx) (string, error) {
	if tx == nil {
		return "", bitcoin.NewError(bitcoin.CodeInvalidTransaction).
			WithDetail("reason", "no transaction")
	}

	w := bytes.NewBuffer(nil)
	if err := tx.Serialize(w); err != nil {
		return "", err
	}

	return hex.EncodeToString(w.Bytes()), nil
}
