// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/ordinals/bitcoin"
	"github.com/BoostyLabs/ordinals/bitcoin/ord/inscriptions"
)

// BatchEntry describes one inscription of a batch with its postage.
type BatchEntry struct {
	Inscription *inscriptions.Inscription
	Postage     btcutil.Amount
	// RevealPublicKey optionally locks this entry's reveal script-path,
	// a fresh key pair is generated and retained when empty.
	RevealPublicKey []byte
}

// BatchCommitParams describes data needed to build one commit transaction
// funding N inscriptions.
type BatchCommitParams struct {
	Entries       []BatchEntry
	UTXOs         []bitcoin.UTXO
	ChangeAddress string
	FeeRate       float64 // sat/vB.
	// RecoveryPublicKey is an optional shared internal key enabling
	// key-path recovery of every commit output.
	RecoveryPublicKey []byte
}

// BatchInscriptionResult describes per-inscription bookkeeping of a batch commit.
type BatchInscriptionResult struct {
	Index            int                  `json:"index"`
	Inscription      *PreparedInscription `json:"inscription"`
	CommitAddress    string               `json:"commitAddress"`
	Postage          btcutil.Amount       `json:"postage"`
	ExpectedSatRange bitcoin.SatRange     `json:"expectedSatRange"`
}

// BatchCommitResult describes the built batch commit transaction.
type BatchCommitResult struct {
	Tx             *wire.MsgTx
	Packet         *psbt.Packet
	Inscriptions   []BatchInscriptionResult
	RequiredAmount btcutil.Amount
	SelectedUTXOs  []bitcoin.UTXO
	Fee            btcutil.Amount
}

// PSBTBase64 returns the unsigned batch commit transaction as base64 PSBT.
func (r *BatchCommitResult) PSBTBase64() (string, error) {
	return packetBase64(r.Packet)
}

// BuildBatchCommit assembles a single unsigned transaction funding N
// inscriptions with N ordered carrier outputs. Satoshi ranges are allocated
// sequentially and contiguously in input order: range i starts immediately
// after range i-1 ends, end = start + postage - 1.
func (b *TxBuilder) BuildBatchCommit(params BatchCommitParams) (*BatchCommitResult, error) {
	if len(params.Entries) == 0 {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetail("reason", "at least one batch entry is required")
	}
	if params.FeeRate <= 0 {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidFeeRate).
			WithDetailf("feeRate", "%v", params.FeeRate)
	}

	// every postage is validated before any preparation or selection work,
	// naming the offending index.
	for idx, entry := range params.Entries {
		if entry.Postage < bitcoin.DustLimit {
			return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
				WithDetailf("index", "%d", idx).
				WithDetailf("postage", "%d is below dust limit %d", entry.Postage, bitcoin.DustLimit)
		}
	}

	// preparation runs in entry order so sat-range allocation and output
	// ordering stay deterministic.
	results := make([]BatchInscriptionResult, len(params.Entries))
	outputs := make([]commitOutput, len(params.Entries))
	postages := make([]btcutil.Amount, len(params.Entries))
	var nextSat uint64
	for idx, entry := range params.Entries {
		prepared, err := b.PrepareInscription(PrepareParams{
			Inscription:       entry.Inscription,
			RevealPublicKey:   entry.RevealPublicKey,
			RecoveryPublicKey: params.RecoveryPublicKey,
		})
		if err != nil {
			return nil, bitcoin.NewError(bitcoin.CodeCommitTxFailed).
				WithDetailf("index", "%d", idx).WithCause(err)
		}

		results[idx] = BatchInscriptionResult{
			Index:         idx,
			Inscription:   prepared,
			CommitAddress: prepared.CommitAddress.Address,
			Postage:       entry.Postage,
			ExpectedSatRange: bitcoin.SatRange{
				Start: nextSat,
				End:   nextSat + uint64(entry.Postage) - 1,
			},
		}
		outputs[idx] = commitOutput{pkScript: prepared.CommitAddress.PkScript, amount: entry.Postage}
		postages[idx] = entry.Postage
		nextSat += uint64(entry.Postage)
	}

	selectedUTXOs, totalInput, fee, err := selectWithFee(params.UTXOs, postages, params.FeeRate)
	if err != nil {
		return nil, err
	}

	tx, err := assembleCommitTx(selectedUTXOs, outputs, b.networkParams, params.ChangeAddress, totalInput, &fee)
	if err != nil {
		return nil, err
	}

	packet, err := packetWithWitnessUTXOs(tx, selectedUTXOs)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeCommitTxFailed).WithCause(err)
	}

	log.Debugf("batch commit built: %d inscriptions, %d inputs, fee %d",
		len(params.Entries), len(selectedUTXOs), fee)

	return &BatchCommitResult{
		Tx:             tx,
		Packet:         packet,
		Inscriptions:   results,
		RequiredAmount: btcutil.Amount(nextSat) + fee,
		SelectedUTXOs:  selectedUTXOs,
		Fee:            fee,
	}, nil
}
