// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package fees

import (
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// InvalidFee defines sentinel result of fee calculation with invalid arguments.
const InvalidFee btcutil.Amount = -1

const (
	// p2wpkhInputVBytes defines rough P2WPKH input size in vBytes.
	p2wpkhInputVBytes = 68
	// p2trOutputVBytes defines rough P2TR output size in vBytes.
	p2trOutputVBytes = 43
	// p2wpkhOutputVBytes defines rough P2WPKH change output size in vBytes.
	p2wpkhOutputVBytes = 31
	// txOverheadVBytes defines rough tx header overhead in vBytes,
	// doubled to keep half-vbyte precision (10.5 vB).
	txOverheadHalfVBytes = 21

	// schnorrSignatureWitnessBytes defines schnorr signature witness
	// element size including its length prefix.
	schnorrSignatureWitnessBytes = 65
	// controlBlockWitnessBytes defines single-leaf control block witness
	// element size including its length prefix.
	controlBlockWitnessBytes = 34
	// envelopeOverheadBytes defines rough opcode overhead of the
	// inscription envelope around the raw body bytes.
	envelopeOverheadBytes = 50

	// revealBaseVBytes defines non-witness size of a reveal transaction
	// with one input and one P2TR output.
	revealBaseVBytes = 10 + 41 + p2trOutputVBytes
)

// CalculateFee returns ceil(vsize * feeRate) in satoshi.
// Returns InvalidFee sentinel when either argument is non-positive,
// so the result composes without a separate error branch.
func CalculateFee(vsize int64, feeRate float64) btcutil.Amount {
	if vsize <= 0 || feeRate <= 0 || math.IsNaN(feeRate) || math.IsInf(feeRate, 0) {
		return InvalidFee
	}

	return btcutil.Amount(math.Ceil(float64(vsize) * feeRate))
}

// TransactionVSize returns virtual size in vBytes for a transaction with
// the given base (non-witness) and witness sizes in bytes.
// vsize = ceil((baseSize*3 + totalSize) / 4), the mandatory 75% witness discount.
func TransactionVSize(baseSize, witnessSize int64) int64 {
	if baseSize <= 0 || witnessSize < 0 {
		return 0
	}

	weight := baseSize*3 + baseSize + witnessSize

	return (weight + 3) / 4
}

// ActualVSize returns virtual size of a fully serialized transaction,
// computed from real serialized sizes rather than estimates.
func ActualVSize(tx *wire.MsgTx) int64 {
	baseSize := int64(tx.SerializeSizeStripped())
	totalSize := int64(tx.SerializeSize())
	weight := baseSize*3 + totalSize

	return (weight + 3) / 4
}

// EstimateCommitVSize returns rough commit transaction size in vBytes for
// the given number of P2WPKH inputs and P2TR inscription outputs plus one
// P2WPKH change output.
func EstimateCommitVSize(inputs, inscriptionOutputs int) int64 {
	halfVBytes := txOverheadHalfVBytes +
		2*p2wpkhInputVBytes*inputs +
		2*p2trOutputVBytes*inscriptionOutputs +
		2*p2wpkhOutputVBytes

	// ceil to whole vBytes.
	return int64((halfVBytes + 1) / 2)
}

// EstimateRevealVSize returns rough reveal transaction size in vBytes
// derived from the actual inscription leaf script length. The witness is
// the script-path spend: signature, leaf script and control block.
func EstimateRevealVSize(leafScriptLen int) int64 {
	witnessSize := int64(schnorrSignatureWitnessBytes +
		leafScriptLen + scriptLenPrefixSize(leafScriptLen) +
		controlBlockWitnessBytes)

	return TransactionVSize(revealBaseVBytes, witnessSize)
}

// EstimateEnvelopeScriptLen returns rough inscription leaf script length
// in bytes for the given body length.
func EstimateEnvelopeScriptLen(bodyLen int) int {
	return bodyLen + envelopeOverheadBytes
}

// RevealFundingAmount returns the satoshi amount a commit output must carry
// to fund the reveal: postage plus the estimated reveal fee. Returns
// InvalidFee sentinel on invalid fee arguments.
func RevealFundingAmount(leafScriptLen int, feeRate float64, postage btcutil.Amount) btcutil.Amount {
	fee := CalculateFee(EstimateRevealVSize(leafScriptLen), feeRate)
	if fee == InvalidFee {
		return InvalidFee
	}

	return postage + fee
}

// UnderpaysFeeRate reports whether the effective fee rate implied by the
// actually allocated fee is more than 10% below the requested rate.
// This is a warning condition: commit funding is fixed before the exact
// reveal size is known.
func UnderpaysFeeRate(fee btcutil.Amount, vsize int64, requestedRate float64) bool {
	if vsize <= 0 || requestedRate <= 0 {
		return false
	}

	effectiveRate := float64(fee) / float64(vsize)

	return effectiveRate < requestedRate*0.9
}

// scriptLenPrefixSize returns witness element length prefix size in bytes
// for an element of the given length.
func scriptLenPrefixSize(length int) int {
	switch {
	case length < 0xfd:
		return 1
	case length <= 0xffff:
		return 3
	default:
		return 5
	}
}
