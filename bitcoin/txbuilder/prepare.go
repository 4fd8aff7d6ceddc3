// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/ordinals/bitcoin"
	"github.com/BoostyLabs/ordinals/bitcoin/ord/inscriptions"
)

// schnorrPubKeyLen defines x-only public key length in bytes.
const schnorrPubKeyLen = 32

// HealthChecker probes required external services before transaction
// construction begins.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// TxBuilder provides inscription transaction building related logic.
type TxBuilder struct {
	networkParams *chaincfg.Params
	health        HealthChecker
}

// Option configures TxBuilder.
type Option func(*TxBuilder)

// WithHealthChecker installs a pre-flight health probe run before reveal construction.
func WithHealthChecker(health HealthChecker) Option {
	return func(b *TxBuilder) {
		b.health = health
	}
}

// NewTxBuilder is a constructor for TxBuilder.
func NewTxBuilder(networkParams *chaincfg.Params, options ...Option) *TxBuilder {
	builder := &TxBuilder{
		networkParams: networkParams,
	}
	for _, option := range options {
		option(builder)
	}

	return builder
}

// CommitAddress describes the taproot address funding a not-yet-revealed inscription.
type CommitAddress struct {
	Address     string `json:"address"`
	PkScript    []byte `json:"script"`
	InternalKey []byte `json:"internalKey"` // 32-byte x-only public key.
}

// InscriptionScript describes the taproot script-path data needed to spend
// the commit output: the leaf script with its control block.
type InscriptionScript struct {
	Script       []byte `json:"script"`
	ControlBlock []byte `json:"controlBlock"`
	LeafVersion  byte   `json:"leafVersion"`
}

// PreparedInscription holds everything the commit and reveal phases need for
// one inscription. Created once, owned by the caller for the lifetime of the
// commit→reveal flow. The script-path data is extracted from the same taproot
// tree that derived the commit address, so the reveal phase reproduces an
// identical script-path without re-deriving anything.
type PreparedInscription struct {
	CommitAddress     CommitAddress             `json:"commitAddress"`
	Inscription       *inscriptions.Inscription `json:"inscription"`
	InscriptionScript InscriptionScript         `json:"inscriptionScript"`
	RevealPublicKey   []byte                    `json:"revealPublicKey"` // 32-byte x-only public key.

	// revealPrivateKey is retained only when the key pair was generated
	// internally. It is the sole credential able to spend the commit
	// output and is erased once the reveal is signed.
	revealPrivateKey *btcec.PrivateKey
}

// RevealPrivateKey returns the retained reveal private key, nil if the caller
// supplied the public key externally or the key was already erased.
func (p *PreparedInscription) RevealPrivateKey() *btcec.PrivateKey {
	return p.revealPrivateKey
}

// EraseRevealPrivateKey zeroes and drops the retained reveal private key.
func (p *PreparedInscription) EraseRevealPrivateKey() {
	if p.revealPrivateKey != nil {
		p.revealPrivateKey.Zero()
		p.revealPrivateKey = nil
	}
}

// PrepareParams describes data needed to prepare one inscription.
type PrepareParams struct {
	Inscription *inscriptions.Inscription
	// RevealPublicKey is an optional 32-byte x-only public key locking the
	// reveal script-path. A fresh schnorr key pair is generated and retained
	// when empty.
	RevealPublicKey []byte
	// RecoveryPublicKey is an optional 32-byte x-only internal key enabling
	// key-path recovery of the commit output independent of the reveal flow.
	// The reveal public key is used as the internal key when empty.
	RecoveryPublicKey []byte
}

// PrepareInscription builds the taproot reveal script and commit address for
// one inscription payload.
func (b *TxBuilder) PrepareInscription(params PrepareParams) (*PreparedInscription, error) {
	if params.Inscription == nil || len(params.Inscription.ContentType) == 0 {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetail("reason", "inscription payload with content type is required")
	}
	if len(params.Inscription.Body) > inscriptions.MaxBodyLen {
		return nil, bitcoin.NewError(bitcoin.CodeContentTooLarge).
			WithDetailf("bodyLen", "%d", len(params.Inscription.Body))
	}

	revealPubKey := params.RevealPublicKey
	var revealPrivKey *btcec.PrivateKey
	if len(revealPubKey) == 0 {
		var err error
		revealPrivKey, err = btcec.NewPrivateKey()
		if err != nil {
			return nil, bitcoin.NewError(bitcoin.CodeUnexpectedError).WithCause(err)
		}

		revealPubKey = schnorr.SerializePubKey(revealPrivKey.PubKey())
	}

	if err := validateXOnlyKey(revealPubKey, "revealPublicKey"); err != nil {
		return nil, err
	}

	internalKeyBytes := params.RecoveryPublicKey
	if len(internalKeyBytes) == 0 {
		internalKeyBytes = revealPubKey
	}
	if err := validateXOnlyKey(internalKeyBytes, "internalKey"); err != nil {
		return nil, err
	}

	leafScript, err := params.Inscription.IntoScriptForWitness(revealPubKey)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).WithCause(err)
	}

	internalKey, err := schnorr.ParsePubKey(internalKeyBytes)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetail("key", "internalKey").WithCause(err)
	}

	// the control block and commit address must come from the same taproot
	// output object, the reveal phase never recomputes them.
	tapLeaf := txscript.NewBaseTapLeaf(leafScript)
	tapScriptTree := txscript.AssembleTaprootScriptTree(tapLeaf)
	tapScriptRootHash := tapScriptTree.RootNode.TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, tapScriptRootHash[:])

	address, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), b.networkParams)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).WithCause(err)
	}

	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).WithCause(err)
	}

	controlBlock := tapScriptTree.LeafMerkleProofs[0].ToControlBlock(internalKey)
	controlBlockBytes, err := controlBlock.ToBytes()
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeUnexpectedError).WithCause(err)
	}
	if isZeroBytes(controlBlockBytes) {
		return nil, bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetail("reason", "derived control block is all zero")
	}

	return &PreparedInscription{
		CommitAddress: CommitAddress{
			Address:     address.String(),
			PkScript:    pkScript,
			InternalKey: internalKeyBytes,
		},
		Inscription: params.Inscription,
		InscriptionScript: InscriptionScript{
			Script:       leafScript,
			ControlBlock: controlBlockBytes,
			LeafVersion:  byte(tapLeaf.LeafVersion),
		},
		RevealPublicKey:  revealPubKey,
		revealPrivateKey: revealPrivKey,
	}, nil
}

// validateXOnlyKey returns error if the key is not a 32-byte non-zero x-only key.
// The all-zero key defends against uninitialized buffers producing a
// spendable-looking but broken address.
func validateXOnlyKey(key []byte, name string) error {
	if len(key) != schnorrPubKeyLen {
		return bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetailf("key", "%s must be %d bytes, got %d", name, schnorrPubKeyLen, len(key))
	}
	if isZeroBytes(key) {
		return bitcoin.NewError(bitcoin.CodeInvalidInput).
			WithDetailf("key", "%s is all zero", name)
	}

	return nil
}

// isZeroBytes returns true if every byte is zero.
func isZeroBytes(data []byte) bool {
	return len(data) > 0 && bytes.Equal(data, make([]byte, len(data)))
}
