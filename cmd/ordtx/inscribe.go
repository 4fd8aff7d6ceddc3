// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/cobra"

	"github.com/BoostyLabs/ordinals/bitcoin"
	"github.com/BoostyLabs/ordinals/bitcoin/chainclient"
	"github.com/BoostyLabs/ordinals/bitcoin/fees"
	"github.com/BoostyLabs/ordinals/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/ordinals/bitcoin/tracker"
	"github.com/BoostyLabs/ordinals/bitcoin/txbuilder"
	"github.com/BoostyLabs/ordinals/config"
)

var (
	contentFile     string
	contentType     string
	metadataFile    string
	fundingAddress  string
	changeAddress   string
	destAddress     string
	feeRateOverride float64
	postageOverride int64
)

var inscribeCmd = &cobra.Command{
	Use:   "inscribe",
	Short: "build the commit/reveal transaction pair for a file",
	Long: `Builds an unsigned commit transaction funding the inscription and, using the
retained reveal key, the finalized reveal transaction spending its first
output. Nothing is broadcast: the commit PSBT must be signed and broadcast
externally, then the printed reveal follows it.`,
	RunE: runInscribe,
}

func init() {
	inscribeCmd.Flags().StringVarP(&contentFile, "file", "f", "", "file holding the inscription content")
	inscribeCmd.Flags().StringVarP(&contentType, "content-type", "t", "", "MIME type, sniffed from the content when empty")
	inscribeCmd.Flags().StringVarP(&metadataFile, "metadata", "m", "", "JSON file with inscription metadata, embedded as CBOR")
	inscribeCmd.Flags().StringVarP(&fundingAddress, "address", "a", "", "address holding the funding UTXOs")
	inscribeCmd.Flags().StringVar(&changeAddress, "change-address", "", "change address, config value when empty")
	inscribeCmd.Flags().StringVarP(&destAddress, "destination", "d", "", "inscription destination, the commit address when empty")
	inscribeCmd.Flags().Float64Var(&feeRateOverride, "fee-rate", 0, "fee rate in sat/vB, config value when zero")
	inscribeCmd.Flags().Int64Var(&postageOverride, "postage", 0, "commit output value in sats, estimated reveal funding when zero")

	_ = inscribeCmd.MarkFlagRequired("file")
	_ = inscribeCmd.MarkFlagRequired("address")
}

func runInscribe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	feeRate := cfg.FeeRate
	if feeRateOverride > 0 {
		feeRate = feeRateOverride
	}
	change := cfg.ChangeAddress
	if changeAddress != "" {
		change = changeAddress
	}
	if change == "" {
		return fmt.Errorf("a change address is required, set it via --change-address or config")
	}

	insc, err := buildInscription()
	if err != nil {
		return err
	}

	client := chainclient.NewClient(chainclient.Config{
		BaseURL: cfg.ChainAPI.BaseURL,
		Timeout: cfg.ChainAPI.Timeout.Std(),
	})
	builder := txbuilder.NewTxBuilder(cfg.Network.ChainParams(), txbuilder.WithHealthChecker(client))

	track, err := tracker.NewTracker(tracker.Config{ErrorLogSize: cfg.Tracker.ErrorLogSize})
	if err != nil {
		return err
	}

	commitTracked := track.Track(tracker.TrackParams{
		Type:     tracker.TypeCommit,
		Metadata: map[string]string{"contentType": insc.ContentType},
	})

	prepared, err := builder.PrepareInscription(txbuilder.PrepareParams{Inscription: insc})
	if err != nil {
		_ = track.Fail(commitTracked, asInscriptionError(err))

		return err
	}

	postage := btcutil.Amount(postageOverride)
	if postage == 0 {
		postage = fees.RevealFundingAmount(len(prepared.InscriptionScript.Script), feeRate, bitcoin.RevealPostage)
	}

	var utxos []bitcoin.UTXO
	err = tracker.Retry(ctx, tracker.RetryConfig{MaxRetries: 3}, func() error {
		var listErr error
		utxos, listErr = client.ListUnspent(ctx, fundingAddress)

		return listErr
	})
	if err != nil {
		_ = track.Fail(commitTracked, asInscriptionError(err))

		return err
	}

	commit, err := builder.BuildCommit(txbuilder.CommitParams{
		Inscription:   prepared,
		Postage:       postage,
		UTXOs:         utxos,
		ChangeAddress: change,
		FeeRate:       feeRate,
	})
	if err != nil {
		_ = track.Fail(commitTracked, asInscriptionError(err))

		return err
	}

	commitTxID := commit.Tx.TxHash().String()
	_ = track.Advance(commitTracked, tracker.StatusPrepared, "commit transaction assembled")
	_ = track.SetTxID(commitTracked, commitTxID)

	revealTracked := track.Track(tracker.TrackParams{Type: tracker.TypeReveal, ParentID: &commitTracked})

	// witness-only signing keeps the commit txid stable, so the reveal can
	// reference the unsigned commit's first output already.
	reveal, err := builder.BuildReveal(ctx, txbuilder.RevealParams{
		UTXO: bitcoin.UTXO{
			TxID:         commitTxID,
			Index:        0,
			Value:        postage,
			ScriptPubKey: prepared.CommitAddress.PkScript,
		},
		Inscription:        prepared,
		FeeRate:            feeRate,
		DestinationAddress: destAddress,
	})
	if err != nil {
		_ = track.Fail(revealTracked, asInscriptionError(err))

		return err
	}

	_ = track.Advance(revealTracked, tracker.StatusPrepared, "reveal transaction finalized")
	_ = track.SetTxID(revealTracked, reveal.TransactionID)

	if err = printResults(commit, reveal, postage); err != nil {
		return err
	}

	// optionally keep serving tracked state so the operator can poll it
	// while signing and broadcasting externally.
	if cfg.Tracker.ListenAddress != "" {
		fmt.Printf("serving tracker status API on %s\n", cfg.Tracker.ListenAddress)

		return tracker.NewAPI(track).Router().Run(cfg.Tracker.ListenAddress)
	}

	return nil
}

// buildInscription reads the content file and assembles the payload.
func buildInscription() (*inscriptions.Inscription, error) {
	body, err := os.ReadFile(contentFile)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}

	mime := contentType
	if mime == "" {
		mime = http.DetectContentType(body)
	}

	insc, err := inscriptions.New(mime, body)
	if err != nil {
		return nil, err
	}

	if metadataFile != "" {
		data, err := os.ReadFile(metadataFile)
		if err != nil {
			return nil, fmt.Errorf("read metadata file: %w", err)
		}

		metadata, err := inscriptions.MetadataFromJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}

		if _, err = insc.WithMetadata(metadata); err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
	}

	return insc, nil
}

// printResults writes the human-facing build summary to stdout.
func printResults(commit *txbuilder.CommitResult, reveal *txbuilder.RevealResult, postage btcutil.Amount) error {
	commitPSBT, err := commit.PSBTBase64()
	if err != nil {
		return err
	}

	fmt.Printf("commit address:    %s\n", commit.CommitAddress)
	fmt.Printf("commit postage:    %d sat\n", postage)
	fmt.Printf("commit fee:        %d sat\n", commit.Fee)
	fmt.Printf("required amount:   %d sat from %d UTXO(s)\n", commit.RequiredAmount, len(commit.SelectedUTXOs))
	fmt.Printf("commit PSBT:       %s\n", commitPSBT)
	fmt.Println()
	fmt.Printf("reveal txid:       %s\n", reveal.TransactionID)
	fmt.Printf("reveal fee:        %d sat over %d vB\n", reveal.Fee, reveal.VSize)
	if reveal.InscriptionID != nil {
		fmt.Printf("inscription id:    %s\n", reveal.InscriptionID.String())
	}
	if reveal.UnderpaidFeeRate {
		fmt.Println("warning: the allocated reveal fee is more than 10% below the requested rate")
	}
	fmt.Printf("reveal hex:        %s\n", reveal.Hex)

	fmt.Println()
	fmt.Println("sign and broadcast the commit PSBT first, then broadcast the reveal hex.")

	return nil
}

// asInscriptionError normalizes any failure into the structured form the
// tracker records.
func asInscriptionError(err error) *bitcoin.InscriptionError {
	var inscErr *bitcoin.InscriptionError
	if errors.As(err, &inscErr) {
		return inscErr
	}

	return bitcoin.NewError(bitcoin.CodeUnexpectedError).WithCause(err)
}
