// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/ordinals/internal/sequencereader"
)

// ErrMalformedInscription defines that inscription is malformed and failed to parse.
var ErrMalformedInscription = errors.New("inscription is malformed")

// ErrRepeatedFieldData defines that already filled field met while parsing.
var ErrRepeatedFieldData = errors.New("field already filled")

// ErrBodyTooLarge defines that inscription body exceeds MaxBodyLen.
var ErrBodyTooLarge = errors.New("inscription body is too large")

// inscriptionOrdTag defines ord tag for inscription to disambiguate inscriptions from other uses of envelopes.
const inscriptionOrdTag string = "ord"

// inscriptionStartDisASM defines the start of the inscription script in disASM.
// OP_FALSE OP_IF OP_PUSH "ord" ...
const inscriptionStartDisASM string = "0 OP_IF 6f7264"

// inscriptionEndDisASM defines the end of the inscription script in disASM.
// ... OP_ENDIF.
const inscriptionEndDisASM string = "OP_ENDIF"

// maxDataPushLen defines maximum size of one data push for bitcoin scripts.
const maxDataPushLen int = 520

// maxScriptDataPushes defines maximum number of data pushes of maxDataPushLen
// size per script segment to stay below the script builder size limit.
const maxScriptDataPushes int = 19

// MaxBodyLen defines maximum allowed inscription body size in bytes.
// Bound by the standard transaction weight limit for the reveal witness.
const MaxBodyLen int = 390_000

// Inscription describes the inscription payload embedded into a taproot
// reveal script: arbitrary content with its MIME type plus optional
// CBOR metadata. Immutable once built.
type Inscription struct {
	Body            []byte
	ContentType     string
	ContentEncoding string
	Metadata        []byte // CBOR-encoded, see Metadata type.
	Metaprotocol    []byte
	Pointer         *uint64
}

// New is a constructor for Inscription with payload validation.
func New(contentType string, body []byte) (*Inscription, error) {
	if contentType == "" {
		return nil, errors.New("content type is required")
	}
	if len(body) > MaxBodyLen {
		return nil, ErrBodyTooLarge
	}

	return &Inscription{ContentType: contentType, Body: body}, nil
}

// WithMetadata returns the inscription with attached structured metadata
// encoded to CBOR.
func (i *Inscription) WithMetadata(metadata Metadata) (*Inscription, error) {
	data, err := metadata.EncodeCBOR()
	if err != nil {
		return nil, err
	}

	i.Metadata = data

	return i, nil
}

// IntoScript returns Inscription as an envelope script:
// OP_FALSE OP_IF "ord" <tag pushes> OP_0 <body chunks> OP_ENDIF.
func (i *Inscription) IntoScript() ([]byte, error) {
	scriptBuilder := txscript.NewScriptBuilder()

	// inscription protocol start.
	scriptBuilder.AddOp(txscript.OP_FALSE)
	scriptBuilder.AddOp(txscript.OP_IF)
	scriptBuilder.AddData([]byte(inscriptionOrdTag))

	// tags and content.
	if len(i.ContentType) != 0 {
		scriptBuilder.AddOps(TagContentType.IntoDataPush())
		scriptBuilder.AddData([]byte(i.ContentType))
	}

	if i.Pointer != nil {
		scriptBuilder.AddOps(TagPointer.IntoDataPush())
		scriptBuilder.AddData(pointerLEBytes(*i.Pointer))
	}

	// metadata above one push limit is split into repeated tagged pushes.
	for _, chunk := range splitChunks(i.Metadata, maxDataPushLen) {
		scriptBuilder.AddOps(TagMetadata.IntoDataPush())
		scriptBuilder.AddData(chunk)
	}

	if len(i.Metaprotocol) != 0 {
		scriptBuilder.AddOps(TagMetaprotocol.IntoDataPush())
		scriptBuilder.AddData(i.Metaprotocol)
	}

	if len(i.ContentEncoding) != 0 {
		scriptBuilder.AddOps(TagContentEncoding.IntoDataPush())
		scriptBuilder.AddData([]byte(i.ContentEncoding))
	}

	if len(i.Body) != 0 {
		scriptBuilder.AddOp(txscript.OP_0)
		script, err := scriptBuilder.Script()
		if err != nil {
			return nil, err
		}

		// the script builder rejects scripts above its size cap, so body
		// pushes are assembled in bounded groups and concatenated raw.
		for _, group := range i.bodyPushGroups() {
			bodyScriptBuilder := txscript.NewScriptBuilder()
			for _, chunk := range group {
				bodyScriptBuilder.AddData(chunk)
			}

			bodyPartScript, err := bodyScriptBuilder.Script()
			if err != nil {
				return nil, err
			}

			script = append(script, bodyPartScript...)
		}

		// inscription protocol end.
		script = append(script, txscript.OP_ENDIF)

		return script, nil
	}

	// inscription protocol end.
	scriptBuilder.AddOp(txscript.OP_ENDIF)

	return scriptBuilder.Script()
}

// IntoScriptForWitness returns Inscription as a taproot leaf script with
// reveal pubKey check at the beginning.
func (i *Inscription) IntoScriptForWitness(serializedPubKey []byte) ([]byte, error) {
	scriptBuilder := txscript.NewScriptBuilder()
	scriptBuilder.AddData(serializedPubKey)
	scriptBuilder.AddOp(txscript.OP_CHECKSIG)

	script, err := scriptBuilder.Script()
	if err != nil {
		return nil, err
	}

	envelope, err := i.IntoScript()
	if err != nil {
		return nil, err
	}

	return append(script, envelope...), nil
}

// bodyPushGroups returns the body split into maxDataPushLen chunks grouped
// by maxScriptDataPushes pushes per script segment.
func (i *Inscription) bodyPushGroups() [][][]byte {
	chunks := splitChunks(i.Body, maxDataPushLen)

	groupsSize := ceilQuotient(len(chunks), maxScriptDataPushes)
	groups := make([][][]byte, groupsSize)
	start, end := 0, maxScriptDataPushes
	for idx := 0; idx < groupsSize; idx++ {
		if end > len(chunks) {
			end = len(chunks)
		}

		groups[idx] = chunks[start:end]
		start = end
		end += maxScriptDataPushes
	}

	return groups
}

// IsPossibleInscriptionWitnessData returns true if witness data is possible to be parsed to inscription.
func IsPossibleInscriptionWitnessData(data []byte) bool {
	_, _, _, err := disasmWitnessDataWithBoundsIndexes(data)

	return err == nil
}

// disasmWitnessDataWithBoundsIndexes returns disassembled witness data with start and end indexes of inscription script.
func disasmWitnessDataWithBoundsIndexes(data []byte) (disasm string, start int, end int, err error) {
	disasm, err = txscript.DisasmString(data)
	if err != nil {
		return disasm, start, end, ErrMalformedInscription
	}

	start = strings.Index(disasm, inscriptionStartDisASM)
	end = strings.LastIndex(disasm, inscriptionEndDisASM)
	if start == -1 || end == -1 || end <= start {
		return disasm, start, end, ErrMalformedInscription
	}

	return disasm, start, end, nil
}

// ParseFromWitnessData parses reveal witness script data back into Inscription.
func ParseFromWitnessData(data []byte) (*Inscription, error) {
	disasm, start, end, err := disasmWitnessDataWithBoundsIndexes(data)
	if err != nil {
		return nil, err
	}

	sr := sequencereader.New[string](strings.Split(disasm[start:end+len(inscriptionEndDisASM)], " "))
	// At least OP_FALSE OP_IF OP_PUSH "ord" OP_ENDIF.
	if sr.Len() < 4 {
		return nil, ErrMalformedInscription
	}

	// Skip OP_FALSE OP_IF OP_PUSH "ord" due to previous checks (inscriptionStartDisASM).
	_, _ = sr.Next()
	_, _ = sr.Next()
	_, _ = sr.Next()

	inscription := new(Inscription)
	for sr.HasNext() {
		tag, _ := sr.Next() // skip error due to the loop condition check.
		if tag == "0" {     // OP_0, means that all next data pushes are body parts.
			err = inscription.fillBody(sr)
		} else if tag == inscriptionEndDisASM {
			return inscription, nil
		} else {
			var value string
			value, err = sr.Next()
			if err != nil {
				return nil, ErrMalformedInscription
			}

			err = inscription.fillFieldByTag(tag, value)
		}
		if err != nil {
			return nil, err
		}
	}

	return inscription, nil
}

// fillBody fills Body field with body data pushes.
func (i *Inscription) fillBody(sr *sequencereader.SequenceReader[string]) (err error) {
	var payload string
	for sr.HasNext() {
		value, _ := sr.Next() // skip error due to the loop condition check.
		if value == inscriptionEndDisASM {
			break
		}

		payload += value
	}

	i.Body, err = hex.DecodeString(payload)
	if err != nil {
		return err
	}

	return nil
}

// fillFieldByTag fills Inscription fields by provided tag.
func (i *Inscription) fillFieldByTag(tag string, value string) (err error) {
	var valueBytes = make([]byte, 0)
	if value != "0" {
		valueBytes, err = hex.DecodeString(value)
		if err != nil {
			return err
		}
	}

	switch tag {
	case TagContentType.HexString():
		if len(i.ContentType) != 0 {
			return ErrRepeatedFieldData
		}

		i.ContentType = string(valueBytes)
	case TagPointer.HexString():
		if i.Pointer != nil {
			return ErrRepeatedFieldData
		}

		pointer := pointerFromLEBytes(valueBytes)
		i.Pointer = &pointer
	case TagMetadata.HexString():
		// metadata pushes are concatenated before decoding.
		i.Metadata = append(i.Metadata, valueBytes...)
	case TagMetaprotocol.HexString():
		if len(i.Metaprotocol) != 0 {
			return ErrRepeatedFieldData
		}

		i.Metaprotocol = valueBytes
	case TagContentEncoding.HexString():
		if len(i.ContentEncoding) != 0 {
			return ErrRepeatedFieldData
		}

		i.ContentEncoding = string(valueBytes)
	case TagParent.HexString(), TagDelegate.HexString(), TagRune.HexString(),
		TagNote.HexString(), TagNop.HexString(), TagUnbound.HexString():
	default:
		return ErrMalformedInscription
	}

	return nil
}

// splitChunks returns data split into chunks of at most size bytes.
// Nil for empty data.
func splitChunks(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}

	chunks := make([][]byte, 0, ceilQuotient(len(data), size))
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}

		chunks = append(chunks, data[start:end])
	}

	return chunks
}

// pointerLEBytes returns pointer as little-endian bytes with trailing zeros omitted.
func pointerLEBytes(pointer uint64) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, pointer)
	for lastIdx := 7; lastIdx >= 0; lastIdx-- {
		if data[lastIdx] != 0 {
			return data[:lastIdx+1]
		}
	}

	return []byte{}
}

// pointerFromLEBytes parses little-endian pointer bytes with trailing zeros omitted.
func pointerFromLEBytes(data []byte) uint64 {
	padded := make([]byte, 8)
	copy(padded, data)

	return binary.LittleEndian.Uint64(padded)
}

// ceilQuotient returns division result with ceil function applied.
func ceilQuotient(divided, divisor int) int {
	ceilQuo := divided / divisor
	if divided%divisor != 0 {
		ceilQuo++
	}

	return ceilQuo
}
