// Package txembed extracts application data embedded in Bitcoin
// transactions. It recognizes four independent carriers: OP_RETURN outputs,
// data-carrying taproot annexes, OP_FALSE OP_IF ... OP_ENDIF envelopes inside
// witness scripts, and the same envelope pattern in bare output scripts.
//
// Extraction is structural only: no consensus or script validation is
// performed, and the spent outputs are never consulted.
package txembed

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ScriptType is the kind of witness script an envelope was found in.
type ScriptType uint8

const (
	// ScriptTypeP2WSH is a witness script in a P2WSH spend.
	ScriptTypeP2WSH ScriptType = iota
	// ScriptTypeP2TR is a tapscript leaf script in a taproot script path spend.
	ScriptTypeP2TR
)

func (s ScriptType) String() string {
	switch s {
	case ScriptTypeP2WSH:
		return "P2WSH"
	case ScriptTypeP2TR:
		return "P2TR"
	default:
		return fmt.Sprintf("ScriptType(%d)", uint8(s))
	}
}

// EmbeddingType is the kind of carrier an embedding was found in.
type EmbeddingType uint8

const (
	EmbeddingTypeOpReturn EmbeddingType = iota
	EmbeddingTypeTaprootAnnex
	EmbeddingTypeWitnessEnvelopeP2WSH
	EmbeddingTypeWitnessEnvelopeP2TR
	EmbeddingTypeBareEnvelope
)

func (t EmbeddingType) String() string {
	switch t {
	case EmbeddingTypeOpReturn:
		return "OP_RETURN"
	case EmbeddingTypeTaprootAnnex:
		return "Taproot Annex"
	case EmbeddingTypeWitnessEnvelopeP2WSH:
		return "P2WSH Envelope"
	case EmbeddingTypeWitnessEnvelopeP2TR:
		return "P2TR Envelope"
	case EmbeddingTypeBareEnvelope:
		return "Bare Envelope"
	default:
		return fmt.Sprintf("EmbeddingType(%d)", uint8(t))
	}
}

// code is the short type code used in embedding id strings. "le" and "te"
// (legacy and tapscript envelope) are kept for compatibility with existing
// ids in the wild.
func (t EmbeddingType) code() string {
	switch t {
	case EmbeddingTypeOpReturn:
		return "rt"
	case EmbeddingTypeTaprootAnnex:
		return "ta"
	case EmbeddingTypeWitnessEnvelopeP2WSH:
		return "le"
	case EmbeddingTypeWitnessEnvelopeP2TR:
		return "te"
	case EmbeddingTypeBareEnvelope:
		return "be"
	default:
		return ""
	}
}

// EmbeddingLocation identifies where in a transaction an embedding was
// found. It is a closed set: OpReturnLocation, TaprootAnnexLocation,
// WitnessEnvelopeLocation, or BareEnvelopeLocation.
type EmbeddingLocation interface {
	fmt.Stringer
	// Type returns the embedding type of this location.
	Type() EmbeddingType

	embeddingLocation()
}

// OpReturnLocation is an OP_RETURN output.
type OpReturnLocation struct {
	// Output is the index of the transaction output.
	Output int
}

func (l OpReturnLocation) Type() EmbeddingType { return EmbeddingTypeOpReturn }

func (l OpReturnLocation) String() string {
	return fmt.Sprintf("OP_RETURN at output %d", l.Output)
}

func (OpReturnLocation) embeddingLocation() {}

// TaprootAnnexLocation is a data-carrying taproot annex.
type TaprootAnnexLocation struct {
	// Input is the index of the transaction input.
	Input int
}

func (l TaprootAnnexLocation) Type() EmbeddingType { return EmbeddingTypeTaprootAnnex }

func (l TaprootAnnexLocation) String() string {
	return fmt.Sprintf("Taproot Annex at input %d", l.Input)
}

func (TaprootAnnexLocation) embeddingLocation() {}

// WitnessEnvelopeLocation is an envelope inside a witness script, either a
// tapscript leaf script (P2TR) or a P2WSH witness script.
type WitnessEnvelopeLocation struct {
	// Input is the index of the transaction input.
	Input int
	// Index is the 0-based occurrence of the envelope within the script.
	Index int
	// Pushes is the size of each individual data push within the envelope.
	Pushes []int
	// ScriptType is the kind of witness script the envelope was found in.
	ScriptType ScriptType
}

func (l WitnessEnvelopeLocation) Type() EmbeddingType {
	if l.ScriptType == ScriptTypeP2TR {
		return EmbeddingTypeWitnessEnvelopeP2TR
	}
	return EmbeddingTypeWitnessEnvelopeP2WSH
}

func (l WitnessEnvelopeLocation) String() string {
	return fmt.Sprintf("%s Envelope at input %d (index %d)", l.ScriptType, l.Input, l.Index)
}

func (WitnessEnvelopeLocation) embeddingLocation() {}

// BareEnvelopeLocation is an envelope in a bare output script.
type BareEnvelopeLocation struct {
	// Output is the index of the transaction output.
	Output int
	// Index is the 0-based occurrence of the envelope within the script.
	Index int
	// Pushes is the size of each individual data push within the envelope.
	Pushes []int
}

func (l BareEnvelopeLocation) Type() EmbeddingType { return EmbeddingTypeBareEnvelope }

func (l BareEnvelopeLocation) String() string {
	return fmt.Sprintf("Bare Envelope at output %d (index %d)", l.Output, l.Index)
}

func (BareEnvelopeLocation) embeddingLocation() {}

// Embedding is a blob of data found in a transaction together with its
// exact location. Embeddings are produced only by FromTransaction.
type Embedding struct {
	// Bytes is the extracted data.
	Bytes []byte
	// TxID is the id of the transaction the data was found in.
	TxID chainhash.Hash
	// Location is where in the transaction the data was found.
	Location EmbeddingLocation
}

// Type returns the embedding type of this embedding's location.
func (e Embedding) Type() EmbeddingType {
	return e.Location.Type()
}
