package txembed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/txembed/common/errs"
	"github.com/samber/lo"
)

const (
	ErrInvalidFormat = errs.ErrorKind("txembed: invalid embedding id format")
	ErrInvalidTxID   = errs.ErrorKind("txembed: invalid transaction id in embedding id")
	ErrInvalidType   = errs.ErrorKind("txembed: invalid embedding type code")
	ErrInvalidIndex  = errs.ErrorKind("txembed: invalid index in embedding id")
)

// EmbeddingID is a compact, stable identifier for an embedding:
// "txid:type:index" with an optional ":sub_index" for envelope types.
// Index is the output index for OP_RETURN and bare envelopes and the input
// index for annexes and witness envelopes. SubIndex is the occurrence of
// the envelope within its script; it is nil for non-envelope types and is
// elided from the string form when zero.
type EmbeddingID struct {
	TxID     chainhash.Hash
	Type     EmbeddingType
	Index    int
	SubIndex *int
}

// ID returns the identifier of this embedding.
func (e Embedding) ID() EmbeddingID {
	id := EmbeddingID{TxID: e.TxID, Type: e.Location.Type()}
	switch loc := e.Location.(type) {
	case OpReturnLocation:
		id.Index = loc.Output
	case TaprootAnnexLocation:
		id.Index = loc.Input
	case WitnessEnvelopeLocation:
		id.Index = loc.Input
		id.SubIndex = lo.ToPtr(loc.Index)
	case BareEnvelopeLocation:
		id.Index = loc.Output
		id.SubIndex = lo.ToPtr(loc.Index)
	}
	return id
}

func (id EmbeddingID) String() string {
	base := fmt.Sprintf("%s:%s:%d", id.TxID, id.Type.code(), id.Index)
	if id.SubIndex != nil && *id.SubIndex > 0 {
		return fmt.Sprintf("%s:%d", base, *id.SubIndex)
	}
	return base
}

// ParseEmbeddingID parses the string form produced by EmbeddingID.String.
// For envelope types a missing sub index is normalized to 0, so parsing is
// the exact inverse of String.
func ParseEmbeddingID(s string) (EmbeddingID, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return EmbeddingID{}, errors.WithStack(ErrInvalidFormat)
	}
	if len(parts[0]) != chainhash.MaxHashStringSize {
		return EmbeddingID{}, errors.WithStack(ErrInvalidTxID)
	}
	txID, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return EmbeddingID{}, errors.Wrap(ErrInvalidTxID, err.Error())
	}

	var embeddingType EmbeddingType
	switch parts[1] {
	case "rt":
		embeddingType = EmbeddingTypeOpReturn
	case "ta":
		embeddingType = EmbeddingTypeTaprootAnnex
	case "le":
		embeddingType = EmbeddingTypeWitnessEnvelopeP2WSH
	case "te":
		embeddingType = EmbeddingTypeWitnessEnvelopeP2TR
	case "be":
		embeddingType = EmbeddingTypeBareEnvelope
	default:
		return EmbeddingID{}, errors.Wrapf(ErrInvalidType, "type code %q", parts[1])
	}

	index, err := strconv.Atoi(parts[2])
	if err != nil || index < 0 {
		return EmbeddingID{}, errors.Wrapf(ErrInvalidIndex, "index %q", parts[2])
	}

	var subIndex *int
	if len(parts) == 4 {
		sub, err := strconv.Atoi(parts[3])
		if err != nil || sub < 0 {
			return EmbeddingID{}, errors.Wrapf(ErrInvalidIndex, "sub index %q", parts[3])
		}
		subIndex = lo.ToPtr(sub)
	}

	switch embeddingType {
	case EmbeddingTypeWitnessEnvelopeP2WSH, EmbeddingTypeWitnessEnvelopeP2TR, EmbeddingTypeBareEnvelope:
		if subIndex == nil {
			subIndex = lo.ToPtr(0)
		}
	default:
		if subIndex != nil {
			return EmbeddingID{}, errors.WithStack(ErrInvalidFormat)
		}
	}

	return EmbeddingID{
		TxID:     *txID,
		Type:     embeddingType,
		Index:    index,
		SubIndex: subIndex,
	}, nil
}
