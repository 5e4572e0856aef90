package txembed

import (
	"fmt"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTxIDStr = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestParseEmbeddingID(t *testing.T) {
	testcases := []struct {
		input    string
		expected EmbeddingID
	}{
		{
			input: testTxIDStr + ":rt:2",
			expected: EmbeddingID{
				Type:  EmbeddingTypeOpReturn,
				Index: 2,
			},
		},
		{
			input: testTxIDStr + ":ta:1",
			expected: EmbeddingID{
				Type:  EmbeddingTypeTaprootAnnex,
				Index: 1,
			},
		},
		{
			input: testTxIDStr + ":be:0:3",
			expected: EmbeddingID{
				Type:     EmbeddingTypeBareEnvelope,
				Index:    0,
				SubIndex: lo.ToPtr(3),
			},
		},
		{
			// missing sub index defaults to 0 for envelope types
			input: testTxIDStr + ":be:0",
			expected: EmbeddingID{
				Type:     EmbeddingTypeBareEnvelope,
				Index:    0,
				SubIndex: lo.ToPtr(0),
			},
		},
		{
			input: testTxIDStr + ":le:0:3",
			expected: EmbeddingID{
				Type:     EmbeddingTypeWitnessEnvelopeP2WSH,
				Index:    0,
				SubIndex: lo.ToPtr(3),
			},
		},
		{
			input: testTxIDStr + ":le:0",
			expected: EmbeddingID{
				Type:     EmbeddingTypeWitnessEnvelopeP2WSH,
				Index:    0,
				SubIndex: lo.ToPtr(0),
			},
		},
		{
			input: testTxIDStr + ":te:2:1",
			expected: EmbeddingID{
				Type:     EmbeddingTypeWitnessEnvelopeP2TR,
				Index:    2,
				SubIndex: lo.ToPtr(1),
			},
		},
	}
	txID, err := chainhash.NewHashFromStr(testTxIDStr)
	require.NoError(t, err)
	for _, tc := range testcases {
		t.Run(tc.input, func(t *testing.T) {
			tc.expected.TxID = *txID
			id, err := ParseEmbeddingID(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, id)
		})
	}
}

func TestParseEmbeddingIDErrors(t *testing.T) {
	testcases := []struct {
		name     string
		input    string
		expected error
	}{
		{
			name:     "too few parts",
			input:    testTxIDStr,
			expected: ErrInvalidFormat,
		},
		{
			name:     "too many parts",
			input:    testTxIDStr + ":rt:2:3:extra",
			expected: ErrInvalidFormat,
		},
		{
			name:     "invalid txid",
			input:    "invalid:rt:2",
			expected: ErrInvalidTxID,
		},
		{
			name:     "txid with non-hex characters",
			input:    strings.Repeat("zz", 32) + ":rt:2",
			expected: ErrInvalidTxID,
		},
		{
			name:     "invalid type code",
			input:    testTxIDStr + ":invalid:2",
			expected: ErrInvalidType,
		},
		{
			name:     "index not a number",
			input:    testTxIDStr + ":rt:abc",
			expected: ErrInvalidIndex,
		},
		{
			name:     "negative index",
			input:    testTxIDStr + ":rt:-1",
			expected: ErrInvalidIndex,
		},
		{
			name:     "sub index not a number",
			input:    testTxIDStr + ":te:2:abc",
			expected: ErrInvalidIndex,
		},
		{
			name:     "negative sub index",
			input:    testTxIDStr + ":te:2:-1",
			expected: ErrInvalidIndex,
		},
		{
			name:     "sub index not allowed for op_return",
			input:    testTxIDStr + ":rt:2:1",
			expected: ErrInvalidFormat,
		},
		{
			name:     "sub index not allowed for annex",
			input:    testTxIDStr + ":ta:1:2",
			expected: ErrInvalidFormat,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEmbeddingID(tc.input)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestEmbeddingIDString(t *testing.T) {
	var txID chainhash.Hash
	txIDStr := txID.String()

	testcases := []struct {
		id       EmbeddingID
		expected string
	}{
		{
			id:       EmbeddingID{TxID: txID, Type: EmbeddingTypeOpReturn, Index: 2},
			expected: fmt.Sprintf("%s:rt:2", txIDStr),
		},
		{
			id:       EmbeddingID{TxID: txID, Type: EmbeddingTypeTaprootAnnex, Index: 1},
			expected: fmt.Sprintf("%s:ta:1", txIDStr),
		},
		{
			id:       EmbeddingID{TxID: txID, Type: EmbeddingTypeBareEnvelope, Index: 0, SubIndex: lo.ToPtr(3)},
			expected: fmt.Sprintf("%s:be:0:3", txIDStr),
		},
		{
			// zero sub index is elided
			id:       EmbeddingID{TxID: txID, Type: EmbeddingTypeBareEnvelope, Index: 2, SubIndex: lo.ToPtr(0)},
			expected: fmt.Sprintf("%s:be:2", txIDStr),
		},
		{
			id:       EmbeddingID{TxID: txID, Type: EmbeddingTypeWitnessEnvelopeP2WSH, Index: 0, SubIndex: lo.ToPtr(3)},
			expected: fmt.Sprintf("%s:le:0:3", txIDStr),
		},
		{
			id:       EmbeddingID{TxID: txID, Type: EmbeddingTypeWitnessEnvelopeP2TR, Index: 2, SubIndex: lo.ToPtr(0)},
			expected: fmt.Sprintf("%s:te:2", txIDStr),
		},
	}
	for _, tc := range testcases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.id.String())
		})
	}
}

func TestEmbeddingIDRoundTrip(t *testing.T) {
	var txID chainhash.Hash

	ids := []EmbeddingID{
		{TxID: txID, Type: EmbeddingTypeOpReturn, Index: 2},
		{TxID: txID, Type: EmbeddingTypeTaprootAnnex, Index: 1},
		{TxID: txID, Type: EmbeddingTypeBareEnvelope, Index: 0, SubIndex: lo.ToPtr(3)},
		{TxID: txID, Type: EmbeddingTypeWitnessEnvelopeP2WSH, Index: 0, SubIndex: lo.ToPtr(3)},
		{TxID: txID, Type: EmbeddingTypeWitnessEnvelopeP2TR, Index: 2, SubIndex: lo.ToPtr(0)},
	}
	for _, id := range ids {
		t.Run(id.String(), func(t *testing.T) {
			parsed, err := ParseEmbeddingID(id.String())
			require.NoError(t, err)
			assert.Equal(t, id, parsed)
		})
	}
}

func TestEmbeddingIDFromEmbedding(t *testing.T) {
	var txID chainhash.Hash

	testcases := []struct {
		name     string
		location EmbeddingLocation
		expected EmbeddingID
	}{
		{
			name:     "op_return",
			location: OpReturnLocation{Output: 2},
			expected: EmbeddingID{TxID: txID, Type: EmbeddingTypeOpReturn, Index: 2},
		},
		{
			name:     "bare envelope",
			location: BareEnvelopeLocation{Output: 0, Index: 1},
			expected: EmbeddingID{TxID: txID, Type: EmbeddingTypeBareEnvelope, Index: 0, SubIndex: lo.ToPtr(1)},
		},
		{
			name:     "taproot annex",
			location: TaprootAnnexLocation{Input: 1},
			expected: EmbeddingID{TxID: txID, Type: EmbeddingTypeTaprootAnnex, Index: 1},
		},
		{
			name:     "p2wsh envelope first occurrence",
			location: WitnessEnvelopeLocation{Input: 3, Index: 0, Pushes: []int{3}, ScriptType: ScriptTypeP2WSH},
			expected: EmbeddingID{TxID: txID, Type: EmbeddingTypeWitnessEnvelopeP2WSH, Index: 3, SubIndex: lo.ToPtr(0)},
		},
		{
			name:     "p2wsh envelope later occurrence",
			location: WitnessEnvelopeLocation{Input: 3, Index: 2, Pushes: []int{3}, ScriptType: ScriptTypeP2WSH},
			expected: EmbeddingID{TxID: txID, Type: EmbeddingTypeWitnessEnvelopeP2WSH, Index: 3, SubIndex: lo.ToPtr(2)},
		},
		{
			name:     "tapscript envelope",
			location: WitnessEnvelopeLocation{Input: 4, Index: 1, Pushes: []int{3}, ScriptType: ScriptTypeP2TR},
			expected: EmbeddingID{TxID: txID, Type: EmbeddingTypeWitnessEnvelopeP2TR, Index: 4, SubIndex: lo.ToPtr(1)},
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			embedding := Embedding{
				Bytes:    []byte{1, 2, 3},
				TxID:     txID,
				Location: tc.location,
			}
			assert.Equal(t, tc.expected, embedding.ID())
		})
	}
}
