// Package envelope finds and builds the OP_FALSE OP_IF ... OP_ENDIF pattern
// used to carry data in a script without it ever being executed.
package envelope

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/samber/lo"
)

// Envelope is the ordered list of data pushes found between OP_FALSE OP_IF
// and the matching OP_ENDIF.
type Envelope [][]byte

// Bytes returns the envelope payload: all pushes concatenated.
func (e Envelope) Bytes() []byte {
	return lo.Flatten(e)
}

// PushSizes returns the size of each individual data push.
func (e Envelope) PushSizes() []int {
	return lo.Map(e, func(chunk []byte, _ int) int {
		return len(chunk)
	})
}

// AppendToBuilder appends the envelope pattern to builder, splitting each
// push into chunks of at most txscript.MaxScriptElementSize. Note that the
// builder canonicalizes single-byte pushes of 0x81 and values up to 16 into
// the corresponding pushnum opcode; FromScript maps them back.
func AppendToBuilder(envelope Envelope, builder *txscript.ScriptBuilder) *txscript.ScriptBuilder {
	builder.AddOp(txscript.OP_FALSE).AddOp(txscript.OP_IF)

	for _, bytes := range envelope {
		for _, chunk := range lo.Chunk(bytes, txscript.MaxScriptElementSize) {
			builder.AddData(chunk)
		}
	}

	return builder.AddOp(txscript.OP_ENDIF)
}

// AppendBytesToBuilder appends bytes to builder as a single-push envelope.
func AppendBytesToBuilder(bytes []byte, builder *txscript.ScriptBuilder) *txscript.ScriptBuilder {
	return AppendToBuilder(Envelope{bytes}, builder)
}

// FromScript scans script for envelopes and returns them in appearance
// order. The scan is best effort: a candidate without a matching OP_ENDIF,
// with a non-push opcode inside, or cut short by a malformed push is dropped
// without affecting envelopes found elsewhere in the script.
func FromScript(script []byte) []Envelope {
	envelopes := make([]Envelope, 0)

	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		if tokenizer.Err() != nil {
			break
		}
		// an envelope candidate opens at every empty push
		for isEmptyPush(&tokenizer) {
			envelope, ok, stutter := fromTokenizer(&tokenizer)
			if ok {
				envelopes = append(envelopes, envelope)
			}
			if !stutter {
				break
			}
		}
	}

	return envelopes
}

// fromTokenizer consumes one envelope candidate. The tokenizer is positioned
// on the empty push that may open it. The stutter result is true when the
// match failed on a token that is itself an empty push, so the caller can
// restart matching there.
func fromTokenizer(tokenizer *txscript.ScriptTokenizer) (Envelope, bool, bool) {
	if !tokenizer.Next() || tokenizer.Err() != nil {
		return nil, false, false
	}
	if tokenizer.Opcode() != txscript.OP_IF {
		return nil, false, isEmptyPush(tokenizer)
	}

	payload := make(Envelope, 0)
	for tokenizer.Next() {
		if tokenizer.Err() != nil {
			return nil, false, false
		}
		switch op := tokenizer.Opcode(); {
		case op == txscript.OP_ENDIF:
			return payload, true, false
		case op == txscript.OP_1NEGATE:
			payload = append(payload, []byte{0x81})
		case op >= txscript.OP_1 && op <= txscript.OP_16:
			payload = append(payload, []byte{op - txscript.OP_1 + 1})
		case op == txscript.OP_0:
			payload = append(payload, []byte{})
		default:
			data := tokenizer.Data()
			if data == nil {
				// non-push opcode, including a nested OP_IF: not an envelope
				return nil, false, false
			}
			payload = append(payload, data)
		}
	}
	// script ended before OP_ENDIF
	return nil, false, false
}

func isEmptyPush(tokenizer *txscript.ScriptTokenizer) bool {
	return tokenizer.Opcode() == txscript.OP_0 || len(tokenizer.Data()) == 0 && tokenizer.Data() != nil
}
