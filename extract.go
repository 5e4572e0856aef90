package txembed

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/gaze-network/txembed/envelope"
)

// TaprootAnnexDataTag is the first byte after the annex marker of a
// data-carrying annex. Annexes whose second byte differs are treated as
// opaque and skipped.
const TaprootAnnexDataTag byte = 0x00

// FromTransaction extracts every embedding from tx. The result is ordered:
// first the outputs in index order (OP_RETURN payloads and bare envelopes,
// per output), then witness script envelopes per input in index order, then
// data-carrying annexes per input in index order. Transactions without any
// embedded data return an empty slice.
//
// Malformed carriers are skipped, never reported as errors: extraction is
// total over arbitrary transactions.
func FromTransaction(tx *wire.MsgTx) []Embedding {
	txID := tx.TxHash()
	embeddings := make([]Embedding, 0)

	for outIndex, txOut := range tx.TxOut {
		if payload, ok := opReturnPayload(txOut.PkScript); ok {
			embeddings = append(embeddings, Embedding{
				Bytes:    payload,
				TxID:     txID,
				Location: OpReturnLocation{Output: outIndex},
			})
		}
		for envIndex, env := range envelope.FromScript(txOut.PkScript) {
			embeddings = append(embeddings, Embedding{
				Bytes: env.Bytes(),
				TxID:  txID,
				Location: BareEnvelopeLocation{
					Output: outIndex,
					Index:  envIndex,
					Pushes: env.PushSizes(),
				},
			})
		}
	}

	for inIndex, txIn := range tx.TxIn {
		script, scriptType, ok := witnessScript(txIn.Witness)
		if !ok {
			continue
		}
		for envIndex, env := range envelope.FromScript(script) {
			embeddings = append(embeddings, Embedding{
				Bytes: env.Bytes(),
				TxID:  txID,
				Location: WitnessEnvelopeLocation{
					Input:      inIndex,
					Index:      envIndex,
					Pushes:     env.PushSizes(),
					ScriptType: scriptType,
				},
			})
		}
	}

	for inIndex, txIn := range tx.TxIn {
		if payload, ok := annexPayload(txIn.Witness); ok {
			embeddings = append(embeddings, Embedding{
				Bytes:    payload,
				TxID:     txID,
				Location: TaprootAnnexLocation{Input: inIndex},
			})
		}
	}

	return embeddings
}

// opReturnPayload returns the concatenated data pushes of an OP_RETURN
// output script. Pushnum opcodes contribute their numeric byte, as the
// script builder canonicalizes small pushes into them. Scripts that do not
// start with OP_RETURN, or that contain any other non-push opcode after it,
// return false. A bare OP_RETURN yields an empty payload.
func opReturnPayload(pkScript []byte) ([]byte, bool) {
	tokenizer := txscript.MakeScriptTokenizer(0, pkScript)
	if !tokenizer.Next() || tokenizer.Err() != nil || tokenizer.Opcode() != txscript.OP_RETURN {
		return nil, false
	}
	payload := make([]byte, 0)
	for tokenizer.Next() {
		switch {
		case tokenizer.Data() != nil:
			payload = append(payload, tokenizer.Data()...)
		case tokenizer.Opcode() == txscript.OP_0:
		case tokenizer.Opcode() == txscript.OP_1NEGATE:
			payload = append(payload, 0x81)
		case tokenizer.Opcode() >= txscript.OP_1 && tokenizer.Opcode() <= txscript.OP_16:
			payload = append(payload, tokenizer.Opcode()-txscript.OP_1+1)
		default:
			return nil, false
		}
	}
	if tokenizer.Err() != nil {
		return nil, false
	}
	return payload, true
}

// witnessScript returns the script-carrying element of a witness stack, if
// any. After stripping the annex, a stack whose last element looks like a
// taproot control block (leaf version 0xc0) is classified as a script path
// spend and yields the tapscript leaf script; otherwise a stack of at least
// two elements with no annex is assumed to be P2WSH and yields the witness
// script. Key path spends and single-element stacks carry no script.
func witnessScript(witness wire.TxWitness) ([]byte, ScriptType, bool) {
	stripped, hadAnnex := removeAnnexFromWitness(witness)
	if len(stripped) < 2 {
		return nil, 0, false
	}
	control := stripped[len(stripped)-1]
	if isControlBlock(control) {
		return stripped[len(stripped)-2], ScriptTypeP2TR, true
	}
	if hadAnnex {
		return nil, 0, false
	}
	return stripped[len(stripped)-1], ScriptTypeP2WSH, true
}

// isControlBlock reports whether data is structurally a tapscript control
// block: the tapscript leaf version, a 33-byte base of leaf version byte
// plus internal key, and whole 32-byte merkle proof elements. The internal
// key itself is not validated.
func isControlBlock(data []byte) bool {
	if len(data) < txscript.ControlBlockBaseSize ||
		(len(data)-txscript.ControlBlockBaseSize)%txscript.ControlBlockNodeSize != 0 ||
		len(data) > txscript.ControlBlockMaxSize {
		return false
	}
	return data[0]&txscript.TaprootLeafMask == byte(txscript.BaseLeafVersion)
}

// removeAnnexFromWitness strips the taproot annex, if present. An annex is
// only recognized on stacks of at least two elements, matching BIP 341.
func removeAnnexFromWitness(witness wire.TxWitness) (wire.TxWitness, bool) {
	if len(witness) >= 2 {
		last := witness[len(witness)-1]
		if len(last) > 0 && last[0] == txscript.TaprootAnnexTag {
			return witness[:len(witness)-1], true
		}
	}
	return witness, false
}

// annexPayload returns the data carried by a taproot annex. The annex must
// tag its content with TaprootAnnexDataTag right after the 0x50 marker; the
// payload is everything after that tag byte.
func annexPayload(witness wire.TxWitness) ([]byte, bool) {
	if len(witness) < 2 {
		return nil, false
	}
	annex := witness[len(witness)-1]
	if len(annex) <= 2 || annex[0] != txscript.TaprootAnnexTag || annex[1] != TaprootAnnexDataTag {
		return nil, false
	}
	return annex[2:], true
}
