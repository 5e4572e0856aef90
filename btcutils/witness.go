// Package btcutils provides small helpers for working with Bitcoin witness
// stacks in human-readable form.
package btcutils

import (
	"encoding/hex"
	"strings"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	witnessSeparator = " "
)

// CoinbaseWitness is the witness data for a coinbase transaction.
var CoinbaseWitness = utils.Must(WitnessFromHex([]string{"0000000000000000000000000000000000000000000000000000000000000000"}))

// WitnessToHex formats the passed witness stack as a slice of hex-encoded strings.
func WitnessToHex(witness wire.TxWitness) []string {
	if len(witness) == 0 {
		return nil
	}
	return lo.Map(witness, func(element []byte, _ int) string {
		return hex.EncodeToString(element)
	})
}

// WitnessToString formats the passed witness stack as a space-separated string of hex-encoded strings.
func WitnessToString(witness wire.TxWitness) string {
	w := WitnessToHex(witness)
	if w == nil {
		return ""
	}
	return strings.Join(w, witnessSeparator)
}

// WitnessFromHex parses the passed slice of hex-encoded strings into a witness stack.
func WitnessFromHex(witnesses []string) (wire.TxWitness, error) {
	if len(witnesses) == 0 {
		return nil, nil
	}

	result := make(wire.TxWitness, 0, len(witnesses))
	for i, wit := range witnesses {
		decoded, err := hex.DecodeString(wit)
		if err != nil {
			return nil, errors.Wrapf(err, "witness element %d", i)
		}
		result = append(result, decoded)
	}

	return result, nil
}

// WitnessFromString parses the passed space-separated string of hex-encoded strings into a witness stack.
func WitnessFromString(witnesses string) (wire.TxWitness, error) {
	return WitnessFromHex(strings.Split(witnesses, witnessSeparator))
}
