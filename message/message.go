// Package message implements the tagged message wire format: an ordered
// sequence of (tag, body) pairs packed into a single byte string.
//
// Tags are LEB128-encoded as 2*tag + 1 when the message is the last of the
// stream, 2*tag otherwise. A message repeating the previous tag is encoded
// with the reserved tag 0 in place of its tag. Every message but the last is
// followed by a LEB128 body length; the terminal message's body runs to the
// end of the buffer.
package message

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/txembed/common/errs"
	"github.com/gaze-network/txembed/leb128"
	"github.com/gaze-network/uint128"
)

const (
	// ErrInvalidTag is returned when a tag is zero, exceeds 2^127-1, or
	// repeats the previous tag without using the repeat marker.
	ErrInvalidTag = errs.ErrorKind("message: invalid tag")
	// ErrInvalidVarInt is returned when a tag or length varint cannot be decoded.
	ErrInvalidVarInt = errs.ErrorKind("message: invalid varint encoding")
	// ErrInvalidByteCount is returned when a body exceeds 2^32-1 bytes.
	ErrInvalidByteCount = errs.ErrorKind("message: byte count exceeds 2^32 - 1")
	// ErrEmptyInput is returned when decoding an empty buffer.
	ErrEmptyInput = errs.ErrorKind("message: empty input")
	// ErrNoPreviousTag is returned when the first message of a stream uses the repeat marker.
	ErrNoPreviousTag = errs.ErrorKind("message: repeat marker without previous tag")
	// ErrTruncated is returned when a declared body length exceeds the remaining buffer.
	ErrTruncated = errs.ErrorKind("message: truncated input")
	// ErrMissingTerminal is returned when a stream ends without a terminal message.
	ErrMissingTerminal = errs.ErrorKind("message: stream ended without terminal message")
)

// TagRepeat is reserved: it stands in for a repeated consecutive tag and can
// never be assigned to a message.
var TagRepeat = uint128.Zero

// maxTag is 2^127-1, the largest tag whose doubled encoding fits in 128 bits.
var maxTag = uint128.Max.Rsh(1)

// Message is an immutable (tag, body) pair. Construct with New; the zero
// value is not a valid message.
type Message struct {
	tag  uint128.Uint128
	body []byte
}

// New validates and constructs a Message. The tag must be in [1, 2^127-1]
// and the body at most 2^32-1 bytes.
func New(tag uint128.Uint128, body []byte) (Message, error) {
	if tag.IsZero() || tag.Cmp(maxTag) > 0 {
		return Message{}, errors.WithStack(ErrInvalidTag)
	}
	if len(body) > math.MaxUint32 {
		return Message{}, errors.WithStack(ErrInvalidByteCount)
	}
	return Message{tag: tag, body: body}, nil
}

// Tag returns the message tag.
func (m Message) Tag() uint128.Uint128 {
	return m.tag
}

// Body returns the message body.
func (m Message) Body() []byte {
	return m.body
}

// Encode packs messages into a single byte string. Messages must have been
// constructed with New; encoding an empty slice yields an empty byte string.
func Encode(messages []Message) []byte {
	bytes := make([]byte, 0)
	lastTag := uint128.Zero

	for i, message := range messages {
		terminalBit := uint128.Zero
		if i == len(messages)-1 {
			terminalBit = uint128.From64(1)
		}

		if message.tag.Cmp(lastTag) == 0 {
			bytes = append(bytes, leb128.EncodeUint128(terminalBit)...)
		} else {
			bytes = append(bytes, leb128.EncodeUint128(message.tag.Lsh(1).Or(terminalBit))...)
			lastTag = message.tag
		}

		if i != len(messages)-1 {
			bytes = append(bytes, leb128.EncodeUint128(uint128.From64(uint64(len(message.body))))...)
		}

		bytes = append(bytes, message.body...)
	}

	return bytes
}

// Decode unpacks a byte string produced by Encode. The input is consumed to
// exhaustion; any leftover or missing bytes are an error, so no partial
// result is ever returned.
func Decode(data []byte) ([]Message, error) {
	if len(data) == 0 {
		return nil, errors.WithStack(ErrEmptyInput)
	}

	messages := make([]Message, 0)
	index := 0
	lastTag := uint128.Zero

	for index < len(data) {
		value, size, err := leb128.DecodeUint128(data[index:])
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidVarInt, "tag at index %d", index)
		}
		index += size

		terminal := !value.And64(1).IsZero()
		tag := value.Rsh(1)
		switch {
		case tag.IsZero() && lastTag.IsZero():
			return nil, errors.WithStack(ErrNoPreviousTag)
		case tag.IsZero():
			tag = lastTag
		case tag.Cmp(lastTag) == 0:
			// a repeated tag must be encoded with the repeat marker
			return nil, errors.WithStack(ErrInvalidTag)
		default:
			lastTag = tag
		}

		if terminal {
			messages = append(messages, Message{tag: tag, body: append([]byte{}, data[index:]...)})
			return messages, nil
		}

		if index >= len(data) {
			return nil, errors.WithStack(ErrTruncated)
		}
		n, size, err := leb128.DecodeUint128(data[index:])
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidVarInt, "length at index %d", index)
		}
		index += size

		if n.Cmp64(math.MaxUint32) > 0 {
			return nil, errors.WithStack(ErrInvalidByteCount)
		}
		length := int(n.Uint64())
		if index+length > len(data) {
			return nil, errors.WithStack(ErrTruncated)
		}
		if index+length == len(data) {
			return nil, errors.WithStack(ErrMissingTerminal)
		}

		messages = append(messages, Message{tag: tag, body: append([]byte{}, data[index:index+length]...)})
		index += length
	}

	// index never lands exactly on len(data) without a terminal message
	return nil, errors.WithStack(ErrMissingTerminal)
}

// EncodeWithoutLength encodes the message as its LEB128 tag followed by the
// raw body, for carriers that frame a single message externally.
func (m Message) EncodeWithoutLength() []byte {
	bytes := make([]byte, 0, len(m.body)+1)
	bytes = append(bytes, leb128.EncodeUint128(m.tag)...)
	bytes = append(bytes, m.body...)
	return bytes
}

// DecodeWithoutLength decodes a single message produced by EncodeWithoutLength.
func DecodeWithoutLength(data []byte) (Message, error) {
	tag, size, err := leb128.DecodeUint128(data)
	if err != nil {
		return Message{}, errors.Wrap(ErrInvalidVarInt, "tag")
	}
	return New(tag, append([]byte{}, data[size:]...))
}
