package contract

import (
	"fmt"

	"smartwallet/core/types"
)

// Reader decodes calldata words in order. The first failure is sticky: later
// reads return zero values and Err reports the original problem.
type Reader struct {
	words []types.Word
	pos   int
	err   error
}

// NewReader returns a reader over calldata.
func NewReader(calldata []types.Word) *Reader {
	return &Reader{words: calldata}
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Word returns the next word.
func (r *Reader) Word() types.Word {
	if r.err != nil {
		return types.Word{}
	}
	if r.pos >= len(r.words) {
		r.fail(fmt.Errorf("%w: want word %d, have %d", ErrCalldataTooShort, r.pos, len(r.words)))
		return types.Word{}
	}
	w := r.words[r.pos]
	r.pos++
	return w
}

// Uint64 returns the next word as an integer.
func (r *Reader) Uint64() uint64 {
	w := r.Word()
	if !w.IsUint64() {
		r.fail(fmt.Errorf("%w: word %d exceeds 64 bits", ErrInvalidCalldata, r.pos-1))
		return 0
	}
	return w.Uint64()
}

// Address returns the next word as an address.
func (r *Reader) Address() types.Address {
	w := r.Word()
	addr, ok := types.AddressFromWord(w)
	if !ok {
		r.fail(fmt.Errorf("%w: word %d is not an address", ErrInvalidCalldata, r.pos-1))
	}
	return addr
}

// Selector returns the next word as a selector.
func (r *Reader) Selector() types.Selector {
	w := r.Word()
	sel, ok := types.SelectorFromWord(w)
	if !ok {
		r.fail(fmt.Errorf("%w: word %d is not a selector", ErrInvalidCalldata, r.pos-1))
	}
	return sel
}

// Take returns the next n words.
func (r *Reader) Take(n uint64) []types.Word {
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.words)-r.pos) {
		r.fail(fmt.Errorf("%w: want %d words at %d, have %d", ErrCalldataTooShort, n, r.pos, len(r.words)))
		return nil
	}
	out := r.words[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out
}

// Array returns a length-prefixed run of words.
func (r *Reader) Array() []types.Word {
	return r.Take(r.Uint64())
}

// Rest returns every unread word.
func (r *Reader) Rest() []types.Word {
	if r.err != nil {
		return nil
	}
	out := r.words[r.pos:]
	r.pos = len(r.words)
	return out
}

// Err reports the first decoding failure.
func (r *Reader) Err() error {
	return r.err
}
