package types

import (
	"errors"
	"fmt"
)

// ErrMalformedCallArray is returned when a flat call array cannot be decoded.
var ErrMalformedCallArray = errors.New("types: malformed call array")

// Call is a single sub-call of a batch.
type Call struct {
	To       Address
	Selector Selector
	Calldata []Word
}

// CallEntry is the fixed-size header of a call inside a flat call array. The
// data window is expressed in calldata words; smart multicall batches reuse
// DataLen as an argument count instead (see Window).
type CallEntry struct {
	To         Address
	Selector   Selector
	DataOffset uint64
	DataLen    uint64
}

// CallArray is the decoded form of the execute calldata:
// [n, (to, selector, offset, len)*n, m, data*m].
type CallArray struct {
	Entries  []CallEntry
	Calldata []Word
}

// Window returns words [DataOffset, DataOffset+width) of the shared calldata.
func (a *CallArray) Window(i int, width uint64) ([]Word, error) {
	if i < 0 || i >= len(a.Entries) {
		return nil, fmt.Errorf("%w: entry %d out of range", ErrMalformedCallArray, i)
	}
	e := a.Entries[i]
	total := uint64(len(a.Calldata))
	if e.DataOffset > total || width > total-e.DataOffset {
		return nil, fmt.Errorf("%w: entry %d data window [%d, +%d) exceeds %d words", ErrMalformedCallArray, i, e.DataOffset, width, total)
	}
	return a.Calldata[e.DataOffset : e.DataOffset+width], nil
}

// Calls expands every entry into a Call with its own calldata slice.
func (a *CallArray) Calls() ([]Call, error) {
	calls := make([]Call, len(a.Entries))
	for i, e := range a.Entries {
		data, err := a.Window(i, e.DataLen)
		if err != nil {
			return nil, err
		}
		calls[i] = Call{To: e.To, Selector: e.Selector, Calldata: append([]Word(nil), data...)}
	}
	return calls, nil
}

// Encode flattens the array into execute calldata.
func (a *CallArray) Encode() []Word {
	out := make([]Word, 0, 2+4*len(a.Entries)+len(a.Calldata))
	out = append(out, NewWord(uint64(len(a.Entries))))
	for _, e := range a.Entries {
		out = append(out, AddressWord(e.To), e.Selector.Word(), NewWord(e.DataOffset), NewWord(e.DataLen))
	}
	out = append(out, NewWord(uint64(len(a.Calldata))))
	return append(out, a.Calldata...)
}

// NewCallArray packs calls into a call array with contiguous data windows.
func NewCallArray(calls []Call) *CallArray {
	arr := &CallArray{Entries: make([]CallEntry, len(calls))}
	for i, c := range calls {
		arr.Entries[i] = CallEntry{
			To:         c.To,
			Selector:   c.Selector,
			DataOffset: uint64(len(arr.Calldata)),
			DataLen:    uint64(len(c.Calldata)),
		}
		arr.Calldata = append(arr.Calldata, c.Calldata...)
	}
	return arr
}

// EncodeCalls is shorthand for NewCallArray(calls).Encode().
func EncodeCalls(calls []Call) []Word {
	return NewCallArray(calls).Encode()
}

// DecodeCallArray parses execute calldata. Trailing words after the data
// section are rejected.
func DecodeCallArray(words []Word) (*CallArray, error) {
	next := func(what string) (Word, error) {
		if len(words) == 0 {
			return Word{}, fmt.Errorf("%w: missing %s", ErrMalformedCallArray, what)
		}
		w := words[0]
		words = words[1:]
		return w, nil
	}
	count, err := next("call count")
	if err != nil {
		return nil, err
	}
	if !count.IsUint64() || count.Uint64() > uint64(len(words))/4 {
		return nil, fmt.Errorf("%w: call count %s", ErrMalformedCallArray, count.Dec())
	}
	arr := &CallArray{Entries: make([]CallEntry, count.Uint64())}
	for i := range arr.Entries {
		to, _ := next("to")
		sel, _ := next("selector")
		off, _ := next("offset")
		n, _ := next("length")
		addr, ok := AddressFromWord(to)
		if !ok {
			return nil, fmt.Errorf("%w: call %d target out of range", ErrMalformedCallArray, i)
		}
		selector, ok := SelectorFromWord(sel)
		if !ok {
			return nil, fmt.Errorf("%w: call %d selector out of range", ErrMalformedCallArray, i)
		}
		if !off.IsUint64() || !n.IsUint64() {
			return nil, fmt.Errorf("%w: call %d data window out of range", ErrMalformedCallArray, i)
		}
		arr.Entries[i] = CallEntry{To: addr, Selector: selector, DataOffset: off.Uint64(), DataLen: n.Uint64()}
	}
	dataLen, err := next("calldata length")
	if err != nil {
		return nil, err
	}
	if !dataLen.IsUint64() || dataLen.Uint64() != uint64(len(words)) {
		return nil, fmt.Errorf("%w: calldata length %s, have %d words", ErrMalformedCallArray, dataLen.Dec(), len(words))
	}
	arr.Calldata = append([]Word(nil), words...)
	return arr, nil
}

// DecodeCalls parses execute calldata and expands it into calls.
func DecodeCalls(words []Word) ([]Call, error) {
	arr, err := DecodeCallArray(words)
	if err != nil {
		return nil, err
	}
	return arr.Calls()
}
