package account

import "smartwallet/core/types"

// Arg is one smart multicall argument: a literal word or a reference into the
// flat result words of earlier calls in the batch.
type Arg struct {
	Ref   bool
	Value types.Word
}

// Value returns a literal argument.
func Value(w types.Word) Arg { return Arg{Value: w} }

// Ref returns an argument resolved from result word i.
func Ref(i uint64) Arg { return Arg{Ref: true, Value: types.NewWord(i)} }

// SmartCall is a call whose arguments may reference earlier results.
type SmartCall struct {
	To       types.Address
	Selector types.Selector
	Args     []Arg
}

// EncodeSmartMulticall builds execute calldata for a smart multicall batch,
// prepending the use_smart_multicall marker entry.
func EncodeSmartMulticall(calls []SmartCall) []types.Word {
	arr := &types.CallArray{
		Entries: make([]types.CallEntry, 0, len(calls)+1),
	}
	arr.Entries = append(arr.Entries, types.CallEntry{Selector: UseSmartMulticallSelector})
	for _, c := range calls {
		arr.Entries = append(arr.Entries, types.CallEntry{
			To:         c.To,
			Selector:   c.Selector,
			DataOffset: uint64(len(arr.Calldata)),
			DataLen:    uint64(len(c.Args)),
		})
		for _, a := range c.Args {
			tag := argValue
			if a.Ref {
				tag = argReference
			}
			arr.Calldata = append(arr.Calldata, types.NewWord(tag), a.Value)
		}
	}
	return arr.Encode()
}
