package types

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func words(vals ...uint64) []Word {
	out := make([]Word, len(vals))
	for i, v := range vals {
		out[i] = NewWord(v)
	}
	return out
}

func TestCallArrayLayout(t *testing.T) {
	dapp := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	calls := []Call{
		{To: dapp, Selector: SelectorFromName("set_number"), Calldata: words(47)},
		{To: dapp, Selector: SelectorFromName("increase_number"), Calldata: words(1, 2)},
	}
	flat := EncodeCalls(calls)
	// count, two headers, data length, three data words
	require.Len(t, flat, 1+8+1+3)
	require.Equal(t, uint64(2), flat[0].Uint64())
	require.Equal(t, uint64(0), flat[3].Uint64())
	require.Equal(t, uint64(1), flat[4].Uint64())
	require.Equal(t, uint64(1), flat[7].Uint64())
	require.Equal(t, uint64(2), flat[8].Uint64())
	require.Equal(t, uint64(3), flat[9].Uint64())

	decoded, err := DecodeCalls(flat)
	require.NoError(t, err)
	require.Equal(t, calls, decoded)
}

func TestDecodeCallArrayRejectsMalformedInput(t *testing.T) {
	dapp := common.HexToAddress("0xaa")
	valid := EncodeCalls([]Call{{To: dapp, Selector: 7, Calldata: words(1)}})

	cases := map[string][]Word{
		"empty":            nil,
		"count too large":  words(9, 1, 2),
		"missing data len": valid[:5],
		"length mismatch":  append(append([]Word(nil), valid...), NewWord(5)),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCalls(input)
			require.True(t, errors.Is(err, ErrMalformedCallArray), "got %v", err)
		})
	}

	window := append([]Word(nil), valid...)
	window[4] = NewWord(3) // data length beyond the single data word
	_, err := DecodeCalls(window)
	require.ErrorIs(t, err, ErrMalformedCallArray)
}

func TestSelectorAndAddressWords(t *testing.T) {
	sel := SelectorFromName("getSigner")
	back, ok := SelectorFromWord(sel.Word())
	require.True(t, ok)
	require.Equal(t, sel, back)
	require.NotEqual(t, sel, SelectorFromName("get_signer"))

	addr := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	got, ok := AddressFromWord(AddressWord(addr))
	require.True(t, ok)
	require.Equal(t, addr, got)

	var wide Word
	wide.SetAllOne()
	_, ok = AddressFromWord(wide)
	require.False(t, ok)
}

func TestDigestBindsEveryField(t *testing.T) {
	chain := ChainIDWord("SW_TEST")
	base := NewTransaction(common.HexToAddress("0x01"), []Call{{To: common.HexToAddress("0x02"), Selector: 1}}, 0)
	digest := base.Digest(chain)

	mutations := map[string]func(tx *Transaction){
		"account":  func(tx *Transaction) { tx.Account = common.HexToAddress("0x03") },
		"nonce":    func(tx *Transaction) { tx.Nonce = 1 },
		"fee":      func(tx *Transaction) { tx.MaxFee = NewWord(1) },
		"calldata": func(tx *Transaction) { tx.Calldata = append(tx.Calldata, NewWord(0)) },
		"version":  func(tx *Transaction) { tx.Version = 2 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			tx := *base
			tx.Calldata = append([]Word(nil), base.Calldata...)
			mutate(&tx)
			require.NotEqual(t, digest, tx.Digest(chain))
		})
	}
	require.NotEqual(t, digest, base.Digest(ChainIDWord("SW_MAIN")))
	// signatures are not part of the digest
	signed := *base
	signed.Signature = words(1, 2)
	require.Equal(t, digest, signed.Digest(chain))
}
