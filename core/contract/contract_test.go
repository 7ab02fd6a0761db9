package contract

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"smartwallet/core/types"
)

func TestReaderDecodesInOrder(t *testing.T) {
	addr := common.HexToAddress("0xbeef")
	r := NewReader([]types.Word{
		types.AddressWord(addr),
		types.SelectorFromName("add").Word(),
		types.NewWord(2), types.NewWord(10), types.NewWord(11),
		types.NewWord(99),
	})
	require.Equal(t, addr, r.Address())
	require.Equal(t, types.SelectorFromName("add"), r.Selector())
	arr := r.Array()
	require.Len(t, arr, 2)
	require.Equal(t, uint64(11), arr[1].Uint64())
	require.Equal(t, []types.Word{types.NewWord(99)}, r.Rest())
	require.NoError(t, r.Err())
}

func TestReaderErrorsAreSticky(t *testing.T) {
	r := NewReader([]types.Word{types.NewWord(5), types.NewWord(1)})
	require.Nil(t, r.Array())
	require.ErrorIs(t, r.Err(), ErrCalldataTooShort)

	// later reads keep the first error
	r.Word()
	require.ErrorIs(t, r.Err(), ErrCalldataTooShort)

	var wide types.Word
	wide.SetAllOne()
	r = NewReader([]types.Word{wide})
	r.Address()
	require.ErrorIs(t, r.Err(), ErrInvalidCalldata)
}

func TestRouterDispatch(t *testing.T) {
	router := NewRouter()
	router.Handle("echo", func(_ Context, calldata *Reader) ([]types.Word, error) {
		return calldata.Rest(), nil
	})
	out, err := router.Dispatch(nil, types.SelectorFromName("echo"), []types.Word{types.NewWord(3)})
	require.NoError(t, err)
	require.Equal(t, []types.Word{types.NewWord(3)}, out)
	require.Equal(t, "echo", router.Name(types.SelectorFromName("echo")))

	_, err = router.Dispatch(nil, types.SelectorFromName("missing"), nil)
	require.ErrorIs(t, err, ErrEntryPointNotFound)

	require.Panics(t, func() { router.Handle("echo", nil) })
}
