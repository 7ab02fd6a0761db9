// Package dapp is a small target contract: a number per caller plus a few
// arithmetic helpers for chaining calls in one batch.
package dapp

import (
	"errors"

	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/crypto"
)

// Name is the declared name of the dapp class.
const Name = "TestDapp"

var (
	ErrThrown       = errors.New("dapp: test error")
	ErrCheckLe      = errors.New("dapp: check le failed")
	ErrNumberTooBig = errors.New("dapp: number overflow")
)

var varNumber = crypto.TypeHash("dapp_number")

// Dapp is the class.
type Dapp struct {
	router *contract.Router
}

// New returns the dapp class.
func New() *Dapp {
	d := &Dapp{router: contract.NewRouter()}
	d.router.Handle("set_number", d.setNumberTimes(1))
	d.router.Handle("set_number_double", d.setNumberTimes(2))
	d.router.Handle("set_number_times3", d.setNumberTimes(3))
	d.router.Handle("increase_number", d.increaseNumber)
	d.router.Handle("get_number", d.getNumber)
	d.router.Handle("throw_error", d.throwError)
	d.router.Handle("check_le", d.checkLe)
	d.router.Handle("add", d.add)
	return d
}

func (d *Dapp) Name() string { return Name }

// Failures lists the sentinel errors of the dapp entry points.
func (d *Dapp) Failures() []error {
	return []error{ErrThrown, ErrCheckLe, ErrNumberTooBig}
}

func (d *Dapp) Invoke(ctx contract.Context, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	return d.router.Dispatch(ctx, selector, calldata)
}

// NumberKey is the storage key of user's number.
func NumberKey(user types.Address) types.Word {
	return crypto.HashElements(varNumber, types.AddressWord(user))
}

func (d *Dapp) setNumberTimes(factor uint64) contract.Handler {
	return func(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
		n := in.Word()
		if err := in.Err(); err != nil {
			return nil, err
		}
		var out types.Word
		f := types.NewWord(factor)
		if _, overflow := out.MulOverflow(&n, &f); overflow {
			return nil, ErrNumberTooBig
		}
		return nil, ctx.StorageWrite(NumberKey(ctx.Caller()), out)
	}
}

func (d *Dapp) increaseNumber(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	n := in.Word()
	if err := in.Err(); err != nil {
		return nil, err
	}
	key := NumberKey(ctx.Caller())
	cur, err := ctx.StorageRead(key)
	if err != nil {
		return nil, err
	}
	if _, overflow := cur.AddOverflow(&cur, &n); overflow {
		return nil, ErrNumberTooBig
	}
	if err := ctx.StorageWrite(key, cur); err != nil {
		return nil, err
	}
	return []types.Word{cur}, nil
}

func (d *Dapp) getNumber(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	user := in.Address()
	if err := in.Err(); err != nil {
		return nil, err
	}
	n, err := ctx.StorageRead(NumberKey(user))
	return []types.Word{n}, err
}

func (d *Dapp) throwError(contract.Context, *contract.Reader) ([]types.Word, error) {
	return nil, ErrThrown
}

func (d *Dapp) checkLe(_ contract.Context, in *contract.Reader) ([]types.Word, error) {
	a, b := in.Word(), in.Word()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if a.Gt(&b) {
		return nil, ErrCheckLe
	}
	return nil, nil
}

func (d *Dapp) add(_ contract.Context, in *contract.Reader) ([]types.Word, error) {
	a, b := in.Word(), in.Word()
	if err := in.Err(); err != nil {
		return nil, err
	}
	var sum types.Word
	if _, overflow := sum.AddOverflow(&a, &b); overflow {
		return nil, ErrNumberTooBig
	}
	return []types.Word{sum}, nil
}
