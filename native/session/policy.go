package session

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"smartwallet/core/types"
	"smartwallet/crypto"
	"smartwallet/crypto/merkle"
	"smartwallet/native/account"
)

var (
	ErrEmptyPolicy     = errors.New("session: policy has no calls")
	ErrCallNotInPolicy = errors.New("session: call not in policy")
)

// AllowedCall is one leaf of a session policy.
type AllowedCall struct {
	Contract types.Address
	Selector types.Selector
}

// PolicyLeaf hashes an allowed (contract, selector) pair into a merkle leaf.
func PolicyLeaf(contract types.Address, selector types.Selector) types.Word {
	return crypto.HashElements(PolicyTypeHash, types.AddressWord(contract), selector.Word())
}

// Policy is a merkle tree over allowed calls with a proof per leaf.
type Policy struct {
	Root   types.Word
	Calls  []AllowedCall
	proofs [][]types.Word
}

// BuildPolicy commits to calls in the given order.
func BuildPolicy(calls []AllowedCall) (*Policy, error) {
	if len(calls) == 0 {
		return nil, ErrEmptyPolicy
	}
	leaves := make([]types.Word, len(calls))
	for i, c := range calls {
		leaves[i] = PolicyLeaf(c.Contract, c.Selector)
	}
	p := &Policy{Root: merkle.Root(leaves), Calls: append([]AllowedCall(nil), calls...)}
	p.proofs = make([][]types.Word, len(leaves))
	for i := range leaves {
		proof, err := merkle.Proof(leaves, i)
		if err != nil {
			return nil, err
		}
		p.proofs[i] = proof
	}
	return p, nil
}

// Proof returns the proof for the first leaf matching call.
func (p *Policy) Proof(call AllowedCall) ([]types.Word, error) {
	for i, c := range p.Calls {
		if c == call {
			return p.proofs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrCallNotInPolicy, call.Contract.Hex(), call.Selector)
}

// ProofLen is the length shared by every proof of the policy.
func (p *Policy) ProofLen() int {
	return len(p.proofs[0])
}

// Session is the endorsement a signer gives a session key.
type Session struct {
	Key     types.Address
	Expires uint64
	Root    types.Word
}

// Hash is the digest the account signer signs to endorse the session. It is
// bound to the chain and the account.
func (s Session) Hash(chainID types.Word, acct types.Address) common.Hash {
	domain := crypto.HashElements(DomainTypeHash, chainID)
	message := crypto.HashElements(SessionTypeHash, types.AddressWord(s.Key), types.NewWord(s.Expires), s.Root)
	return crypto.HashFromWord(crypto.HashElements(messagePrefix, domain, types.AddressWord(acct), message))
}

// Sign endorses the session for acct with the account signer's key.
func (s Session) Sign(signer *crypto.PrivateKey, chainID types.Word, acct types.Address) (crypto.Signature, error) {
	return signer.Sign(s.Hash(chainID, acct))
}

// BootstrapCall builds the usePlugin call that opens a session-authorized
// batch. proofs holds one proof per following call, in order.
func BootstrapCall(acct types.Address, plugin types.ClassHash, s Session, token crypto.Signature, proofs [][]types.Word) types.Call {
	proofLen := 0
	if len(proofs) > 0 {
		proofLen = len(proofs[0])
	}
	data := []types.Word{
		types.ClassHashWord(plugin),
		types.AddressWord(s.Key),
		types.NewWord(s.Expires),
		s.Root,
		types.NewWord(uint64(proofLen)),
	}
	for _, proof := range proofs {
		data = append(data, proof...)
	}
	data = append(data, token.Words()...)
	return types.Call{To: acct, Selector: account.UsePluginSelector, Calldata: data}
}

// Batch prepends the bootstrap call to calls, looking up each call's proof
// in the policy.
func (p *Policy) Batch(acct types.Address, plugin types.ClassHash, s Session, token crypto.Signature, calls []types.Call) ([]types.Call, error) {
	proofs := make([][]types.Word, len(calls))
	for i, c := range calls {
		proof, err := p.Proof(AllowedCall{Contract: c.To, Selector: c.Selector})
		if err != nil {
			return nil, err
		}
		proofs[i] = proof
	}
	out := make([]types.Call, 0, len(calls)+1)
	out = append(out, BootstrapCall(acct, plugin, s, token, proofs))
	return append(out, calls...), nil
}
