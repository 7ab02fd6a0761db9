package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"smartwallet/core/types"
	"smartwallet/crypto"
	"smartwallet/native/session"
)

// policyFile is the YAML document accepted by `walletctl policy`:
//
//	calls:
//	  - contract: sw1...
//	    selector: set_number
type policyFile struct {
	Calls []policyCall `yaml:"calls"`
}

type policyCall struct {
	Contract string `yaml:"contract"`
	Selector string `yaml:"selector"`
}

type policyOutput struct {
	Root     string        `json:"root"`
	ProofLen int           `json:"proofLen"`
	Calls    []policyProof `json:"calls"`
}

type policyProof struct {
	Contract string   `json:"contract"`
	Name     string   `json:"name"`
	Selector string   `json:"selector"`
	Leaf     string   `json:"leaf"`
	Proof    []string `json:"proof"`
}

func runPolicy(args []string) error {
	fs := newFlagSet(policyCommand)
	file := fs.String("file", "", "YAML file listing the allowed calls")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	return writePolicy(os.Stdout, raw)
}

func writePolicy(w io.Writer, raw []byte) error {
	calls, names, err := parsePolicy(raw)
	if err != nil {
		return err
	}
	policy, err := session.BuildPolicy(calls)
	if err != nil {
		return err
	}
	out := policyOutput{Root: wordHex(policy.Root), ProofLen: policy.ProofLen()}
	for i, c := range policy.Calls {
		proof, err := policy.Proof(c)
		if err != nil {
			return err
		}
		entry := policyProof{
			Contract: c.Contract.Hex(),
			Name:     names[i],
			Selector: c.Selector.String(),
			Leaf:     wordHex(session.PolicyLeaf(c.Contract, c.Selector)),
			Proof:    make([]string, len(proof)),
		}
		for i, w := range proof {
			entry.Proof[i] = wordHex(w)
		}
		out.Calls = append(out.Calls, entry)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parsePolicy(raw []byte) ([]session.AllowedCall, []string, error) {
	var doc policyFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse policy: %w", err)
	}
	calls := make([]session.AllowedCall, 0, len(doc.Calls))
	names := make([]string, 0, len(doc.Calls))
	for i, c := range doc.Calls {
		addr, err := parseAddress(c.Contract)
		if err != nil {
			return nil, nil, fmt.Errorf("calls[%d]: %w", i, err)
		}
		name := strings.TrimSpace(c.Selector)
		if name == "" {
			return nil, nil, fmt.Errorf("calls[%d]: selector required", i)
		}
		calls = append(calls, session.AllowedCall{Contract: addr, Selector: types.SelectorFromName(name)})
		names = append(names, name)
	}
	return calls, names, nil
}

// parseAddress accepts 0x-prefixed hex or a bech32 account address.
func parseAddress(raw string) (types.Address, error) {
	raw = strings.TrimSpace(raw)
	if common.IsHexAddress(raw) {
		return common.HexToAddress(raw), nil
	}
	prefix, addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return types.Address{}, fmt.Errorf("contract %q: %w", raw, err)
	}
	if prefix != crypto.AccountPrefix {
		return types.Address{}, fmt.Errorf("contract %q: unexpected prefix %q", raw, prefix)
	}
	return addr, nil
}

func wordHex(w types.Word) string {
	return crypto.HashFromWord(w).Hex()
}
