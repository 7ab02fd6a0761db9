// Command walletctl is the operator tool for smart wallet accounts: it
// generates signer keystores, compiles session-key policies and drives a
// local ledger through an end-to-end wallet scenario.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

const (
	keygenCommand = "keygen"
	policyCommand = "policy"
	demoCommand   = "demo"

	defaultConfig = "./walletctl.toml"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case keygenCommand:
		err = runKeygen(os.Args[2:])
	case policyCommand:
		err = runPolicy(os.Args[2:])
	case demoCommand:
		err = runDemo(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(1)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: walletctl <command> [flags]

Commands:
  %-8s generate a signer key and write it to an encrypted keystore
  %-8s compute a session policy root and per-call proofs from YAML
  %-8s deploy a proxied wallet on a local ledger and run sample transactions

Run 'walletctl <command> -h' for command flags.
`, keygenCommand, policyCommand, demoCommand)
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}
