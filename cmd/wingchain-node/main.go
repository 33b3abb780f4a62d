// Command wingchain-node is the node's CLI entry point: `init --home
// <path>` scaffolds a fresh home directory, and `run --home <path>`
// opens (and, on a fresh home, runs genesis for) the chain's database.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"wingchain.dev/node/chain"
	"wingchain.dev/node/crypto"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: wingchain-node <init|run> --home <path>")
		return 2
	}
	switch args[0] {
	case "init":
		return runInit(args[1:], stdout, stderr)
	case "run":
		return runRun(args[1:], stdout, stderr)
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		return 2
	}
}

func runInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	home := fs.String("home", "", "home directory to initialize")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *home == "" {
		fmt.Fprintln(stderr, "init: --home is required")
		return 2
	}
	if err := initHome(*home); err != nil {
		fmt.Fprintf(stderr, "init: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "initialized home directory %s\n", *home)
	return 0
}

func runRun(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	home := fs.String("home", "", "home directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *home == "" {
		fmt.Fprintln(stderr, "run: --home is required")
		return 2
	}
	c, err := chain.Open(*home)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}
	defer c.Close()
	best, err := c.BestNumber()
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "chain opened at %s, best_number=%d\n", *home, best)
	return 0
}

// initHome writes home/config/spec.toml with a freshly generated
// 14-char chain id, an RFC 3339 genesis timestamp, and one genesis tx
// (system.init).
func initHome(home string) error {
	configDir := filepath.Join(home, chain.ConfigDirName)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(home, chain.DataDirName), 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	chainID, err := crypto.RandomChainID()
	if err != nil {
		return fmt.Errorf("generate chain id: %w", err)
	}
	params, err := json.Marshal(map[string]string{
		"chain_id": chainID,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode system.init params: %w", err)
	}

	spec := &chain.Spec{
		Basic: chain.BasicSpec{
			Hash:    string(crypto.HashBlake2b256),
			DSA:     string(crypto.DSAEd25519),
			Address: string(crypto.AddressBlake2b160),
		},
		Genesis: chain.GenesisSpec{
			Txs: []chain.GenesisTx{
				{Module: "system", Method: "init", Params: string(params)},
			},
		},
	}
	raw, err := chain.Encode(spec)
	if err != nil {
		return fmt.Errorf("encode spec.toml: %w", err)
	}
	if err := os.WriteFile(chain.SpecPath(home), raw, 0o640); err != nil {
		return fmt.Errorf("write spec.toml: %w", err)
	}
	return nil
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	home := fs.String("home", "", "home directory (for its keystore file)")
	passphrase := fs.String("passphrase", "", "passphrase to wrap the new secret key under")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *home == "" || *passphrase == "" {
		fmt.Fprintln(stderr, "keygen: --home and --passphrase are required")
		return 2
	}
	ks, address, err := keygen(*passphrase)
	if err != nil {
		fmt.Fprintf(stderr, "keygen: %v\n", err)
		return 1
	}
	raw, err := json.Marshal(ks)
	if err != nil {
		fmt.Fprintf(stderr, "keygen: %v\n", err)
		return 1
	}
	path := filepath.Join(*home, chain.ConfigDirName, "keystore.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		fmt.Fprintf(stderr, "keygen: write keystore: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s, address=%s\n", path, hex.EncodeToString(address))
	return 0
}

// keygen generates a fresh witness key pair under ed25519 (the only DSA
// this node wires in) and wraps the secret key under passphrase,
// returning the keystore record and the derived blake2b_160 address.
func keygen(passphrase string) (*crypto.KeystoreV1, []byte, error) {
	algos, err := crypto.ResolveAlgorithms(string(crypto.HashBlake2b256), string(crypto.AddressBlake2b160), string(crypto.DSAEd25519))
	if err != nil {
		return nil, nil, err
	}
	public, secret, err := algos.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	address, err := algos.DeriveAddress(public)
	if err != nil {
		return nil, nil, err
	}
	ks, err := crypto.WrapSecretKey(crypto.DSAEd25519, public, secret, passphrase)
	if err != nil {
		return nil, nil, err
	}
	return ks, address, nil
}
