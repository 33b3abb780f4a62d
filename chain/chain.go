package chain

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/codec"
	"wingchain.dev/node/crypto"
	"wingchain.dev/node/dispatch"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/modules"
	"wingchain.dev/node/statedb"
	"wingchain.dev/node/storage"
)

// The home directory layout: home/config/spec.toml and home/data/db.
const (
	ConfigDirName = "config"
	DataDirName   = "data"
	SpecFileName  = "spec.toml"
	dbFileName    = "db"
)

// SpecPath returns the on-disk path to a home directory's spec.toml.
func SpecPath(home string) string { return filepath.Join(home, ConfigDirName, SpecFileName) }

// DBPath returns the on-disk path to a home directory's database file.
func DBPath(home string) string { return filepath.Join(home, DataDirName, dbFileName) }

// Chain owns the durable store, the resolved crypto algorithms, the two
// state trees, and the module dispatcher for one permissioned chain
// instance.
type Chain struct {
	db         *storage.DB
	algos      *crypto.Algorithms
	hashFn     func([]byte) [32]byte
	metaSDB    *statedb.StateDB
	payloadSDB *statedb.StateDB
	dispatcher *dispatch.Dispatcher
	spec       *Spec
	specRaw    []byte
}

// Algos returns the chain's resolved algorithm set.
func (c *Chain) Algos() *crypto.Algorithms { return c.algos }

// Dispatcher returns the chain's module dispatcher, for a client
// (JSON-RPC, tx pool) that needs to build or validate transactions
// outside a block commit.
func (c *Chain) Dispatcher() *dispatch.Dispatcher { return c.dispatcher }

// Open constructs a Chain rooted at home. If GLOBAL/best_number is
// absent, it parses home/config/spec.toml and runs genesis. Otherwise
// it loads the persisted spec from GLOBAL/spec and, when
// home/config/spec.toml exists, requires the two to match byte-for-byte
// once leading and trailing whitespace is trimmed: a spec edited after
// genesis cannot be honored, so any divergence fails with InvalidSpec
// rather than guessing which copy wins.
func Open(home string) (*Chain, error) {
	if _, err := os.Stat(home); err != nil {
		return nil, errs.Newf(errs.HomeDirNotInited, "home directory not initialized: %s", home)
	}
	db, err := storage.Open(DBPath(home))
	if err != nil {
		return nil, errs.Wrap(errs.IO, "open database", err)
	}
	c, err := openWithDB(home, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func openWithDB(home string, db *storage.DB) (*Chain, error) {
	_, hasBest, err := db.Get(storage.Global, storage.KeyBestNumber)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "read best_number", err)
	}

	if !hasBest {
		raw, err := os.ReadFile(SpecPath(home))
		if err != nil {
			return nil, errs.Wrap(errs.HomeDirNotInited, "read spec.toml (run init first)", err)
		}
		spec, err := ParseSpec(raw)
		if err != nil {
			return nil, err
		}
		c, err := newChain(db, spec, raw)
		if err != nil {
			return nil, err
		}
		if err := c.initGenesis(); err != nil {
			return nil, err
		}
		return c, nil
	}

	persisted, ok, err := db.Get(storage.Global, storage.KeySpec)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "read persisted spec", err)
	}
	if !ok {
		return nil, errs.New(errs.DBIntegrity, "GLOBAL/spec missing but best_number present")
	}
	spec, err := ParseSpec(persisted)
	if err != nil {
		return nil, errs.Wrap(errs.DBIntegrity, "persisted spec does not parse", err)
	}
	if raw, err := os.ReadFile(SpecPath(home)); err == nil {
		if !bytes.Equal(bytes.TrimSpace(raw), bytes.TrimSpace(persisted)) {
			return nil, errs.New(errs.InvalidSpec, "home/config/spec.toml diverges from the persisted genesis spec")
		}
	}
	return newChain(db, spec, persisted)
}

func newChain(db *storage.DB, spec *Spec, specRaw []byte) (*Chain, error) {
	algos, err := crypto.ResolveAlgorithms(spec.Basic.Hash, spec.Basic.Address, spec.Basic.DSA)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidSpec, "resolve algorithms", err)
	}
	hashFn := func(b []byte) [32]byte {
		digest, derr := algos.Digest(b)
		if derr != nil {
			// Unreachable once ResolveAlgorithms has validated the name:
			// Digest only errors on an unknown algorithm.
			panic(fmt.Sprintf("chain: digest: %v", derr))
		}
		var out [32]byte
		copy(out[:], digest)
		return out
	}
	d := dispatch.New(algos, hashFn)
	modules.RegisterAll(d, algos, hashFn)

	return &Chain{
		db:         db,
		algos:      algos,
		hashFn:     hashFn,
		metaSDB:    statedb.New(db, storage.MetaState, hashFn),
		payloadSDB: statedb.New(db, storage.PayloadState, hashFn),
		dispatcher: d,
		spec:       spec,
		specRaw:    append([]byte(nil), specRaw...),
	}, nil
}

// GetHeader reads and decodes the header stored at blockHash.
func (c *Chain) GetHeader(blockHash chaintypes.Hash) (*chaintypes.Header, bool, error) {
	raw, ok, err := c.db.Get(storage.Header, blockHash.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	h, err := chaintypes.DecodeHeader(raw)
	if err != nil {
		return nil, false, errs.Wrap(errs.DBIntegrity, "decode header", err)
	}
	return h, true, nil
}

// GetBlockHash reads the canonical block hash at number.
func (c *Chain) GetBlockHash(number uint64) (chaintypes.Hash, bool, error) {
	raw, ok, err := c.db.Get(storage.BlockHash, chaintypes.EncodeBlockNumber(number))
	if err != nil || !ok {
		return chaintypes.Hash{}, ok, err
	}
	var h chaintypes.Hash
	copy(h[:], raw)
	return h, true, nil
}

// GetBody reads the ordered meta/payload transaction hashes recorded at
// blockHash.
func (c *Chain) GetBody(blockHash chaintypes.Hash) (*chaintypes.Body, bool, error) {
	metaRaw, ok, err := c.db.Get(storage.MetaTxs, blockHash.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	payloadRaw, ok, err := c.db.Get(storage.PayloadTxs, blockHash.Bytes())
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, errs.New(errs.DBIntegrity, "META_TXS present but PAYLOAD_TXS missing")
	}
	metaTxs, err := chaintypes.DecodeHashes(metaRaw)
	if err != nil {
		return nil, false, errs.Wrap(errs.DBIntegrity, "decode meta tx hashes", err)
	}
	payloadTxs, err := chaintypes.DecodeHashes(payloadRaw)
	if err != nil {
		return nil, false, errs.Wrap(errs.DBIntegrity, "decode payload tx hashes", err)
	}
	return &chaintypes.Body{MetaTxs: metaTxs, PayloadTxs: payloadTxs}, true, nil
}

// GetTransaction reads and decodes a transaction by hash.
func (c *Chain) GetTransaction(hash chaintypes.Hash) (*chaintypes.Transaction, bool, error) {
	raw, ok, err := c.db.Get(storage.Transaction, hash.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	tx, err := chaintypes.DecodeTx(raw)
	if err != nil {
		return nil, false, errs.Wrap(errs.DBIntegrity, "decode transaction", err)
	}
	return tx, true, nil
}

// GetExecuted reads and decodes the Executed record for blockHash.
func (c *Chain) GetExecuted(blockHash chaintypes.Hash) (*chaintypes.Executed, bool, error) {
	raw, ok, err := c.db.Get(storage.Executed, blockHash.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	e, err := chaintypes.DecodeExecuted(raw)
	if err != nil {
		return nil, false, errs.Wrap(errs.DBIntegrity, "decode executed", err)
	}
	return e, true, nil
}

// BestNumber returns the chain's current best block number.
func (c *Chain) BestNumber() (uint64, error) {
	raw, ok, err := c.db.Get(storage.Global, storage.KeyBestNumber)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errs.New(errs.DBIntegrity, "best_number missing")
	}
	c2 := codec.NewCursor(raw)
	n, err := c2.ReadU64LE()
	if err != nil {
		return 0, errs.Wrap(errs.DBIntegrity, "decode best_number", err)
	}
	return n, nil
}

// Close releases the chain's database handle.
func (c *Chain) Close() error { return c.db.Close() }
