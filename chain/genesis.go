package chain

import (
	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/codec"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/execution"
	"wingchain.dev/node/modules"
	"wingchain.dev/node/storage"
)

// canonicalGenesisParams converts one spec.toml genesis tx's JSON
// params string into the module's canonical binary encoding: the
// spec.toml file carries JSON for operator readability, but every
// Call.params the executor ever sees is the module's declared binary
// schema.
func canonicalGenesisParams(tx GenesisTx) ([]byte, error) {
	raw := []byte(tx.Params)
	switch {
	case tx.Module == "system" && tx.Method == "init":
		p, err := modules.DecodeSystemInitJSON(raw)
		if err != nil {
			return nil, err
		}
		return modules.EncodeSystemInitParams(p), nil
	case tx.Module == "balance" && tx.Method == "init":
		p, err := modules.DecodeBalanceInitJSON(raw)
		if err != nil {
			return nil, err
		}
		return modules.EncodeBalanceInitParams(p)
	case tx.Module == "solo" && tx.Method == "init":
		p, err := modules.DecodeSoloInitJSON(raw)
		if err != nil {
			return nil, err
		}
		return modules.EncodeSoloInitParams(p), nil
	default:
		return nil, errs.Newf(errs.InvalidSpec, "spec.toml: unsupported genesis call %s.%s", tx.Module, tx.Method)
	}
}

// genesisTimestamp extracts the genesis block timestamp from the first
// genesis tx, which must be system.init.
func genesisTimestamp(tx GenesisTx) (uint64, error) {
	if tx.Module != "system" || tx.Method != "init" {
		return 0, errs.New(errs.InvalidSpec, "spec.toml: genesis.txs[0] must be system.init")
	}
	p, err := modules.DecodeSystemInitJSON([]byte(tx.Params))
	if err != nil {
		return 0, err
	}
	return p.Timestamp, nil
}

// initGenesis runs the block-0 commit protocol. It is called exactly
// once per fresh database, from Open.
func (c *Chain) initGenesis() error {
	timestamp, err := genesisTimestamp(c.spec.Genesis.Txs[0])
	if err != nil {
		return err
	}

	var metaTxs, payloadTxs []*chaintypes.Transaction
	for _, gtx := range c.spec.Genesis.Txs {
		params, err := canonicalGenesisParams(gtx)
		if err != nil {
			return err
		}
		tx, err := c.dispatcher.BuildTx(gtx.Module, gtx.Method, params)
		if err != nil {
			return errs.Wrap(errs.InvalidSpec, "build genesis tx "+gtx.Module+"."+gtx.Method, err)
		}
		if c.dispatcher.IsMeta(gtx.Module, gtx.Method) {
			metaTxs = append(metaTxs, tx)
		} else {
			payloadTxs = append(payloadTxs, tx)
		}
	}

	ctx := execution.New(0, timestamp, nil, nil, nil, nil)
	if err := c.dispatcher.ExecuteTxs(ctx, metaTxs, true); err != nil {
		return errs.Wrap(errs.InvalidSpec, "execute genesis meta txs", err)
	}
	if err := c.dispatcher.ExecuteTxs(ctx, payloadTxs, true); err != nil {
		return errs.Wrap(errs.InvalidSpec, "execute genesis payload txs", err)
	}

	metaRoot, metaBatch, err := ctx.CommitMeta(c.metaSDB)
	if err != nil {
		return err
	}
	payloadRoot, payloadBatch, err := ctx.CommitPayload(c.payloadSDB)
	if err != nil {
		return err
	}
	metaTxsRoot, metaTxs, err := ctx.GetMetaTxs(c.hashFn)
	if err != nil {
		return errs.Wrap(errs.IO, "compute meta txs root", err)
	}
	payloadTxsRoot, payloadTxs, err := ctx.GetPayloadTxs(c.hashFn)
	if err != nil {
		return errs.Wrap(errs.IO, "compute payload txs root", err)
	}

	// The genesis header carries a zero payload execution root: with
	// gap=1, no payload execution has been paired with a block yet. The
	// root produced by the genesis payload txs lives only in block 0's
	// Executed record.
	header := &chaintypes.Header{
		Number:                       0,
		Timestamp:                    timestamp,
		ParentHash:                   chaintypes.Hash{},
		MetaTxsRoot:                  chaintypes.Hash(metaTxsRoot),
		MetaStateRoot:                chaintypes.Hash(metaRoot),
		MetaReceiptsRoot:             chaintypes.Hash{},
		PayloadTxsRoot:               chaintypes.Hash(payloadTxsRoot),
		PayloadExecutionGap:          1,
		PayloadExecutionStateRoot:    chaintypes.Hash{},
		PayloadExecutionReceiptsRoot: chaintypes.Hash{},
	}
	blockHash := chaintypes.HeaderHash(c.hashFn, header)

	batch := &storage.Batch{}
	batch.Merge(metaBatch)
	batch.Merge(payloadBatch)
	batch.Put(storage.Header, blockHash.Bytes(), chaintypes.EncodeHeader(header))
	batch.Put(storage.MetaTxs, blockHash.Bytes(), chaintypes.EncodeHashes(txHashes(c.hashFn, metaTxs)))
	batch.Put(storage.PayloadTxs, blockHash.Bytes(), chaintypes.EncodeHashes(txHashes(c.hashFn, payloadTxs)))
	for _, tx := range append(append([]*chaintypes.Transaction{}, metaTxs...), payloadTxs...) {
		h := chaintypes.TransactionHash(c.hashFn, tx)
		batch.Put(storage.Transaction, h.Bytes(), chaintypes.EncodeTx(tx))
	}
	batch.Put(storage.BlockHash, chaintypes.EncodeBlockNumber(0), blockHash.Bytes())
	batch.Put(storage.Global, storage.KeyBestNumber, codec.AppendU64LE(nil, 0))
	batch.Put(storage.Executed, blockHash.Bytes(), chaintypes.EncodeExecuted(&chaintypes.Executed{PayloadExecutedStateRoot: chaintypes.Hash(payloadRoot)}))
	// The spec is persisted byte-for-byte as read from spec.toml, so the
	// divergence check in Open can compare the file against it directly.
	batch.Put(storage.Global, storage.KeySpec, c.specRaw)

	if err := c.db.Write(batch); err != nil {
		return errs.Wrap(errs.IO, "write genesis batch", err)
	}
	return nil
}

func txHashes(hashFn func([]byte) [32]byte, txs []*chaintypes.Transaction) []chaintypes.Hash {
	out := make([]chaintypes.Hash, len(txs))
	for i, tx := range txs {
		out[i] = chaintypes.TransactionHash(hashFn, tx)
	}
	return out
}
