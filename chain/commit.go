package chain

import (
	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/codec"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/execution"
	"wingchain.dev/node/storage"
)

// deferredPayloadTxs reads back the full transactions recorded as the
// payload body of ancestorHash. Payload transactions are recorded at
// block N but executed against the state snapshot produced at block
// N - gap.
func (c *Chain) deferredPayloadTxs(ancestorHash chaintypes.Hash) ([]*chaintypes.Transaction, error) {
	raw, ok, err := c.db.Get(storage.PayloadTxs, ancestorHash.Bytes())
	if err != nil {
		return nil, errs.Wrap(errs.IO, "read deferred payload tx hashes", err)
	}
	if !ok {
		return nil, errs.New(errs.DBIntegrity, "missing PAYLOAD_TXS row for ancestor block")
	}
	hashes, err := chaintypes.DecodeHashes(raw)
	if err != nil {
		return nil, errs.Wrap(errs.DBIntegrity, "decode deferred payload tx hashes", err)
	}
	out := make([]*chaintypes.Transaction, 0, len(hashes))
	for _, h := range hashes {
		tx, ok, err := c.GetTransaction(h)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.New(errs.DBIntegrity, "missing TRANSACTION row for deferred payload tx")
		}
		out = append(out, tx)
	}
	return out, nil
}

// CommitBlock assembles and writes block number = parent.Number+1, the
// entry point the consensus driver calls once per authored block. It
// follows the same shape as genesis but sets parent_hash to the
// previous block hash and uses gap to pair an Executed record with the
// state produced at number - gap. metaTxs/payloadTxs are this block's
// own transactions; payloadTxs are recorded now and executed later,
// when block number+gap commits.
func (c *Chain) CommitBlock(parentHash chaintypes.Hash, timestamp uint64, metaTxs, payloadTxs []*chaintypes.Transaction, gap uint8) (chaintypes.Hash, error) {
	parentHeader, ok, err := c.GetHeader(parentHash)
	if err != nil {
		return chaintypes.Hash{}, err
	}
	if !ok {
		return chaintypes.Hash{}, errs.New(errs.DBIntegrity, "unknown parent block hash")
	}
	number := parentHeader.Number + 1

	metaStmt, err := c.metaSDB.PrepareStmt([32]byte(parentHeader.MetaStateRoot))
	if err != nil {
		return chaintypes.Hash{}, errs.Wrap(errs.DBIntegrity, "open meta state snapshot", err)
	}
	defer metaStmt.Close()
	metaGetter := c.metaSDB.PrepareGet(metaStmt)

	ctx := execution.New(number, timestamp, metaStmt, nil, metaGetter, nil)
	if err := c.dispatcher.ExecuteTxs(ctx, metaTxs, false); err != nil {
		return chaintypes.Hash{}, err
	}
	metaRoot, metaBatch, err := ctx.CommitMeta(c.metaSDB)
	if err != nil {
		return chaintypes.Hash{}, err
	}

	// Deferred payload execution: committing block N pairs the payload
	// txs recorded at block N-gap with an Executed record keyed by that
	// ancestor's hash. Genesis pairs its own payload inline, so its
	// Executed row already exists and is reused rather than re-executed.
	executedRoot := [32]byte{}
	var deferredBatch *storage.Batch
	var executedKey []byte
	if number >= uint64(gap) {
		ancestorNumber := number - uint64(gap)
		ancestorHash, ok, err := c.GetBlockHash(ancestorNumber)
		if err != nil {
			return chaintypes.Hash{}, err
		}
		if !ok {
			return chaintypes.Hash{}, errs.New(errs.DBIntegrity, "missing ancestor block for deferred payload execution")
		}
		if executed, ok, err := c.GetExecuted(ancestorHash); err != nil {
			return chaintypes.Hash{}, err
		} else if ok {
			executedRoot = [32]byte(executed.PayloadExecutedStateRoot)
		} else {
			ancestorHeader, ok, err := c.GetHeader(ancestorHash)
			if err != nil {
				return chaintypes.Hash{}, err
			}
			if !ok {
				return chaintypes.Hash{}, errs.New(errs.DBIntegrity, "missing ancestor header for deferred payload execution")
			}
			prevHash, ok, err := c.GetBlockHash(ancestorNumber - 1)
			if err != nil {
				return chaintypes.Hash{}, err
			}
			if !ok {
				return chaintypes.Hash{}, errs.New(errs.DBIntegrity, "missing block preceding deferred payload execution")
			}
			prevExecuted, ok, err := c.GetExecuted(prevHash)
			if err != nil {
				return chaintypes.Hash{}, err
			}
			if !ok {
				return chaintypes.Hash{}, errs.New(errs.DBIntegrity, "missing EXECUTED row preceding deferred payload execution")
			}
			ancestorPayloadTxs, err := c.deferredPayloadTxs(ancestorHash)
			if err != nil {
				return chaintypes.Hash{}, err
			}
			payloadStmt, err := c.payloadSDB.PrepareStmt([32]byte(prevExecuted.PayloadExecutedStateRoot))
			if err != nil {
				return chaintypes.Hash{}, errs.Wrap(errs.DBIntegrity, "open payload state snapshot", err)
			}
			defer payloadStmt.Close()
			payloadGetter := c.payloadSDB.PrepareGet(payloadStmt)
			payloadCtx := execution.New(ancestorHeader.Number, ancestorHeader.Timestamp, nil, payloadStmt, nil, payloadGetter)
			if err := c.dispatcher.ExecuteTxs(payloadCtx, ancestorPayloadTxs, false); err != nil {
				return chaintypes.Hash{}, err
			}
			executedRoot, deferredBatch, err = payloadCtx.CommitPayload(c.payloadSDB)
			if err != nil {
				return chaintypes.Hash{}, err
			}
			if err := payloadStmt.Close(); err != nil {
				return chaintypes.Hash{}, errs.Wrap(errs.IO, "close payload state snapshot", err)
			}
			executedKey = ancestorHash.Bytes()
		}
	}

	metaTxsRoot, metaTxs, err := ctx.GetMetaTxs(c.hashFn)
	if err != nil {
		return chaintypes.Hash{}, err
	}
	// This block's payload txs are recorded, not executed, so their root
	// comes straight from the supplied list.
	payloadTxsRoot, err := execution.TxsRoot(c.hashFn, payloadTxs)
	if err != nil {
		return chaintypes.Hash{}, err
	}

	header := &chaintypes.Header{
		Number:                       number,
		Timestamp:                    timestamp,
		ParentHash:                   parentHash,
		MetaTxsRoot:                  chaintypes.Hash(metaTxsRoot),
		MetaStateRoot:                chaintypes.Hash(metaRoot),
		MetaReceiptsRoot:             chaintypes.Hash{},
		PayloadTxsRoot:               chaintypes.Hash(payloadTxsRoot),
		PayloadExecutionGap:          gap,
		PayloadExecutionStateRoot:    chaintypes.Hash(executedRoot),
		PayloadExecutionReceiptsRoot: chaintypes.Hash{},
	}
	blockHash := chaintypes.HeaderHash(c.hashFn, header)

	batch := &storage.Batch{}
	batch.Merge(metaBatch)
	batch.Merge(deferredBatch)
	batch.Put(storage.Header, blockHash.Bytes(), chaintypes.EncodeHeader(header))
	batch.Put(storage.MetaTxs, blockHash.Bytes(), chaintypes.EncodeHashes(txHashes(c.hashFn, metaTxs)))
	batch.Put(storage.PayloadTxs, blockHash.Bytes(), chaintypes.EncodeHashes(txHashes(c.hashFn, payloadTxs)))
	for _, tx := range append(append([]*chaintypes.Transaction{}, metaTxs...), payloadTxs...) {
		h := chaintypes.TransactionHash(c.hashFn, tx)
		batch.Put(storage.Transaction, h.Bytes(), chaintypes.EncodeTx(tx))
	}
	batch.Put(storage.BlockHash, chaintypes.EncodeBlockNumber(number), blockHash.Bytes())
	batch.Put(storage.Global, storage.KeyBestNumber, codec.AppendU64LE(nil, number))
	if executedKey != nil {
		batch.Put(storage.Executed, executedKey, chaintypes.EncodeExecuted(&chaintypes.Executed{PayloadExecutedStateRoot: chaintypes.Hash(executedRoot)}))
	}

	if err := metaStmt.Close(); err != nil {
		return chaintypes.Hash{}, errs.Wrap(errs.IO, "close meta state snapshot", err)
	}
	if err := c.db.Write(batch); err != nil {
		return chaintypes.Hash{}, errs.Wrap(errs.IO, "write block batch", err)
	}
	return blockHash, nil
}
