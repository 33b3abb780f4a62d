package execution

import (
	"testing"

	"wingchain.dev/node/chaintypes"
)

func TestTxsRootOrderSensitive(t *testing.T) {
	a := BuildTx("balance", "transfer", []byte("a"), 0, 0, nil)
	b := BuildTx("balance", "transfer", []byte("b"), 0, 0, nil)

	r1, err := TxsRoot(hashFn, []*chaintypes.Transaction{a, b})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := TxsRoot(hashFn, []*chaintypes.Transaction{b, a})
	if err != nil {
		t.Fatal(err)
	}
	if r1 == r2 {
		t.Fatal("expected txs root to depend on transaction order")
	}
}

func TestTxsRootEmpty(t *testing.T) {
	r, err := TxsRoot(hashFn, nil)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := TxsRoot(hashFn, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r != r2 {
		t.Fatal("expected stable empty txs root")
	}
}

func TestContextAccumulatesTxsByPhase(t *testing.T) {
	ctx := New(1, 0, nil, nil, nil, nil)
	m := BuildTx("system", "init", []byte("m"), 0, 0, nil)
	p := BuildTx("balance", "transfer", []byte("p"), 0, 0, nil)

	ctx.AppendTxs(PhaseMeta, []*chaintypes.Transaction{m})
	ctx.AppendTxs(PhasePayload, []*chaintypes.Transaction{p})

	if len(ctx.MetaTxs()) != 1 || ctx.MetaTxs()[0] != m {
		t.Fatal("meta tx not accumulated")
	}
	if len(ctx.PayloadTxs()) != 1 || ctx.PayloadTxs()[0] != p {
		t.Fatal("payload tx not accumulated")
	}

	metaRoot, metaTxs, err := ctx.GetMetaTxs(hashFn)
	if err != nil {
		t.Fatal(err)
	}
	wantMeta, err := TxsRoot(hashFn, metaTxs)
	if err != nil {
		t.Fatal(err)
	}
	if metaRoot != wantMeta {
		t.Fatal("meta txs root mismatch")
	}

	payloadRoot, _, err := ctx.GetPayloadTxs(hashFn)
	if err != nil {
		t.Fatal(err)
	}
	if payloadRoot == metaRoot {
		t.Fatal("distinct tx lists must not share a root")
	}
}

func TestBuildTxUnsignedWhenNoPublicKey(t *testing.T) {
	tx := BuildTx("system", "init", []byte("p"), 0, 0, nil)
	if tx.Witness != nil {
		t.Fatal("expected nil witness when no public key supplied")
	}
}
