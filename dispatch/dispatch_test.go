package dispatch

import (
	"testing"

	"golang.org/x/crypto/blake2b"

	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/crypto"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/execution"
)

func hashFn(b []byte) [32]byte { return blake2b.Sum256(b) }

func testDispatcher(t *testing.T) (*Dispatcher, *crypto.Algorithms) {
	t.Helper()
	algos, err := crypto.ResolveAlgorithms("blake2b_256", "blake2b_160", "ed25519")
	if err != nil {
		t.Fatal(err)
	}
	d := New(algos, hashFn)
	noop := func(ctx *execution.Context, sender []byte, txHash chaintypes.Hash, params []byte) error { return nil }
	d.Register("meta_mod", "write", Meta, true, false, nil, noop)
	d.Register("meta_mod", "genesis_write", Meta, true, true, nil, noop)
	d.Register("payload_mod", "write", Payload, true, false, nil, noop)
	d.Register("payload_mod", "read", Payload, false, false, nil, noop)
	return d, algos
}

func tx(module, method string) *chaintypes.Transaction {
	return &chaintypes.Transaction{Call: chaintypes.Call{Module: module, Method: method}}
}

func TestLookupPredicates(t *testing.T) {
	d, _ := testDispatcher(t)
	if !d.IsValidCall("meta_mod", "write") || d.IsValidCall("meta_mod", "nope") {
		t.Fatal("IsValidCall misreports registration")
	}
	if !d.IsMeta("meta_mod", "write") || d.IsMeta("payload_mod", "write") {
		t.Fatal("IsMeta misreports phase")
	}
	if !d.IsWriteCall("payload_mod", "write") || d.IsWriteCall("payload_mod", "read") {
		t.Fatal("IsWriteCall misreports write flag")
	}
}

func TestBuildTxUnknownCall(t *testing.T) {
	d, _ := testDispatcher(t)
	if _, err := d.BuildTx("nope", "nope", nil); !errs.Is(err, errs.InvalidTxCall) {
		t.Fatalf("expected InvalidTxCall, got %v", err)
	}
}

func TestBuildTxRejectsUndecodableParams(t *testing.T) {
	d, _ := testDispatcher(t)
	d.Register("strict", "call", Meta, true, false,
		func(params []byte) error { return errs.New(errs.InvalidParams, "nope") }, nil)
	if _, err := d.BuildTx("strict", "call", []byte("garbage")); !errs.Is(err, errs.InvalidParams) {
		t.Fatalf("expected InvalidParams, got %v", err)
	}
}

func TestValidateTxRejectsNonWriteCall(t *testing.T) {
	d, _ := testDispatcher(t)
	err := d.ValidateTx(tx("payload_mod", "read"))
	if !errs.Is(err, errs.InvalidTxCall) {
		t.Fatalf("expected InvalidTxCall for non-write call, got %v", err)
	}
}

func TestValidateTxWitnessSignature(t *testing.T) {
	d, algos := testDispatcher(t)
	pub, sec, err := algos.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	witnessed := tx("payload_mod", "write")
	witnessed.Witness = &chaintypes.Witness{PublicKey: pub, Nonce: 1, Until: 100}
	digest := chaintypes.TransactionHash(hashFn, witnessed)
	sig, err := algos.Sign(sec, digest.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	witnessed.Witness.Signature = sig
	if err := d.ValidateTx(witnessed); err != nil {
		t.Fatalf("expected valid witness to pass, got %v", err)
	}

	witnessed.Witness.Signature[0] ^= 0xff
	if err := d.ValidateTx(witnessed); !errs.Is(err, errs.InvalidTxs) {
		t.Fatalf("expected InvalidTxs for tampered signature, got %v", err)
	}
}

func TestExecuteTxsMixedPhasesRejected(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := execution.New(1, 0, nil, nil, nil, nil)
	err := d.ExecuteTxs(ctx, []*chaintypes.Transaction{tx("meta_mod", "write"), tx("payload_mod", "write")}, false)
	if !errs.Is(err, errs.InvalidTxs) {
		t.Fatalf("expected InvalidTxs for mixed batch, got %v", err)
	}
	if ctx.PayloadPhase() {
		t.Fatal("rejected batch must not latch payload phase")
	}
}

func TestExecuteTxsMetaAfterPayloadRejected(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := execution.New(1, 0, nil, nil, nil, nil)
	if err := d.ExecuteTxs(ctx, []*chaintypes.Transaction{tx("payload_mod", "write")}, false); err != nil {
		t.Fatal(err)
	}
	err := d.ExecuteTxs(ctx, []*chaintypes.Transaction{tx("meta_mod", "write")}, false)
	if !errs.Is(err, errs.InvalidTxs) {
		t.Fatalf("expected InvalidTxs for meta after payload, got %v", err)
	}
}

func TestExecuteTxsMetaThenPayloadAllowed(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := execution.New(1, 0, nil, nil, nil, nil)
	if err := d.ExecuteTxs(ctx, []*chaintypes.Transaction{tx("meta_mod", "write")}, false); err != nil {
		t.Fatal(err)
	}
	if err := d.ExecuteTxs(ctx, []*chaintypes.Transaction{tx("payload_mod", "write")}, false); err != nil {
		t.Fatal(err)
	}
	if !ctx.PayloadPhase() {
		t.Fatal("payload batch must latch the context")
	}
}

func TestExecuteTxsGenesisOnlyOutsideGenesis(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := execution.New(5, 0, nil, nil, nil, nil)
	err := d.ExecuteTxs(ctx, []*chaintypes.Transaction{tx("meta_mod", "genesis_write")}, false)
	if !errs.Is(err, errs.InvalidTxs) {
		t.Fatalf("expected InvalidTxs for genesis-only call outside genesis, got %v", err)
	}
	gctx := execution.New(0, 0, nil, nil, nil, nil)
	if err := d.ExecuteTxs(gctx, []*chaintypes.Transaction{tx("meta_mod", "genesis_write")}, true); err != nil {
		t.Fatal(err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	d, _ := testDispatcher(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	d.Register("meta_mod", "write", Meta, true, false, nil, nil)
}
