package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/codec"
	"wingchain.dev/node/crypto"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/modules"
)

const testSpecTOML = `[basic]
hash = "blake2b_256"
dsa = "ed25519"
address = "blake2b_160"

[[genesis.txs]]
module = "system"
method = "init"
params = '{"chain_id":"chain-test0000","time":"2020-04-29T08:31:36Z"}'

[[genesis.txs]]
module = "balance"
method = "init"
params = '{"endow":[["b4decd5a5f8f2ba708f8ced72eec89f44f3be96a","10"]]}'
`

func writeHome(t *testing.T, spec string) string {
	t.Helper()
	home := t.TempDir()
	if err := os.MkdirAll(filepath.Join(home, ConfigDirName), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(SpecPath(home), []byte(spec), 0o640); err != nil {
		t.Fatal(err)
	}
	return home
}

func openTestChain(t *testing.T, spec string) *Chain {
	t.Helper()
	c, err := Open(writeHome(t, spec))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpenUninitializedHome(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	if !errs.Is(err, errs.HomeDirNotInited) {
		t.Fatalf("expected HomeDirNotInited, got %v", err)
	}
}

func TestParseSpecRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing basic", "[[genesis.txs]]\nmodule = \"system\"\nmethod = \"init\"\nparams = \"{}\"\n"},
		{"no genesis txs", "[basic]\nhash = \"blake2b_256\"\ndsa = \"ed25519\"\naddress = \"blake2b_160\"\n"},
		{"first tx not system.init", "[basic]\nhash = \"blake2b_256\"\ndsa = \"ed25519\"\naddress = \"blake2b_160\"\n\n[[genesis.txs]]\nmodule = \"balance\"\nmethod = \"init\"\nparams = \"{}\"\n"},
	}
	for _, tc := range cases {
		if _, err := ParseSpec([]byte(tc.raw)); !errs.Is(err, errs.InvalidSpec) {
			t.Fatalf("%s: expected InvalidSpec, got %v", tc.name, err)
		}
	}
}

func TestGenesisDeterministic(t *testing.T) {
	c1 := openTestChain(t, testSpecTOML)
	c2 := openTestChain(t, testSpecTOML)

	for _, c := range []*Chain{c1, c2} {
		best, err := c.BestNumber()
		if err != nil {
			t.Fatal(err)
		}
		if best != 0 {
			t.Fatalf("best_number = %d, want 0", best)
		}
	}

	h1, ok, err := c1.GetBlockHash(0)
	if err != nil || !ok {
		t.Fatalf("block hash 0: %v %v", ok, err)
	}
	h2, _, _ := c2.GetBlockHash(0)
	if h1 != h2 {
		t.Fatalf("genesis hashes differ: %x vs %x", h1, h2)
	}

	hdr1, ok, err := c1.GetHeader(h1)
	if err != nil || !ok {
		t.Fatalf("header: %v %v", ok, err)
	}
	hdr2, _, _ := c2.GetHeader(h2)
	if *hdr1 != *hdr2 {
		t.Fatal("genesis headers differ")
	}
	if hdr1.Number != 0 || hdr1.ParentHash != (chaintypes.Hash{}) || hdr1.PayloadExecutionGap != 1 {
		t.Fatalf("unexpected genesis header: %+v", hdr1)
	}
	if hdr1.PayloadExecutionStateRoot != (chaintypes.Hash{}) {
		t.Fatal("genesis payload execution root must be zero")
	}
	if hdr1.Timestamp != 1588149096000 {
		t.Fatalf("timestamp = %d", hdr1.Timestamp)
	}

	exec1, ok, err := c1.GetExecuted(h1)
	if err != nil || !ok {
		t.Fatalf("executed: %v %v", ok, err)
	}
	exec2, _, _ := c2.GetExecuted(h2)
	if *exec1 != *exec2 {
		t.Fatal("genesis executed records differ")
	}
	if exec1.PayloadExecutedStateRoot == (chaintypes.Hash{}) {
		t.Fatal("genesis payload execution must produce a non-zero root")
	}
}

func TestGenesisBody(t *testing.T) {
	c := openTestChain(t, testSpecTOML)
	h, _, _ := c.GetBlockHash(0)
	body, ok, err := c.GetBody(h)
	if err != nil || !ok {
		t.Fatalf("body: %v %v", ok, err)
	}
	if len(body.MetaTxs) != 1 || len(body.PayloadTxs) != 1 {
		t.Fatalf("body sizes = %d meta, %d payload", len(body.MetaTxs), len(body.PayloadTxs))
	}
	tx, ok, err := c.GetTransaction(body.MetaTxs[0])
	if err != nil || !ok {
		t.Fatalf("genesis meta tx: %v %v", ok, err)
	}
	if tx.Witness != nil || tx.Call.Module != "system" || tx.Call.Method != "init" {
		t.Fatalf("unexpected genesis meta tx: %+v", tx)
	}
}

func TestReopenPersistedChain(t *testing.T) {
	home := writeHome(t, testSpecTOML)
	c, err := Open(home)
	if err != nil {
		t.Fatal(err)
	}
	h0, _, _ := c.GetBlockHash(0)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c2, err := Open(home)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer c2.Close()
	best, err := c2.BestNumber()
	if err != nil || best != 0 {
		t.Fatalf("best after reopen = %d %v", best, err)
	}
	h0Again, _, _ := c2.GetBlockHash(0)
	if h0 != h0Again {
		t.Fatal("genesis hash changed across reopen")
	}
}

func TestReopenRejectsDivergentSpecFile(t *testing.T) {
	home := writeHome(t, testSpecTOML)
	c, err := Open(home)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	altered := testSpecTOML + "\n# operator edit after genesis\n"
	if err := os.WriteFile(SpecPath(home), []byte(altered), 0o640); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(home); !errs.Is(err, errs.InvalidSpec) {
		t.Fatalf("expected InvalidSpec on divergent spec.toml, got %v", err)
	}
}

// specEndowing builds a spec endowing addr with value 10.
func specEndowing(addr []byte) string {
	return fmt.Sprintf(`[basic]
hash = "blake2b_256"
dsa = "ed25519"
address = "blake2b_160"

[[genesis.txs]]
module = "system"
method = "init"
params = '{"chain_id":"chain-test0000","time":"2020-04-29T08:31:36Z"}'

[[genesis.txs]]
module = "balance"
method = "init"
params = '{"endow":[["%s","10"]]}'
`, hex.EncodeToString(addr))
}

func readPayloadBalance(t *testing.T, c *Chain, root chaintypes.Hash, addr chaintypes.Address) int64 {
	t.Helper()
	stmt, err := c.payloadSDB.PrepareStmt([32]byte(root))
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Close()
	key := append([]byte("balance_balance_"), addr.Bytes()...)
	v, ok, err := c.payloadSDB.PrepareGet(stmt).Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		return 0
	}
	bal, err := codec.NewCursor(v).ReadU128LE()
	if err != nil {
		t.Fatal(err)
	}
	return bal.Int64()
}

func TestCommitBlockDeferredTransfer(t *testing.T) {
	seed := []byte{
		184, 80, 22, 77, 31, 238, 200, 105, 138, 204, 163, 41, 148, 124, 152, 133, 189, 29,
		148, 3, 77, 47, 187, 230, 8, 5, 152, 173, 190, 21, 178, 152,
	}
	algos, err := crypto.ResolveAlgorithms("blake2b_256", "blake2b_160", "ed25519")
	if err != nil {
		t.Fatal(err)
	}
	pub, priv, err := algos.KeyPairFromSecretKey(seed)
	if err != nil {
		t.Fatal(err)
	}
	senderRaw, err := algos.DeriveAddress(pub)
	if err != nil {
		t.Fatal(err)
	}
	var sender, recipient chaintypes.Address
	copy(sender[:], senderRaw)
	recipient[0] = 0xbb

	c := openTestChain(t, specEndowing(senderRaw))
	genesisHash, _, _ := c.GetBlockHash(0)
	genesisExec, ok, err := c.GetExecuted(genesisHash)
	if err != nil || !ok {
		t.Fatalf("genesis executed: %v %v", ok, err)
	}

	params, err := modules.EncodeTransferParams(modules.TransferParams{Recipient: recipient, Value: big.NewInt(2)})
	if err != nil {
		t.Fatal(err)
	}
	tx, err := c.Dispatcher().BuildTx("balance", "transfer", params)
	if err != nil {
		t.Fatal(err)
	}
	tx.Witness = &chaintypes.Witness{PublicKey: pub, Nonce: 0, Until: 100}
	digest := chaintypes.TransactionHash(c.hashFn, tx)
	sig, err := algos.Sign(priv, digest.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	tx.Witness.Signature = sig
	if err := c.Dispatcher().ValidateTx(tx); err != nil {
		t.Fatalf("transfer tx failed validation: %v", err)
	}

	// Block 1 records the transfer; with gap=1 its pairing executes at
	// block 2, so the header's execution root still reflects genesis.
	h1, err := c.CommitBlock(genesisHash, 1588149097000, nil, []*chaintypes.Transaction{tx}, 1)
	if err != nil {
		t.Fatal(err)
	}
	hdr1, _, _ := c.GetHeader(h1)
	if hdr1.PayloadExecutionStateRoot != genesisExec.PayloadExecutedStateRoot {
		t.Fatal("block 1 must carry the genesis payload execution root")
	}
	if _, ok, _ := c.GetExecuted(h1); ok {
		t.Fatal("block 1's executed record must not exist until block 2 commits")
	}
	if best, _ := c.BestNumber(); best != 1 {
		t.Fatalf("best = %d, want 1", best)
	}
	if bal := readPayloadBalance(t, c, genesisExec.PayloadExecutedStateRoot, sender); bal != 10 {
		t.Fatalf("pre-execution sender balance = %d, want 10", bal)
	}

	// Block 2 pairs block 1's payload txs with an Executed record.
	h2, err := c.CommitBlock(h1, 1588149098000, nil, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	exec1, ok, err := c.GetExecuted(h1)
	if err != nil || !ok {
		t.Fatalf("block 1 executed record missing after block 2: %v %v", ok, err)
	}
	if exec1.PayloadExecutedStateRoot == genesisExec.PayloadExecutedStateRoot {
		t.Fatal("transfer must change the payload execution root")
	}
	hdr2, _, _ := c.GetHeader(h2)
	if hdr2.PayloadExecutionStateRoot != exec1.PayloadExecutedStateRoot {
		t.Fatal("block 2 must carry block 1's payload execution root")
	}
	if best, _ := c.BestNumber(); best != 2 {
		t.Fatalf("best = %d, want 2", best)
	}

	if bal := readPayloadBalance(t, c, exec1.PayloadExecutedStateRoot, sender); bal != 8 {
		t.Fatalf("sender balance = %d, want 8", bal)
	}
	if bal := readPayloadBalance(t, c, exec1.PayloadExecutedStateRoot, recipient); bal != 2 {
		t.Fatalf("recipient balance = %d, want 2", bal)
	}
}

func TestCommitBlockUnknownParent(t *testing.T) {
	c := openTestChain(t, testSpecTOML)
	var bogus chaintypes.Hash
	bogus[0] = 0xff
	if _, err := c.CommitBlock(bogus, 1, nil, nil, 1); !errs.Is(err, errs.DBIntegrity) {
		t.Fatalf("expected DBIntegrity for unknown parent, got %v", err)
	}
	if best, _ := c.BestNumber(); best != 0 {
		t.Fatalf("failed commit must not advance best_number, got %d", best)
	}
}
