package chain

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
)

var (
	testMint       = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	testAuthority  = solana.MustPublicKeyFromBase58("Vote111111111111111111111111111111111111111")
	testCollection = solana.MustPublicKeyFromBase58("Stake11111111111111111111111111111111111111")
)

// readStr consumes a u32-length-prefixed string from the buffer.
func readStr(t *testing.T, r *bytes.Reader) string {
	t.Helper()
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		t.Fatalf("reading string length: %v", err)
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		t.Fatalf("reading string body: %v", err)
	}
	return string(b)
}

func TestCreateMetadataV3Encoding(t *testing.T) {
	md, err := findMetadataAddress(testMint)
	if err != nil {
		t.Fatalf("metadata pda: %v", err)
	}
	args := metadataArgs{
		Name:                 "SOLARA GEN:0 #42",
		Symbol:               "SLR",
		URI:                  "https://ipfs.io/ipfs/QmTest/0042.json",
		SellerFeeBasisPoints: 500,
		Creator:              testAuthority,
		Collection:           testCollection,
	}
	ix, err := newCreateMetadataV3Instruction(md, testMint, testAuthority, testAuthority, testAuthority, args)
	if err != nil {
		t.Fatalf("building instruction: %v", err)
	}

	if !ix.ProgramID().Equals(solana.TokenMetadataProgramID) {
		t.Fatalf("program id = %s", ix.ProgramID())
	}
	if got := len(ix.Accounts()); got != 7 {
		t.Fatalf("accounts = %d, want 7", got)
	}

	data, err := ix.Data()
	if err != nil {
		t.Fatalf("instruction data: %v", err)
	}
	r := bytes.NewReader(data)

	disc, _ := r.ReadByte()
	if disc != ixCreateMetadataAccountV3 {
		t.Fatalf("discriminator = %d, want %d", disc, ixCreateMetadataAccountV3)
	}
	if got := readStr(t, r); got != args.Name {
		t.Fatalf("name = %q", got)
	}
	if got := readStr(t, r); got != args.Symbol {
		t.Fatalf("symbol = %q", got)
	}
	if got := readStr(t, r); got != args.URI {
		t.Fatalf("uri = %q", got)
	}
	var fee uint16
	if err := binary.Read(r, binary.LittleEndian, &fee); err != nil || fee != 500 {
		t.Fatalf("seller fee = %d (err %v)", fee, err)
	}

	// creators: Some, length 1, {creator pubkey, verified=1, share=100}
	if tag, _ := r.ReadByte(); tag != 1 {
		t.Fatalf("creators option tag = %d, want Some", tag)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil || count != 1 {
		t.Fatalf("creator count = %d (err %v)", count, err)
	}
	pk := make([]byte, 32)
	if _, err := r.Read(pk); err != nil {
		t.Fatalf("creator pubkey: %v", err)
	}
	if !bytes.Equal(pk, testAuthority.Bytes()) {
		t.Fatal("creator pubkey mismatch")
	}
	if verified, _ := r.ReadByte(); verified != 1 {
		t.Fatalf("creator verified = %d", verified)
	}
	if share, _ := r.ReadByte(); share != 100 {
		t.Fatalf("creator share = %d", share)
	}

	// collection: Some, verified=0, collection mint
	if tag, _ := r.ReadByte(); tag != 1 {
		t.Fatalf("collection option tag = %d, want Some", tag)
	}
	if verified, _ := r.ReadByte(); verified != 0 {
		t.Fatal("collection written verified; verification is a separate instruction")
	}
	if _, err := r.Read(pk); err != nil {
		t.Fatalf("collection pubkey: %v", err)
	}
	if !bytes.Equal(pk, testCollection.Bytes()) {
		t.Fatal("collection pubkey mismatch")
	}

	// uses: None, isMutable: true, collectionDetails: None
	if tag, _ := r.ReadByte(); tag != 0 {
		t.Fatalf("uses option tag = %d, want None", tag)
	}
	if mutable, _ := r.ReadByte(); mutable != 1 {
		t.Fatal("metadata not marked mutable")
	}
	if tag, _ := r.ReadByte(); tag != 0 {
		t.Fatalf("collection details tag = %d, want None", tag)
	}
	if r.Len() != 0 {
		t.Fatalf("%d trailing bytes", r.Len())
	}
}

func TestCreateMasterEditionV3Encoding(t *testing.T) {
	ed, err := findMasterEditionAddress(testMint)
	if err != nil {
		t.Fatalf("edition pda: %v", err)
	}
	md, _ := findMetadataAddress(testMint)
	ix, err := newCreateMasterEditionV3Instruction(ed, testMint, testAuthority, testAuthority, testAuthority, md)
	if err != nil {
		t.Fatalf("building instruction: %v", err)
	}

	data, err := ix.Data()
	if err != nil {
		t.Fatalf("instruction data: %v", err)
	}
	// [discriminator][Some][u64 max_supply = 0]
	want := append([]byte{ixCreateMasterEditionV3, 1}, make([]byte, 8)...)
	if !bytes.Equal(data, want) {
		t.Fatalf("data = %v, want %v", data, want)
	}
	if got := len(ix.Accounts()); got != 9 {
		t.Fatalf("accounts = %d, want 9", got)
	}
}

func TestVerifyCollectionEncoding(t *testing.T) {
	md, _ := findMetadataAddress(testMint)
	collMd, _ := findMetadataAddress(testCollection)
	collEd, _ := findMasterEditionAddress(testCollection)
	ix := newVerifyCollectionInstruction(md, testAuthority, testAuthority, testCollection, collMd, collEd)

	data, err := ix.Data()
	if err != nil {
		t.Fatalf("instruction data: %v", err)
	}
	if !bytes.Equal(data, []byte{ixVerifyCollection}) {
		t.Fatalf("data = %v", data)
	}
}

func TestMetadataAddressesDiffer(t *testing.T) {
	md, err := findMetadataAddress(testMint)
	if err != nil {
		t.Fatalf("metadata pda: %v", err)
	}
	ed, err := findMasterEditionAddress(testMint)
	if err != nil {
		t.Fatalf("edition pda: %v", err)
	}
	if md.Equals(ed) {
		t.Fatal("metadata and edition derived to the same address")
	}
}
