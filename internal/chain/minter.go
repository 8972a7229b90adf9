package chain

import (
	"context"
	"fmt"
	"log"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solara-labs/mint-reservation/internal/mint"
	"github.com/solara-labs/mint-reservation/internal/model"
)

const (
	nftSymbol       = "SLR"
	sellerFeeBps    = 500 // 5% royalty
	metadataDirPath = "/ipfs/"
)

// Minter creates the NFT for a completed reservation: a fresh zero-decimal
// mint, the buyer's associated token account holding the single token, the
// metadata account, and a supply-zero master edition.  Collection
// verification runs as a second transaction and is allowed to fail; the
// mint stands either way, with the outcome's Verified flag tracking it.
type Minter struct {
	client     *Client
	seller     solana.PrivateKey
	collection solana.PublicKey
	gateway    string
	cid        string
}

// NewMinter loads the seller keypair and validates the collection mint
// address.  The seller acts as payer, mint authority, update authority
// and collection authority, matching the original deployment.
func NewMinter(client *Client, sellerKeyPath, collectionMint, gateway, cid string) (*Minter, error) {
	seller, err := solana.PrivateKeyFromSolanaKeygenFile(sellerKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading seller keypair: %w", err)
	}
	collection, err := solana.PublicKeyFromBase58(collectionMint)
	if err != nil {
		return nil, fmt.Errorf("invalid collection mint: %w", err)
	}
	return &Minter{
		client:     client,
		seller:     seller,
		collection: collection,
		gateway:    gateway,
		cid:        cid,
	}, nil
}

// metadataURI points at the pre-uploaded JSON for the slot's asset.
func (m *Minter) metadataURI(index uint32) string {
	return m.gateway + metadataDirPath + m.cid + "/" + model.SlotFilename(index) + ".json"
}

// Mint creates the token for the given slot and transfers it to the
// buyer.  It returns only after the mint transaction is confirmed; a
// returned error means no token exists and the caller may compensate.
func (m *Minter) Mint(ctx context.Context, buyerWallet string, index uint32) (*mint.MintOutcome, error) {
	buyer, err := solana.PublicKeyFromBase58(buyerWallet)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}
	sellerPub := m.seller.PublicKey()

	mintKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating mint keypair: %w", err)
	}
	mintPub := mintKey.PublicKey()

	rent, err := m.client.rpc.GetMinimumBalanceForRentExemption(ctx, token.MINT_SIZE, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("fetching rent exemption: %w", err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(buyer, mintPub)
	if err != nil {
		return nil, fmt.Errorf("deriving token account: %w", err)
	}
	metadataPDA, err := findMetadataAddress(mintPub)
	if err != nil {
		return nil, fmt.Errorf("deriving metadata address: %w", err)
	}
	editionPDA, err := findMasterEditionAddress(mintPub)
	if err != nil {
		return nil, fmt.Errorf("deriving edition address: %w", err)
	}

	metadataIx, err := newCreateMetadataV3Instruction(metadataPDA, mintPub, sellerPub, sellerPub, sellerPub, metadataArgs{
		Name:                 fmt.Sprintf("SOLARA GEN:0 #%d", index+1),
		Symbol:               nftSymbol,
		URI:                  m.metadataURI(index),
		SellerFeeBasisPoints: sellerFeeBps,
		Creator:              sellerPub,
		Collection:           m.collection,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding metadata instruction: %w", err)
	}
	editionIx, err := newCreateMasterEditionV3Instruction(editionPDA, mintPub, sellerPub, sellerPub, sellerPub, metadataPDA)
	if err != nil {
		return nil, fmt.Errorf("encoding master edition instruction: %w", err)
	}

	instrs := []solana.Instruction{
		system.NewCreateAccountInstruction(rent, token.MINT_SIZE, solana.TokenProgramID, sellerPub, mintPub).Build(),
		token.NewInitializeMint2Instruction(0, sellerPub, sellerPub, mintPub).Build(),
		associatedtokenaccount.NewCreateInstruction(sellerPub, buyer, mintPub).Build(),
		token.NewMintToInstruction(1, mintPub, ata, sellerPub, nil).Build(),
		metadataIx,
		editionIx,
	}

	sig, err := m.sendAndConfirm(ctx, instrs, mintKey)
	if err != nil {
		return nil, fmt.Errorf("mint transaction: %w", err)
	}

	verified := m.verifyCollection(ctx, metadataPDA)

	return &mint.MintOutcome{
		MintAddress: mintPub.String(),
		Signature:   sig.String(),
		Verified:    verified,
	}, nil
}

// verifyCollection runs the VerifyCollection instruction for the new
// token's metadata.  Failure is logged and reported as false; it never
// fails the mint.
func (m *Minter) verifyCollection(ctx context.Context, itemMetadata solana.PublicKey) bool {
	collectionMetadata, err := findMetadataAddress(m.collection)
	if err != nil {
		log.Printf("collection verification skipped: %v", err)
		return false
	}
	collectionEdition, err := findMasterEditionAddress(m.collection)
	if err != nil {
		log.Printf("collection verification skipped: %v", err)
		return false
	}
	sellerPub := m.seller.PublicKey()
	instr := newVerifyCollectionInstruction(
		itemMetadata, sellerPub, sellerPub, m.collection, collectionMetadata, collectionEdition,
	)
	if _, err := m.sendAndConfirm(ctx, []solana.Instruction{instr}); err != nil {
		log.Printf("collection verification failed: %v", err)
		return false
	}
	return true
}

// sendAndConfirm builds a transaction from the instructions, signs it
// with the seller plus any extra keypairs, submits it, and waits for
// confirmed commitment.
func (m *Minter) sendAndConfirm(ctx context.Context, instrs []solana.Instruction, extraSigners ...solana.PrivateKey) (solana.Signature, error) {
	recent, err := m.client.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetching blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(instrs, recent.Value.Blockhash, solana.TransactionPayer(m.seller.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("building transaction: %w", err)
	}

	signers := map[solana.PublicKey]*solana.PrivateKey{
		m.seller.PublicKey(): &m.seller,
	}
	for i := range extraSigners {
		signers[extraSigners[i].PublicKey()] = &extraSigners[i]
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		return signers[key]
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("signing transaction: %w", err)
	}

	sig, err := m.client.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sending transaction: %w", err)
	}
	if err := m.client.confirmSignature(ctx, sig); err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}
