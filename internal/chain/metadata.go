package chain

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Token metadata program instruction discriminators (single u8 prefix).
const (
	ixCreateMetadataAccountV3 = 33
	ixCreateMasterEditionV3   = 17
	ixVerifyCollection        = 18
)

// Borsh argument layouts for the token-metadata instructions.  Optional
// fields carry the single-byte Some/None tag through the `bin:"optional"`
// struct tag, matching how solana-go's own program packages encode
// instruction data.
type creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

type collectionField struct {
	Verified bool
	Key      solana.PublicKey
}

type usesField struct {
	UseMethod uint8
	Remaining uint64
	Total     uint64
}

type collectionDetailsV1 struct {
	Size uint64
}

type dataV2 struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             *[]creator       `bin:"optional"`
	Collection           *collectionField `bin:"optional"`
	Uses                 *usesField       `bin:"optional"`
}

type createMetadataAccountV3Args struct {
	Data              dataV2
	IsMutable         bool
	CollectionDetails *collectionDetailsV1 `bin:"optional"`
}

type createMasterEditionV3Args struct {
	MaxSupply *uint64 `bin:"optional"`
}

// borshData serializes the discriminator followed by the Borsh-encoded
// args.  A nil args encodes the discriminator alone.
func borshData(discriminator uint8, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(discriminator)
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// findMetadataAddress derives the metadata PDA for a mint:
// ["metadata", program id, mint].
func findMetadataAddress(mintAccount solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			solana.TokenMetadataProgramID.Bytes(),
			mintAccount.Bytes(),
		},
		solana.TokenMetadataProgramID,
	)
	return addr, err
}

// findMasterEditionAddress derives the master edition PDA for a mint:
// ["metadata", program id, mint, "edition"].
func findMasterEditionAddress(mintAccount solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			solana.TokenMetadataProgramID.Bytes(),
			mintAccount.Bytes(),
			[]byte("edition"),
		},
		solana.TokenMetadataProgramID,
	)
	return addr, err
}

// metadataArgs carries the on-chain metadata for a freshly minted token.
// Collection is written unverified; verification is a separate
// instruction signed by the collection authority.
type metadataArgs struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creator              solana.PublicKey
	Collection           solana.PublicKey
}

// newCreateMetadataV3Instruction builds CreateMetadataAccountV3.  The
// creator list holds the seller as the sole verified creator with the
// full share, matching what the Metaplex SDK writes for a create() call.
func newCreateMetadataV3Instruction(metadata, mintAccount, mintAuthority, payer, updateAuthority solana.PublicKey, args metadataArgs) (solana.Instruction, error) {
	creators := []creator{{
		Address:  args.Creator,
		Verified: true, // creator == update authority signs this tx
		Share:    100,
	}}
	data, err := borshData(ixCreateMetadataAccountV3, createMetadataAccountV3Args{
		Data: dataV2{
			Name:                 args.Name,
			Symbol:               args.Symbol,
			URI:                  args.URI,
			SellerFeeBasisPoints: args.SellerFeeBasisPoints,
			Creators:             &creators,
			Collection:           &collectionField{Verified: false, Key: args.Collection},
		},
		IsMutable: true,
	})
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		solana.TokenMetadataProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(metadata, true, false),
			solana.NewAccountMeta(mintAccount, false, false),
			solana.NewAccountMeta(mintAuthority, false, true),
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(updateAuthority, false, true),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		},
		data,
	), nil
}

// newCreateMasterEditionV3Instruction builds CreateMasterEditionV3 with a
// max supply of zero, making the token a 1/1.
func newCreateMasterEditionV3Instruction(edition, mintAccount, updateAuthority, mintAuthority, payer, metadata solana.PublicKey) (solana.Instruction, error) {
	maxSupply := uint64(0)
	data, err := borshData(ixCreateMasterEditionV3, createMasterEditionV3Args{
		MaxSupply: &maxSupply,
	})
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		solana.TokenMetadataProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(edition, true, false),
			solana.NewAccountMeta(mintAccount, true, false),
			solana.NewAccountMeta(updateAuthority, false, true),
			solana.NewAccountMeta(mintAuthority, false, true),
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(metadata, true, false),
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		},
		data,
	), nil
}

// newVerifyCollectionInstruction builds VerifyCollection, flipping the
// collection field on the item's metadata to verified.  Signed by the
// collection authority.  The instruction has no arguments.
func newVerifyCollectionInstruction(metadata, collectionAuthority, payer, collectionMint, collectionMetadata, collectionMasterEdition solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.TokenMetadataProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(metadata, true, false),
			solana.NewAccountMeta(collectionAuthority, true, true),
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(collectionMint, false, false),
			solana.NewAccountMeta(collectionMetadata, false, false),
			solana.NewAccountMeta(collectionMasterEdition, false, false),
		},
		[]byte{ixVerifyCollection},
	)
}
