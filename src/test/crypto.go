package test

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// NewTxID returns a deterministic transaction id for seed.
func NewTxID(seed string) string {
	return chainhash.HashH([]byte(seed)).String()
}

// GetKeychain returns a master key for a fixed seed
func GetKeychain(seed string, params *chaincfg.Params) *hdkeychain.ExtendedKey {
	// NewMaster has a 16-byte limit, so we stretch it a bit here
	extendedSeed := sha256.Sum256([]byte(seed))
	keychain, err := hdkeychain.NewMaster(extendedSeed[:], params)
	if err != nil {
		panic(err)
	}
	return keychain
}

// GetExtendedPubKey returns the public master key for seed. It is an xpub on
// mainnet and a tpub on test networks.
func GetExtendedPubKey(seed string, params *chaincfg.Params) *hdkeychain.ExtendedKey {
	pub, err := GetKeychain(seed, params).Neuter()
	if err != nil {
		panic(err)
	}
	return pub
}

// ExtendedPubKey is GetExtendedPubKey serialized.
func ExtendedPubKey(seed string, params *chaincfg.Params) string {
	return GetExtendedPubKey(seed, params).String()
}

// ExtendedPubKeyWithVersion re-encodes the public master key for seed with
// the given version bytes, e.g. to build a zpub.
func ExtendedPubKeyWithVersion(seed string, params *chaincfg.Params, version [4]byte) string {
	key, err := GetExtendedPubKey(seed, params).CloneWithVersion(version[:])
	if err != nil {
		panic(err)
	}
	return key.String()
}

// GetAddress returns the P2WPKH address of the master key for seed.
func GetAddress(seed string, params *chaincfg.Params) btcutil.Address {
	pubKey, err := GetKeychain(seed, params).ECPubKey()
	if err != nil {
		panic(err)
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubKey.SerializeCompressed()), params,
	)
	if err != nil {
		panic(err)
	}
	return addr
}

// WalletSeed is the seed of the wallet watched in tests.
var WalletSeed = "wallet"

// WalletXPub is the mainnet extended public key of WalletSeed.
var WalletXPub = ExtendedPubKey(WalletSeed, &chaincfg.MainNetParams)
