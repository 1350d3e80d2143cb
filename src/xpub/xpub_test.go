package xpub

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xb10c/block-alert/src/test"
)

func TestConvert(t *testing.T) {
	mainnet := &chaincfg.MainNetParams
	regtest := &chaincfg.RegressionNetParams
	xpub := test.ExtendedPubKey("convert", mainnet)
	tpub := test.ExtendedPubKey("convert", regtest)

	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{"xpub unchanged", xpub, xpub},
		{"tpub unchanged", tpub, tpub},
		{"ypub", test.ExtendedPubKeyWithVersion("convert", mainnet, VersionYPub), xpub},
		{"zpub", test.ExtendedPubKeyWithVersion("convert", mainnet, VersionZPub), xpub},
		{"upub", test.ExtendedPubKeyWithVersion("convert", regtest, VersionUPub), tpub},
		{"vpub", test.ExtendedPubKeyWithVersion("convert", regtest, VersionVPub), tpub},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			converted, err := Convert(tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, converted)
		})
	}
}

func TestConvert_PreservesKeyMaterial(t *testing.T) {
	zpub := test.ExtendedPubKeyWithVersion("material", &chaincfg.MainNetParams, VersionZPub)

	converted, err := Convert(zpub)
	require.NoError(t, err)

	before, err := hdkeychain.NewKeyFromString(zpub)
	require.NoError(t, err)
	after, err := hdkeychain.NewKeyFromString(converted)
	require.NoError(t, err)

	beforePub, err := before.ECPubKey()
	require.NoError(t, err)
	afterPub, err := after.ECPubKey()
	require.NoError(t, err)
	assert.Equal(t, beforePub.SerializeCompressed(), afterPub.SerializeCompressed())
	assert.Equal(t, before.ChainCode(), after.ChainCode())
}

func TestConvert_Errors(t *testing.T) {
	unknown := test.ExtendedPubKeyWithVersion("unknown", &chaincfg.MainNetParams, [4]byte{0x01, 0x02, 0x03, 0x04})
	_, err := Convert(unknown)
	assert.True(t, errors.Is(err, ErrUnknownVersion))

	xprv := test.GetKeychain("private", &chaincfg.MainNetParams).String()
	_, err = Convert(xprv)
	assert.EqualError(t, err, "extended private keys are not accepted")

	_, err = Convert("not a key")
	assert.Error(t, err)
}

func TestParseDerivationScheme(t *testing.T) {
	xpub1 := test.ExtendedPubKey("one", &chaincfg.MainNetParams)
	xpub2 := test.ExtendedPubKey("two", &chaincfg.MainNetParams)
	tpub := test.ExtendedPubKey("three", &chaincfg.RegressionNetParams)

	tests := []struct {
		scheme   string
		expected Scheme
	}{
		{xpub1, Scheme{Keys: []string{xpub1}}},
		{tpub, Scheme{Keys: []string{tpub}}},
		{xpub1 + "-[legacy]", Scheme{Keys: []string{xpub1}, Options: []string{"legacy"}}},
		{xpub1 + "-[p2sh]", Scheme{Keys: []string{xpub1}, Options: []string{"p2sh"}}},
		{xpub1 + "-[taproot]", Scheme{Keys: []string{xpub1}, Options: []string{"taproot"}}},
		{"1-of-" + xpub1 + "-" + xpub2, Scheme{Keys: []string{xpub1, xpub2}, Required: 1}},
		{
			"2-of-" + xpub1 + "-" + xpub2 + "-[p2sh]-[keeporder]",
			Scheme{Keys: []string{xpub1, xpub2}, Required: 2, Options: []string{"p2sh", "keeporder"}},
		},
	}

	for _, tc := range tests {
		s, err := ParseDerivationScheme(tc.scheme)
		require.NoError(t, err, tc.scheme)
		assert.Equal(t, tc.expected, s)
	}
}

func TestParseDerivationScheme_Invalid(t *testing.T) {
	xpub := test.ExtendedPubKey("one", &chaincfg.MainNetParams)
	zpub := test.ExtendedPubKeyWithVersion("one", &chaincfg.MainNetParams, VersionZPub)

	tests := []struct {
		scheme string
		msg    string
	}{
		{"", "invalid derivation scheme"},
		{xpub + "-[segwit]", "invalid derivation scheme"},
		{xpub + "-[taproot]-[p2sh]", "invalid derivation scheme"},
		{"3-of-" + xpub + "-" + xpub, "3-of-2 multisig is not satisfiable"},
		{zpub, "zpub keys must be converted to xpub or tpub first"},
		{"xpubnotakey", "invalid extended public key"},
	}

	for _, tc := range tests {
		_, err := ParseDerivationScheme(tc.scheme)
		require.Error(t, err, tc.scheme)
		assert.Contains(t, err.Error(), tc.msg, tc.scheme)
	}
}

func TestP2WPKHAddress(t *testing.T) {
	regtest := &chaincfg.RegressionNetParams
	tpub := test.ExtendedPubKey(test.WalletSeed, regtest)

	master, err := P2WPKHAddress(tpub, regtest)
	require.NoError(t, err)
	assert.Equal(t, test.GetAddress(test.WalletSeed, regtest).String(), master.String())

	child, err := P2WPKHAddress(tpub, regtest, 0, 0)
	require.NoError(t, err)
	assert.NotEqual(t, master.String(), child.String())
	assert.True(t, strings.HasPrefix(child.String(), "bcrt1q"))

	expectedKey, err := test.GetKeychain(test.WalletSeed, regtest).Derive(0)
	require.NoError(t, err)
	expectedKey, err = expectedKey.Derive(0)
	require.NoError(t, err)
	expectedPub, err := expectedKey.ECPubKey()
	require.NoError(t, err)
	expected, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(expectedPub.SerializeCompressed()), regtest)
	require.NoError(t, err)
	assert.Equal(t, expected.String(), child.String())

	_, err = P2WPKHAddress(test.WalletXPub, regtest)
	assert.EqualError(t, err, "extended public key is not for regtest")
}
