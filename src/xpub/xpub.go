// Package xpub converts SLIP-132 extended public keys into the xpub and tpub
// encodings NBXplorer expects and validates NBXplorer derivation schemes.
package xpub

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
)

// Extended public key version bytes.
var (
	VersionXPub = [4]byte{0x04, 0x88, 0xb2, 0x1e}
	VersionYPub = [4]byte{0x04, 0x9d, 0x7c, 0xb2}
	VersionZPub = [4]byte{0x04, 0xb2, 0x47, 0x46}
	VersionTPub = [4]byte{0x04, 0x35, 0x87, 0xcf}
	VersionUPub = [4]byte{0x04, 0x4a, 0x52, 0x62}
	VersionVPub = [4]byte{0x04, 0x5f, 0x1c, 0xf6}
)

var prefixes = map[[4]byte]string{
	VersionXPub: "xpub",
	VersionYPub: "ypub",
	VersionZPub: "zpub",
	VersionTPub: "tpub",
	VersionUPub: "upub",
	VersionVPub: "vpub",
}

// ErrUnknownVersion is returned for keys that are not xpub, ypub, zpub,
// tpub, upub or vpub.
var ErrUnknownVersion = errors.New("unknown extended public key version")

// Prefix decodes key and returns its version name, e.g. "zpub".
func Prefix(key string) (string, error) {
	k, err := hdkeychain.NewKeyFromString(key)
	if err != nil {
		return "", errors.Wrap(err, "invalid extended public key")
	}
	if k.IsPrivate() {
		return "", errors.New("extended private keys are not accepted")
	}

	var version [4]byte
	copy(version[:], base58.Decode(key)[:4])

	prefix, ok := prefixes[version]
	if !ok {
		return "", errors.Wrapf(ErrUnknownVersion, "version %s", hex.EncodeToString(version[:]))
	}
	return prefix, nil
}

// Convert re-encodes ypub and zpub keys as xpub, and upub and vpub keys as
// tpub. xpub and tpub keys are returned unchanged.
func Convert(key string) (string, error) {
	prefix, err := Prefix(key)
	if err != nil {
		return "", err
	}

	var target [4]byte
	switch prefix {
	case "ypub", "zpub":
		target = VersionXPub
	case "upub", "vpub":
		target = VersionTPub
	default:
		return key, nil
	}

	k, err := hdkeychain.NewKeyFromString(key)
	if err != nil {
		return "", errors.Wrap(err, "invalid extended public key")
	}
	converted, err := k.CloneWithVersion(target[:])
	if err != nil {
		return "", errors.Wrap(err, "could not convert extended public key")
	}
	return converted.String(), nil
}

// Scheme is a parsed NBXplorer derivation scheme.
type Scheme struct {
	// Keys holds the extended public keys in order.
	Keys []string
	// Required is the number of signatures of a multisig scheme, 0 otherwise.
	Required int
	// Options holds the bracketed suffixes, e.g. "legacy".
	Options []string
}

const base58Chars = `[1-9A-HJ-NP-Za-km-z]+`

var (
	singleSigRe = regexp.MustCompile(`^(` + base58Chars + `)((?:-\[(?:legacy|p2sh|taproot)\])?)$`)
	multiSigRe  = regexp.MustCompile(`^([1-9][0-9]*)-of-(` + base58Chars + `(?:-` + base58Chars + `)*)` +
		`((?:-\[(?:legacy|p2sh|keeporder)\])*)$`)
	optionRe = regexp.MustCompile(`\[([a-z]+)\]`)
)

// ParseDerivationScheme parses `xpub`, `xpub-[legacy|p2sh|taproot]` and
// `N-of-xpub1-xpub2[-[legacy|p2sh|keeporder]]`. Every key must be a public
// xpub or tpub.
func ParseDerivationScheme(scheme string) (Scheme, error) {
	var s Scheme
	var options string

	if m := multiSigRe.FindStringSubmatch(scheme); m != nil {
		required, err := strconv.Atoi(m[1])
		if err != nil {
			return Scheme{}, errors.Wrapf(err, "invalid signature count in %q", scheme)
		}
		s.Required = required
		s.Keys = strings.Split(m[2], "-")
		options = m[3]
		if s.Required > len(s.Keys) {
			return Scheme{}, errors.Errorf("%d-of-%d multisig is not satisfiable", s.Required, len(s.Keys))
		}
	} else if m := singleSigRe.FindStringSubmatch(scheme); m != nil {
		s.Keys = []string{m[1]}
		options = m[2]
	} else {
		return Scheme{}, errors.Errorf("invalid derivation scheme %q", scheme)
	}

	for _, o := range optionRe.FindAllStringSubmatch(options, -1) {
		s.Options = append(s.Options, o[1])
	}

	for _, key := range s.Keys {
		prefix, err := Prefix(key)
		if err != nil {
			return Scheme{}, err
		}
		if prefix != "xpub" && prefix != "tpub" {
			return Scheme{}, errors.Errorf("%s keys must be converted to xpub or tpub first", prefix)
		}
	}
	return s, nil
}

// P2WPKHAddress derives the non-hardened child at path from an xpub or tpub
// and returns its P2WPKH address on params.
func P2WPKHAddress(key string, params *chaincfg.Params, path ...uint32) (btcutil.Address, error) {
	k, err := hdkeychain.NewKeyFromString(key)
	if err != nil {
		return nil, errors.Wrap(err, "invalid extended public key")
	}
	if !k.IsForNet(params) {
		return nil, errors.Errorf("extended public key is not for %s", params.Name)
	}

	for _, i := range path {
		k, err = k.Derive(i)
		if err != nil {
			return nil, errors.Wrapf(err, "could not derive child %d", i)
		}
	}

	pubKey, err := k.ECPubKey()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pubKey.SerializeCompressed()), params)
}
