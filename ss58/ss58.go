// Package ss58 encodes raw account public keys as SS58 address strings.
package ss58

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/vedhavyas/go-subkey/v2"
)

const (
	checksumLen = 2
	maxPrefix   = 16383
)

var (
	ErrInvalidAddress  = errors.New("invalid ss58 address")
	ErrInvalidChecksum = errors.New("invalid ss58 checksum")
)

// Encode returns the SS58 address of pub for the given network prefix.
// Prefixes 0..63 use the single byte form, 64..16383 the two byte form.
func Encode(pub []byte, prefix uint16) (string, error) {
	// subkey masks the upper two bits instead of rejecting them.
	if prefix > maxPrefix {
		return "", fmt.Errorf("ss58 prefix %d out of range", prefix)
	}
	return subkey.SS58Encode(pub, prefix), nil
}

// Decode returns the public key and network prefix encoded in addr.
func Decode(addr string) ([]byte, uint16, error) {
	// subkey slices the payload without checking it covers prefix and
	// checksum, so short inputs are rejected here first.
	raw := base58.Decode(addr)
	if len(raw) < 1+checksumLen+1 {
		return nil, 0, ErrInvalidAddress
	}
	switch {
	case raw[0] < 64:
	case raw[0] < 128:
		if len(raw) < 2+checksumLen+1 {
			return nil, 0, ErrInvalidAddress
		}
	default:
		return nil, 0, fmt.Errorf("%w: reserved prefix byte %d", ErrInvalidAddress, raw[0])
	}

	prefix, pub, err := subkey.SS58Decode(addr)
	if err != nil {
		if strings.Contains(err.Error(), "checksum") {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidChecksum, err)
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return pub, prefix, nil
}
