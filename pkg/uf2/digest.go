package uf2

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/adler32"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DigestAlgorithm selects the hash shown next to each summarized part.
// Digests are written as "algorithm:hex".
type DigestAlgorithm int

const (
	DigestBlake2b DigestAlgorithm = iota
	DigestSHA256
	DigestAdler32
)

func (d DigestAlgorithm) String() string {
	switch d {
	case DigestBlake2b:
		return "blake2b"
	case DigestSHA256:
		return "sha256"
	case DigestAdler32:
		return "adler32"
	default:
		return "unknown"
	}
}

// ParseDigestAlgorithm parses an algorithm name.
func ParseDigestAlgorithm(name string) (DigestAlgorithm, error) {
	switch strings.ToLower(name) {
	case "blake2b", "":
		return DigestBlake2b, nil
	case "sha256":
		return DigestSHA256, nil
	case "adler32":
		return DigestAdler32, nil
	default:
		return DigestBlake2b, fmt.Errorf("unknown digest algorithm: %s", name)
	}
}

// ParseDigest splits "algorithm:hex". A bare hex string is classified by
// its length.
func ParseDigest(digest string) (DigestAlgorithm, string, error) {
	if algo, value, ok := strings.Cut(digest, ":"); ok {
		a, err := ParseDigestAlgorithm(algo)
		if err != nil {
			return a, "", err
		}
		return a, strings.ToLower(value), nil
	}

	switch len(digest) {
	case 8:
		return DigestAdler32, strings.ToLower(digest), nil
	case 64:
		// blake2b-256 and sha256 have the same length; prefer ours
		return DigestBlake2b, strings.ToLower(digest), nil
	default:
		return DigestBlake2b, "", fmt.Errorf("cannot tell the algorithm of digest %q", digest)
	}
}

func newHash(algo DigestAlgorithm) hash.Hash {
	switch algo {
	case DigestSHA256:
		return sha256.New()
	case DigestAdler32:
		return adler32.New()
	default:
		h, err := blake2b.New256(nil)
		if err != nil {
			// only fails for oversized keys
			panic(err)
		}
		return h
	}
}

// CalculateDigest hashes data and returns "algorithm:hex".
func CalculateDigest(data []byte, algo DigestAlgorithm) string {
	h := newHash(algo)
	h.Write(data)
	return algo.String() + ":" + hex.EncodeToString(h.Sum(nil))
}

// VerifyDigest checks data against a digest string.
func VerifyDigest(data []byte, digest string) (bool, error) {
	algo, expected, err := ParseDigest(digest)
	if err != nil {
		return false, err
	}
	_, actual, _ := strings.Cut(CalculateDigest(data, algo), ":")
	return actual == expected, nil
}
