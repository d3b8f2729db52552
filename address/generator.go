package address

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // hash160 is defined over RIPEMD-160
)

// hasher holds reusable hash state for one goroutine.
type hasher struct {
	sha    hash.Hash
	ripemd hash.Hash
	digest []byte
}

func newHasher() *hasher {
	return &hasher{
		sha:    sha256.New(),
		ripemd: ripemd160.New(),
		digest: make([]byte, 0, sha256.Size),
	}
}

func (h *hasher) address(pubKey []byte) (Address, error) {
	h.sha.Reset()
	h.sha.Write(pubKey)
	h.digest = h.sha.Sum(h.digest[:0])

	h.ripemd.Reset()
	h.ripemd.Write(h.digest)
	h.digest = h.ripemd.Sum(h.digest[:0])

	if len(h.digest) != HashLen {
		return Address{}, fmt.Errorf("%w: ripemd160 produced %d bytes",
			ErrHash, len(h.digest))
	}

	var a Address
	a[0] = Version
	copy(a[1:], h.digest)

	h.sha.Reset()
	h.sha.Write(a[:1+HashLen])
	h.digest = h.sha.Sum(h.digest[:0])

	h.sha.Reset()
	h.sha.Write(h.digest)
	h.digest = h.sha.Sum(h.digest[:0])

	if len(h.digest) < ChecksumLen {
		return Address{}, fmt.Errorf("%w: sha256 produced %d bytes",
			ErrHash, len(h.digest))
	}

	copy(a[1+HashLen:], h.digest[:ChecksumLen])

	return a, nil
}

// Generator produces addresses from fresh keys. A Generator is not safe
// for concurrent use; each worker owns one.
type Generator struct {
	rand       io.Reader
	compressed bool
	h          *hasher
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand sets the entropy source for key generation.
func WithRand(r io.Reader) Option {
	return func(g *Generator) { g.rand = r }
}

// WithCompressedKeys hashes the 33-byte compressed public key instead of
// the 65-byte uncompressed one.
func WithCompressedKeys() Option {
	return func(g *Generator) { g.compressed = true }
}

// NewGenerator returns a Generator reading entropy from crypto/rand.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rand: rand.Reader,
		h:    newHasher(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate creates a new key pair and returns its address. The private
// key does not outlive the call.
func (g *Generator) Generate() (Address, error) {
	key, err := secp256k1.GeneratePrivateKeyFromRand(g.rand)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %w", ErrKeyGeneration, err)
	}
	defer key.Zero()

	return g.h.address(g.serialize(key.PubKey()))
}

// GenerateString is Generate followed by base58 encoding.
func (g *Generator) GenerateString() (string, error) {
	a, err := g.Generate()
	if err != nil {
		return "", err
	}

	return a.String(), nil
}

func (g *Generator) serialize(pub *secp256k1.PublicKey) []byte {
	if g.compressed {
		return pub.SerializeCompressed()
	}

	return pub.SerializeUncompressed()
}

// FromPrivateKey derives the address for a 32-byte private key scalar.
func FromPrivateKey(priv []byte, compressed bool) (Address, error) {
	if len(priv) != secp256k1.PrivKeyBytesLen {
		return Address{}, fmt.Errorf("%w: private key has %d bytes",
			ErrKeyGeneration, len(priv))
	}

	key := secp256k1.PrivKeyFromBytes(priv)
	defer key.Zero()

	if key.Key.IsZero() {
		return Address{}, fmt.Errorf("%w: zero private key", ErrKeyGeneration)
	}

	pub := key.PubKey()
	if compressed {
		return FromPublicKey(pub.SerializeCompressed())
	}

	return FromPublicKey(pub.SerializeUncompressed())
}
