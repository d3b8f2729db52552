// Package vectors generates deterministic JSONL known-answer vectors for
// the address pipeline, so that its output can be checked against other
// implementations.
package vectors

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	mrand "math/rand"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/weiihann/addrbench/address"
)

// Vector is one private key and every intermediate of its address.
type Vector struct {
	Index      int    `json:"index"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	Hash160    string `json:"hash160"`
	Checksum   string `json:"checksum"`
	Address    string `json:"address"`
}

// Summary contains statistics about the generated vectors.
type Summary struct {
	Vectors int
	Skipped int
}

// Config controls vector generation.
type Config struct {
	Count      int
	Seed       int64
	Compressed bool
}

// Generator produces deterministic vectors from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

// Generate writes Count vectors to w, one JSON object per line.
func (g *Generator) Generate(w io.Writer) (Summary, error) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var summary Summary

	for summary.Vectors < g.cfg.Count {
		priv, ok := g.randomKey()
		if !ok {
			summary.Skipped++

			continue
		}

		v, err := g.vector(summary.Vectors, priv)
		if err != nil {
			return summary, fmt.Errorf("vector %d: %w", summary.Vectors, err)
		}

		if err := enc.Encode(v); err != nil {
			return summary, fmt.Errorf("encode vector %d: %w", summary.Vectors, err)
		}

		summary.Vectors++
	}

	return summary, nil
}

// randomKey draws 32 bytes and rejects scalars outside [1, n-1].
func (g *Generator) randomKey() (*secp256k1.PrivateKey, bool) {
	var buf [32]byte
	g.rng.Read(buf[:])

	var s secp256k1.ModNScalar
	if overflow := s.SetBytes(&buf); overflow != 0 || s.IsZero() {
		return nil, false
	}

	return secp256k1.NewPrivateKey(&s), true
}

func (g *Generator) vector(index int, priv *secp256k1.PrivateKey) (Vector, error) {
	pub := priv.PubKey().SerializeUncompressed()
	if g.cfg.Compressed {
		pub = priv.PubKey().SerializeCompressed()
	}

	a, err := address.FromPublicKey(pub)
	if err != nil {
		return Vector{}, err
	}

	return Vector{
		Index:      index,
		PrivateKey: hex.EncodeToString(priv.Serialize()),
		PublicKey:  hex.EncodeToString(pub),
		Hash160:    hex.EncodeToString(a.Hash160()),
		Checksum:   hex.EncodeToString(a.Checksum()),
		Address:    a.String(),
	}, nil
}
