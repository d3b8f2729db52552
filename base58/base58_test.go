package base58

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/rand"
	"strings"
	"testing"

	btcbase58 "github.com/btcsuite/btcutil/base58"
)

func TestEncodeKnownVectors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"00", "1"},
		{"0000", "11"},
		{"000001", "112"},
		{"61", "2g"},
		{"626262", "a3gV"},
		{"636363", "aPEr"},
		{"000000287fb4cd", "111233QC4"},
		{hex.EncodeToString([]byte("Hello World!")), "2NEpo7TZRRrLZSi2U"},
		{
			"00f54a5851e9372b87810a8e60cdd2e7cfd80b6e31c7f18fe8",
			"1PMycacnJaSqwwJqjawXBErnLsZ7RkXUAs",
		},
	}

	for _, tt := range tests {
		in, err := hex.DecodeString(tt.in)
		if err != nil {
			t.Fatalf("bad test vector %q: %v", tt.in, err)
		}

		got := Encode(in)
		if got != tt.want {
			t.Errorf("Encode(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncodeLeadingZeros(t *testing.T) {
	got := Encode([]byte{0x00, 0x00, 0x01})

	if !strings.HasPrefix(got, "11") {
		t.Fatalf("Encode = %q, want two leading '1'", got)
	}
	if got[2:] != string(Alphabet[1]) {
		t.Errorf("Encode = %q, want digit for 1 after zeros", got)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	inputs := [][]byte{
		{},
		{0},
		{0, 0, 0, 0},
		{0, 0, 1},
		{0, 0xff, 0},
		{0xff},
		bytes.Repeat([]byte{0xff}, 34),
		bytes.Repeat([]byte{0x00}, 25),
	}

	for i := 0; i < 200; i++ {
		buf := make([]byte, rng.Intn(80))
		rng.Read(buf)

		// Force a leading-zero run on a share of the inputs.
		for j := 0; j < len(buf) && j < rng.Intn(4); j++ {
			buf[j] = 0
		}

		inputs = append(inputs, buf)
	}

	for _, in := range inputs {
		enc := Encode(in)

		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", enc, err)
		}

		if !bytes.Equal(dec, in) {
			t.Errorf("round trip of %x = %x", in, dec)
		}
	}
}

func TestMatchesBtcutil(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		buf := make([]byte, 1+rng.Intn(64))
		rng.Read(buf)
		if i%5 == 0 {
			buf[0] = 0
		}

		got := Encode(buf)
		want := btcbase58.Encode(buf)
		if got != want {
			t.Fatalf("Encode(%x) = %q, btcutil = %q", buf, got, want)
		}
	}
}

func TestEncodeLargeInput(t *testing.T) {
	in := bytes.Repeat([]byte{0xff}, 5000)

	enc := Encode(in)
	if len(enc) > EncodedLen(len(in)) {
		t.Errorf("encoded length %d exceeds bound %d",
			len(enc), EncodedLen(len(in)))
	}

	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(dec, in) {
		t.Error("5000-byte round trip mismatch")
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, s := range []string{"0", "O", "I", "l", "abc!", "1 1"} {
		_, err := Decode(s)
		if !errors.Is(err, ErrInvalidCharacter) {
			t.Errorf("Decode(%q) error = %v, want ErrInvalidCharacter", s, err)
		}
	}
}

func BenchmarkEncodeAddr(b *testing.B) {
	data := bytes.Repeat([]byte{0xff}, 25)
	b.SetBytes(int64(len(data)))

	for i := 0; i < b.N; i++ {
		Encode(data)
	}
}
