package murmur

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twmb "github.com/twmb/murmur3"
)

func TestSum32GoldenVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		seed uint32
		want uint32
	}{
		{"empty seed 0", "", 0, 0x00000000},
		{"empty seed 1", "", 1, 0x514e28b7},
		{"empty seed all ones", "", 0xffffffff, 0x81f16f39},
		{"one block aaaa", "aaaa", 0x9747b28c, 0x5a97808a},
		{"one block abcd", "abcd", 0x9747b28c, 0xf0478627},
		{"tail 3", "aaa", 0x9747b28c, 0x283e0130},
		{"tail 2", "aa", 0x9747b28c, 0x5d211726},
		{"tail 1", "a", 0x9747b28c, 0x7fa09ea6},
		{"sentence", "The quick brown fox jumps over the lazy dog", 0x9747b28c, 0x2fa826cd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equalf(t, tt.want, Sum32([]byte(tt.data), tt.seed), "Sum32(%q, %#x)", tt.data, tt.seed)
		})
	}
}

func TestSum32NilEqualsEmpty(t *testing.T) {
	require.Equal(t, uint32(0), Sum32(nil, 0))
	require.Equal(t, Sum32([]byte{}, 42), Sum32(nil, 42))
}

func TestSum32Deterministic(t *testing.T) {
	data := []byte("https://news.ycombinator.com/item?id=1")
	first := Sum32(data, 7)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, Sum32(data, 7))
	}
	assert.NotEqual(t, first, Sum32(data, 8), "distinct seeds should give distinct digests")
}

// the digest must agree with an independent murmur3 implementation.
func TestSum32MatchesIndependentImplementation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		data := make([]byte, rng.Intn(67))
		rng.Read(data)
		seed := rng.Uint32()

		got := Sum32(data, seed)
		require.Equalf(t, twmb.SeedSum32(seed, data), got, "twmb mismatch len=%d seed=%#x", len(data), seed)
	}
}

func BenchmarkSum32(b *testing.B) {
	data := []byte("//example.com/some/reasonably/long/path?with=query")
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		Sum32(data, uint32(i))
	}
}
