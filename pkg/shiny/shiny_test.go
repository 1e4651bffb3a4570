package shiny

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		id   uint64
		want string
	}{
		{0, "A"},
		{1, "B"},
		{62, "-"},
		{63, "_"},
		{64, "BA"},
		{500, "H0"},
		{9375, "CSf"},
		{math.MaxUint64, "P__________"},
	}

	for _, tt := range tests {
		got := Encode(tt.id)
		assert.Equal(t, tt.want, got, "Encode(%d)", tt.id)

		back, err := Decode(got)
		require.NoError(t, err)
		assert.Equal(t, tt.id, back, "Decode(%q)", got)
	}
}

func TestEncodeLength(t *testing.T) {
	for shift := 0; shift < 64; shift++ {
		id := uint64(1) << shift
		got := Encode(id)
		assert.Len(t, got, shift/6+1, "Encode(1<<%d)", shift)
		assert.True(t, IsValid(got))
		assert.NotEqual(t, byte('A'), got[0], "leading zero digit for 1<<%d", shift)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 10000; i++ {
		id := rng.Uint64()
		got, err := Decode(Encode(id))
		require.NoError(t, err)
		require.Equal(t, id, got)
	}

	for id := uint64(0); id < 5000; id++ {
		got, err := Decode(Encode(id))
		require.NoError(t, err)
		require.Equal(t, id, got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr error
	}{
		{in: "A", want: 0},
		{in: "", want: 0},
		{in: "H0", want: 500},
		{in: "AAH0", want: 500},
		{in: "CSf", want: 9375},
		{in: "P__________", want: math.MaxUint64},
		{in: "AP__________", wantErr: ErrOutOfRange},
		{in: "Q__________", wantErr: ErrOutOfRange},
		{in: "__________________", wantErr: ErrOutOfRange},
		{in: "!@#$%", wantErr: ErrInvalidInput},
		{in: "1_1-Q_@-", wantErr: ErrInvalidInput},
		{in: "H0 ", wantErr: ErrInvalidInput},
		{in: "Hé", wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Decode(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"A", true},
		{"b", true},
		{"_", true},
		{"-", true},
		{"F_0", true},
		{"fPg97-", true},
		{"", true},
		{strings.Repeat("z", 40), true},
		{"!@#$%", false},
		{"1_1-Q_@-", false},
		{"a.b", false},
		{"a+b", false},
		{"a/b", false},
		{"ü", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValid(tt.in), "IsValid(%q)", tt.in)
		assert.Equal(t, tt.want, IsValid(tt.in), "IsValid(%q) second call", tt.in)
	}
}

func TestIsValidEveryByte(t *testing.T) {
	for b := 0; b < 256; b++ {
		want := strings.IndexByte(Alphabet, byte(b)) >= 0
		assert.Equal(t, want, IsValid(string([]byte{byte(b)})), "byte %#x", b)
	}
}

func TestAlphabet(t *testing.T) {
	require.Len(t, Alphabet, 64)

	seen := make(map[rune]bool, len(Alphabet))
	for i, r := range Alphabet {
		require.False(t, seen[r], "duplicate %q", r)
		seen[r] = true
		assert.Equal(t, int8(i), index[byte(r)])
	}
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed))
			for i := 0; i < 1000; i++ {
				id := rng.Uint64()
				got, err := Decode(Encode(id))
				if err != nil || got != id {
					t.Errorf("round trip %d: got %d, %v", id, got, err)
					return
				}
			}
		}(uint64(w))
	}
	wg.Wait()
}

func TestID(t *testing.T) {
	id := ID(500)
	assert.Equal(t, "H0", id.String())
	assert.Equal(t, uint64(500), id.Uint64())

	parsed, err := Parse("CSf")
	require.NoError(t, err)
	assert.Equal(t, ID(9375), parsed)

	_, err = Parse("!@#$%")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestIDJSON(t *testing.T) {
	type payload struct {
		ID ID `json:"id"`
	}

	data, err := json.Marshal(payload{ID: 9375})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"CSf"}`, string(data))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"id":"P__________"}`), &p))
	assert.Equal(t, ID(math.MaxUint64), p.ID)

	err = json.Unmarshal([]byte(`{"id":"no way"}`), &p)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func BenchmarkEncode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Encode(uint64(i) * 2654435761)
	}
}

func BenchmarkDecode(b *testing.B) {
	s := Encode(math.MaxUint64)
	for i := 0; i < b.N; i++ {
		_, _ = Decode(s)
	}
}
