package fair_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-client/internal/fair"
	"casino-client/internal/models"
)

func TestCommitmentRoundTrip(t *testing.T) {
	seeds := []string{
		"a",
		"server-seed",
		"6dd9b9a2f4c8e1a0b3f5d7c9e2a4b6d8f0a2c4e6b8d0f2a4c6e8b0d2f4a6c8e0",
	}
	for _, seed := range seeds {
		assert.True(t, fair.VerifyCommitment(seed, fair.Commitment(seed)), "seed=%q", seed)
	}
}

func TestCommitmentDetectsMutation(t *testing.T) {
	seed := "server-seed"
	published := fair.Commitment(seed)

	// Mutating a single byte of the seed breaks the check.
	mutated := "server-seeD"
	assert.False(t, fair.VerifyCommitment(mutated, published))
	assert.False(t, fair.VerifyCommitment("", published))
}

func TestGameHash(t *testing.T) {
	h1 := fair.GameHash("client", "server")
	h2 := fair.GameHash("client", "server")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	// Concatenation order matters.
	assert.NotEqual(t, h1, fair.GameHash("server", "client"))
}

func TestRollDeterministicAndInRange(t *testing.T) {
	serverSeed := "server-seed"
	clientSeed := "client-seed"

	seen := make(map[int]bool)
	for nonce := int64(0); nonce < 500; nonce++ {
		roll := fair.Roll(serverSeed, clientSeed, nonce)
		require.GreaterOrEqual(t, roll, 0)
		require.LessOrEqual(t, roll, 99)
		assert.Equal(t, roll, fair.Roll(serverSeed, clientSeed, nonce))
		assert.True(t, fair.VerifyRoll(serverSeed, clientSeed, nonce, roll))
		seen[roll] = true
	}
	// 500 draws should cover a good share of the outcome space.
	assert.Greater(t, len(seen), 80)
}

func TestRollDependsOnAllInputs(t *testing.T) {
	base := fair.Roll("server", "client", 7)
	assert.False(t,
		fair.Roll("server2", "client", 7) == base &&
			fair.Roll("server", "client2", 7) == base &&
			fair.Roll("server", "client", 8) == base,
		"roll should not be constant across seed and nonce changes")
}

func TestFlipDeterministic(t *testing.T) {
	sides := map[models.CoinSide]int{}
	for nonce := int64(0); nonce < 200; nonce++ {
		side := fair.Flip("server-seed", "client-seed", nonce)
		assert.Equal(t, side, fair.Flip("server-seed", "client-seed", nonce))
		assert.True(t, fair.VerifyFlip("server-seed", "client-seed", nonce, side))
		sides[side]++
	}
	// Both faces come up over 200 flips.
	assert.Positive(t, sides[models.CoinHeads])
	assert.Positive(t, sides[models.CoinTails])
}

func TestGenerateServerSeed(t *testing.T) {
	a, err := fair.GenerateServerSeed()
	require.NoError(t, err)
	b, err := fair.GenerateServerSeed()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
