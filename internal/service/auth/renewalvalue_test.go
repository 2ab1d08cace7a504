package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenewalValues(t *testing.T) {
	r := renewalValues{key: []byte(testSecret)}

	t.Run("generate", func(t *testing.T) {
		value, hash, err := r.Generate()

		require.NoError(t, err)
		require.Len(t, strings.Split(value, "."), 2)
		require.Len(t, hash, 64, "hex sha256 expected")
		require.Equal(t, r.Hash(value), hash)
		require.NotContains(t, hash, value)
		require.NoError(t, r.CheckSignature(value))
	})

	t.Run("values are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 100 {
			value, _, err := r.Generate()
			require.NoError(t, err)
			require.False(t, seen[value])
			seen[value] = true
		}
	})

	t.Run("bad signatures", func(t *testing.T) {
		value, _, err := r.Generate()
		require.NoError(t, err)
		random, _, _ := strings.Cut(value, ".")

		other := renewalValues{key: []byte("other-secret")}
		foreign, _, err := other.Generate()
		require.NoError(t, err)

		for _, v := range []string{
			"",
			"no-dot",
			random + ".",
			random + ".!!!",
			"!!!." + random,
			random + "." + random,
			foreign,
		} {
			require.ErrorIs(t, r.CheckSignature(v), errBadRenewalSignature, "value %q", v)
		}
	})
}
