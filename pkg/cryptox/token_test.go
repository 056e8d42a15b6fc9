package cryptox_test

import (
	"testing"

	"github.com/oakmont/authd/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Run("produces unique tokens", func(t *testing.T) {
		seen := make(map[string]struct{})
		for i := 0; i < 100; i++ {
			tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
			require.NoError(t, err)
			require.Len(t, tok, 43) // 32 bytes base64url without padding

			_, dup := seen[tok]
			require.False(t, dup)
			seen[tok] = struct{}{}
		}
	})

	t.Run("rejects non-positive size", func(t *testing.T) {
		_, err := cryptox.GenerateToken(0)
		require.Error(t, err)
	})
}

func TestFingerprintToken(t *testing.T) {
	fp1 := cryptox.FingerprintToken("abc")
	fp2 := cryptox.FingerprintToken("abc")
	fp3 := cryptox.FingerprintToken("abd")

	require.Equal(t, fp1, fp2)
	require.NotEqual(t, fp1, fp3)
	require.NotEqual(t, "abc", fp1)
}
