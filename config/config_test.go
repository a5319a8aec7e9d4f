package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefaultMatchesEngineParams(t *testing.T) {
	cfg := Default()
	params, err := cfg.HubParams()
	require.NoError(t, err)
	require.Zero(t, params.OpeningFee.Cmp(mustAmount(t, "1000000000000000000000")))
	require.Zero(t, params.MinimumCollateralValue.Cmp(mustAmount(t, "5000000000000000000000")))
	require.Equal(t, uint32(20_000), params.ChallengerRewardPPM)
	require.Equal(t, uint8(24), params.MaxCollateralDecimals)

	pool := cfg.ReserveParams()
	require.Equal(t, uint32(200), pool.QuorumBps)
	require.Equal(t, 32, pool.MaxDelegationHops)
}

func TestLoadAppliesOverrides(t *testing.T) {
	path := writeConfig(t, `
[hub]
OpeningFee = "250"
ChallengerRewardPPM = 50000

[reserve]
QuorumBps = 300
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	params, err := cfg.HubParams()
	require.NoError(t, err)
	require.Zero(t, params.OpeningFee.Cmp(big.NewInt(250)))
	require.Equal(t, uint32(50_000), params.ChallengerRewardPPM)
	// Omitted fields keep their defaults.
	require.Zero(t, params.MinimumCollateralValue.Cmp(mustAmount(t, "5000000000000000000000")))
	require.Equal(t, uint32(300), cfg.ReserveParams().QuorumBps)
	require.Equal(t, 32, cfg.ReserveParams().MaxDelegationHops)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed fee", "[hub]\nOpeningFee = \"12x\"\n"},
		{"negative fee", "[hub]\nOpeningFee = \"-5\"\n"},
		{"reward over 100%", "[hub]\nChallengerRewardPPM = 1000001\n"},
		{"quorum over 100%", "[reserve]\nQuorumBps = 10001\n"},
		{"non-positive hops", "[reserve]\nMaxDelegationHops = 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stablehub.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func mustAmount(t *testing.T, s string) *big.Int {
	t.Helper()
	amount, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return amount
}
