package fork

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForkAtRejectsPreGenesis(t *testing.T) {
	_, err := Mainnet.ForkAt(genesisTime - 1)
	require.Error(t, err)
}

func TestForkAtMainnetBoundaries(t *testing.T) {
	f, err := Mainnet.ForkAt(genesisTime)
	require.NoError(t, err)
	require.Equal(t, Merge, f)

	var shanghaiTs uint64 = genesisTime + 194048*32*12
	f, err = Mainnet.ForkAt(shanghaiTs)
	require.NoError(t, err)
	require.Equal(t, Shanghai, f)

	var cancunTs uint64 = genesisTime + 269568*32*12
	f, err = Mainnet.ForkAt(cancunTs)
	require.NoError(t, err)
	require.Equal(t, Cancun, f)
}

func TestForkAtHoleskyBoundaries(t *testing.T) {
	f, err := Holesky.ForkAt(genesisTime + 256*32*12)
	require.NoError(t, err)
	require.Equal(t, Shanghai, f)
}

// TestForkAtMonotone: fork(t1) <= fork(t2) whenever t1 <= t2.
func TestForkAtMonotone(t *testing.T) {
	timestamps := []uint64{
		genesisTime,
		genesisTime + 1000,
		genesisTime + 194048*32*12,
		genesisTime + 269568*32*12,
		genesisTime + 500000*32*12,
	}
	for i := 1; i < len(timestamps); i++ {
		prev, err := Mainnet.ForkAt(timestamps[i-1])
		require.NoError(t, err)
		cur, err := Mainnet.ForkAt(timestamps[i])
		require.NoError(t, err)
		require.LessOrEqual(t, prev, cur)
	}
}
