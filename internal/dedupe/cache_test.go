package dedupe_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/pdfcal/internal/dedupe"
)

func TestSetClaimDuplicate(t *testing.T) {
	set := dedupe.NewSet(4)

	first, dup := set.Claim("alpha", 0)
	require.False(t, dup)
	require.Equal(t, 0, first)

	first, dup = set.Claim("alpha", 3)
	require.True(t, dup)
	require.Equal(t, 0, first)

	_, dup = set.Claim("beta", 1)
	require.False(t, dup)
	require.Equal(t, 2, set.Len())
}

func TestSetConcurrentClaims(t *testing.T) {
	set := dedupe.NewSet(0)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, dup := set.Claim("same", i); !dup {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, fresh)
	require.Equal(t, 1, set.Len())
}
