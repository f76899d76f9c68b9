package pool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SelectRoundRobin(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7} {
		t.Run(fmt.Sprintf("%d endpoints", n), func(t *testing.T) {
			endpoints := make([]string, n)
			for i := range endpoints {
				endpoints[i] = fmt.Sprintf("relay-%d", i)
			}
			p := New(endpoints...)

			seen := make(map[string]int, n)
			var first string
			for i := range n {
				ep, err := p.Select()
				require.NoError(t, err)
				if i == 0 {
					first = ep
				}
				seen[ep]++
			}

			assert.Len(t, seen, n)
			for ep, count := range seen {
				assert.Equal(t, 1, count, "endpoint %s selected more than once", ep)
			}

			again, err := p.Select()
			require.NoError(t, err)
			assert.Equal(t, first, again)
		})
	}
}

func TestPool_SelectEmpty(t *testing.T) {
	p := New[string]()

	for range 3 {
		_, err := p.Select()
		assert.ErrorIs(t, err, ErrNoEndpoints)
	}

	_, err := p.Peek()
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestPool_PeekDoesNotAdvance(t *testing.T) {
	p := New("a", "b")

	ep, err := p.Peek()
	require.NoError(t, err)
	assert.Equal(t, "a", ep)

	ep, err = p.Select()
	require.NoError(t, err)
	assert.Equal(t, "a", ep)

	ep, err = p.Peek()
	require.NoError(t, err)
	assert.Equal(t, "b", ep)
}

func TestPool_EndpointsFromCursor(t *testing.T) {
	p := New("a", "b", "c")
	_, _ = p.Select()

	assert.Equal(t, []string{"b", "c", "a"}, p.Endpoints())
}

func TestPool_ResetRewindsCursor(t *testing.T) {
	p := New("a", "b", "c")
	_, _ = p.Select()
	_, _ = p.Select()

	p.Reset("x")

	ep, err := p.Select()
	require.NoError(t, err)
	assert.Equal(t, "x", ep)
	assert.Equal(t, 1, p.Len())
}
