package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearcherPoolResets(t *testing.T) {
	s := Get()
	s.Visited.Visit(42)
	s.Results.Push(Item{Node: 1, Distance: 1})
	s.Frontier.Push(Item{Node: 2, Distance: 2})
	s.Computed = 7
	Put(s)

	s = Get()
	defer Put(s)
	assert.False(t, s.Visited.Visited(42))
	assert.Zero(t, s.Results.Len())
	assert.Zero(t, s.Frontier.Len())
	assert.Zero(t, s.Computed)
}
