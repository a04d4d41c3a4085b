package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptedRand_ReplaysModulo(t *testing.T) {
	r := NewScriptedRand(3, 7, 1)

	assert.Equal(t, 3, r.IntN(10))
	assert.Equal(t, 1, r.IntN(3)) // 7 % 3
	assert.Equal(t, 1, r.IntN(5))
	assert.Equal(t, 0, r.IntN(5), "exhausted script returns 0")
	assert.Equal(t, 3, r.Consumed())

	r.Reset()
	assert.Equal(t, 3, r.IntN(10))
}

func TestShape(t *testing.T) {
	assert.Equal(t, "germline(1(2(3)))", Shape(Chain(t, 3)))
	assert.Equal(t, "germline(1,2,3)", Shape(Flat(t, 3)))
}

func TestRequireValid_AcceptsBuiltTrees(t *testing.T) {
	RequireValid(t, Chain(t, 5))
	RequireValid(t, Flat(t, 5))
	RequireValidLosses(t, Flat(t, 2))
}
