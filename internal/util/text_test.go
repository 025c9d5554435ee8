package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "  C25-BOM ", want: "c25-bom"},
		{input: "Torre   Norte", want: "torre norte"},
		{input: "CONSTRUCTORA\tACME ", want: "constructora acme"},
		{input: "OBRA\u00a0VIADUCTO", want: "obra viaducto"},
		{input: "", want: ""},
		{input: "5-250-2-B-28-14-D-2", want: "5-250-2-b-28-14-d-2"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeKey(tc.input), "input %q", tc.input)
	}
}

func TestStripSpaces(t *testing.T) {
	assert.Equal(t, "torrenorte", StripSpaces("torre  norte "))
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"fideicomiso", "sedena"}, Words("fideicomiso de sedena y", 2))
	assert.Empty(t, Words("de la y", 2))
}

func TestLooksLikeRecipeCode(t *testing.T) {
	assert.True(t, LooksLikeRecipeCode("C25-BOM"))
	assert.True(t, LooksLikeRecipeCode("5-250-2-B-28-14-D-2-000"))
	assert.True(t, LooksLikeRecipeCode("PAV 45 28D"))
	assert.False(t, LooksLikeRecipeCode("BOMBEO"))
	assert.False(t, LooksLikeRecipeCode("C2"))
	assert.False(t, LooksLikeRecipeCode("C25--BOM"))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, Levenshtein("c25-bom", "c25-bom"))
	assert.Equal(t, 2, Levenshtein("c25-bom", "c30-bom"))
	assert.Equal(t, 3, Levenshtein("", "abc"))
	assert.Equal(t, 3, Levenshtein("kitten", "sitting"))
	assert.Equal(t, 1, Levenshtein("año", "ano"))
}
