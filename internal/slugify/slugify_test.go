package slugify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{input: "Graphic Design!", want: "graphic-design"},
		{input: "  Motion   Graphics  ", want: "motion-graphics"},
		{input: "3D", want: "3d"},
		{input: "Concept_Art", want: "concept-art"},
		{input: "Don't Panic", want: "dont-panic"},
		{input: "C++ Tools", want: "c-tools"},
		{input: "--Open Source--", want: "open-source"},
		{input: "!!!", want: ""},
		{input: "R&D", want: "rd"},
		{input: "Q & A", want: "q-a"},
		{input: "Me @ Work", want: "me-work"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.input, func(t *testing.T) {
			require.Equal(t, testCase.want, Make(testCase.input))
		})
	}
}

func TestMakeIsIdempotent(t *testing.T) {
	for _, input := range []string{"Graphic Design!", "Typography & Color", "Über Café", "a__b--c"} {
		once := Make(input)
		require.Equal(t, once, Make(once), "re-slugifying %q", input)
	}
}
