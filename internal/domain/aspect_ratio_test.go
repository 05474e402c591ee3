package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupAspectRatio(t *testing.T) {
	want := map[string][2]int{
		"1:1":  {1024, 1024},
		"2:3":  {896, 1152},
		"3:2":  {1152, 896},
		"3:4":  {832, 1216},
		"4:3":  {1216, 832},
		"16:9": {1536, 864},
		"9:16": {864, 1536},
	}

	for label, size := range want {
		ar, ok := LookupAspectRatio(label)
		assert.True(t, ok, label)
		assert.Equal(t, size[0], ar.Width, label)
		assert.Equal(t, size[1], ar.Height, label)
	}

	_, ok := LookupAspectRatio("21:9")
	assert.False(t, ok)
	assert.Len(t, AllAspectRatios(), len(want))
}

func TestAllAspectRatios_ReturnsCopy(t *testing.T) {
	ratios := AllAspectRatios()
	ratios[0].Width = 1

	ar, _ := LookupAspectRatio("1:1")
	assert.Equal(t, 1024, ar.Width)
}
