package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := `x1,x2,label
# comment
1.5, 2.0, 0
-1, 0.25, 2
`
	d, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, d.Len())
	assert.Equal(t, []float64{1.5, 2.0}, d.X[0])
	assert.Equal(t, []int{0, 2}, d.Y)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"only header", "a,b,label\n"},
		{"ragged", "1,2,0\n1,2,3,0\n"},
		{"bad value", "1,2,0\n1,x,0\n"},
		{"negative label", "1,2,0\n1,2,-1\n"},
		{"single column", "1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte("0,1,1\n1,0,0\n"), 0o644))
	d, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestBlobs(t *testing.T) {
	d := Blobs(10, 3, 4, 0.5, 42)
	require.Equal(t, 40, d.Len())
	for i, x := range d.X {
		assert.Len(t, x, 3)
		assert.Equal(t, i/10, d.Y[i])
	}

	again := Blobs(10, 3, 4, 0.5, 42)
	assert.Equal(t, d, again, "same seed must give the same data")
}

func TestSplit(t *testing.T) {
	d := Blobs(10, 2, 3, 1, 1)
	train, test := Split(d, 0.2, 7)
	assert.Equal(t, 24, train.Len())
	assert.Equal(t, 6, test.Len())

	counts := map[int]int{}
	for _, y := range append(append([]int{}, train.Y...), test.Y...) {
		counts[y]++
	}
	assert.Equal(t, map[int]int{0: 10, 1: 10, 2: 10}, counts)
}
