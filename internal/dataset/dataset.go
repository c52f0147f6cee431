// Package dataset loads labeled feature vectors for the multiclass model.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Dataset holds inputs and integer labels.
type Dataset struct {
	X [][]float64
	Y []int
}

// Len returns the number of samples.
func (d Dataset) Len() int { return len(d.X) }

// ReadCSV parses rows of numeric features followed by an integer label.
// A first row that does not parse is treated as a header.
func ReadCSV(r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var d Dataset
	width := -1
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, err
		}
		if len(rec) < 2 {
			return Dataset{}, fmt.Errorf("line %d: need at least one feature and a label", line)
		}
		x, y, err := parseRow(rec)
		if err != nil {
			if line == 1 {
				continue
			}
			return Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}
		if width >= 0 && len(x) != width {
			return Dataset{}, fmt.Errorf("line %d: got %d features, want %d", line, len(x), width)
		}
		width = len(x)
		d.X = append(d.X, x)
		d.Y = append(d.Y, y)
	}
	if d.Len() == 0 {
		return Dataset{}, errors.New("no samples")
	}
	return d, nil
}

func parseRow(rec []string) ([]float64, int, error) {
	x := make([]float64, len(rec)-1)
	for i, s := range rec[:len(rec)-1] {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, 0, err
		}
		x[i] = v
	}
	y, err := strconv.Atoi(strings.TrimSpace(rec[len(rec)-1]))
	if err != nil {
		return nil, 0, err
	}
	if y < 0 {
		return nil, 0, fmt.Errorf("negative label %d", y)
	}
	return x, y, nil
}

// LoadCSV reads a dataset file.
func LoadCSV(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()
	d, err := ReadCSV(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Blobs draws perClass samples around one random center per class.
// Centers are uniform in [-5, 5] per feature and samples add N(0, spread²) noise.
func Blobs(perClass, features, classes int, spread float64, seed uint64) Dataset {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	center := distuv.Uniform{Min: -5, Max: 5, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: spread, Src: src}

	centers := make([][]float64, classes)
	for c := range centers {
		centers[c] = make([]float64, features)
		for f := range centers[c] {
			centers[c][f] = center.Rand()
		}
	}

	d := Dataset{
		X: make([][]float64, 0, perClass*classes),
		Y: make([]int, 0, perClass*classes),
	}
	for c := range classes {
		for range perClass {
			x := make([]float64, features)
			for f := range x {
				x[f] = centers[c][f] + noise.Rand()
			}
			d.X = append(d.X, x)
			d.Y = append(d.Y, c)
		}
	}
	return d
}

// Split shuffles d and moves the given fraction into a test set.
func Split(d Dataset, testRatio float64, seed uint64) (train, test Dataset) {
	rng := rand.New(rand.NewPCG(seed, 0))
	idx := rng.Perm(d.Len())
	nTest := int(testRatio * float64(d.Len()))
	for k, i := range idx {
		if k < nTest {
			test.X = append(test.X, d.X[i])
			test.Y = append(test.Y, d.Y[i])
		} else {
			train.X = append(train.X, d.X[i])
			train.Y = append(train.Y, d.Y[i])
		}
	}
	return train, test
}
