package bcfw

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const blockSumTol = 1e-8

// State is the mutable optimizer state. It survives between Fit calls and can be
// handed to a new optimizer with WithState to resume training.
type State struct {
	W *mat.VecDense // exposed (averaged) weights used for scoring
	L float64       // exposed (averaged) loss term

	RawW *mat.VecDense // block-coordinate iterate, always Σ WMat[i]
	RawL float64       // always Σ LMat[i]

	WMat []*mat.VecDense // per-sample contribution to RawW
	LMat []float64       // per-sample contribution to RawL
	Mu   []*mat.VecDense // per-sample dual output-embedding surrogate

	K int // number of block updates performed so far
}

// NewState returns a zero state of the given dimension without block arrays.
func NewState(dim int) *State {
	return &State{
		W:    mat.NewVecDense(dim, nil),
		RawW: mat.NewVecDense(dim, nil),
	}
}

// Dim returns the weight dimension.
func (s *State) Dim() int {
	return s.W.Len()
}

// resetBlocks discards block state and restarts the raw iterate from the exposed weights.
func (s *State) resetBlocks(n int, embed func(i int) *mat.VecDense) {
	dim := s.Dim()
	s.RawW = mat.VecDenseCopyOf(s.W)
	s.RawL = s.L
	s.WMat = make([]*mat.VecDense, n)
	s.LMat = make([]float64, n)
	s.Mu = make([]*mat.VecDense, n)
	for i := range n {
		s.WMat[i] = mat.NewVecDense(dim, nil)
		s.Mu[i] = mat.VecDenseCopyOf(embed(i))
	}
	s.K = 0
}

// hasBlocks reports whether the block arrays match n samples of the state dimension.
func (s *State) hasBlocks(n int) bool {
	if s.RawW == nil || len(s.WMat) != n || len(s.LMat) != n || len(s.Mu) != n {
		return false
	}
	for _, b := range s.WMat {
		if b == nil || b.Len() != s.Dim() {
			return false
		}
	}
	return true
}

// stateData represents the serializable form of State
type stateData struct {
	Version int         `gob:"version"`
	Dim     int         `gob:"dim"`
	W       []float64   `gob:"w"`
	L       float64     `gob:"l"`
	RawW    []float64   `gob:"raw_w"`
	RawL    float64     `gob:"raw_l"`
	WMat    [][]float64 `gob:"w_mat"`
	LMat    []float64   `gob:"l_mat"`
	Mu      [][]float64 `gob:"mu"`
	K       int         `gob:"k"`
}

func rawCopy(v *mat.VecDense) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// Save serializes the state to gob format
func (s *State) Save(w io.Writer) error {
	data := stateData{
		Version: 1,
		Dim:     s.Dim(),
		W:       rawCopy(s.W),
		L:       s.L,
		RawW:    rawCopy(s.RawW),
		RawL:    s.RawL,
		LMat:    append([]float64(nil), s.LMat...),
		WMat:    make([][]float64, len(s.WMat)),
		Mu:      make([][]float64, len(s.Mu)),
		K:       s.K,
	}
	for i, b := range s.WMat {
		data.WMat[i] = rawCopy(b)
	}
	for i, m := range s.Mu {
		data.Mu[i] = rawCopy(m)
	}
	return gob.NewEncoder(w).Encode(data)
}

// LoadState deserializes a state from gob format
func LoadState(r io.Reader) (*State, error) {
	var data stateData
	if err := gob.NewDecoder(r).Decode(&data); err != nil {
		return nil, err
	}
	if data.Version != 1 {
		return nil, errors.New("unsupported gob version")
	}
	if data.Dim <= 0 || len(data.W) != data.Dim {
		return nil, fmt.Errorf("%w: invalid weight data length", ErrDimensionMismatch)
	}

	s := &State{
		W:    mat.NewVecDense(data.Dim, data.W),
		L:    data.L,
		RawL: data.RawL,
		K:    data.K,
	}
	if len(data.RawW) == data.Dim {
		s.RawW = mat.NewVecDense(data.Dim, data.RawW)
	} else {
		s.RawW = mat.VecDenseCopyOf(s.W)
	}

	if len(data.WMat) != len(data.LMat) || len(data.WMat) != len(data.Mu) {
		return nil, errors.New("inconsistent block data")
	}
	if len(data.WMat) == 0 {
		return s, nil
	}
	if len(data.RawW) != data.Dim {
		return nil, fmt.Errorf("%w: raw weights missing for %d blocks", ErrDimensionMismatch, len(data.WMat))
	}

	s.WMat = make([]*mat.VecDense, len(data.WMat))
	s.LMat = data.LMat
	s.Mu = make([]*mat.VecDense, len(data.Mu))
	sum := make([]float64, data.Dim)
	for i := range data.WMat {
		if len(data.WMat[i]) != data.Dim {
			return nil, fmt.Errorf("%w: invalid block %d length", ErrDimensionMismatch, i)
		}
		if len(data.Mu[i]) == 0 || len(data.Mu[i]) != len(data.Mu[0]) {
			return nil, fmt.Errorf("%w: embedding %d has length %d, want %d", ErrDimensionMismatch, i, len(data.Mu[i]), len(data.Mu[0]))
		}
		floats.Add(sum, data.WMat[i])
		s.WMat[i] = mat.NewVecDense(data.Dim, data.WMat[i])
		s.Mu[i] = mat.NewVecDense(len(data.Mu[i]), data.Mu[i])
	}
	// RawW and RawL are running sums of the blocks.
	for j, v := range sum {
		if !floats.EqualWithinAbsOrRel(v, data.RawW[j], blockSumTol, blockSumTol) {
			return nil, fmt.Errorf("raw weight %d is %g, blocks sum to %g", j, data.RawW[j], v)
		}
	}
	if l := floats.Sum(data.LMat); !floats.EqualWithinAbsOrRel(l, data.RawL, blockSumTol, blockSumTol) {
		return nil, fmt.Errorf("raw loss is %g, blocks sum to %g", data.RawL, l)
	}
	return s, nil
}
