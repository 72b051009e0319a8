// Copyright 2025 go-margin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package checkpoint

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin"
)

func TestRoundTrip(t *testing.T) {
	cfg := margin.DefaultConfig(margin.KindArc, 6, 0)
	cfg.TrainClassRange = [2]int{3, 10}
	cfg.Seed = 9
	head, err := margin.NewClassifier(cfg)
	require.NoError(t, err)

	ck := FromClassifier(head)
	b, err := Marshal(ck)
	require.NoError(t, err)

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, margin.KindArc, got.Head)
	assert.Equal(t, 3, got.ClassOffset)
	assert.True(t, mat.Equal(head.Bank().Snapshot(), got.Prototypes))

	restored, err := margin.NewClassifierWithBank(cfg, got.Bank())
	require.NoError(t, err)
	assert.True(t, mat.Equal(head.Bank().Snapshot(), restored.Bank().Snapshot()))
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "head.ckpt")
	ck := &Checkpoint{
		Head:       margin.KindCircle,
		Prototypes: mat.NewDense(2, 3, []float64{1, 2, 3, -4, 5e-300, 6}),
	}
	require.NoError(t, Save(path, ck))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, margin.KindCircle, got.Head)
	assert.Equal(t, 0, got.ClassOffset)
	assert.True(t, mat.Equal(ck.Prototypes, got.Prototypes))

	_, err = Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	ck := &Checkpoint{Head: margin.KindAM, Prototypes: mat.NewDense(1, 2, []float64{0.5, -0.5})}
	b, err := Marshal(ck)
	require.NoError(t, err)

	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future field")
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.True(t, mat.Equal(ck.Prototypes, got.Prototypes))
}

func TestUnmarshalCorrupt(t *testing.T) {
	ck := &Checkpoint{Head: margin.KindAM, Prototypes: mat.NewDense(2, 2, []float64{1, 2, 3, 4})}
	good, err := Marshal(ck)
	require.NoError(t, err)

	wrongVersion := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	wrongVersion = protowire.AppendVarint(wrongVersion, 2)
	wrongVersion = append(wrongVersion, good[2:]...)

	// MaxUint64*MaxUint64 and 2^32*2^32 wrap to 1 and 0 in uint64.
	tests := map[string][]byte{
		"truncated":              good[:len(good)-3],
		"empty":                  nil,
		"garbage":                {0xff, 0xff, 0xff},
		"wrong version":          wrongVersion,
		"wrapping shape":         encodeShape(math.MaxUint64, math.MaxUint64, 1),
		"wrapping shape no data": encodeShape(1<<32, 1<<32, 0),
		"oversized rows":         encodeShape(math.MaxInt32+1, 1, 1),
		"short data":             encodeShape(2, 3, 5),
		"zero cols":              encodeShape(1, 0, 0),
	}
	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(b)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestMarshalRequiresPrototypes(t *testing.T) {
	_, err := Marshal(&Checkpoint{Head: margin.KindAM})
	assert.Error(t, err)
}

// encodeShape builds a version 1 checkpoint with the given header shape and
// n packed values, regardless of whether they agree.
func encodeShape(rows, cols uint64, n int) []byte {
	b := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, Version)
	b = protowire.AppendTag(b, fieldHead, protowire.BytesType)
	b = protowire.AppendString(b, string(margin.KindAM))
	b = protowire.AppendTag(b, fieldRows, protowire.VarintType)
	b = protowire.AppendVarint(b, rows)
	b = protowire.AppendTag(b, fieldCols, protowire.VarintType)
	b = protowire.AppendVarint(b, cols)
	if n > 0 {
		var packed []byte
		for i := range n {
			packed = protowire.AppendFixed64(packed, math.Float64bits(float64(i)))
		}
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

func TestUnmarshalExactShape(t *testing.T) {
	got, err := Unmarshal(encodeShape(2, 3, 6))
	require.NoError(t, err)
	r, c := got.Prototypes.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 5.0, got.Prototypes.At(1, 2))
}
