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

// Package checkpoint persists a prototype bank in protobuf wire format.
//
// The message layout is
//
//	message Prototypes {
//	  uint32 version      = 1;
//	  string head         = 2;
//	  uint32 rows         = 3;
//	  uint32 cols         = 4;
//	  repeated double data = 5 [packed = true]; // row-major
//	  int64  class_offset = 6;                  // train_class_range lo
//	}
//
// so checkpoints can be read by any protobuf implementation with the schema
// above.
package checkpoint

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"gonum.org/v1/gonum/mat"

	"github.com/ajroetker/go-margin/margin"
)

// Version is the checkpoint format version written by Marshal.
const Version = 1

const (
	fieldVersion     protowire.Number = 1
	fieldHead        protowire.Number = 2
	fieldRows        protowire.Number = 3
	fieldCols        protowire.Number = 4
	fieldData        protowire.Number = 5
	fieldClassOffset protowire.Number = 6
)

// ErrCorrupt is returned for checkpoints that do not decode.
var ErrCorrupt = errors.New("corrupt checkpoint")

// Checkpoint is a saved prototype bank.
type Checkpoint struct {
	Head        margin.Kind
	ClassOffset int
	Prototypes  *mat.Dense
}

// FromClassifier captures the current prototypes of head.
func FromClassifier(head *margin.Classifier) *Checkpoint {
	return &Checkpoint{
		Head:        head.Kind(),
		ClassOffset: head.Config().TrainClassRange[0],
		Prototypes:  head.Bank().Snapshot(),
	}
}

// Bank returns a new PrototypeBank holding a copy of the prototypes.
func (c *Checkpoint) Bank() *margin.PrototypeBank {
	return margin.NewPrototypeBankFrom(c.Prototypes)
}

// Marshal encodes c.
func Marshal(c *Checkpoint) ([]byte, error) {
	if c == nil || c.Prototypes == nil {
		return nil, errors.New("checkpoint: no prototypes")
	}
	rows, cols := c.Prototypes.Dims()

	b := make([]byte, 0, 32+len(c.Head)+rows*cols*8)
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, Version)
	b = protowire.AppendTag(b, fieldHead, protowire.BytesType)
	b = protowire.AppendString(b, string(c.Head))
	b = protowire.AppendTag(b, fieldRows, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rows))
	b = protowire.AppendTag(b, fieldCols, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cols))

	packed := make([]byte, 0, rows*cols*8)
	for i := range rows {
		for _, v := range c.Prototypes.RawRowView(i) {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
	}
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)

	if c.ClassOffset != 0 {
		b = protowire.AppendTag(b, fieldClassOffset, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(c.ClassOffset)))
	}
	return b, nil
}

// Unmarshal decodes a checkpoint. Unknown fields are skipped.
func Unmarshal(b []byte) (*Checkpoint, error) {
	var (
		version    uint64
		head       string
		rows, cols uint64
		offset     int64
		data       []float64
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(ErrCorrupt, protowire.ParseError(n).Error())
		}
		b = b[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			version, n = protowire.ConsumeVarint(b)
		case num == fieldHead && typ == protowire.BytesType:
			head, n = protowire.ConsumeString(b)
		case num == fieldRows && typ == protowire.VarintType:
			rows, n = protowire.ConsumeVarint(b)
		case num == fieldCols && typ == protowire.VarintType:
			cols, n = protowire.ConsumeVarint(b)
		case num == fieldClassOffset && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			offset = protowire.DecodeZigZag(v)
		case num == fieldData && typ == protowire.BytesType:
			var packed []byte
			packed, n = protowire.ConsumeBytes(b)
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed64(packed)
				if m < 0 {
					return nil, errors.Wrap(ErrCorrupt, protowire.ParseError(m).Error())
				}
				data = append(data, math.Float64frombits(v))
				packed = packed[m:]
			}
		case num == fieldData && typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			data = append(data, math.Float64frombits(v))
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, errors.Wrapf(ErrCorrupt, "field %d: %v", num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if version != Version {
		return nil, errors.Wrapf(ErrCorrupt, "unsupported version %d", version)
	}
	if rows == 0 || cols == 0 || rows > math.MaxInt32 || cols > math.MaxInt32 {
		return nil, errors.Wrapf(ErrCorrupt, "invalid shape %dx%d", rows, cols)
	}
	// rows*cols can wrap for crafted shapes; compare by division instead.
	if n := uint64(len(data)); n%rows != 0 || n/rows != cols {
		return nil, errors.Wrapf(ErrCorrupt, "%d values for a %dx%d matrix", len(data), rows, cols)
	}
	return &Checkpoint{
		Head:        margin.Kind(head),
		ClassOffset: int(offset),
		Prototypes:  mat.NewDense(int(rows), int(cols), data),
	}, nil
}

// Save writes c to path.
func Save(path string, c *Checkpoint) error {
	b, err := Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "write checkpoint %s", path)
	}
	return nil
}

// Load reads a checkpoint from path.
func Load(path string) (*Checkpoint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read checkpoint %s", path)
	}
	c, err := Unmarshal(b)
	if err != nil {
		return nil, errors.Wrapf(err, "load checkpoint %s", path)
	}
	return c, nil
}
