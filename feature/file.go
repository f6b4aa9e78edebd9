// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package feature

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Persisted feature vectors: a 4-byte magic, a little-endian uint32 count,
// then count little-endian uint64 feature values. Corpus shards store raw
// feature values, so the format (like the domain layout) must stay stable.

var fileMagic = [4]byte{'M', 'P', 'F', 'V'}

// WriteVec writes vec to w in the persisted feature-vector format.
func WriteVec(w io.Writer, vec []Feature) error {
	hdr := make([]byte, 8)
	copy(hdr, fileMagic[:])
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(vec)))
	if _, err := w.Write(hdr); err != nil {
		return errors.Wrap(err, "writing feature vec header")
	}
	buf := make([]byte, 8*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(f))
	}
	_, err := w.Write(buf)
	return errors.Wrap(err, "writing feature vec body")
}

// ReadVec reads a feature vector in the format written by WriteVec.
func ReadVec(r io.Reader) ([]Feature, error) {
	hdr := make([]byte, 8)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, errors.Wrap(err, "reading feature vec header")
	}
	if [4]byte(hdr[:4]) != fileMagic {
		return nil, errors.Errorf("bad feature vec magic %q", hdr[:4])
	}
	count := binary.LittleEndian.Uint32(hdr[4:])
	buf := make([]byte, 8*int(count))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrapf(err, "reading %v features", count)
	}
	vec := make([]Feature, count)
	for i := range vec {
		vec[i] = Feature(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return vec, nil
}
