// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package decompress

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

func TestAllDecodesGzip(t *testing.T) {
	want := []byte(`<Pport><uR></uR></Pport>`)

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(want); err != nil {
		t.Fatalf("gzip.Write() error: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip.Close() error: %v", err)
	}

	got, err := All(buf.Bytes())
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("All() = %q, want %q", got, want)
	}
}

func TestAllDecodesRawDeflate(t *testing.T) {
	want := []byte(`<Pport><sR></sR></Pport>`)

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter() error: %v", err)
	}
	if _, err := fw.Write(want); err != nil {
		t.Fatalf("flate.Write() error: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("flate.Close() error: %v", err)
	}

	got, err := All(buf.Bytes())
	if err != nil {
		t.Fatalf("All() error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("All() = %q, want %q", got, want)
	}
}

func TestAllRejectsGarbage(t *testing.T) {
	if _, err := All([]byte("not compressed data at all")); err == nil {
		t.Fatal("All() error = nil for uncompressed garbage, want error")
	}
}
