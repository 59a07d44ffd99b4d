// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package decompress auto-detects gzip versus raw-deflate Push Port
// payloads, the Go equivalent of zlib.decompress(data, zlib.MAX_WBITS|32)'s
// header sniffing: a gzip magic header gets a gzip reader, anything else is
// treated as a headerless deflate stream.
package decompress

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// NewReader wraps r with a gzip or raw-deflate decompressing reader,
// chosen by sniffing the first two bytes. Used for streaming sources (the
// FTP snapshot download, the S3 reference object) where the whole payload
// is never buffered in memory at once.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("decompress: peek: %w", err)
	}
	if bytes.Equal(magic, gzipMagic) {
		return gzip.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// All decompresses a complete in-memory payload, used for individual STOMP
// frame bodies where there is no long-lived stream to keep open.
func All(data []byte) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
