package main

import (
	"fmt"
	"os"

	"github.com/uwtools/uwcnv/pkg/cnv"
)

// loadArchive reads an archive file, transparently decompressing the
// run-length packed form some builds ship.
func loadArchive(path string) (*cnv.Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if cnv.ArkLooksCompressed(data) {
		data = cnv.ArkDecompress(data)
	}
	a, err := cnv.DecodeArchive(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// writeArchive saves an archive, optionally in the packed form.
func writeArchive(path string, a *cnv.Archive, compress bool) error {
	data := a.Encode()
	if compress {
		data = cnv.ArkCompress(data)
	}
	return os.WriteFile(path, data, 0644)
}
