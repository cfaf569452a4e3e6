// Package acts turns downloaded acceptance-act bundles into loader batches.
// A bundle is a zip holding one zip per act; each act zip carries the signed
// xlsx workbook (plus a .sig file). Workbooks are parsed into loosely keyed
// records, which are then split into FBO and FBS rows.
package acts

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// Workbook is one xlsx file extracted from a bundle.
type Workbook struct {
	// Document is the act entry name in the bundle, e.g.
	// "act-income-mp-123456.zip".
	Document string
	Name     string
	Data     []byte
}

// Unpack extracts every xlsx workbook from a bundle. Nested act zips are
// opened one level deep; xlsx files at the top level are accepted as is.
func Unpack(bundle []byte) ([]Workbook, error) {
	outer, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	if err != nil {
		return nil, fmt.Errorf("acts: open bundle: %w", err)
	}

	var out []Workbook
	for _, f := range outer.File {
		if f.FileInfo().IsDir() {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".xlsx":
			data, err := readEntry(f)
			if err != nil {
				return nil, err
			}
			out = append(out, Workbook{Document: f.Name, Name: f.Name, Data: data})
		case ".zip":
			nested, err := readEntry(f)
			if err != nil {
				return nil, err
			}
			books, err := unpackAct(f.Name, nested)
			if err != nil {
				return nil, err
			}
			out = append(out, books...)
		}
	}
	return out, nil
}

func unpackAct(document string, data []byte) ([]Workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("acts: open %s: %w", document, err)
	}
	var out []Workbook
	for _, f := range zr.File {
		if !strings.EqualFold(path.Ext(f.Name), ".xlsx") {
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("acts: %s: %w", document, err)
		}
		out = append(out, Workbook{Document: document, Name: f.Name, Data: b})
	}
	return out, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("acts: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("acts: read entry %s: %w", f.Name, err)
	}
	return b, nil
}
