package processors

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// ImportPDF extracts the text of a local PDF article into a raw document
// record, keyed by a content hash so re-imports land on the same source.
func ImportPDF(path string, content []byte) (*graph.Document, error) {
	reader := bytes.NewReader(content)

	r, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open PDF %s", path)
	}

	var textContent strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		textContent.WriteString(text)
	}

	sum := sha1.Sum(content)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return &graph.Document{
		ID:         "pdf_" + hex.EncodeToString(sum[:8]),
		Title:      base,
		Content:    textContent.String(),
		SourceType: "pdf",
	}, nil
}
