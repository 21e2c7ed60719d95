package ocrlens

import (
	"bytes"
	"io"

	"github.com/gen2brain/go-fitz"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RasterDPI is the resolution PDF pages are rendered at for OCR and preview.
const RasterDPI = 300

// Document is a PDF upload rendered with MuPDF.
type Document struct {
	fz       *fitz.Document
	NumPages int
}

// NewDocumentFromMemory opens a PDF held in memory.
func NewDocumentFromMemory(raw []byte) (*Document, error) {
	fz, err := fitz.NewFromMemory(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrImageLoad, "open pdf: %v", err)
	}
	return &Document{fz: fz, NumPages: fz.NumPage()}, nil
}

func (d *Document) Close() {
	if err := d.fz.Close(); err != nil {
		log.Warn().Err(err).Str("component", "OCR_DOCUMENT").Msg("closing pdf failed")
	}
}

// IsScanned returns true if no page carries a text layer.
func (d *Document) IsScanned() (bool, error) {
	for i := 0; i < d.NumPages; i++ {
		txt, err := d.fz.Text(i)
		if err != nil {
			return false, err
		}
		if txt != "" {
			return false, nil
		}
	}
	return true, nil
}

// PagePNG renders the zero based page at dpi.
func (d *Document) PagePNG(page int, dpi float64) ([]byte, error) {
	if page < 0 || page >= d.NumPages {
		return nil, errors.Wrapf(ErrImageLoad, "page %d out of range, document has %d", page+1, d.NumPages)
	}
	png, err := d.fz.ImagePNG(page, dpi)
	if err != nil {
		return nil, errors.Wrapf(ErrImageLoad, "render page %d: %v", page+1, err)
	}
	return png, nil
}

// Pages renders all pages at dpi.
func (d *Document) Pages(dpi float64) ([][]byte, error) {
	pages := make([][]byte, 0, d.NumPages)
	for i := 0; i < d.NumPages; i++ {
		png, err := d.PagePNG(i, dpi)
		if err != nil {
			return nil, err
		}
		pages = append(pages, png)
	}
	return pages, nil
}

// PreviewImage returns the image the preprocessing stages work on: the upload
// itself for images, the first page rendered at RasterDPI for PDFs.
func PreviewImage(upload []byte) ([]byte, error) {
	preview, _, err := previewImage(upload)
	return preview, err
}

// previewImage is PreviewImage that also reports how many pages the upload
// has.
func previewImage(upload []byte) ([]byte, int, error) {
	switch detectFileType(upload) {
	case "PDF":
		doc, err := NewDocumentFromMemory(upload)
		if err != nil {
			return nil, 0, err
		}
		defer doc.Close()
		preview, err := doc.PagePNG(0, RasterDPI)
		return preview, doc.NumPages, err
	case "UNKNOWN":
		return nil, 0, errors.Wrap(ErrImageLoad, "unsupported file type")
	}
	return upload, 1, nil
}

// BuildPDF packs encoded images into a new PDF, one image per page.
func BuildPDF(images [][]byte) ([]byte, error) {
	if len(images) == 0 {
		return nil, errors.New("no images to bundle")
	}
	readers := make([]io.Reader, 0, len(images))
	for _, img := range images {
		readers = append(readers, bytes.NewReader(img))
	}
	output := &bytes.Buffer{}
	importConfig := pdfcpu.DefaultImportConfig()
	importConfig.Scale = 1
	importConfig.Pos = types.Center
	if err := pdfapi.ImportImages(nil, output, readers, importConfig, nil); err != nil {
		return nil, errors.Wrap(err, "build pdf")
	}
	return output.Bytes(), nil
}
