package services

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/itish2003/courserag/logger"
)

// supportedExtensions lists the document formats the extractor understands.
var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".docx": true,
}

func isSupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// DocumentExtractor turns a file on disk into plain text.
type DocumentExtractor struct {
	log        *logger.Logger
	licenseKey string
	once       sync.Once
	licenseErr error
}

// NewDocumentExtractor builds an extractor. The unidoc license key is applied
// lazily the first time a PDF is opened.
func NewDocumentExtractor(licenseKey string, log *logger.Logger) *DocumentExtractor {
	return &DocumentExtractor{licenseKey: licenseKey, log: log.With("service", "DocumentExtractor")}
}

// ExtractTextFromFile reads a file and returns its text content.
// It automatically handles different file types.
func (e *DocumentExtractor) ExtractTextFromFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt", ".md":
		var content []byte
		content, err = os.ReadFile(path)
		text = string(content)
	case ".pdf":
		text, err = e.extractTextFromPDF(path)
	case ".docx":
		text, err = extractTextFromDOCX(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, filepath.Base(path))
	}
	return normalizeNewlines(text), nil
}

func (e *DocumentExtractor) setLicense() error {
	e.once.Do(func() {
		if e.licenseKey == "" {
			e.licenseErr = errors.New("UNIDOC_LICENSE_KEY is not set")
			return
		}
		e.licenseErr = license.SetMeteredKey(e.licenseKey)
	})
	return e.licenseErr
}

// extractTextFromPDF uses UniPDF to get all text from a PDF file.
func (e *DocumentExtractor) extractTextFromPDF(path string) (string, error) {
	if err := e.setLicense(); err != nil {
		e.log.Warn("unidoc license not applied, PDF extraction may fail", "error", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: read pdf: %v", ErrUnsupportedFormat, err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("%w: count pdf pages: %v", ErrUnsupportedFormat, err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	e.log.Debug("pdf extracted", "path", path, "pages", numPages)
	return sb.String(), nil
}

// extractTextFromDOCX reads word/document.xml and joins paragraph text with newlines.
func extractTextFromDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: open docx: %v", ErrUnsupportedFormat, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return docxParagraphs(rc)
	}
	return "", fmt.Errorf("%w: docx has no word/document.xml", ErrUnsupportedFormat)
}

func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parse docx: %v", ErrUnsupportedFormat, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
