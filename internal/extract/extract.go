// Package extract turns uploaded file buffers into plain text.
// Supported: TXT, PDF, DOCX, legacy DOC (best effort) and HTML.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
	readability "github.com/go-shiori/go-readability"
)

// ErrUnsupportedType rejects uploads outside the supported formats.
var ErrUnsupportedType = errors.New("unsupported file type: upload PDF, DOCX, DOC, TXT or HTML")

// ErrNoText flags a structurally valid file with no extractable text
// (empty or image-only).
var ErrNoText = errors.New("could not extract text from file: it may be empty or image-only")

// Text extracts plain text from an uploaded file, dispatching on MIME
// type and extension.
func Text(filename, contentType string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case contentType == "text/plain" || ext == ".txt":
		return fromPlainText(data)
	case contentType == "application/pdf" || ext == ".pdf":
		return fromPDF(data)
	case contentType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" || ext == ".docx":
		return fromDOCX(data)
	case contentType == "application/msword" || ext == ".doc":
		return fromDOC(data)
	case contentType == "text/html" || ext == ".html" || ext == ".htm":
		return fromHTML(data)
	}
	return "", ErrUnsupportedType
}

// fromPlainText decodes UTF-8, falling back to latin-1 for older
// files.
func fromPlainText(data []byte) (string, error) {
	var text string
	if utf8.Valid(data) {
		text = string(data)
	} else {
		var b strings.Builder
		b.Grow(len(data))
		for _, c := range data {
			b.WriteRune(rune(c))
		}
		text = b.String()
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

func fromPDF(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return "", ErrNoText
	}
	return strings.Join(pages, "\n"), nil
}

// docx word/document.xml body markup
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Texts []string `xml:"t"`
	} `xml:"r"`
}

// fromDOCX reads the OpenXML main document part (zip + XML).
func fromDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("failed to open DOCX: %w", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", fmt.Errorf("failed to read DOCX: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("failed to open DOCX: missing word/document.xml")
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", fmt.Errorf("failed to parse DOCX: %w", err)
	}
	var paras []string
	for _, p := range doc.Body.Paragraphs {
		var line strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Texts {
				line.WriteString(t)
			}
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			paras = append(paras, s)
		}
	}
	text := strings.TrimSpace(strings.Join(paras, "\n"))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

var runsOfSpace = regexp.MustCompile(`\s{3,}`)

// fromDOC salvages readable text from the legacy binary Word format:
// printable ASCII runs, with null-padded UTF-16LE pairs collapsed.
// Rejects results under 50 chars as unreadable.
func fromDOC(data []byte) (string, error) {
	var b strings.Builder
	for i := 0; i < len(data)-1; i++ {
		c := data[i]
		switch {
		case c >= 32 && c < 127:
			b.WriteByte(c)
			if data[i+1] == 0 {
				i++
			}
		case c == '\n' || c == '\r':
			b.WriteByte('\n')
		}
	}
	text := strings.TrimSpace(runsOfSpace.ReplaceAllString(b.String(), "\n\n"))
	if len(text) < 50 {
		return "", fmt.Errorf("could not extract readable text from this .doc file: save it as .docx or .txt and try again")
	}
	return text, nil
}

func fromHTML(data []byte) (string, error) {
	u, _ := url.Parse("https://upload.local/")
	article, err := readability.FromReader(bytes.NewReader(data), u)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
