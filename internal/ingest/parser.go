// Package ingest extracts analysis text from plain text, Markdown, DOCX and
// PDF inputs.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// StdinName is the path that selects standard input.
const StdinName = "-"

// MaxInputBytes bounds how much is read from any single input.
const MaxInputBytes = 32 << 20

var ErrInvalidUTF8 = errors.New("input is not valid UTF-8")

type Document struct {
	Title  string
	Source string
	Format string
	Text   string
}

// ReadInput loads path, or standard input when path is empty or "-".
func ReadInput(path string, stdin io.Reader) (*Document, error) {
	if path == "" || path == StdinName {
		raw, err := io.ReadAll(io.LimitReader(stdin, MaxInputBytes))
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return Parse("stdin.txt", raw)
	}
	return ParseFile(path)
}

func ParseFile(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > MaxInputBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), MaxInputBytes)
	}
	if strings.ToLower(filepath.Ext(path)) == ".pdf" {
		text, err := parsePDF(path)
		if err != nil {
			return nil, err
		}
		return newDocument(path, "pdf", normalizeWhitespace(text)), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(path, raw)
}

// Parse extracts text from raw bytes, picking the format from name's
// extension. Plain text and Markdown are kept verbatim apart from a leading
// byte order mark.
func Parse(name string, raw []byte) (*Document, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".txt", ".md", ".markdown", "":
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("%s: %w", name, ErrInvalidUTF8)
		}
		text := strings.TrimPrefix(string(raw), "\ufeff")
		format := "text"
		if ext == ".md" || ext == ".markdown" {
			format = "markdown"
		}
		return newDocument(name, format, text), nil
	case ".docx":
		text, err := parseDOCX(raw)
		if err != nil {
			return nil, err
		}
		return newDocument(name, "docx", normalizeWhitespace(text)), nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

func newDocument(source, format, text string) *Document {
	return &Document{
		Title:  strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)),
		Source: source,
		Format: format,
		Text:   text,
	}
}

func parseDOCX(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx zip: %w", err)
	}
	var xmlData []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		xmlData, err = readZipEntry(f)
		if err != nil {
			return "", err
		}
		break
	}
	if len(xmlData) == 0 {
		return "", fmt.Errorf("word/document.xml not found")
	}

	decoder := xml.NewDecoder(bytes.NewReader(xmlData))
	var b strings.Builder
	inText := false
	for {
		tok, tokenErr := decoder.Token()
		if tokenErr == io.EOF {
			break
		}
		if tokenErr != nil {
			return "", fmt.Errorf("decode document.xml: %w", tokenErr)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "p":
				if b.Len() > 0 {
					b.WriteString("\n")
				}
			case "tab":
				b.WriteString(" ")
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxInputBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

func parsePDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, pageErr := p.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no extractable text found in pdf")
	}
	return b.String(), nil
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
