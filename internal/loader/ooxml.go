package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultBodyPath = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wordText matches <w:t> runs with any attributes.
	wordText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// drawingText matches <a:t> runs used by slides.
	drawingText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	// slideName captures the slide number from ppt/slides/slideN.xml.
	slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

	docxPartName = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	// docxPartNameReversed handles ContentType written before PartName.
	docxPartNameReversed = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

func openZip(content []byte, kind string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	return zr, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return buf.Bytes(), nil
}

// joinRuns joins the captured text of each match with single spaces.
func joinRuns(re *regexp.Regexp, xml []byte) string {
	parts := re.FindAllSubmatch(xml, -1)
	var b strings.Builder
	for _, p := range parts {
		s := strings.TrimSpace(string(p[1]))
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	return b.String()
}

// docxBodyPath finds the main document part from [Content_Types].xml, falling back
// to word/document.xml.
func docxBodyPath(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != contentTypesPath {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			break
		}
		if m := docxPartName.FindSubmatch(data); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
		if m := docxPartNameReversed.FindSubmatch(data); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
		break
	}
	return docxDefaultBodyPath
}

// extractDOCX returns the text of all <w:t> runs in the main document part.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	bodyPath := docxBodyPath(zr)
	for _, f := range zr.File {
		if f.Name != bodyPath {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("extract DOCX: %w", err)
		}
		return joinRuns(wordText, data), nil
	}
	return "", fmt.Errorf("extract DOCX: %s not found", bodyPath)
}

// extractPPTX returns one page per slide in slide-number order.
func extractPPTX(content []byte) ([]string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}
	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		data, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		slides = append(slides, slide{num: num, text: joinRuns(drawingText, data)})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	pages := make([]string, len(slides))
	for i, s := range slides {
		pages[i] = s.text
	}
	return pages, nil
}
