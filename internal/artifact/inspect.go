package artifact

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledongthuc/pdf"
)

const (
	defaultInspectionCacheSize = 64
	excerptLimit               = 280
)

var extraneousWhitespace = regexp.MustCompile(`\s+`)

// Inspection summarises a saved report.
type Inspection struct {
	Path    string
	Size    int64
	ModTime time.Time
	Pages   int
	// Excerpt is the leading text of the first page, when it can be extracted.
	Excerpt string
}

// Inspector reads PDF metadata and caches it per file version.
type Inspector struct {
	cache *lru.Cache[string, Inspection]
}

func NewInspector(size int) (*Inspector, error) {
	if size <= 0 {
		size = defaultInspectionCacheSize
	}
	cache, err := lru.New[string, Inspection](size)
	if err != nil {
		return nil, err
	}
	return &Inspector{cache: cache}, nil
}

// Inspect opens the PDF at path and reports its page count and an excerpt of the first page.
// Results are reused until the file's size or modification time changes.
func (i *Inspector) Inspect(path string) (Inspection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Inspection{}, err
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if cached, ok := i.cache.Get(key); ok {
		return cached, nil
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return Inspection{}, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	inspection := Inspection{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Pages:   reader.NumPage(),
	}
	if inspection.Pages > 0 {
		inspection.Excerpt = firstPageExcerpt(reader)
	}
	i.cache.Add(key, inspection)
	return inspection, nil
}

// Len reports how many inspections are cached.
func (i *Inspector) Len() int {
	return i.cache.Len()
}

func firstPageExcerpt(reader *pdf.Reader) (excerpt string) {
	defer func() {
		// Malformed content streams make the text extractor panic; the excerpt is optional.
		if recover() != nil {
			excerpt = ""
		}
	}()
	page := reader.Page(1)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return excerptOf(text)
}

// excerptOf collapses whitespace and caps text at excerptLimit runes.
func excerptOf(text string) string {
	text = strings.TrimSpace(extraneousWhitespace.ReplaceAllString(text, " "))
	if runes := []rune(text); len(runes) > excerptLimit {
		text = strings.TrimSpace(string(runes[:excerptLimit])) + "…"
	}
	return text
}
