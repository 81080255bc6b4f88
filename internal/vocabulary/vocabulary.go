// Package vocabulary reads the product-category list used by the form.
package vocabulary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrMissing is returned when the category file does not exist.
var ErrMissing = errors.New("category vocabulary missing")

// maxLineSize bounds a single category line.
const maxLineSize = 1 << 20

// LoadCategories reads one category per line from path.
func LoadCategories(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrMissing, err)
		}
		return nil, fmt.Errorf("open categories: %w", err)
	}
	defer f.Close()

	categories, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read categories %s: %w", path, err)
	}
	return categories, nil
}

// Parse trims every line and skips blank ones. UTF-8 is assumed unless a
// byte order mark says otherwise.
func Parse(r io.Reader) ([]string, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	var out []string
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
