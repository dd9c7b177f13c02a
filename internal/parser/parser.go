package parser

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/chainring/backend/internal/models"
)

// Parser turns one source file into a Drawing. Implementations keep no state
// between calls other than their configuration, so one value may serve
// concurrent imports.
type Parser interface {
	// Name returns the unique name of the parser.
	Name() string
	// CanParse returns true if this parser can handle the given file.
	CanParse(filePath string) (bool, error)
	// Parse reads the entire file. On error no Drawing is returned.
	Parse(filePath string) (*models.Drawing, error)
	// ParseReader is Parse over an already open source.
	ParseReader(r io.Reader) (*models.Drawing, error)
}

// maxLineSize bounds a single physical line; long polylines can run to
// hundreds of kilobytes.
const maxLineSize = 16 * 1024 * 1024

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

func componentLogger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// parseFile opens filePath and hands it to parse.
func parseFile(filePath string, parse func(io.Reader) (*models.Drawing, error)) (*models.Drawing, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer file.Close()
	return parse(file)
}

// firstLines returns up to n non-empty, trimmed lines of filePath.
func firstLines(filePath string, n int) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	sc := newLineScanner(file)
	var lines []string
	for sc.Scan() && len(lines) < n {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// splitRecord splits a protocol line on single spaces and trims each token,
// so runs of spaces produce empty tokens.
func splitRecord(line string) []string {
	parts := strings.Split(line, " ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// layerField maps the "None" placeholder to no layer.
func layerField(token string) string {
	if token == models.NonePlaceholder {
		return ""
	}
	return token
}

func floatField(parts []string, i int) (float64, error) {
	if i >= len(parts) {
		return 0, fmt.Errorf("%w: expected field %d", ErrMissingField, i)
	}
	f, err := strconv.ParseFloat(parts[i], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, parts[i])
	}
	return f, nil
}

func intField(parts []string, i int) (int, error) {
	if i >= len(parts) {
		return 0, fmt.Errorf("%w: expected field %d", ErrMissingField, i)
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, parts[i])
	}
	return n, nil
}

func floatFields(parts []string, from, n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		f, err := floatField(parts, from+i)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
