package genotype

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/mutree/internal/mutree"
)

// ReadNames parses one mutation name per line. Names are trimmed and NFC
// normalised; trailing blank lines are dropped. At least columns names
// are required. Extra names beyond columns are ignored.
func ReadNames(r io.Reader, columns int) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		names = append(names, norm.NFC.String(strings.TrimSpace(sc.Text())))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read names: %w", err)
	}
	for len(names) > 0 && names[len(names)-1] == "" {
		names = names[:len(names)-1]
	}
	if len(names) < columns {
		return nil, &LoadError{
			Code:    ErrCodeNameCountMismatch,
			Message: fmt.Sprintf("mutation counts do not match: %d names for %d columns", len(names), columns),
		}
	}
	return names[:columns], nil
}

// Dataset is a loaded matrix with one name per column.
type Dataset struct {
	Matrix *Matrix
	Names  []string
}

// LoadMatrix reads the matrix file at path.
func LoadMatrix(path string) (*Matrix, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ReadMatrix(f)
	return m, withPath(err, path)
}

// LoadNames reads the names file at path.
func LoadNames(path string, columns int) ([]string, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names, err := ReadNames(f, columns)
	return names, withPath(err, path)
}

// Load reads the matrix and, when namesPath is non-empty, the names file.
// Without a names file the mutations are named "1".."columns".
func Load(matrixPath, namesPath string) (*Dataset, error) {
	m, err := LoadMatrix(matrixPath)
	if err != nil {
		return nil, err
	}
	if namesPath == "" {
		return &Dataset{Matrix: m, Names: mutree.DefaultNames(m.Columns())}, nil
	}
	names, err := LoadNames(namesPath, m.Columns())
	if err != nil {
		return nil, err
	}
	return &Dataset{Matrix: m, Names: names}, nil
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file does not exist", Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func withPath(err error, path string) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		if le.Path == "" {
			le.Path = path
		}
		return err
	}
	return fmt.Errorf("%s: %w", path, err)
}
