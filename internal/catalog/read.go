// Public domain.

package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

// Columns names the catalog columns of a FITS table.  Each field lists
// accepted names, tried in order.  An empty Weight list means unweighted.
type Columns struct {
	RA, Dec, G1, G2, Weight []string
}

// DefaultColumns are the column names tried when ReadFITS is given none.
var DefaultColumns = Columns{
	RA:     []string{"RA", "ra", "RIGHT_ASCENSION"},
	Dec:    []string{"DEC", "dec", "DECLINATION"},
	G1:     []string{"G1", "GAMMA1", "g1", "gamma1", "E1"},
	G2:     []string{"G2", "GAMMA2", "g2", "gamma2", "E2"},
	Weight: []string{"WEIGHT", "W", "weight"},
}

// ReadFITS reads a catalog from the first binary table of a FITS file.  A
// zero cols is DefaultColumns.  Float and integer columns are accepted.
func ReadFITS(path string, cols Columns) (*Catalog, error) {
	if cols.RA == nil {
		cols = DefaultColumns
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := fitsio.Open(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()
	var tbl *fitsio.Table
	for _, hdu := range f.HDUs() {
		if t, ok := hdu.(*fitsio.Table); ok && hdu.Type() == fitsio.BINARY_TBL {
			tbl = t
			break
		}
	}
	if tbl == nil {
		return nil, fmt.Errorf("%w: %s has no binary table", ErrInvalidCatalog, path)
	}
	find := func(what string, names []string, required bool) (string, error) {
		for _, n := range names {
			if tbl.Index(n) >= 0 {
				return n, nil
			}
		}
		if required {
			return "", fmt.Errorf("%w: %s: no %s column among %v",
				ErrInvalidCatalog, path, what, names)
		}
		return "", nil
	}
	var name [5]string
	for i, c := range []struct {
		what  string
		names []string
	}{{"ra", cols.RA}, {"dec", cols.Dec}, {"g1", cols.G1}, {"g2", cols.G2}} {
		if name[i], err = find(c.what, c.names, true); err != nil {
			return nil, err
		}
	}
	name[4], _ = find("weight", cols.Weight, false)

	n := tbl.NumRows()
	cat := &Catalog{
		RA:  make([]float64, 0, n),
		Dec: make([]float64, 0, n),
		G1:  make([]float64, 0, n),
		G2:  make([]float64, 0, n),
	}
	if name[4] != "" {
		cat.Weight = make([]float64, 0, n)
	}
	rows, err := tbl.Read(0, n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer rows.Close()
	for rows.Next() {
		row := map[string]interface{}{}
		for _, k := range name {
			if k != "" {
				row[k] = nil
			}
		}
		if err := rows.Scan(&row); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		var v [5]float64
		for i, k := range name {
			if k == "" {
				continue
			}
			if v[i], err = toFloat(row[k]); err != nil {
				return nil, fmt.Errorf("%w: %s column %s: %v",
					ErrInvalidCatalog, path, k, err)
			}
		}
		cat.RA = append(cat.RA, v[0])
		cat.Dec = append(cat.Dec, v[1])
		cat.G1 = append(cat.G1, v[2])
		cat.G2 = append(cat.G2, v[3])
		if cat.Weight != nil {
			cat.Weight = append(cat.Weight, v[4])
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

func toFloat(x interface{}) (float64, error) {
	switch v := x.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	}
	return 0, fmt.Errorf("unsupported type %T", x)
}

// ReadText reads whitespace separated columns ra dec g1 g2 with an optional
// fifth weight column.  Blank lines and text following # are ignored.  The
// weight column must be present on all data lines or none.
func ReadText(r io.Reader) (*Catalog, error) {
	cat := &Catalog{}
	s := bufio.NewScanner(r)
	weighted := -1
	for line := 1; s.Scan(); line++ {
		t := s.Text()
		if i := strings.IndexByte(t, '#'); i >= 0 {
			t = t[:i]
		}
		f := strings.Fields(t)
		if len(f) == 0 {
			continue
		}
		if len(f) != 4 && len(f) != 5 {
			return nil, fmt.Errorf("%w: line %d: %d fields",
				ErrInvalidCatalog, line, len(f))
		}
		w := 0
		if len(f) == 5 {
			w = 1
		}
		switch weighted {
		case -1:
			weighted = w
		case w:
		default:
			return nil, fmt.Errorf("%w: line %d: weight column present on some lines only",
				ErrInvalidCatalog, line)
		}
		var v [5]float64
		for i, fs := range f {
			x, err := strconv.ParseFloat(fs, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidCatalog, line, err)
			}
			v[i] = x
		}
		cat.RA = append(cat.RA, v[0])
		cat.Dec = append(cat.Dec, v[1])
		cat.G1 = append(cat.G1, v[2])
		cat.G2 = append(cat.G2, v[3])
		if w == 1 {
			cat.Weight = append(cat.Weight, v[4])
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return cat, nil
}
