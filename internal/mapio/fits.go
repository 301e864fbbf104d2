// Public domain.

package mapio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/astrogo/fitsio"

	"github.com/soniakeys/sphmass/healpix"
)

// FITSWriter writes one FITS file per name, <Dir>/<name>.fits, with one
// binary table extension per label.  Tables carry HEALPix style keywords:
// PIXTYPE, ORDERING, NSIDE, FIRSTPIX, LASTPIX and INDXSCHM, plus RUNID.
//
// Files stay open until Finish or Close.  FITSWriter is safe for concurrent
// use.
type FITSWriter struct {
	Dir   string
	RunID string

	mu   sync.Mutex
	open map[string]*fitsFile
}

type fitsFile struct {
	fh *os.File
	f  *fitsio.File
}

// NewFITSWriter returns a writer into dir, creating dir if needed.
func NewFITSWriter(dir, runID string) (*FITSWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FITSWriter{Dir: dir, RunID: runID, open: map[string]*fitsFile{}}, nil
}

// Path returns the file written for name.
func (w *FITSWriter) Path(name string) string {
	return filepath.Join(w.Dir, name+".fits")
}

// WriteMap appends m as table extension label of the file for name.
func (w *FITSWriter) WriteMap(name, label string, m *healpix.Map) error {
	if err := healpix.Check(m); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	ff, err := w.file(name)
	if err != nil {
		return err
	}
	tbl, err := fitsio.NewTable(label, []fitsio.Column{
		{Name: label, Format: "D"},
	}, fitsio.BINARY_TBL)
	if err != nil {
		return err
	}
	defer tbl.Close()
	err = tbl.Header().Append(
		fitsio.Card{Name: "PIXTYPE", Value: "HEALPIX", Comment: "HEALPIX pixelisation"},
		fitsio.Card{Name: "ORDERING", Value: "RING", Comment: "Pixel ordering scheme"},
		fitsio.Card{Name: "NSIDE", Value: m.Nside, Comment: "Resolution parameter"},
		fitsio.Card{Name: "FIRSTPIX", Value: 0, Comment: "First pixel # (0 based)"},
		fitsio.Card{Name: "LASTPIX", Value: m.Npix() - 1, Comment: "Last pixel # (0 based)"},
		fitsio.Card{Name: "INDXSCHM", Value: "IMPLICIT", Comment: "Indexing: IMPLICIT or EXPLICIT"},
		fitsio.Card{Name: "RUNID", Value: w.RunID, Comment: "Run identifier"},
	)
	if err != nil {
		return err
	}
	for i := range m.Pix {
		if err := tbl.Write(&m.Pix[i]); err != nil {
			return fmt.Errorf("%s %s: %w", name, label, err)
		}
	}
	return ff.f.Write(tbl)
}

// file returns the open file for name, creating it with an empty primary
// HDU on first use.  W.mu must be held.
func (w *FITSWriter) file(name string) (*fitsFile, error) {
	if ff := w.open[name]; ff != nil {
		return ff, nil
	}
	fh, err := os.Create(w.Path(name))
	if err != nil {
		return nil, err
	}
	f, err := fitsio.Create(fh)
	if err != nil {
		fh.Close()
		return nil, err
	}
	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err == nil {
		err = f.Write(phdu)
	}
	if err != nil {
		f.Close()
		fh.Close()
		return nil, err
	}
	ff := &fitsFile{fh: fh, f: f}
	w.open[name] = ff
	return ff, nil
}

// Finish closes the file for name.  Finishing a name not written is not an
// error.
func (w *FITSWriter) Finish(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finish(name)
}

func (w *FITSWriter) finish(name string) error {
	ff := w.open[name]
	if ff == nil {
		return nil
	}
	delete(w.open, name)
	err := ff.f.Close()
	if cerr := ff.fh.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close finishes all open files.
func (w *FITSWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for name := range w.open {
		errs = append(errs, w.finish(name))
	}
	return errors.Join(errs...)
}

// ErrNotFound is returned by ReadFITS when no table has the label asked
// for.
var ErrNotFound = errors.New("map not found")

// ReadFITS reads the map stored as table label in a file written by
// FITSWriter, returning it with the RUNID keyword.
func ReadFITS(path, label string) (m *healpix.Map, runID string, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer fh.Close()
	f, err := fitsio.Open(fh)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	defer f.Close()
	var tbl *fitsio.Table
	for _, hdu := range f.HDUs() {
		if t, ok := hdu.(*fitsio.Table); ok && t.Name() == label {
			tbl = t
			break
		}
	}
	if tbl == nil {
		return nil, "", fmt.Errorf("%w: %s in %s", ErrNotFound, label, path)
	}
	hdr := tbl.Header()
	nside := 0
	if c := hdr.Get("NSIDE"); c != nil {
		switch v := c.Value.(type) {
		case int:
			nside = v
		case int64:
			nside = int(v)
		}
	}
	if !healpix.ValidNside(nside) {
		return nil, "", fmt.Errorf("%s %s: %w: NSIDE %v",
			path, label, healpix.ErrResolutionMismatch, nside)
	}
	if c := hdr.Get("RUNID"); c != nil {
		runID, _ = c.Value.(string)
	}
	m = healpix.NewMap(nside)
	if tbl.NumRows() != int64(m.Npix()) {
		return nil, "", fmt.Errorf("%s %s: %w: %d rows for nside %d",
			path, label, healpix.ErrResolutionMismatch, tbl.NumRows(), nside)
	}
	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	for p := 0; rows.Next(); p++ {
		if err := rows.Scan(&m.Pix[p]); err != nil {
			return nil, "", fmt.Errorf("%s %s: %w", path, label, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	return m, runID, nil
}
