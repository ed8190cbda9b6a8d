// Package weights caches regrid weights as NetCDF files in a directory.
package weights

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/google/uuid"

	"go.ngs.io/glorys-ic/internal/adapter/regrid"
)

// Variable, dimension and attribute names follow the ESMF weight file layout.
const (
	dimS      = "n_s"
	varRow    = "row"
	varCol    = "col"
	varS      = "S"
	attrMeth  = "regrid_method"
	attrSrc   = "src_shape"
	attrDst   = "dst_shape"
	attrSrcSg = "src_signature"
	attrDstSg = "dst_signature"
)

// Store reads and writes weight files under a directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the file that holds the weights for key.
func (s *Store) Path(key regrid.Key) string {
	return filepath.Join(s.dir, key.FileName())
}

// Load reads the weights for key. A missing file, or one whose method,
// shapes or signatures differ from key, is reported as regrid.ErrCacheMiss.
func (s *Store) Load(key regrid.Key) (*regrid.Weights, error) {
	path := s.Path(key)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, regrid.ErrCacheMiss)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("%s unreadable (%v): %w", path, err, regrid.ErrCacheMiss)
	}
	defer func() { _ = nc.Close() }()

	stored, err := readKey(nc, key.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", path, err, regrid.ErrCacheMiss)
	}
	if stored != key {
		return nil, fmt.Errorf("%s was built for %+v: %w", path, stored, regrid.ErrCacheMiss)
	}

	rows, err := readIndices(nc, varRow)
	if err != nil {
		return nil, err
	}
	cols, err := readIndices(nc, varCol)
	if err != nil {
		return nil, err
	}
	sv, err := nc.Var(varS)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", varS, err)
	}
	vals := make([]float64, len(rows))
	if len(vals) > 0 {
		if err := sv.ReadFloat64s(vals); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", varS, err)
		}
	}

	w := &regrid.Weights{Key: key, Rows: rows, Cols: cols, S: vals}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", path, err, regrid.ErrCacheMiss)
	}
	return w, nil
}

// Save writes w to a temporary file and renames it over the cache entry.
func (s *Store) Save(w *regrid.Weights) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create weights directory: %w", err)
	}
	path := s.Path(w.Key)
	tmp := filepath.Join(s.dir, "."+uuid.NewString()+".tmp")
	if err := write(tmp, w); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move weights into place: %w", err)
	}
	return nil
}

func write(path string, w *regrid.Weights) error {
	nc, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.OFFSET_64BIT)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = nc.Close()
		}
	}()

	// Unlimited so that an empty weight set is still a valid file.
	n, err := nc.AddDim(dimS, 0)
	if err != nil {
		return fmt.Errorf("failed to add dimension: %w", err)
	}
	rv, err := nc.AddVar(varRow, netcdf.INT, []netcdf.Dim{n})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", varRow, err)
	}
	cv, err := nc.AddVar(varCol, netcdf.INT, []netcdf.Dim{n})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", varCol, err)
	}
	sv, err := nc.AddVar(varS, netcdf.DOUBLE, []netcdf.Dim{n})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", varS, err)
	}

	k := w.Key
	if err := writeText(nc.Attr(attrMeth), string(k.Method)); err != nil {
		return err
	}
	//nolint:gosec // G115: Grid shapes fit in int32.
	if err := nc.Attr(attrSrc).WriteInt32s([]int32{int32(k.SrcNY), int32(k.SrcNX)}); err != nil {
		return fmt.Errorf("failed to write %s: %w", attrSrc, err)
	}
	//nolint:gosec // G115: Grid shapes fit in int32.
	if err := nc.Attr(attrDst).WriteInt32s([]int32{int32(k.DstNY), int32(k.DstNX)}); err != nil {
		return fmt.Errorf("failed to write %s: %w", attrDst, err)
	}
	if err := writeText(nc.Attr(attrSrcSg), strconv.FormatUint(k.SrcSig, 16)); err != nil {
		return err
	}
	if err := writeText(nc.Attr(attrDstSg), strconv.FormatUint(k.DstSig, 16)); err != nil {
		return err
	}

	if err := nc.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}

	if w.Len() > 0 {
		start := []uint64{0}
		//nolint:gosec // G115: Safe int to uint64 conversion for NetCDF dimensions.
		count := []uint64{uint64(w.Len())}
		// Indices are 1-based on disk.
		rows := make([]int32, w.Len())
		cols := make([]int32, w.Len())
		for i := range rows {
			//nolint:gosec // G115: Indices are bounded by grid sizes.
			rows[i], cols[i] = int32(w.Rows[i]+1), int32(w.Cols[i]+1)
		}
		if err := rv.WriteInt32Slice(rows, start, count); err != nil {
			return fmt.Errorf("failed to write %s: %w", varRow, err)
		}
		if err := cv.WriteInt32Slice(cols, start, count); err != nil {
			return fmt.Errorf("failed to write %s: %w", varCol, err)
		}
		if err := sv.WriteFloat64Slice(w.S, start, count); err != nil {
			return fmt.Errorf("failed to write %s: %w", varS, err)
		}
	}

	closed = true
	if err := nc.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func writeText(a netcdf.Attr, s string) error {
	if err := a.WriteBytes([]byte(s)); err != nil {
		return fmt.Errorf("failed to write attribute: %w", err)
	}
	return nil
}

func readText(a netcdf.Attr) (string, error) {
	n, err := a.Len()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readShape(a netcdf.Attr) (int, int, error) {
	buf := make([]int32, 2)
	if n, err := a.Len(); err != nil || n != 2 {
		return 0, 0, fmt.Errorf("shape attribute missing or malformed")
	}
	if err := a.ReadInt32s(buf); err != nil {
		return 0, 0, err
	}
	return int(buf[0]), int(buf[1]), nil
}

func readKey(nc netcdf.Dataset, name string) (regrid.Key, error) {
	k := regrid.Key{Name: name}
	meth, err := readText(nc.Attr(attrMeth))
	if err != nil {
		return k, fmt.Errorf("no %s attribute", attrMeth)
	}
	k.Method = regrid.Method(meth)
	if k.SrcNY, k.SrcNX, err = readShape(nc.Attr(attrSrc)); err != nil {
		return k, fmt.Errorf("%s: %w", attrSrc, err)
	}
	if k.DstNY, k.DstNX, err = readShape(nc.Attr(attrDst)); err != nil {
		return k, fmt.Errorf("%s: %w", attrDst, err)
	}
	for _, p := range []struct {
		attr string
		dst  *uint64
	}{{attrSrcSg, &k.SrcSig}, {attrDstSg, &k.DstSig}} {
		txt, err := readText(nc.Attr(p.attr))
		if err != nil {
			return k, fmt.Errorf("no %s attribute", p.attr)
		}
		if *p.dst, err = strconv.ParseUint(txt, 16, 64); err != nil {
			return k, fmt.Errorf("%s: %w", p.attr, err)
		}
	}
	return k, nil
}

// readIndices reads a 1-based index variable into 0-based ints.
func readIndices(nc netcdf.Dataset, name string) ([]int, error) {
	v, err := nc.Var(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	n, err := v.Len()
	if err != nil {
		return nil, fmt.Errorf("failed to get length of %s: %w", name, err)
	}
	buf := make([]int32, n)
	if n > 0 {
		if err := v.ReadInt32s(buf); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
	}
	out := make([]int, n)
	for i, x := range buf {
		out[i] = int(x) - 1
	}
	return out, nil
}
