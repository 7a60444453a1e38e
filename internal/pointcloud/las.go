package pointcloud

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/woozymasta/geolens/internal/geo"
	"github.com/woozymasta/geolens/internal/raster"

	"github.com/jblindsay/lidario"
)

// ErrCompressed is returned for LAZ files.
var ErrCompressed = errors.New("compressed point data (LAZ) is not supported")

const (
	lasHeaderMinSize = 227
	lasHeader14Size  = 375
	vlrHeaderSize    = 54

	projectionUserID = "LASF_Projection"
	recordGeoKeys    = 34735
	recordWKT        = 2112

	// highest format lidario decodes points for
	lidarioMaxFormat = 3
)

// minimum record length per point data format
var pointRecordLength = [...]uint16{20, 28, 26, 34, 57, 63, 30, 36, 38, 59, 67}

// lasHeader is the public header block shared by LAS 1.0 to 1.4.
type lasHeader struct {
	Signature         [4]byte
	FileSourceID      uint16
	GlobalEncoding    uint16
	ProjectID         [16]byte
	VersionMajor      uint8
	VersionMinor      uint8
	SystemID          [32]byte
	Software          [32]byte
	CreationDay       uint16
	CreationYear      uint16
	HeaderSize        uint16
	PointDataOffset   uint32
	NumVLRs           uint32
	PointFormat       uint8
	PointRecordLength uint16
	LegacyPointCount  uint32
	LegacyByReturn    [5]uint32
	Scale             [3]float64
	Offset            [3]float64
	MaxX, MinX        float64
	MaxY, MinY        float64
	MaxZ, MinZ        float64
}

// lasHeader14 follows lasHeader in LAS 1.4 files.
type lasHeader14 struct {
	WaveformStart uint64
	EVLRStart     uint64
	NumEVLRs      uint32
	PointCount    uint64
	ByReturn      [15]uint64
}

// ReadLAS reads the point coordinates of a LAS file together with the
// coordinate system named in its projection records, if any.
//
// lidario parses the header and the variable length records of every file
// and the points of formats 0 to 3. Points of the waveform and LAS 1.4
// formats are read from the X, Y, Z prefix every record starts with.
func ReadLAS(path string) (*Cloud, error) {
	h, count, err := checkLAS(path)
	if err != nil {
		return nil, err
	}

	mode := "rh"
	if h.PointFormat <= lidarioMaxFormat && uint64(h.LegacyPointCount) == count {
		mode = "r"
	}

	lf, err := openLAS(path, mode)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lf.Close() }()

	cloud := &Cloud{}
	readProjection(lf.VlrData, cloud)

	if mode == "rh" {
		cloud.Points, err = readRecords(path, &lf.Header, count)
		if err != nil {
			return nil, err
		}
		return cloud, nil
	}

	cloud.Points = make([]geo.Point, lf.Header.NumberPoints)
	for i := range cloud.Points {
		x, y, z, err := lf.GetXYZ(i)
		if err != nil {
			return nil, fmt.Errorf("read point %d of %d: %w", i, len(cloud.Points), err)
		}
		cloud.Points[i] = geo.Point{X: x, Y: y, Z: z}
	}

	return cloud, nil
}

// checkLAS validates the header block and the file length before lidario
// touches the file. lidario trusts the header and ignores short reads.
func checkLAS(path string) (*lasHeader, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	var h lasHeader
	if err := binary.Read(f, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("read LAS header: %w", err)
	}
	if string(h.Signature[:]) != "LASF" {
		return nil, 0, fmt.Errorf("not a LAS file: signature %q", h.Signature[:])
	}
	if h.HeaderSize < lasHeaderMinSize {
		return nil, 0, fmt.Errorf("LAS header size %d is below %d", h.HeaderSize, lasHeaderMinSize)
	}

	if h.PointFormat&0xc0 != 0 {
		return nil, 0, ErrCompressed
	}
	format := int(h.PointFormat)
	if format >= len(pointRecordLength) {
		return nil, 0, fmt.Errorf("unsupported LAS point format %d", format)
	}
	if h.PointRecordLength < pointRecordLength[format] {
		return nil, 0, fmt.Errorf("LAS point format %d needs %d byte records, header says %d",
			format, pointRecordLength[format], h.PointRecordLength)
	}

	vlrSpace := int64(h.PointDataOffset) - int64(h.HeaderSize)
	if vlrSpace < int64(h.NumVLRs)*vlrHeaderSize {
		return nil, 0, fmt.Errorf("%d VLRs do not fit in %d bytes before the point data", h.NumVLRs, vlrSpace)
	}

	count := uint64(h.LegacyPointCount)
	if h.VersionMajor == 1 && h.VersionMinor >= 4 && h.HeaderSize >= lasHeader14Size {
		var ext lasHeader14
		if _, err := f.Seek(lasHeaderMinSize, io.SeekStart); err != nil {
			return nil, 0, err
		}
		if err := binary.Read(f, binary.LittleEndian, &ext); err != nil {
			return nil, 0, fmt.Errorf("read LAS 1.4 header: %w", err)
		}
		if ext.PointCount > 0 {
			count = ext.PointCount
		}
	}

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	need := int64(h.PointDataOffset) + int64(count)*int64(h.PointRecordLength)
	if info.Size() < need {
		return nil, 0, fmt.Errorf("LAS file is truncated: %d points need %d bytes, file has %d",
			count, need, info.Size())
	}

	return &h, count, nil
}

// openLAS recovers from index panics lidario raises on VLR lengths that overrun the header area.
func openLAS(path, mode string) (lf *lidario.LasFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			lf, err = nil, fmt.Errorf("malformed LAS file: %v", r)
		}
	}()

	lf, err = lidario.NewLasFile(path, mode)
	if err != nil {
		_ = lf.Close()
		return nil, fmt.Errorf("read LAS: %w", err)
	}

	return lf, nil
}

func readRecords(path string, h *lidario.LasHeader, count uint64) ([]geo.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(int64(h.OffsetToPoints), io.SeekStart); err != nil {
		return nil, err
	}

	capacity := count
	if capacity > 1<<24 {
		capacity = 1 << 24
	}
	points := make([]geo.Point, 0, capacity)

	br := bufio.NewReaderSize(f, 1<<16)
	rec := make([]byte, h.PointRecordLength)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(br, rec); err != nil {
			return nil, fmt.Errorf("read point %d of %d: %w", i, count, err)
		}

		x := int32(binary.LittleEndian.Uint32(rec[0:]))
		y := int32(binary.LittleEndian.Uint32(rec[4:]))
		z := int32(binary.LittleEndian.Uint32(rec[8:]))
		points = append(points, geo.Point{
			X: float64(x)*h.XScaleFactor + h.XOffset,
			Y: float64(y)*h.YScaleFactor + h.YOffset,
			Z: float64(z)*h.ZScaleFactor + h.ZOffset,
		})
	}

	return points, nil
}

// readProjection picks the GeoKey directory or the OGC WKT out of the variable length records.
func readProjection(vlrs []lidario.VLR, cloud *Cloud) {
	for _, vlr := range vlrs {
		if vlr.UserID != projectionUserID {
			continue
		}

		switch vlr.RecordID {
		case recordGeoKeys:
			keys := make([]int, len(vlr.BinaryData)/2)
			for k := range keys {
				keys[k] = int(binary.LittleEndian.Uint16(vlr.BinaryData[2*k:]))
			}
			cloud.EPSG, _ = raster.GeoKeyEPSG(keys)

		case recordWKT:
			cloud.WKT = strings.TrimRight(string(vlr.BinaryData), "\x00")
		}
	}
}
