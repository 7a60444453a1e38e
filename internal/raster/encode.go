package raster

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"sort"

	"github.com/woozymasta/geolens/internal/geo"
)

// Georef is the georeferencing written alongside the pixels.
type Georef struct {
	Transform geo.Affine
	EPSG      int
}

// RGB is a chunky 8-bit, 3-band pixel buffer.
type RGB struct {
	Width  int
	Height int
	Pix    []uint8
}

// ToRGB flattens any image to 3 bands, dropping alpha.
func ToRGB(img image.Image) *RGB {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	out := &RGB{Width: b.Dx(), Height: b.Dy(), Pix: make([]uint8, b.Dx()*b.Dy()*3)}
	for y := 0; y < out.Height; y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+out.Width*4]
		dst := out.Pix[y*out.Width*3 : (y+1)*out.Width*3]
		for x := 0; x < out.Width; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}

	return out
}

// At returns the colour of pixel (x, y).
func (p *RGB) At(x, y int) color.RGBA {
	i := (y*p.Width + x) * 3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 0xff}
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte // little endian payload
}

func shortEntry(tag uint16, vals ...uint16) ifdEntry {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	return ifdEntry{tag: tag, typ: dtShort, count: uint32(len(vals)), data: data}
}

func longEntry(tag uint16, vals ...uint32) ifdEntry {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	return ifdEntry{tag: tag, typ: dtLong, count: uint32(len(vals)), data: data}
}

func doubleEntry(tag uint16, vals ...float64) ifdEntry {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
	}
	return ifdEntry{tag: tag, typ: dtDouble, count: uint32(len(vals)), data: data}
}

// geoKeys builds the GeoKey directory for an EPSG code.
func geoKeys(epsg int) []uint16 {
	modelType, csKey := uint16(modelTypeProjected), uint16(gkProjectedType)
	if geographicCodes[epsg] {
		modelType, csKey = modelTypeGeographic, gkGeographicType
	}

	return []uint16{
		1, 1, 0, 3, // version, revision, minor, number of keys
		gkModelType, 0, 1, modelType,
		gkRasterType, 0, 1, rasterPixelIsArea,
		csKey, 0, 1, uint16(epsg),
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Encode writes img as an uncompressed, single strip, 3-band byte GeoTIFF
// and returns the number of bytes written.
func Encode(w io.Writer, img *RGB, ref Georef) (int64, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return 0, fmt.Errorf("invalid raster size %dx%d", img.Width, img.Height)
	}
	if len(img.Pix) != img.Width*img.Height*3 {
		return 0, fmt.Errorf("pixel buffer holds %d bytes, want %d", len(img.Pix), img.Width*img.Height*3)
	}
	if ref.EPSG <= 0 || ref.EPSG > math.MaxUint16 {
		return 0, fmt.Errorf("EPSG code %d cannot be stored in a GeoKey", ref.EPSG)
	}

	stripSize := uint64(len(img.Pix))
	if stripSize > math.MaxUint32-1<<20 {
		return 0, errors.New("raster too large for a classic TIFF")
	}

	t := ref.Transform
	entries := []ifdEntry{
		longEntry(tagImageWidth, uint32(img.Width)),
		longEntry(tagImageLength, uint32(img.Height)),
		shortEntry(tagBitsPerSample, 8, 8, 8),
		shortEntry(tagCompression, 1),
		shortEntry(tagPhotometric, 2),
		longEntry(tagStripOffsets, 0), // patched below
		shortEntry(tagSamplesPerPixel, 3),
		longEntry(tagRowsPerStrip, uint32(img.Height)),
		longEntry(tagStripByteCounts, uint32(stripSize)),
		shortEntry(tagPlanarConfig, 1),
		shortEntry(tagGeoKeyDirectory, geoKeys(ref.EPSG)...),
	}

	if t.IsRectilinear() {
		entries = append(entries,
			doubleEntry(tagModelPixelScale, t.A, -t.E, 0),
			doubleEntry(tagModelTiepoint, 0, 0, 0, t.C, t.F, 0),
		)
	} else {
		entries = append(entries, doubleEntry(tagModelTransformation,
			t.A, t.B, 0, t.C,
			t.D, t.E, 0, t.F,
			0, 0, 0, 0,
			0, 0, 0, 1,
		))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	// layout: header, IFD, out-of-line values, pixel strip
	const headerSize = 8
	ifdSize := 2 + 12*len(entries) + 4
	offset := uint32(headerSize + ifdSize)

	extOffsets := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			extOffsets[i] = offset
			offset += uint32(len(e.data))
			offset += offset & 1 // keep word alignment
		}
	}
	stripOffset := offset

	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			entries[i] = longEntry(tagStripOffsets, stripOffset)
		}
	}

	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	header := []byte{'I', 'I', 42, 0, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(header[4:], headerSize)
	if _, err := bw.Write(header); err != nil {
		return cw.n, err
	}

	var buf [12]byte
	binary.LittleEndian.PutUint16(buf[:2], uint16(len(entries)))
	if _, err := bw.Write(buf[:2]); err != nil {
		return cw.n, err
	}
	for i, e := range entries {
		buf = [12]byte{}
		binary.LittleEndian.PutUint16(buf[0:], e.tag)
		binary.LittleEndian.PutUint16(buf[2:], e.typ)
		binary.LittleEndian.PutUint32(buf[4:], e.count)
		if len(e.data) > 4 {
			binary.LittleEndian.PutUint32(buf[8:], extOffsets[i])
		} else {
			copy(buf[8:], e.data)
		}
		if _, err := bw.Write(buf[:]); err != nil {
			return cw.n, err
		}
	}
	if _, err := bw.Write([]byte{0, 0, 0, 0}); err != nil { // no next IFD
		return cw.n, err
	}

	for _, e := range entries {
		if len(e.data) <= 4 {
			continue
		}
		if _, err := bw.Write(e.data); err != nil {
			return cw.n, err
		}
		if len(e.data)&1 == 1 {
			if err := bw.WriteByte(0); err != nil {
				return cw.n, err
			}
		}
	}

	if _, err := bw.Write(img.Pix); err != nil {
		return cw.n, err
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}

	return cw.n, nil
}
