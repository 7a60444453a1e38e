// Package raster reads and writes georeferenced TIFF rasters and renders display previews.
package raster

// Baseline TIFF tags.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
)

// GeoTIFF tags.
const (
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
)

// GeoKey IDs.
const (
	gkModelType      = 1024
	gkRasterType     = 1025
	gkGeographicType = 2048
	gkProjectedType  = 3072
)

// GeoKey values.
const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2
	rasterPixelIsArea   = 1
	rasterPixelIsPoint  = 2
)

// TIFF field types.
const (
	dtShort  = 3
	dtLong   = 4
	dtDouble = 12
)

// geographicCodes lists EPSG codes written with the geographic model type.
var geographicCodes = map[int]bool{
	4326: true,
	4258: true,
	4269: true,
}
