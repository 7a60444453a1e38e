package main

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/woozymasta/geolens/internal/config"
	"github.com/woozymasta/geolens/internal/logger"
	"github.com/woozymasta/geolens/internal/probe"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string   `short:"c" long:"config"    env:"CONFIG_FILE" description:"Path to configuration file"`
	Raster     string   `short:"r" long:"raster"    env:"RASTER"      description:"GeoTIFF to sample" required:"true"`
	RasterCRS  string   `long:"crs"                 env:"RASTER_CRS"  description:"Override the raster CRS (EPSG:<code>, PROJ string or config key)"`
	Cloud      string   `short:"l" long:"cloud"     env:"CLOUD"       description:"LiDAR point cloud (.las or .xyz)"`
	CloudCRS   string   `long:"cloud-crs"           env:"CLOUD_CRS"   description:"CRS of the point cloud coordinates"`
	Threshold  float64  `short:"t" long:"threshold" env:"THRESHOLD"   description:"Elevation lookup radius in degrees (default from config, 1.0)"`
	Pixels     []string `short:"p" long:"pixel"                       description:"Pixel to sample as col,row (repeatable). Reads stdin if no pixel or lonlat is given"`
	LonLat     []string `long:"lonlat"                                description:"WGS 84 position to sample as lon,lat (repeatable)"`
	Format     string   `short:"f" long:"format"                      description:"Output format" choice:"text" choice:"geojson" choice:"yaml" default:"text"`
	Output     string   `short:"o" long:"out"                         description:"Output file path. Writes to stdout if empty"`
	Preview    string   `long:"preview"                               description:"Write a WebP quicklook of the raster to this path"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.Threshold > 0 {
		cfg.Threshold = opts.Threshold
	}

	session := probe.NewSession(cfg)

	if err := session.LoadRaster(opts.Raster, opts.RasterCRS); err != nil {
		log.Fatal().Err(err).Str("path", opts.Raster).Msg("Failed to load raster")
	}

	if opts.Cloud != "" {
		if err := session.LoadCloud(opts.Cloud, opts.CloudCRS); err != nil {
			log.Fatal().Err(err).Str("path", opts.Cloud).Msg("Failed to load point cloud")
		}
	} else {
		log.Warn().Msg("No point cloud given, elevations will read N/A")
	}

	if opts.Preview != "" {
		if err := session.WritePreview(opts.Preview); err != nil {
			log.Error().Err(err).Str("path", opts.Preview).Msg("Failed to write preview")
		}
	}

	var samples []probe.Sample
	if len(opts.Pixels) == 0 && len(opts.LonLat) == 0 {
		samples = sampleLines(session, os.Stdin)
	}

	for _, p := range opts.Pixels {
		col, row, err := probe.ParsePixel(p)
		if err != nil {
			log.Fatal().Err(err).Str("pixel", p).Msg("Invalid pixel position")
		}
		if s, ok := sample(session.Sample(col, row)); ok {
			samples = append(samples, s)
		}
	}

	for _, p := range opts.LonLat {
		lon, lat, err := probe.ParseLonLat(p)
		if err != nil {
			log.Fatal().Err(err).Str("lonlat", p).Msg("Invalid position")
		}
		if s, ok := sample(session.Locate(lon, lat)); ok {
			samples = append(samples, s)
		}
	}

	if err := write(opts.Format, opts.Output, samples); err != nil {
		log.Fatal().Err(err).Msg("Failed to write samples")
	}

	log.Debug().Int("samples", len(samples)).Msg("Probe finished")
}

// sampleLines samples one "col,row" pair per input line.
func sampleLines(session *probe.Session, r io.Reader) []probe.Sample {
	var samples []probe.Sample

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		col, row, err := probe.ParsePixel(line)
		if err != nil {
			log.Warn().Err(err).Str("line", line).Msg("Skipping invalid pixel position")
			continue
		}
		if s, ok := sample(session.Sample(col, row)); ok {
			samples = append(samples, s)
		}
	}
	if err := sc.Err(); err != nil {
		log.Error().Err(err).Msg("Failed to read stdin")
	}

	return samples
}

// sample drops positions outside the raster with a warning.
func sample(s probe.Sample, err error) (probe.Sample, bool) {
	if errors.Is(err, probe.ErrOutOfBounds) {
		log.Warn().Err(err).Msg("Skipping position outside the raster")
		return s, false
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sample")
	}

	return s, true
}

func write(format, path string, samples []probe.Sample) error {
	if format == "geojson" && path != "" {
		if err := probe.SaveGeoJSON(path, samples); err != nil {
			return err
		}
		log.Info().Str("path", path).Int("samples", len(samples)).Msg("GeoJSON written")
		return nil
	}

	out := io.Writer(os.Stdout)
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
			}
		}()
		out = f
	}

	switch format {
	case "geojson":
		return probe.WriteGeoJSON(out, samples)
	case "yaml":
		return probe.WriteYAML(out, samples)
	default:
		return probe.WriteText(out, samples)
	}
}
