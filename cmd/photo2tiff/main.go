package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/geolens/internal/config"
	"github.com/woozymasta/geolens/internal/logger"
	"github.com/woozymasta/geolens/internal/photo"
	"github.com/woozymasta/geolens/internal/raster"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string  `short:"c" long:"config"     env:"CONFIG_FILE" description:"Path to configuration file"`
	Input      string  `short:"i" long:"in"                           description:"Geotagged photo (JPEG, PNG, TIFF, BMP or WebP)" required:"true"`
	Output     string  `short:"o" long:"out"                          description:"Output GeoTIFF path. Defaults to the input name with a .tif extension"`
	PixelSize  float64 `short:"s" long:"pixel-size" env:"PIXEL_SIZE"  description:"Ground size of one pixel in degrees (default from config, 0.00001)"`
	Force      bool    `short:"f" long:"force"                        description:"Force overwrite of existing files"`
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

	pixelSize := cfg.PixelSize
	if opts.PixelSize > 0 {
		pixelSize = opts.PixelSize
	}

	output := opts.Output
	if output == "" {
		output = strings.TrimSuffix(opts.Input, filepath.Ext(opts.Input)) + "_georef.tif"
	}

	data, err := os.ReadFile(opts.Input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Fatal().Str("path", opts.Input).Msg("Input image not found")
		}
		log.Fatal().Err(err).Str("path", opts.Input).Msg("Failed to read input image")
	}

	if _, err := os.Stat(output); err == nil && !opts.Force {
		log.Fatal().Str("path", output).Msg("Output file exists, use --force to overwrite")
	}

	fix, err := photo.ExtractGPS(data)
	if err != nil {
		log.Fatal().Err(err).Str("path", opts.Input).Msg("No GPS metadata found in image")
	}
	log.Info().
		Str("path", opts.Input).
		Float64("lat", fix.Lat).
		Float64("lon", fix.Lon).
		Msg("GPS position found")

	n, err := photo.Georeference(data, raster.FileSink(output), pixelSize)
	switch {
	case errors.Is(err, photo.ErrNoGPSMetadata):
		log.Fatal().Err(err).Str("path", opts.Input).Msg("No GPS metadata found in image")
	case errors.Is(err, photo.ErrDecode):
		log.Fatal().Err(err).Str("path", opts.Input).Msg("Failed to decode image")
	case errors.Is(err, raster.ErrWrite):
		log.Fatal().Err(err).Str("path", output).Msg("Failed to write GeoTIFF")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to georeference image")
	}

	log.Info().
		Str("path", output).
		Int64("bytes", n).
		Float64("pixel_size", pixelSize).
		Msg("GeoTIFF created successfully")
}
