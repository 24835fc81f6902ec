package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/outofforest/norfs"
	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/pkg/filedev"
)

// device holds flags describing the flash image.
type device struct {
	image       string
	blockSize   int
	blockCount  int
	granularity string
	direct      bool
	verbose     bool
}

func (d *device) geometry() (blocks.Geometry, error) {
	granularity, err := blocks.ParseGranularity(d.granularity)
	if err != nil {
		return blocks.Geometry{}, err
	}
	return blocks.Geometry{
		BlockSize:   d.blockSize,
		BlockCount:  d.blockCount,
		Granularity: granularity,
	}, nil
}

func (d *device) logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if d.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func (d *device) open() (*filedev.FileDev, error) {
	if d.image == "" {
		return nil, errors.New("image path is required")
	}
	geometry, err := d.geometry()
	if err != nil {
		return nil, err
	}
	return filedev.Open(d.image, geometry, d.direct)
}

// mount opens the image and mounts the storage. Returned function closes the image.
func (d *device) mount() (*norfs.Storage, func() error, error) {
	fd, err := d.open()
	if err != nil {
		return nil, nil, err
	}
	s, err := norfs.Mount(fd, norfs.WithLogger(d.logger()))
	if err != nil {
		_ = fd.Close()
		return nil, nil, err
	}
	return s, fd.Close, nil
}

// NewRootCmd creates and returns the root cobra command for the norfs CLI.
func NewRootCmd() *cobra.Command {
	d := &device{}

	rootCmd := &cobra.Command{
		Use:   "norfs",
		Short: "norfs - power-loss safe object store for NOR flash images",
		Long: `norfs stores objects under paths on NOR flash.

Commands operate on a flash image file. Image geometry must be the same for every
command executed against the image.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&d.image, "image", "i", "", "Path to the flash image")
	rootCmd.PersistentFlags().IntVar(&d.blockSize, "block-size", 65536, "Size of the erase block")
	rootCmd.PersistentFlags().IntVar(&d.blockCount, "block-count", 63, "Number of erase blocks")
	rootCmd.PersistentFlags().StringVar(&d.granularity, "granularity", "bit",
		"Write granularity: bit, word2, word4 or word8")
	rootCmd.PersistentFlags().BoolVar(&d.direct, "direct", false, "Bypass page cache of the operating system")
	rootCmd.PersistentFlags().BoolVarP(&d.verbose, "verbose", "v", false, "Enable debug logging")

	groupImage := "image"
	groupObjects := "objects"

	rootCmd.AddGroup(&cobra.Group{
		ID:    groupImage,
		Title: "Image Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupObjects,
		Title: "Object Operations",
	})

	for _, c := range []*cobra.Command{NewCreateCmd(d), NewFormatCmd(d), NewStatCmd(d), NewGCCmd(d)} {
		c.GroupID = groupImage
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{NewPutCmd(d), NewGetCmd(d), NewRmCmd(d), NewLsCmd(d), NewSeedCmd(d)} {
		c.GroupID = groupObjects
		rootCmd.AddCommand(c)
	}

	return rootCmd
}
