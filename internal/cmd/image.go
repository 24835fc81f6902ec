package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outofforest/norfs"
	"github.com/outofforest/norfs/pkg/filedev"
)

// NewCreateCmd creates the command creating new formatted image.
func NewCreateCmd(d *device) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create new image and format it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			geometry, err := d.geometry()
			if err != nil {
				return err
			}
			fd, err := filedev.Create(d.image, geometry, d.direct)
			if err != nil {
				return err
			}
			if err := norfs.Format(fd, norfs.WithLogger(d.logger())); err != nil {
				_ = fd.Close()
				return err
			}
			return fd.Close()
		},
	}
}

// NewFormatCmd creates the command formatting existing image.
func NewFormatCmd(d *device) *cobra.Command {
	return &cobra.Command{
		Use:   "format",
		Short: "Erase all the objects stored in the image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fd, err := d.open()
			if err != nil {
				return err
			}
			if err := norfs.Format(fd, norfs.WithLogger(d.logger())); err != nil {
				_ = fd.Close()
				return err
			}
			return fd.Close()
		},
	}
}

// NewStatCmd creates the command printing the state of blocks.
func NewStatCmd(d *device) *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Print the state of blocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := d.mount()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-6s %-8s %-9s %-8s %-8s %-8s %s\n", "BLOCK", "HEADER", "TYPE", "ERASES", "USED",
				"FREE", "FLAGS")
			for _, bs := range s.Stats() {
				var flags string
				if bs.AllowAlloc {
					flags += "a"
				}
				if bs.Unusable {
					flags += "u"
				}
				fmt.Fprintf(out, "%-6d %-8s %-9s %-8d %-8d %-8d %s\n", bs.Block, bs.Kind, bs.Type, bs.EraseCount,
					bs.UsedBytes, bs.FreeBytes, flags)
			}
			fmt.Fprintf(out, "free: %d bytes\n", s.FreeBytes())
			return closeFn()
		},
	}
}

// NewGCCmd creates the command formatting blocks holding only deleted objects.
func NewGCCmd(d *device) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Reclaim space taken by deleted objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := d.mount()
			if err != nil {
				return err
			}
			if err := s.GC(); err != nil {
				_ = closeFn()
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "free: %d bytes\n", s.FreeBytes())
			return closeFn()
		},
	}
}
