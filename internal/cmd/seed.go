package cmd

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewSeedCmd creates the command filling the image with test objects.
func NewSeedCmd(d *device) *cobra.Command {
	var (
		count int
		size  int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Store test objects",
		Long: `Store a number of test objects for testing norfs.

Each object is stored under "seed/<uuid>" and contains the same UUID repeated
up to the requested size.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := d.mount()
			if err != nil {
				return err
			}

			for range count {
				id := uuid.New().String()
				data := bytes.Repeat([]byte(id), size/len(id)+1)[:size]
				if err := s.Store("seed/"+id, data); err != nil {
					_ = closeFn()
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d objects, free: %d bytes\n", count, s.FreeBytes())
			return closeFn()
		},
	}

	cmd.Flags().IntVarP(&count, "count", "c", 100, "Number of objects to store")
	cmd.Flags().IntVarP(&size, "size", "s", 64, "Size of each object")
	return cmd
}
