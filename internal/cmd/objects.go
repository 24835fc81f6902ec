package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewPutCmd creates the command storing the object.
func NewPutCmd(d *device) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "put PATH",
		Short: "Store the object read from file or standard input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if file == "" || file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return errors.WithStack(err)
			}

			s, closeFn, err := d.mount()
			if err != nil {
				return err
			}
			if err := s.Store(args[0], data); err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "File to read the object from, standard input is used by default")
	return cmd
}

// NewGetCmd creates the command printing the object.
func NewGetCmd(d *device) *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH",
		Short: "Write the object to standard output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := d.mount()
			if err != nil {
				return err
			}
			r, err := s.Read(args[0])
			if err != nil {
				_ = closeFn()
				return err
			}
			if _, err := io.Copy(cmd.OutOrStdout(), r); err != nil {
				_ = closeFn()
				return errors.WithStack(err)
			}
			return closeFn()
		},
	}
}

// NewRmCmd creates the command deleting the objects.
func NewRmCmd(d *device) *cobra.Command {
	return &cobra.Command{
		Use:   "rm PATH...",
		Short: "Delete the objects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := d.mount()
			if err != nil {
				return err
			}
			for _, path := range args {
				if err := s.Delete(path); err != nil {
					_ = closeFn()
					return err
				}
			}
			return closeFn()
		},
	}
}

// NewLsCmd creates the command listing stored paths.
func NewLsCmd(d *device) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List stored objects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := d.mount()
			if err != nil {
				return err
			}
			err = s.Walk(func(path string, length int) error {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%10d %s\n", length, path)
				return errors.WithStack(err)
			})
			if err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}
}
