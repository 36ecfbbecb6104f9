package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	isp "github.com/tocurd/xfr-isp"
)

func newVersionCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the programmer firmware version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := execute(cmd, f, isp.Request{Op: isp.OpVersion})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %s\n", res.Version)
			return nil
		},
	}
}

func newStatusCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Read the target supply status byte",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := execute(cmd, f, isp.Request{Op: isp.OpStatus})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status 0x%02X\n", res.Value)
			return nil
		},
	}
}

func newReadCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "read OFFSET",
		Short: "Read one byte of the target page buffer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := parseByte(args[0])
			if err != nil {
				return err
			}
			res, err := execute(cmd, f, isp.Request{Op: isp.OpRead, Offset: offset})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "buffer[0x%02X] = 0x%02X\n", offset, res.Value)
			return nil
		},
	}
}

func newWriteCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "write OFFSET VALUE",
		Short: "Write one byte of the target page buffer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := parseByte(args[0])
			if err != nil {
				return err
			}
			value, err := parseByte(args[1])
			if err != nil {
				return err
			}
			if _, err := execute(cmd, f, isp.Request{Op: isp.OpWrite, Offset: offset, Value: value}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "buffer[0x%02X] <- 0x%02X\n", offset, value)
			return nil
		},
	}
}

func newHashCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Print the checksum of the target page buffer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := execute(cmd, f, isp.Request{Op: isp.OpHash})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hash 0x%02X\n", res.Value)
			return nil
		},
	}
}

func newReadPageCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "read-page ADDR",
		Short: "Read one flash page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			res, err := execute(cmd, f, isp.Request{Op: isp.OpReadPage, Address: addr})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), hex.Dump(res.Data))
			return nil
		},
	}
}

func newWritePageCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "write-page ADDR HEXDATA",
		Short: "Write one flash page from 128 bytes of hex data",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			data, err := parsePageData(args[1])
			if err != nil {
				return err
			}
			if _, err := execute(cmd, f, isp.Request{Op: isp.OpWritePage, Address: addr, Data: data}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page 0x%04X written\n", addr)
			return nil
		},
	}
}

// parsePageData 接受可带空格的十六进制串
func parsePageData(s string) ([]byte, error) {
	data, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, errors.Wrap(err, "page data")
	}
	if len(data) != isp.PageSize {
		return nil, errors.Wrapf(isp.ErrPageSizeMismatch, "got %d bytes, want %d", len(data), isp.PageSize)
	}
	return data, nil
}
