package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	isp "github.com/tocurd/xfr-isp"
)

func newProgramCmd(f *flags) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "program FILE",
		Short: "Program an Intel HEX image into flash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := execute(cmd, f, isp.Request{Op: isp.OpProgram, Path: args[0], Verify: verify})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "programmed %d pages (%d merged, %d bytes)\n",
				res.Stats.Pages, res.Stats.Merged, res.Stats.Bytes)
			if verify {
				fmt.Fprintln(cmd.OutOrStdout(), "verify OK")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "verify after programming")
	return cmd
}

func newVerifyCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify FILE",
		Short: "Compare flash with an Intel HEX image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := execute(cmd, f, isp.Request{Op: isp.OpVerify, Path: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verify OK: %d pages, %d bytes\n", res.Stats.Pages, res.Stats.Bytes)
			return nil
		},
	}
}

func newDumpCmd(f *flags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "dump ADDR LENGTH",
		Short: "Read a flash range and write it as Intel HEX",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			length, err := parseNumber(args[1], 32)
			if err != nil {
				return err
			}

			// 读完之后才创建输出文件，失败时不留下残缺文件
			var buf bytes.Buffer
			if _, err := execute(cmd, f, isp.Request{Op: isp.OpDump, Address: addr, Length: int(length), Output: &buf}); err != nil {
				return err
			}
			return writeOutput(output, buf.Bytes(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

/*
 * @Description: 写出结果，path 为空时写到 stdout
 * @param path
 * @param data
 * @param stdout
 * @return error 包括关闭文件时的错误
 */
func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(data)
		return errors.Wrap(err, "write output")
	}
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return errors.Wrap(err, "write output")
	}
	return errors.Wrap(out.Close(), "close output")
}
