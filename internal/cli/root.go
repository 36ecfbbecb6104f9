// Package cli 命令行
package cli

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	isp "github.com/tocurd/xfr-isp"
	"github.com/tocurd/xfr-isp/internal/config"
	"github.com/tocurd/xfr-isp/internal/logging"
)

type flags struct {
	configFile       string
	port             string
	baud             int
	timeout          time.Duration
	settle           time.Duration
	retries          int
	skipDebug        bool
	skipNormal       bool
	strict           bool
	discardFirstLine bool
	verbose          bool
}

func newRootCmd() *cobra.Command {
	return newRoot(&flags{})
}

func newRoot(f *flags) *cobra.Command {
	def := config.Default()

	root := &cobra.Command{
		Use:           "xfr",
		Short:         "In-system flash programmer for XFR1 targets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "YAML config file")
	pf.StringVarP(&f.port, "port", "p", def.Port, "serial port of the programmer")
	pf.IntVar(&f.baud, "baud", def.Baud, "baud rate")
	pf.DurationVar(&f.timeout, "timeout", def.ReadTimeout, "host read timeout (0 waits forever)")
	pf.DurationVar(&f.settle, "settle", def.SettleDelay, "delay after mode changes")
	pf.IntVar(&f.retries, "retries", def.Retries, "attempts per byte operation")
	pf.BoolVar(&f.skipDebug, "skip-debug", false, "do not enter debug mode before the operation")
	pf.BoolVar(&f.skipNormal, "skip-normal", false, "do not enter normal mode after the operation")
	pf.BoolVar(&f.strict, "strict", false, "validate Intel HEX record checksums")
	pf.BoolVar(&f.discardFirstLine, "discard-first-line", false, "drop the first line received after opening the port")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newVersionCmd(f),
		newStatusCmd(f),
		newReadCmd(f),
		newWriteCmd(f),
		newHashCmd(f),
		newReadPageCmd(f),
		newWritePageCmd(f),
		newProgramCmd(f),
		newVerifyCmd(f),
		newDumpCmd(f),
		newPortsCmd(),
	)
	return root
}

// Execute 运行命令行，Ctrl-C 在页之间取消
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

/*
 * @Description: 合并配置文件与命令行参数，命令行显式给出的优先
 * @param cmd
 * @param f
 * @return config.Config
 * @return error
 */
func resolve(cmd *cobra.Command, f *flags) (config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		var err error
		if cfg, err = config.Load(f.configFile); err != nil {
			return cfg, err
		}
	}
	changed := cmd.Flags().Changed
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("baud") {
		cfg.Baud = f.baud
	}
	if changed("timeout") {
		cfg.ReadTimeout = f.timeout
	}
	if changed("settle") {
		cfg.SettleDelay = f.settle
	}
	if changed("retries") {
		cfg.Retries = f.retries
	}
	if changed("skip-debug") {
		cfg.SkipDebug = f.skipDebug
	}
	if changed("skip-normal") {
		cfg.SkipNormal = f.skipNormal
	}
	if changed("strict") {
		cfg.StrictHex = f.strict
	}
	if changed("discard-first-line") {
		cfg.DiscardFirstLine = f.discardFirstLine
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// execute 打开串口，执行一个操作
func execute(cmd *cobra.Command, f *flags, req isp.Request) (*isp.Result, error) {
	cfg, err := resolve(cmd, f)
	if err != nil {
		return nil, err
	}
	logger := logging.NewConsole(cmd.ErrOrStderr(), cfg.Verbose)

	port, err := isp.OpenPort(cfg.PortConfig())
	if err != nil {
		return nil, err
	}
	defer port.Close()
	logger.Debug("port opened", "port", cfg.Port, "baud", cfg.Baud)

	bar := newProgressBar(cmd.ErrOrStderr())
	defer bar.finish()

	opts := append(cfg.Options(),
		isp.WithLogger(logger),
		isp.WithProgressCallback(bar.update),
	)
	session := isp.NewSession(port, opts...)
	return session.Execute(cmd.Context(), req)
}

func parseNumber(s string, bitSize int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bitSize)
	if err != nil {
		return 0, errors.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseByte(s string) (byte, error) {
	v, err := parseNumber(s, 8)
	return byte(v), err
}

func parseAddress(s string) (uint16, error) {
	v, err := parseNumber(s, 16)
	return uint16(v), err
}
