package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nuln/nvbox"
	_ "github.com/nuln/nvbox/drivers"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	configFile string
	v          *viper.Viper
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "nvbox",
		Short: "nvbox inspects and edits simulated non-volatile memory",
		Long: `nvbox opens a simulated NOR flash or EEPROM device through the nvbox
driver registry and reads, writes, erases or checksums it. Writes go
through read-modify-write, so any offset and length is accepted.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadConfig(a.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := newLogger(v.GetString(cfgKeyLogLevel))
			if err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			a.v, a.logger = v, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: ./nvbox.yaml or ~/.nvbox/nvbox.yaml)")
	pf.String("driver", "", `device driver (default "file")`)
	pf.String("path", "", `image path (default "./flash.img")`)
	pf.String("remote", "", "rclone remote holding the image")
	pf.String("capacity", "", `device capacity, e.g. 1MiB (default "64KiB")`)
	pf.String("read-size", "", "read granularity in bytes (default 1)")
	pf.String("write-size", "", "write granularity in bytes (default 4)")
	pf.String("erase-size", "", `erase granularity (default "4KiB")`)
	pf.String("log-level", "", `log level: debug, info, warn, error (default "warn")`)

	root.AddCommand(
		newDriversCmd(),
		newInfoCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newEraseCmd(a),
		newChecksumCmd(a),
		newBlankCmd(a),
	)
	return root
}

// open opens the configured device.
func (a *app) open() (nvbox.ReadStorage, error) {
	cfg, err := deviceConfig(a.v)
	if err != nil {
		return nil, err
	}
	dev, err := nvbox.Open(cfg)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("device opened",
		zap.String("driver", cfg.Type),
		zap.String("path", cfg.Path),
		zap.String("capacity", humanize.IBytes(uint64(cfg.Geometry.Capacity))),
	)
	return dev, nil
}

// openFlash opens the configured device and requires a NOR flash.
func (a *app) openFlash() (nvbox.NorFlash, error) {
	dev, err := a.open()
	if err != nil {
		return nil, err
	}
	flash, ok := dev.(nvbox.NorFlash)
	if !ok {
		_ = nvbox.Close(dev)
		return nil, fmt.Errorf("driver %q is not a NOR flash: %w", a.v.GetString(cfgKeyDriver), nvbox.ErrNotSupported)
	}
	return flash, nil
}

// release flushes and closes dev, joining err with any failure.
func release(dev nvbox.ReadStorage, err error) error {
	return errors.Join(err, nvbox.Sync(dev), nvbox.Close(dev))
}

// parseSize parses a byte count: plain or 0x-prefixed integers, or
// human-readable sizes such as "4KiB".
func parseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 32)
		return int(n), err
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > 1<<32 {
		return 0, fmt.Errorf("size %s exceeds the 32-bit address space", s)
	}
	return int(n), nil
}

// parseAddr parses an address the way parseSize parses sizes.
func parseAddr(s string) (uint32, error) {
	n, err := parseSize(s)
	if err != nil {
		return 0, err
	}
	if n > 1<<32-1 {
		return 0, fmt.Errorf("address %s exceeds the 32-bit address space", s)
	}
	return uint32(n), nil
}
