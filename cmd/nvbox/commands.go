package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nuln/nvbox"
	"github.com/nuln/nvbox/rmw"
)

func newDriversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List registered device drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range nvbox.Drivers() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the device geometry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			dev, err := a.open()
			if err != nil {
				return err
			}
			defer func() { err = release(dev, err) }()

			info := nvbox.Describe(dev)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			g := info.Geometry
			fmt.Fprintf(out, "driver:      %s\n", info.Driver)
			fmt.Fprintf(out, "capacity:    %s (%d bytes)\n", humanize.IBytes(uint64(g.Capacity)), g.Capacity)
			fmt.Fprintf(out, "read size:   %d\n", g.ReadSize)
			fmt.Fprintf(out, "write size:  %d\n", g.WriteSize)
			fmt.Fprintf(out, "erase size:  %s\n", humanize.IBytes(uint64(g.EraseSize)))
			fmt.Fprintf(out, "blocks:      %d\n", info.Blocks)
			fmt.Fprintf(out, "erased:      0x%02X\n", info.ErasedValue)
			fmt.Fprintf(out, "multiwrite:  %t\n", info.Multiwrite)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newReadCmd(a *app) *cobra.Command {
	var offset, length string
	var raw bool
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read bytes at any offset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			addr, err := parseAddr(offset)
			if err != nil {
				return fmt.Errorf("offset: %w", err)
			}
			n, err := parseSize(length)
			if err != nil {
				return fmt.Errorf("length: %w", err)
			}

			dev, err := a.open()
			if err != nil {
				return err
			}
			defer func() { err = release(dev, err) }()

			s, err := rmw.Wrap(dev, rmw.WithLogger(a.logger))
			if err != nil {
				return err
			}
			if err := nvbox.CheckBounds(s.Capacity(), addr, n); err != nil {
				return err
			}
			buf := make([]byte, n)
			if err := s.Read(addr, buf); err != nil {
				return err
			}
			if raw {
				_, err = cmd.OutOrStdout().Write(buf)
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), hex.Dump(buf))
			return nil
		},
	}
	cmd.Flags().StringVar(&offset, "offset", "0", "start address")
	cmd.Flags().StringVar(&length, "length", "256", "number of bytes")
	cmd.Flags().BoolVar(&raw, "raw", false, "write the bytes unformatted")
	return cmd
}

func newWriteCmd(a *app) *cobra.Command {
	var offset, hexData, text string
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write bytes at any offset using read-modify-write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			addr, err := parseAddr(offset)
			if err != nil {
				return fmt.Errorf("offset: %w", err)
			}
			var data []byte
			switch {
			case hexData != "" && text != "":
				return fmt.Errorf("--hex and --text are mutually exclusive")
			case hexData != "":
				data, err = hex.DecodeString(strings.ReplaceAll(hexData, " ", ""))
				if err != nil {
					return fmt.Errorf("hex: %w", err)
				}
			default:
				data = []byte(text)
			}

			dev, err := a.open()
			if err != nil {
				return err
			}
			defer func() { err = release(dev, err) }()

			s, err := rmw.Wrap(dev, rmw.WithLogger(a.logger))
			if err != nil {
				return err
			}
			if err := s.Write(addr, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s at 0x%08X\n", humanize.IBytes(uint64(len(data))), addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&offset, "offset", "0", "start address")
	cmd.Flags().StringVar(&hexData, "hex", "", "data as hex, e.g. DEADBEEF")
	cmd.Flags().StringVar(&text, "text", "", "data as text")
	return cmd
}

func newEraseCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase a block-aligned range (default: the whole device)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			flash, err := a.openFlash()
			if err != nil {
				return err
			}
			defer func() { err = release(flash, err) }()

			lo, err := parseAddr(from)
			if err != nil {
				return fmt.Errorf("from: %w", err)
			}
			hi := uint32(flash.Capacity())
			if to != "" {
				if hi, err = parseAddr(to); err != nil {
					return fmt.Errorf("to: %w", err)
				}
			}
			if err := flash.Erase(lo, hi); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "erased [0x%08X, 0x%08X)\n", lo, hi)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "0", "first address, erase aligned")
	cmd.Flags().StringVar(&to, "to", "", "end address, exclusive (default: capacity)")
	return cmd
}

func newChecksumCmd(a *app) *cobra.Command {
	var algo string
	cmd := &cobra.Command{
		Use:   "checksum",
		Short: "Hash the whole device content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			flash, err := a.openFlash()
			if err != nil {
				return err
			}
			defer func() { err = release(flash, err) }()

			sum, err := nvbox.Checksum(flash, algo)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, algo)
			return nil
		},
	}
	cmd.Flags().StringVar(&algo, "algo", "sha256", "md5, sha256 or xxhash")
	return cmd
}

func newBlankCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "blank",
		Short: "Report which erase blocks are blank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			flash, err := a.openFlash()
			if err != nil {
				return err
			}
			defer func() { err = release(flash, err) }()

			info := nvbox.Describe(flash)
			blank, err := nvbox.BlankBlocks(flash, info.ErasedValue)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d of %d blocks blank\n", len(blank), info.Blocks)
			for _, idx := range blank {
				fmt.Fprintf(out, "  block %d at 0x%08X\n", idx, idx*info.Geometry.EraseSize)
			}
			return nil
		},
	}
}
