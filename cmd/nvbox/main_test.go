package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuln/nvbox"
)

// run executes the CLI against an image in dir and returns its output.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	base := []string{
		"--driver", "file",
		"--path", filepath.Join(dir, "flash.img"),
		"--capacity", "16KiB",
		"--erase-size", "4KiB",
		"--write-size", "4",
		"--read-size", "1",
	}
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return out.String(), err
}

func TestDrivers(t *testing.T) {
	out, err := run(t, t.TempDir(), "drivers")
	require.NoError(t, err)
	for _, name := range []string{"chain", "eeprom", "file", "mem", "mmap", "rclone"} {
		assert.Contains(t, out, name)
	}
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "16 KiB")
	assert.Contains(t, out, "blocks:      4")

	out, err = run(t, dir, "info", "--json")
	require.NoError(t, err)
	var info nvbox.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "file", info.Driver)
	assert.Equal(t, 4096, info.Geometry.EraseSize)
	assert.True(t, info.Multiwrite)
}

func TestWriteReadErase(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "write", "--offset", "4094", "--text", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 5 B at 0x00000FFE")

	out, err = run(t, dir, "read", "--offset", "0xFFE", "--length", "5", "--raw")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = run(t, dir, "write", "--offset", "0", "--hex", "de ad be ef")
	require.NoError(t, err)
	out, err = run(t, dir, "read", "--length", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "de ad be ef")

	out, err = run(t, dir, "blank")
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 4 blocks blank")
	assert.Contains(t, out, "block 2 at 0x00002000")

	_, err = run(t, dir, "erase", "--from", "0", "--to", "4KiB")
	require.NoError(t, err)
	out, err = run(t, dir, "blank")
	require.NoError(t, err)
	assert.Contains(t, out, "3 of 4 blocks blank")

	raw, err := os.ReadFile(filepath.Join(dir, "flash.img"))
	require.NoError(t, err)
	assert.Equal(t, []byte("llo"), raw[4096:4099])
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "write", "--offset", "16383", "--text", "ab")
	assert.ErrorIs(t, err, nvbox.OutOfBounds)

	_, err = run(t, dir, "read", "--length", "4GiB")
	assert.ErrorIs(t, err, nvbox.OutOfBounds)

	_, err = run(t, dir, "erase", "--from", "100")
	assert.ErrorIs(t, err, nvbox.NotAligned(4096))

	_, err = run(t, dir, "write", "--hex", "zz")
	assert.ErrorContains(t, err, "hex")

	_, err = run(t, dir, "checksum", "--algo", "crc7")
	assert.ErrorIs(t, err, nvbox.ErrNotSupported)

	_, err = run(t, dir, "info", "--log-level", "loud")
	assert.ErrorContains(t, err, "log level")
}

func TestChecksum(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()

	sumA, err := run(t, a, "checksum", "--algo", "xxhash")
	require.NoError(t, err)
	sumB, err := run(t, b, "checksum", "--algo", "xxhash")
	require.NoError(t, err)
	assert.Equal(t, sumA, sumB)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(sumA), "xxhash"))

	_, err = run(t, a, "write", "--text", "x")
	require.NoError(t, err)
	sumA, err = run(t, a, "checksum", "--algo", "xxhash")
	require.NoError(t, err)
	assert.NotEqual(t, sumA, sumB)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "nvbox.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
driver: eeprom
capacity: 2KiB
erase_size: 64
`), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"info", "--config", cfgPath})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "driver:      eeprom")
	assert.Contains(t, out.String(), "blocks:      32")

	_, err := run(t, dir, "info", "--config", filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestParseSize(t *testing.T) {
	cases := map[string]int{
		"0":      0,
		"4096":   4096,
		"0x1000": 4096,
		"4KiB":   4096,
		"1 MiB":  1 << 20,
	}
	for in, want := range cases {
		got, err := parseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseSize("lots")
	assert.Error(t, err)
	_, err = parseAddr("8GiB")
	assert.Error(t, err)
}
