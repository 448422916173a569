// Package main provides the nvbox CLI for inspecting and editing simulated
// non-volatile memory devices.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
