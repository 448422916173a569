// Package nvbox provides a hardware-agnostic storage abstraction for
// non-volatile memory devices such as EEPROM, NOR flash and NAND flash.
//
// It defines small capability interfaces that device drivers implement
// according to what the silicon actually supports:
//
//   - [ReadStorage] and [Storage]: byte-addressable read and read/write
//   - [ReadNorFlash] and [NorFlash]: block-erase devices with read, write
//     and erase granularity constraints
//   - [MultiwriteNorFlash]: NOR flash that allows reprogramming a word
//     (bitwise AND of old and new data)
//
// Every error returned by a driver maps onto a small generic taxonomy
// ([ErrorKind]) so that generic code can branch on the kind of failure
// without knowing the concrete driver error type.
//
// The rmw package turns any [NorFlash] into a byte-addressable [Storage]
// using read-modify-write over erase blocks. The async package carries the
// same contracts for callers that want every device primitive to take a
// context.
//
// # Supported Drivers
//
//   - mem    : RAM flash simulator (import _ "github.com/nuln/nvbox/driver/mem")
//   - file   : Flash image on a filesystem via afero (import _ "github.com/nuln/nvbox/driver/file")
//   - mmap   : Memory-mapped flash image (import _ "github.com/nuln/nvbox/driver/mmap")
//   - rclone : Flash image persisted to any rclone remote (import _ "github.com/nuln/nvbox/driver/rclone")
//   - chain  : Several chips joined into one address space (import _ "github.com/nuln/nvbox/driver/chain")
//   - eeprom : Byte-addressable EEPROM simulator (import _ "github.com/nuln/nvbox/driver/eeprom")
//
// # Quick Start
//
//	import (
//	    "github.com/nuln/nvbox"
//	    "github.com/nuln/nvbox/rmw"
//	    _ "github.com/nuln/nvbox/driver/file"
//	)
//
//	dev, err := nvbox.Open(&nvbox.Config{
//	    Type:     "file",
//	    Path:     "./flash.img",
//	    Geometry: nvbox.Geometry{Capacity: 1 << 20, ReadSize: 1, WriteSize: 4, EraseSize: 4096},
//	})
//	storage := rmw.NewOwned(dev.(nvbox.NorFlash))
//	err = storage.Write(10, []byte("hello"))
//
// # Import All Drivers
//
//	import _ "github.com/nuln/nvbox/drivers"
//
// Nothing in this package provides wear-leveling, power-loss atomicity or
// a file system. Durability is whatever the underlying device offers.
package nvbox
