// Package drivers is a convenience package that registers all built-in
// device drivers. Import it with a blank identifier to make all drivers
// available:
//
//	import _ "github.com/nuln/nvbox/drivers"
package drivers

import (
	"github.com/nuln/nvbox"
	_ "github.com/nuln/nvbox/driver/chain"
	_ "github.com/nuln/nvbox/driver/eeprom"
	_ "github.com/nuln/nvbox/driver/file"
	_ "github.com/nuln/nvbox/driver/mem"
	_ "github.com/nuln/nvbox/driver/mmap"
	_ "github.com/nuln/nvbox/driver/rclone"
)

// List returns a list of all registered device drivers.
func List() []string {
	return nvbox.Drivers()
}
