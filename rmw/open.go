package rmw

import (
	"fmt"

	"github.com/nuln/nvbox"
)

// Open opens the device described by cfg and returns it as byte-addressable
// storage. NOR flash devices are wrapped in a [Storage] with an owned
// scratch buffer; natively byte-addressable devices are returned as is.
func Open(cfg *nvbox.Config, opts ...Option) (nvbox.Storage, error) {
	dev, err := nvbox.Open(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(dev, opts...)
}

// Wrap returns dev as byte-addressable storage, adding read-modify-write
// when dev is a NOR flash.
func Wrap(dev nvbox.ReadStorage, opts ...Option) (nvbox.Storage, error) {
	switch dev := dev.(type) {
	case nvbox.Storage:
		return dev, nil
	case nvbox.NorFlash:
		return NewOwned(dev, opts...), nil
	}
	return nil, fmt.Errorf("rmw: %T is read-only: %w", dev, nvbox.ErrNotSupported)
}
