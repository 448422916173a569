package nvbox

import "io"

// Syncer is implemented by devices that buffer writes and can flush them to
// their backing medium.
// Use type assertion to check: if s, ok := dev.(nvbox.Syncer); ok { ... }
type Syncer interface {
	Sync() error
}

// Closer is implemented by devices holding resources (files, mappings,
// remote handles).
type Closer = io.Closer

// EraseCounter reports how many times an erase block has been erased.
type EraseCounter interface {
	EraseCount(block int) uint32
}

// Describer is implemented by devices that describe themselves.
type Describer interface {
	Info() Info
}

// Sync flushes dev if it implements [Syncer]. Otherwise it does nothing.
func Sync(dev ReadStorage) error {
	if s, ok := dev.(Syncer); ok {
		return s.Sync()
	}
	return nil
}

// Close releases dev if it implements [Closer]. Otherwise it does nothing.
func Close(dev ReadStorage) error {
	if c, ok := dev.(Closer); ok {
		return c.Close()
	}
	return nil
}
