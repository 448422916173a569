package nvbox

// CheckBounds reports [OutOfBounds] if [offset, offset+length) does not fit
// into a device of the given capacity.
func CheckBounds(capacity int, offset uint32, length int) error {
	if length < 0 || length > capacity || int64(offset) > int64(capacity-length) {
		return OutOfBounds
	}
	return nil
}

// CheckRead returns whether a read operation is aligned and within bounds.
// Drivers call it before touching the hardware.
func CheckRead(flash ReadNorFlash, offset uint32, length int) error {
	return checkSlice(flash.Capacity(), flash.ReadSize(), offset, length)
}

// CheckWrite returns whether a write operation is aligned and within bounds.
func CheckWrite(flash NorFlash, offset uint32, length int) error {
	return checkSlice(flash.Capacity(), flash.WriteSize(), offset, length)
}

// CheckErase returns whether an erase operation is aligned and within
// bounds. from > to is out of bounds.
func CheckErase(flash NorFlash, from, to uint32) error {
	if from > to || int64(to) > int64(flash.Capacity()) {
		return OutOfBounds
	}
	size := uint32(flash.EraseSize())
	if from%size != 0 || to%size != 0 {
		return NotAligned(flash.EraseSize())
	}
	return nil
}

func checkSlice(capacity, align int, offset uint32, length int) error {
	if err := CheckBounds(capacity, offset, length); err != nil {
		return err
	}
	if int64(offset)%int64(align) != 0 || length%align != 0 {
		return NotAligned(align)
	}
	return nil
}
