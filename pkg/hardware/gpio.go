package hardware

// DigitalInput is a logical input line. ReadLevel returns true when the
// line is asserted, after any active-low inversion.
type DigitalInput interface {
	ReadLevel() bool
}

// DigitalOutput is a logical output line
type DigitalOutput interface {
	SetLevel(high bool) error
}

// Buttons groups the inputs the control loop samples every tick
type Buttons struct {
	Power DigitalInput
	Lock  DigitalInput
	USB   DigitalInput
}

// Levels samples all three inputs. A missing line reads false.
func (b Buttons) Levels() (power, lock, usb bool) {
	return read(b.Power), read(b.Lock), read(b.USB)
}

func read(in DigitalInput) bool {
	if in == nil {
		return false
	}
	return in.ReadLevel()
}
