package scan

// Hardware band limits of the transceiver
const (
	BandMinMHz = 300.0
	BandMaxMHz = 928.0

	bandMinHz = 300000000
	bandMaxHz = 928000000
)

// CandidateFrequencies are the channel centers visited by the coarse scan, in Hz.
var CandidateFrequencies = [...]uint32{
	300000000, 302757000, 303875000, 303900000, 304250000,
	307000000, 307500000, 307800000, 309000000, 310000000,
	312000000, 312100000, 312200000, 313000000, 313850000,
	314000000, 314350000, 314980000, 315000000, 318000000,
	330000000, 345000000, 348000000, 350000000, 387000000,
	390000000, 418000000, 430000000, 430500000, 431000000,
	431500000, 433075000, 433220000, 433420000, 433657070,
	433889000, 433920000, 434075000, 434176948, 434190000,
	434390000, 434420000, 434620000, 434775000, 438900000,
	440175000, 464000000, 467750000, 779000000, 868350000,
	868400000, 868800000, 868950000, 906400000, 915000000,
	925000000, 928000000,
}

// HzToMHz converts a frequency in Hz to MHz
func HzToMHz(hz uint32) float64 {
	return float64(hz) / 1e6
}

func clampMHz(v float64) float64 {
	if v < BandMinMHz {
		return BandMinMHz
	}
	if v > BandMaxMHz {
		return BandMaxMHz
	}
	return v
}

func inBand(hz int64) bool {
	return hz >= bandMinHz && hz <= bandMaxHz
}
