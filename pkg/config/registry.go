package config

// Persistent state keys (Registry)
const (
	KeyQNH         = "qnh"
	KeyUnits       = "units"
	KeyVolumeLevel = "volume_level"
)
