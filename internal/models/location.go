package models

// LocationSample is the flat record carried by location signals.
type LocationSample struct {
	Longitude              float32 `json:"longitude"`
	Latitude               float32 `json:"latitude"`
	Accuracy               float32 `json:"accuracy"`
	VerticalAccuracyMeters float32 `json:"verticalAccuracyMeters"`
	Altitude               float32 `json:"altitude"`
	Speed                  float32 `json:"speed"`
	Time                   int32   `json:"time"`
}

// PluginCommand is a method invocation sent by the host.
type PluginCommand struct {
	Method string        `json:"method"`
	Args   []interface{} `json:"args"`
}

// PluginSignal is a signal published to the host.
type PluginSignal struct {
	Plugin string        `json:"plugin"`
	Signal string        `json:"signal"`
	Args   []interface{} `json:"args"`
}
