package constants

// ErrorCode is the closed set of failures reported through the error signal.
type ErrorCode int

const (
	ErrorActivityNotFound          ErrorCode = 100
	ErrorLocationUpdatesNull       ErrorCode = 101
	ErrorLastKnownLocationNull     ErrorCode = 102
	ErrorLocationPermissionMissing ErrorCode = 103
)

var errorMessages = map[ErrorCode]string{
	ErrorActivityNotFound:          "Host activity is null!",
	ErrorLocationUpdatesNull:       "Location Updates object is null!",
	ErrorLastKnownLocationNull:     "Last Know Location object is null!",
	ErrorLocationPermissionMissing: "Missing location permissions!",
}

// Code returns the numeric code carried by the error signal.
func (c ErrorCode) Code() int {
	return int(c)
}

// Message returns the fixed human readable message for the code.
func (c ErrorCode) Message() string {
	return errorMessages[c]
}

// Plugin identity, methods and signals as registered with the host.
const (
	LocationPluginName = "LocationPlugin"

	MethodStartLocationUpdates = "startLocationUpdates"
	MethodStopLocationUpdates  = "stopLocationUpdates"
	MethodGetLastKnownLocation = "getLastKnowLocation"

	SignalLocationUpdates   = "onLocationUpdates"
	SignalLastKnownLocation = "onLastKnownLocation"
	SignalLocationError     = "onLocationError"
)

// VerticalAccuracyMinPlatform is the first platform version that reports vertical accuracy.
const VerticalAccuracyMinPlatform = ">= 8.0.0"
