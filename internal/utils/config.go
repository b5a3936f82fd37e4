package utils

import (
	"time"

	"github.com/benmeehan/location-bridge/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker             string `yaml:"broker" toml:"broker"`                             // MQTT broker address
		ClientID           string `yaml:"client_id" toml:"client_id"`                       // MQTT client ID prefix
		Username           string `yaml:"username" toml:"username"`                         // Optional broker username
		Password           string `yaml:"password" toml:"password"`                         // Optional broker password
		CACertificate      string `yaml:"ca_certificate" toml:"ca_certificate"`             // Path to the CA certificate, enables TLS
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"` // Skip broker certificate validation
		ConnectTimeout     int    `yaml:"connect_timeout" toml:"connect_timeout"`           // Connect timeout (in seconds)
	} `yaml:"mqtt" toml:"mqtt"`

	Logging struct {
		Level string `yaml:"level" toml:"level"` // zerolog level name
	} `yaml:"logging" toml:"logging"`

	Host struct {
		TopicPrefix        string   `yaml:"topic_prefix" toml:"topic_prefix"`               // Prefix of method and signal topics
		QOS                int      `yaml:"qos" toml:"qos"`                                 // MQTT QoS level for host traffic
		QueueSize          int      `yaml:"queue_size" toml:"queue_size"`                   // Pending commands on the main loop
		PlatformVersion    string   `yaml:"platform_version" toml:"platform_version"`       // Semantic version of the host platform
		GrantedPermissions []string `yaml:"granted_permissions" toml:"granted_permissions"` // Permissions granted to plugins
	} `yaml:"host" toml:"host"`

	Bridge struct {
		LegacyPermissionError bool `yaml:"legacy_permission_error" toml:"legacy_permission_error"` // Emit a permission error on every callback initialisation
	} `yaml:"bridge" toml:"bridge"`

	Location struct {
		SourceTimeout int `yaml:"source_timeout" toml:"source_timeout"` // Per-source fix timeout (in seconds)

		GPS struct {
			Enabled    bool   `yaml:"enabled" toml:"enabled"`         // Enable/disable the serial GPS source
			DevicePort string `yaml:"device_port" toml:"device_port"` // UNIX port where the GPS sensor is mounted
			BaudRate   int    `yaml:"baud_rate" toml:"baud_rate"`     // The baud rate for the GPS sensor
		} `yaml:"gps" toml:"gps"`

		Network struct {
			Enabled    bool   `yaml:"enabled" toml:"enabled"`           // Enable/disable the geolocation API source
			MapsAPIKey string `yaml:"maps_api_key" toml:"maps_api_key"` // Google maps API key
			ModemIndex int    `yaml:"modem_index" toml:"modem_index"`   // ModemManager index for cell scans
		} `yaml:"network" toml:"network"`
	} `yaml:"location" toml:"location"`
}

const (
	defaultLogLevel        = "info"
	defaultTopicPrefix     = "plugins"
	defaultQueueSize       = 16
	defaultPlatformVersion = "8.0.0"
	defaultBaudRate        = 9600
	defaultSourceTimeout   = 10
	defaultConnectTimeout  = 30
)

// LoadConfig loads the YAML or TOML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadConfigFile(filename, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Host.TopicPrefix == "" {
		c.Host.TopicPrefix = defaultTopicPrefix
	}
	if c.Host.QueueSize <= 0 {
		c.Host.QueueSize = defaultQueueSize
	}
	if c.Host.PlatformVersion == "" {
		c.Host.PlatformVersion = defaultPlatformVersion
	}
	if c.Location.GPS.BaudRate == 0 {
		c.Location.GPS.BaudRate = defaultBaudRate
	}
	if c.Location.SourceTimeout <= 0 {
		c.Location.SourceTimeout = defaultSourceTimeout
	}
	if c.MQTT.ConnectTimeout <= 0 {
		c.MQTT.ConnectTimeout = defaultConnectTimeout
	}
}

// SourceTimeout returns the per-source fix timeout.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Location.SourceTimeout) * time.Second
}

// ConnectTimeout returns the broker connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.ConnectTimeout) * time.Second
}
