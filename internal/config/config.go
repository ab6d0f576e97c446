package config

import (
	"encoding/csv"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Station    StationConfig    `toml:"station"`    // Receiver location
	Feeds      []FeedConfig     `toml:"feeds"`      // Feed connections
	Lookup     LookupConfig     `toml:"lookup"`     // Aircraft details lookup
	Storage    StorageConfig    `toml:"storage"`    // Lookup cache and change archive
	WebSocket  WebSocketConfig  `toml:"websocket"`  // Change stream settings
	Simulation SimulationConfig `toml:"simulation"` // Simulated traffic
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the API
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticDir          string   `toml:"static_dir"`            // Directory of a web map served at / (empty disables it)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StationConfig is the receiver location. Coordinates are either given
// directly or resolved from an OurAirports CSV by airport code.
type StationConfig struct {
	Latitude       float64 `toml:"latitude"`         // Latitude in decimal degrees
	Longitude      float64 `toml:"longitude"`        // Longitude in decimal degrees
	ElevationFeet  int     `toml:"elevation_feet"`   // Elevation above sea level in feet
	AirportCode    string  `toml:"airport_code"`     // ICAO code of a nearby airport (e.g., "EIDW")
	AirportsDBPath string  `toml:"airports_db_path"` // Path to airport database CSV file (OurAirports format)
}

// FeedConfig describes one feed connection
type FeedConfig struct {
	Name                  string `toml:"name"`                       // Label used in logs and metrics
	Format                string `toml:"format"`                     // Decoder format: "basestation" or "aircraft-json"
	Address               string `toml:"address"`                    // host:port to dial
	StrictIcao            bool   `toml:"strict_icao"`                // Reject addresses that are not six hex digits
	TimeZoneOffsetMinutes int    `toml:"time_zone_offset_minutes"`   // Offset of the feed clock east of UTC
	MaxChunkSize          int    `toml:"max_chunk_size"`             // Largest single message in bytes
	DialTimeoutSecs       int    `toml:"dial_timeout_seconds"`       // Connection timeout
	ReconnectIntervalSecs int    `toml:"reconnect_interval_seconds"` // Pause before redialling a dropped feed
}

// TimeZoneOffset returns the feed clock offset as a duration
func (f FeedConfig) TimeZoneOffset() time.Duration {
	return time.Duration(f.TimeZoneOffsetMinutes) * time.Minute
}

// DialTimeout returns the dial timeout as a duration
func (f FeedConfig) DialTimeout() time.Duration {
	return time.Duration(f.DialTimeoutSecs) * time.Second
}

// ReconnectInterval returns the redial pause as a duration
func (f FeedConfig) ReconnectInterval() time.Duration {
	return time.Duration(f.ReconnectIntervalSecs) * time.Second
}

// LookupConfig contains the aircraft details lookup settings
type LookupConfig struct {
	Enabled          bool   `toml:"enabled"`             // Query the lookup provider for new aircraft
	BaseURL          string `toml:"base_url"`            // Provider base URL
	APIKey           string `toml:"api_key"`             // Bearer token for the provider, optional
	TimeoutSecs      int    `toml:"timeout_seconds"`     // Timeout for one provider request
	CacheMaxAgeHours int    `toml:"cache_max_age_hours"` // How long cached outcomes are reused
}

// Timeout returns the request timeout as a duration
func (l LookupConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSecs) * time.Second
}

// CacheMaxAge returns the cache lifetime as a duration
func (l LookupConfig) CacheMaxAge() time.Duration {
	return time.Duration(l.CacheMaxAgeHours) * time.Hour
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type                 string `toml:"type"`                   // Storage backend type (currently only "sqlite" is supported)
	SQLitePath           string `toml:"sqlite_path"`            // SQLite database file
	ArchiveChanges       bool   `toml:"archive_changes"`        // Persist every change set
	RetentionDays        int    `toml:"retention_days"`         // Archived changes older than this are pruned
	PruneIntervalMinutes int    `toml:"prune_interval_minutes"` // How often pruning runs
}

// Retention returns the archive retention as a duration
func (s StorageConfig) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// PruneInterval returns the prune interval as a duration
func (s StorageConfig) PruneInterval() time.Duration {
	return time.Duration(s.PruneIntervalMinutes) * time.Minute
}

// WebSocketConfig contains change stream settings
type WebSocketConfig struct {
	Enabled          bool `toml:"enabled"`               // Serve /ws
	SendBufferSize   int  `toml:"send_buffer_size"`      // Messages queued per client before it is dropped
	WriteTimeoutSecs int  `toml:"write_timeout_seconds"` // Deadline for a single write
	PingIntervalSecs int  `toml:"ping_interval_seconds"` // Keep-alive ping period
}

// SimulatorAddress is the feed address served by the built-in simulator
const SimulatorAddress = "simulator:30003"

// SimulationConfig contains the simulated traffic settings. When enabled a
// "simulator" feed is added that the tracker reads like any other.
type SimulationConfig struct {
	Enabled         bool `toml:"enabled"`          // Add the simulator feed
	MaxAircraft     int  `toml:"max_aircraft"`     // Upper bound on simulated aircraft
	InitialAircraft int  `toml:"initial_aircraft"` // Aircraft spawned around the station at startup
	IntervalMillis  int  `toml:"interval_ms"`      // Time between transmissions of one aircraft
}

// Interval returns the transmission interval as a duration
func (s SimulationConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMillis) * time.Millisecond
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if config.Station.AirportsDBPath != "" {
		if err := config.loadStationFromCSV(); err != nil {
			return nil, fmt.Errorf("failed to load station details from CSV: %w", err)
		}
	}

	return &config, nil
}

// Parse decodes a configuration document held in memory
func Parse(data string) (*Config, error) {
	var config Config
	if _, err := toml.Decode(data, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &config, nil
}

// loadStationFromCSV parses the airports.csv file to find the station coordinates
func (c *Config) loadStationFromCSV() error {
	if c.Station.AirportCode == "" {
		return fmt.Errorf("airport_code is required when airports_db_path is set")
	}

	file, err := os.Open(c.Station.AirportsDBPath)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true

	// Skip header
	if _, err := reader.Read(); err != nil {
		return err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return err
	}

	code := strings.ToUpper(c.Station.AirportCode)
	for _, record := range records {
		// id, ident, type, name, latitude_deg, longitude_deg, elevation_ft, ...
		if len(record) < 7 || strings.ToUpper(record[1]) != code {
			continue
		}

		lat, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude in CSV for %s: %w", code, err)
		}
		lon, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude in CSV for %s: %w", code, err)
		}
		c.Station.Latitude = lat
		c.Station.Longitude = lon

		// Elevation is often blank for heliports and closed fields
		if record[6] != "" {
			if elev, err := strconv.ParseFloat(record[6], 64); err == nil {
				c.Station.ElevationFeet = int(elev)
			}
		}
		return nil
	}

	return fmt.Errorf("airport code %s not found in %s", code, c.Station.AirportsDBPath)
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate applies defaults and rejects invalid values
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if err := c.ValidateStation(); err != nil {
		return err
	}
	if err := c.ValidateSimulation(); err != nil {
		return err
	}
	if err := c.ValidateFeeds(); err != nil {
		return err
	}
	if err := c.ValidateLookup(); err != nil {
		return err
	}
	if err := c.ValidateStorage(); err != nil {
		return err
	}

	// WebSocket defaults
	if c.WebSocket.SendBufferSize <= 0 {
		c.WebSocket.SendBufferSize = 256
	}
	if c.WebSocket.WriteTimeoutSecs <= 0 {
		c.WebSocket.WriteTimeoutSecs = 10
	}
	if c.WebSocket.PingIntervalSecs <= 0 {
		c.WebSocket.PingIntervalSecs = 30
	}

	return nil
}

// ValidateStation validates the station configuration
func (c *Config) ValidateStation() error {
	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		return fmt.Errorf("invalid station latitude: %f", c.Station.Latitude)
	}
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		return fmt.Errorf("invalid station longitude: %f", c.Station.Longitude)
	}
	// Elevation can be negative, so we'll just check if it's within a reasonable range
	if c.Station.ElevationFeet < -2000 || c.Station.ElevationFeet > 30000 {
		return fmt.Errorf("station elevation out of typical range: %d ft", c.Station.ElevationFeet)
	}
	return nil
}

// ValidateFeeds validates the feed connections. Format names are checked
// against the decoder registry when the tracker starts.
func (c *Config) ValidateFeeds() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one [[feeds]] entry is required")
	}

	names := make(map[string]bool)
	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.Name == "" {
			f.Name = fmt.Sprintf("feed-%d", i+1)
		}
		if names[f.Name] {
			return fmt.Errorf("duplicate feed name: %s", f.Name)
		}
		names[f.Name] = true

		if f.Format == "" {
			f.Format = "basestation"
		}
		if _, _, err := net.SplitHostPort(f.Address); err != nil {
			return fmt.Errorf("invalid address for feed %s: %w", f.Name, err)
		}
		if f.MaxChunkSize < 0 {
			return fmt.Errorf("invalid max_chunk_size for feed %s: %d", f.Name, f.MaxChunkSize)
		}
		// Offsets beyond +/-14h do not exist
		if f.TimeZoneOffsetMinutes < -14*60 || f.TimeZoneOffsetMinutes > 14*60 {
			return fmt.Errorf("invalid time_zone_offset_minutes for feed %s: %d", f.Name, f.TimeZoneOffsetMinutes)
		}
		if f.DialTimeoutSecs <= 0 {
			f.DialTimeoutSecs = 10
		}
		if f.ReconnectIntervalSecs <= 0 {
			f.ReconnectIntervalSecs = 5
		}
	}
	return nil
}

// ValidateSimulation applies the simulation defaults and adds its feed
func (c *Config) ValidateSimulation() error {
	if !c.Simulation.Enabled {
		return nil
	}
	if c.Simulation.MaxAircraft <= 0 {
		c.Simulation.MaxAircraft = 10
	}
	if c.Simulation.InitialAircraft < 0 || c.Simulation.InitialAircraft > c.Simulation.MaxAircraft {
		return fmt.Errorf("initial_aircraft must be between 0 and max_aircraft (%d)", c.Simulation.MaxAircraft)
	}
	if c.Simulation.IntervalMillis <= 0 {
		c.Simulation.IntervalMillis = 1000
	}
	for _, f := range c.Feeds {
		if f.Address == SimulatorAddress {
			return nil
		}
	}
	c.Feeds = append(c.Feeds, FeedConfig{Name: "simulator", Format: "basestation", Address: SimulatorAddress, StrictIcao: true})
	return nil
}

// ValidateLookup validates the lookup configuration
func (c *Config) ValidateLookup() error {
	if !c.Lookup.Enabled {
		return nil
	}
	if c.Lookup.BaseURL == "" {
		return fmt.Errorf("base_url is required when lookup is enabled")
	}
	if c.Lookup.TimeoutSecs <= 0 {
		c.Lookup.TimeoutSecs = 30
	}
	if c.Lookup.CacheMaxAgeHours <= 0 {
		c.Lookup.CacheMaxAgeHours = 24 * 7
	}
	return nil
}

// ValidateStorage validates the storage configuration
func (c *Config) ValidateStorage() error {
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required when storage type is sqlite")
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("invalid retention_days: %d", c.Storage.RetentionDays)
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 7
	}
	if c.Storage.PruneIntervalMinutes <= 0 {
		c.Storage.PruneIntervalMinutes = 60
	}
	return nil
}
