package config

import "time"

const (
	DriverUSBRaw = "usbraw"
	DriverSerial = "serial"
)

// Engine timing defaults, used when the config file leaves a field unset.
const (
	DefaultBaudRate        = 19200
	DefaultMonitorInterval = 3 * time.Second
	DefaultProbeTimeout    = 700 * time.Millisecond
	DefaultProbeRetries    = 2
	DefaultProbeRetryDelay = 120 * time.Millisecond
	DefaultReconnectBase   = 500 * time.Millisecond
	DefaultReconnectCap    = 10 * time.Second
)

type Printer struct {
	Driver               string `toml:"driver"`
	Path                 string `toml:"path,omitempty"`
	BaudRate             int    `toml:"baud_rate,omitempty"`
	MonitorInterval      string `toml:"monitor_interval,omitempty"`
	ProbeTimeout         string `toml:"probe_timeout,omitempty"`
	ProbeRetries         *int   `toml:"probe_retries,omitempty"`
	ProbeRetryDelay      string `toml:"probe_retry_delay,omitempty"`
	ReconnectBase        string `toml:"reconnect_base,omitempty"`
	ReconnectCap         string `toml:"reconnect_cap,omitempty"`
	ReconnectMaxAttempts int    `toml:"reconnect_max_attempts,omitempty"`
	OnlineErrorBitFatal  bool   `toml:"online_error_bit_fatal"`
	WatchDevices         *bool  `toml:"watch_devices,omitempty"`
}

func (c *Instance) PrinterDriver() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Printer.Driver == "" {
		return DriverUSBRaw
	}
	return c.vals.Printer.Driver
}

func (c *Instance) PrinterPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Printer.Path
}

func (c *Instance) SetPrinterPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Printer.Path = path
}

func (c *Instance) BaudRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Printer.BaudRate <= 0 {
		return DefaultBaudRate
	}
	return c.vals.Printer.BaudRate
}

func (c *Instance) MonitorInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Printer.MonitorInterval, DefaultMonitorInterval)
}

func (c *Instance) SetMonitorInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Printer.MonitorInterval = d.String()
}

func (c *Instance) ProbeTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Printer.ProbeTimeout, DefaultProbeTimeout)
}

func (c *Instance) ProbeRetries() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Printer.ProbeRetries == nil || *c.vals.Printer.ProbeRetries < 0 {
		return DefaultProbeRetries
	}
	return *c.vals.Printer.ProbeRetries
}

func (c *Instance) ProbeRetryDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Printer.ProbeRetryDelay, DefaultProbeRetryDelay)
}

func (c *Instance) ReconnectBase() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Printer.ReconnectBase, DefaultReconnectBase)
}

func (c *Instance) ReconnectCap() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Printer.ReconnectCap, DefaultReconnectCap)
}

// ReconnectMaxAttempts returns the reconnect attempt cap. Zero means
// unbounded, which is the default.
func (c *Instance) ReconnectMaxAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Printer.ReconnectMaxAttempts < 0 {
		return 0
	}
	return c.vals.Printer.ReconnectMaxAttempts
}

// OnlineErrorBitFatal reports whether the error bit in the online status
// byte should be treated as a communication failure. Some printer models
// set this bit spuriously, so it is off unless an operator opts in.
func (c *Instance) OnlineErrorBitFatal() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Printer.OnlineErrorBitFatal
}

func (c *Instance) WatchDevices() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Printer.WatchDevices == nil {
		return true
	}
	return *c.vals.Printer.WatchDevices
}
