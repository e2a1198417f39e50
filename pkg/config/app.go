package config

import "time"

var AppVersion = "DEVELOPMENT"

const (
	AppName           = "receiptd"
	LogFile           = "receiptd.log"
	PidFile           = "receiptd.pid"
	CfgFile           = "config.toml"
	ApiRequestTimeout = 30 * time.Second
)
