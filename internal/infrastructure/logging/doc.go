// Package logging provides structured logging for biobridge.
//
// It wraps log/slog so every component logs with the same default
// fields (service, version) and a "component" attribute naming the
// subsystem (serial, bus, gateway, mqtt, api).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("serial").Info("port open", "path", "/dev/ttyUSB0")
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
