// Package logging provides structured logging for the PLC bridge.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same fields and level filtering.
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
//	logger.Info("relay switched", "channel", "R3", "value", "ON")
//	logger.Error("modbus poll failed", "error", err)
//
// Each subsystem gets a child logger tagged with its name:
//
//	mqttLog := logger.Component("mqtt")
//
// Never log MQTT passwords.
package logging
