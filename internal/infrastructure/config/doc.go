// Package config loads the bridge configuration.
//
// Values are layered: built-in defaults, then the YAML file, then
// PLCBRIDGE_* environment variables, and the result is validated once.
// The bridge never changes a Config after Load returns.
//
// Keep the MQTT password and InfluxDB token in the environment
// (PLCBRIDGE_MQTT_PASSWORD, PLCBRIDGE_INFLUXDB_TOKEN) rather than the file.
//
//	cfg, err := config.Load("/etc/plcbridge/config.yaml")
//	if err != nil {
//	    return err
//	}
//	interval := cfg.GetLoopInterval()
package config
