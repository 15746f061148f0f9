// Package influxdb mirrors stored readings into InfluxDB for long-term
// time-series queries.
//
// Each reading becomes one point:
//
//	sensor_readings,sensor_id=3 value=21.5 <timestamp>
//
// The timestamp is the reading's date when it parses as RFC3339 or
// "2006-01-02T15:04:05", otherwise the time of the write.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) { log.Printf("influx write: %v", err) })
//	_ = client.WriteReading(3, 21.5, "2024-01-01T00:00:00")
//
// Writes are batched (influxdb.batch_size) and flushed every
// influxdb.flush_interval seconds.
package influxdb
