// Package mqtt provides MQTT connectivity for reading ingest and mirroring.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS acknowledgment
//   - Subscriptions that survive reconnects
//   - A retained Last Will on envmonitor/system/status for offline detection
//
// # Topics
//
//	envmonitor/readings/ingest              base stations publish new readings here
//	envmonitor/readings/created/{sensorId}  every stored reading is mirrored here
//	envmonitor/system/status                retained online/offline status
//
// The first two are configurable under mqtt.topics.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.Topics)
//	err = client.Subscribe(topics.Ingest(), client.QoS(),
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
