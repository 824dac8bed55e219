// Package mqtt provides MQTT client connectivity for biobridge.
//
// The bridge mirrors sensor events onto the broker and accepts
// commands from it, so automation systems can drive enrolment without
// the HTTP API:
//
//	biobridge/event/fingerprint/{event}      sensor events (QoS 1)
//	biobridge/state/fingerprint/link         retained link status
//	biobridge/command/fingerprint/{command}  inbound commands
//	biobridge/ack/fingerprint/{command}      command results
//	biobridge/health/fingerprint             periodic health
//	biobridge/system/status                  retained online/offline + LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands("fingerprint"), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(mqtt.LastSegment(topic), payload)
//	    })
package mqtt
