// Package fingerprint bridges a line-oriented fingerprint sensor
// controller on a serial port to in-process subscribers and accepts
// operator commands for it.
//
// # Architecture
//
//	                 ┌──────────────────────── fingerprint ───────────────────────┐
//	 sensor ◄──────► │ Link ──line──► Classify ──events──► Bus ──► subscriptions  │──► WebSocket, MQTT, InfluxDB
//	 (serial)        │  ▲                                                          │
//	                 │  └──── Write ◄──── Gateway ◄──── Submit(Command)            │◄── HTTP, MQTT
//	                 └────────────────────────────────────────────────────────────┘
//
// The device protocol is fire-and-forget: Submit returns once the command
// line is handed to the port, and the outcome arrives later as an
// enroll-status or verify-status event with no correlation to the
// command that caused it. Callers wanting the outcome subscribe to the Bus.
//
// # Wire format
//
// Outbound: "ENROLL <id>\n", "VERIFY\n", "DELETE <id>\n", "EMPTY\n".
// Inbound lines are classified by prefix (SENSOR:OK, SENSOR:ERROR,
// ENROLL:START, ENROLL:MSG:, ENROLL:ERROR:DUPLICATE, ENROLL:OK,
// VERIFY:START, VERIFY:MSG:, VERIFY:OK, VERIFY:NOT_FOUND); numeric
// fields appear as ID=<digits> and CONF=<digits> anywhere in the line.
//
// # Events
//
//	arduino-status   {connected, message}               link transitions
//	arduino-message  {message}                          every raw line
//	sensor-status    {status: ok|error, message}
//	enroll-status    {status, message?, fingerId?, confidence?}
//	verify-status    {status, message?, fingerId?, confidence?}
//
// # Thread Safety
//
// Link, Bus and Gateway are safe for concurrent use. Writes to the port
// are serialised; the read loop runs independently of writers.
package fingerprint
