/*
Package ws streams lifecycle events to the presentation layer over a
WebSocket.

Each connection subscribes to the event bus and receives frames encoded as
JSON:

	{"type":"system","message":"connected to launcherd","timestamp":...}
	{"type":"event","event":{"type":"launch.succeeded",...},"timestamp":...}

?user= limits the stream to one user's events plus global ones such as
android.status; ?type= may repeat to select event types. Clients may send
{"type":"ping"} and receive {"type":"pong"}.
*/
package ws
