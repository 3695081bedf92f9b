// Package publish mirrors monitor events to an MQTT broker.
//
// Topics, under a configurable prefix (default "castwatch"):
//
//	<prefix>/state             "online" on connect, "offline" on close or as the will
//	<prefix>/devices           JSON list of current devices after each device change
//	<prefix>/status/<device>   JSON of the device's full status after a change
//	<prefix>/changes/<device>  JSON object of the fields that changed on a device
//
// State messages are always retained. Device and status messages follow the
// configured retain flag, so a late subscriber gets complete records. Change
// messages are never retained.
package publish
