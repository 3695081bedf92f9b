// Package protocol implements the Cast v2 wire protocol used to read receiver status.
//
// Cast receivers listen on a TLS socket (port 8009). Every message on the
// socket is a CastMessage protobuf preceded by its length:
//
//	[0-3]   length         Message size (big-endian uint32, at most 64 KiB)
//	[4+]    CastMessage    protobuf fields:
//	          1 protocol_version  (varint, always 0)
//	          2 source_id         (string, "sender-0" for us)
//	          3 destination_id    (string, "receiver-0" or an app transportId)
//	          4 namespace         (string)
//	          5 payload_type      (varint, 0 = string, 1 = binary)
//	          6 payload_utf8      (string, JSON)
//	          7 payload_binary    (bytes)
//
// # Namespaces
//
// A status read needs four namespaces:
//   - tp.connection: CONNECT/CLOSE of virtual connections
//   - tp.heartbeat: PING/PONG keepalive; a PING must be answered
//   - receiver: GET_STATUS returns RECEIVER_STATUS with running applications
//   - media: GET_STATUS (sent to an app transportId) returns MEDIA_STATUS
//
// # Usage Example
//
//	msg, err := protocol.BuildReceiverGetStatus(protocol.GenerateRequestID())
//	if err != nil {
//	    return err
//	}
//	if err := protocol.WriteFrame(conn, msg); err != nil {
//	    return err
//	}
//
//	reply, err := protocol.ReadFrame(conn)
//	if err != nil {
//	    return err
//	}
//	status, err := protocol.ParseReceiverStatus(reply)
//
// Connection-level messages (heartbeat, close) are handled by HandleControl.
package protocol
