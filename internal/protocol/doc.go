// Package protocol implements the mower's application-layer frame format.
//
// The mower speaks a command/response protocol on top of two GATT
// characteristics: the host writes request frames to one and the mower
// answers through notifications on the other. GATT moves opaque buffers of at
// most one ATT MTU, so a frame is split into chunks on the way out and glued
// back together on the way in.
//
// # Frame Format
//
// The wire layout is a pluggable [Layout]. [DefaultLayout] is the one shipped
// with this module:
//
//	[0]      0x02            Start marker
//	[1]      0xFD            Protocol version
//	[2:4]    payload length  uint16, little-endian
//	[4:8]    channel id      uint32, little-endian
//	[8]      sequence        uint8
//	[9:11]   command major   uint16, little-endian
//	[11]     command minor   uint8
//	[12:n]   payload         Command specific
//	[n:n+2]  checksum        CRC-16-CCITT over [4:n], big-endian
//	[n+2]    0x03            End marker
//
// # Usage Example - Encoding
//
//	codec := protocol.NewCodec(protocol.DefaultLayout{}, 20)
//	chunks, err := codec.Encode(channel, seq, protocol.CommandID{Major: 4, Minor: 1}, payload)
//	if err != nil {
//	    return err
//	}
//	for _, chunk := range chunks {
//	    if err := char.Write(chunk); err != nil {
//	        return err
//	    }
//	}
//
// # Usage Example - Reassembly
//
//	r := protocol.NewReassembler(protocol.DefaultLayout{}, logger)
//	if frame := r.Ingest(notification); frame != nil {
//	    fmt.Println(frame)
//	}
//
// The [Reassembler] never hands out a partial or corrupt frame. Checksum
// failures and desynchronisation discard the buffered bytes and are logged.
//
// # Errors
//
// [Error] carries an [ErrorType] shared by every layer of the engine. Use
// errors.Is with the sentinel values ([ErrBusy], [ErrTimeout], ...) or the
// Is* helpers to branch on the category.
package protocol
