// Package cast reads playback status from cast receivers.
//
// A Pool keeps one TLS channel per device (keyed by device id) and implements
// monitor.StatusReader:
//
//   - Connect dials the device and opens a virtual connection to receiver-0.
//     An existing channel is reused.
//   - ReadStatus asks the receiver which applications run, joins the media
//     application's transport and asks it for its media sessions.
//
// A status is ready only once a MEDIA_STATUS with a media item arrived. An
// idle receiver, or an app without a session, yields a zero Status so the
// monitor retries and keeps its baseline.
//
// Every call is bounded by its context. Errors are classified into
// *DeviceError values and drop the channel, so the next Connect redials.
package cast
