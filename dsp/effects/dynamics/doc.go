// Package dynamics provides the feed-forward dynamics processors used on
// mixer tracks and the master bus.
//
// Included processors:
//   - Compressor: soft-knee downward compressor; with a high ratio and a
//     hard knee it acts as the track and master limiter.
//   - Expander: soft-knee downward expander used for noise suppression.
//     A ratio of 1 makes it an identity.
//
// Both processors detect on the louder of the two channels when driven in
// stereo, so the stereo image is not shifted by gain changes. Times are in
// seconds and levels in dBFS.
package dynamics
