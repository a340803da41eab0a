// Package logs reads the daemon log file for `telephony daemon logs`.
//
// Last returns the final lines of a file together with the byte offset just
// past them, and Follow streams lines appended after an offset until the
// context ends. A log file that does not exist yet reads as empty.
package logs
