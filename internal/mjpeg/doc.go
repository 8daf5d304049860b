// Package mjpeg reads multipart/x-mixed-replace JPEG streams and keeps the
// most recent frame.
package mjpeg
