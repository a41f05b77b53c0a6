// Package events archives frontend debug events in a small SQLite database
// so `canvasbridge status --events` can show what the browser UI reported.
package events
