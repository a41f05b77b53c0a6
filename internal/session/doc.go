// Package session holds the in-memory exchange state between the canvas
// frontend and the pipeline host: the latest input and output images, the
// prompt bundle, the stored trigger payload, and the generation counter
// clients watch to detect new input. Nothing here persists across restarts.
package session
