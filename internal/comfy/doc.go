// Package comfy talks to the pipeline host: it forwards stored trigger
// payloads to the host's /prompt endpoint and can optionally follow the
// host's websocket event stream to log execution progress.
package comfy
