// Package bridge implements the relay between the browser canvas frontend
// and the pipeline host: the HTTP endpoint set over the session store, the
// supervised trigger forwarder, static frontend serving, and the daemon
// lifecycle that ties them together.
package bridge
