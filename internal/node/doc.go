// Package node implements the pipeline-side adapters: a producer that pulls
// the latest canvas image and prompt bundle from the bridge, a consumer that
// pushes rendered results back, and the float32 tensor representation both
// sides exchange with the graph.
package node
