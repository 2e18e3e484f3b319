// Package embedder turns text into embedding vectors.
//
// It provides two encoder backends behind the encode.Encoder interface:
// FastEmbed runs local ONNX models in-process (cgo), and TEI talks to
// remote text-embeddings-inference replicas over HTTP, one replica per
// device identifier.
//
// Service is the entry point callers use. It resolves target devices
// once at construction, applies configured query/passage instructions,
// and routes each batch either straight to the encoder (single target)
// or through a multi-device worker pool.
package embedder
