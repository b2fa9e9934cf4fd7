// Package pipeline orchestrates the Hugging Face → GGUF conversion flow:
// alias resolution, hub metadata, download, preflight, llama.cpp toolchain
// sync/build, conversion, and an optional smoke run. It owns job records and
// publishes lifecycle events; the heavy lifting happens in the stage
// packages it composes.
package pipeline
