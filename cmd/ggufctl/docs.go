package main

// General API documentation for swaggo. Run `swag init -g cmd/ggufctl/docs.go`
// to generate docs, then build with -tags=swagger to serve them.
//
// @title           ggufctl API
// @version         1.0
// @description     HTTP API for converting Hugging Face checkpoints to GGUF via llama.cpp.
//
// @contact.name   ggufctl maintainers
// @contact.url    https://github.com/your-org/ggufctl
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
