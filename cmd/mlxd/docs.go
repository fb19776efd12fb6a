package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           mlxd API
// @version         1.0
// @description     HTTP API for local MLX model conversion and text generation.
//
// @contact.name   mlxd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
