// Package cmd defines the relay CLI: serve runs the HTTP API, scrape runs one
// export from the terminal, and token mints a bearer token for testing.
package cmd
