// Package main provides the deploykit binary: a Docker deployment toolkit
// that ships a built image either to an SSH host running docker compose or
// to a Portainer-managed endpoint.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
