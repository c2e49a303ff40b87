// Package cortex holds project-wide metadata.
package cortex

// Version is the release version of the cortex module and CLI.
const Version = "0.1.0"
