// Package config loads the optional HCL file that holds a shell's startup
// settings. Command-line flags override what the file sets.
package config
