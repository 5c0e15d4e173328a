// Package runner drives the `docker` and `docker compose` command line tools.
//
// Every call runs a child process in the project directory, streams its
// output to the operator, and turns non-zero exits into *CommandError values.
package runner
