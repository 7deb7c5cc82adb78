// Package orchestrate wires manifest loading, validation, credential
// acquisition, bounded execution, artifact publication, and reporting into
// the migrate command.
package orchestrate
