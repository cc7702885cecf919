// Package redact defines the secret-redaction boundary. Tool output
// passes through a Redactor before it is returned to the model-facing
// layer; the real scrubbing logic lives in that external collaborator.
package redact

// Redactor rewrites tool output before it leaves the dispatcher.
type Redactor interface {
	Redact(s string) string
}

// Passthrough returns output unchanged. It is the default when no
// external redactor is wired in.
type Passthrough struct{}

// Redact returns s unchanged.
func (Passthrough) Redact(s string) string { return s }
