package chunk

import "fmt"

// ConfigError reports an invalid ChunkingConfig/HybridConfig combination
// discovered at construction time. Callers must fix configuration before
// retrying; the chunker never recovers from this on its own.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid chunking configuration: %s", e.Reason)
}

// UsageError reports a violation of the streaming chunker's call contract:
// feeding bytes after Finalize, or calling Finalize twice. It signals a
// programmer error in the caller, not a data problem; the chunker instance
// must be discarded rather than retried.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("chunker usage error: %s", e.Reason)
}
