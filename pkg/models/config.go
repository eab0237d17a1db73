package models

// GlobalConfig holds settings read from the .aiteamconfig file.
type GlobalConfig struct {
	// MemoryDir is the directory holding the durable memory snapshot and the
	// session archive. Relative paths are resolved against the base path.
	MemoryDir string

	// CacheTTLSeconds controls how long a loaded snapshot is served from the
	// in-process cache before the file is re-read.
	CacheTTLSeconds int

	// QueryLimit is the default maximum number of learnings returned by a query.
	QueryLimit int

	// CorrectionsLimit is the default maximum number of corrections returned.
	CorrectionsLimit int

	// IdentityRole and IdentityStyle override the default persona written
	// into a freshly created memory snapshot.
	IdentityRole  string
	IdentityStyle string
}
