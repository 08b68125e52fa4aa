package store

// Stores is the top-level container for all storage backends.
type Stores struct {
	Sessions  SessionStore
	Allowlist AllowlistStore
}

// StoreConfig selects and parameterizes the storage backends.
type StoreConfig struct {
	Backend     string // "file" (default), "sqlite", "postgres"
	DataDir     string
	SQLitePath  string
	PostgresDSN string
}
