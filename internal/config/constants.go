package config

// DefaultDatabasePath is the default path for the main library database.
// The task queue database lives alongside it with a "-tasks" suffix.
const DefaultDatabasePath = "./versicle.db"
