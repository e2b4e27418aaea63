package auth

// ScopeSyncWrite allows an operator to start a sync by activity id.
const ScopeSyncWrite = "sync:write"
