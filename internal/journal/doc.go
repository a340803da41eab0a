// Package journal persists delivered notifications and completed operation
// results in a SQLite database so the daemon can replay recent history to
// clients.
//
// Each row is one AsyncResult flattened to scalar columns plus a JSON copy of
// its decoded payload. The schema is versioned; a mismatched database must be
// deleted before the daemon will open it.
package journal
