// Package jobs records render history in SQLite.
//
// Every render gets a row that moves pending -> rendering -> completed or
// failed. Progress is written as frames are encoded so `reelforge jobs` can
// show an in-flight render from another terminal, and ResetStuck marks rows
// left in rendering by a crashed process as failed on the next start.
//
// The store mirrors the queue layout it grew out of: embedded migrations
// tracked in schema_migrations, WAL journaling, and short retries when SQLite
// reports the database as busy.
package jobs
