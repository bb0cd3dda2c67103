package store

// RecordsSchema defines the local records collection.
// seq keeps insertion order, id is the record key.
const RecordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id INTEGER NOT NULL UNIQUE,
	name TEXT NOT NULL
);
`

const dropRecordsSchema = `DROP TABLE IF EXISTS records`

const upsertRecord = `
	INSERT INTO records (id, name) VALUES (?, ?)
	ON CONFLICT(id) DO UPDATE SET name = excluded.name
`
