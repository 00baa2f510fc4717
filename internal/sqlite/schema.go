package sqlite

// Schema DDL. The database is a disposable query index rebuilt from the
// JSONL files on every Attach, so there are no migrations.
const (
	createCharacteristics = `CREATE TABLE characteristics (
    name TEXT PRIMARY KEY,
    data_type TEXT NOT NULL,
    nullable INTEGER NOT NULL,
    options TEXT,
    min REAL,
    max REAL,
    created_at TEXT NOT NULL
);`

	createGroups = `CREATE TABLE item_groups (
    name TEXT PRIMARY KEY,
    created_at TEXT NOT NULL
);`

	// Groups hold a snapshot of their characteristics, so the definition is
	// copied rather than referenced.
	createGroupCharacteristics = `CREATE TABLE group_characteristics (
    group_name TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    name TEXT NOT NULL,
    data_type TEXT NOT NULL,
    nullable INTEGER NOT NULL,
    options TEXT,
    min REAL,
    max REAL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (group_name, name),
    FOREIGN KEY (group_name) REFERENCES item_groups(name) ON DELETE CASCADE
);`

	createRecords = `CREATE TABLE records (
    record_id TEXT PRIMARY KEY,
    group_name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createRecordValues = `CREATE TABLE record_values (
    record_id TEXT NOT NULL,
    name TEXT NOT NULL,
    data_type TEXT NOT NULL,
    value TEXT,
    PRIMARY KEY (record_id, name),
    FOREIGN KEY (record_id) REFERENCES records(record_id) ON DELETE CASCADE
);`

	createChanges = `CREATE TABLE changes (
    seq INTEGER PRIMARY KEY,
    kind TEXT NOT NULL,
    record_id TEXT NOT NULL,
    group_name TEXT NOT NULL,
    before_record TEXT,
    after_record TEXT,
    reverts INTEGER NOT NULL DEFAULT 0,
    at TEXT NOT NULL
);`
)

// Index DDL for common queries.
const (
	idxRecordsGroup        = `CREATE INDEX idx_records_group ON records(group_name);`
	idxRecordsCreated      = `CREATE INDEX idx_records_created ON records(created_at, record_id);`
	idxRecordValuesName    = `CREATE INDEX idx_record_values_name ON record_values(name);`
	idxGroupCharacteristic = `CREATE INDEX idx_group_characteristics_name ON group_characteristics(name);`
	idxChangesRecord       = `CREATE INDEX idx_changes_record ON changes(record_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createCharacteristics,
	createGroups,
	createGroupCharacteristics,
	createRecords,
	createRecordValues,
	createChanges,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxRecordsGroup,
	idxRecordsCreated,
	idxRecordValuesName,
	idxGroupCharacteristic,
	idxChangesRecord,
}
