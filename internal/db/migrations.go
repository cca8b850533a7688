package db

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{name: "initial schema", sql: CreateTablesSQL},
	{name: "reflection week uniqueness", sql: AddReflectionWeekUniqueSQL},
}

const CreateTablesSQL = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

-- One row per user per calendar day
CREATE TABLE IF NOT EXISTS entries (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    user_id UUID NOT NULL,
    date DATE NOT NULL,
    answer_1 TEXT NOT NULL DEFAULT '',
    answer_2 TEXT NOT NULL DEFAULT '',
    answer_3 TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (user_id, date)
);

-- Generated weekly reflections
CREATE TABLE IF NOT EXISTS reflections (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    user_id UUID NOT NULL,
    week_start DATE NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entries_user_date ON entries(user_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_reflections_user_week ON reflections(user_id, week_start DESC);

CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = CURRENT_TIMESTAMP;
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_entries_updated_at ON entries;
CREATE TRIGGER update_entries_updated_at BEFORE UPDATE ON entries
    FOR EACH ROW EXECUTE FUNCTION update_updated_at_column();
`

// AddReflectionWeekUniqueSQL backs the insert-if-absent used when storing
// reflections. Duplicates written before the index existed are collapsed to
// the oldest row.
const AddReflectionWeekUniqueSQL = `
DELETE FROM reflections r
USING reflections keep
WHERE r.user_id = keep.user_id
  AND r.week_start = keep.week_start
  AND (r.created_at, r.id) > (keep.created_at, keep.id);

CREATE UNIQUE INDEX IF NOT EXISTS uq_reflections_user_week ON reflections(user_id, week_start);
`
