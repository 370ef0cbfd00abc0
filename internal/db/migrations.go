package db

import "fmt"

// Migrate runs all database migrations
func (d *DB) Migrate() error {
	existing, err := d.tableExists("conversations")
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if existing {
		d.logger.Debug("Upgrading existing schema")
	} else {
		d.logger.Info("Creating database schema")
	}

	return d.WithLock(func() error {
		_, err := d.db.Exec(`
			CREATE TABLE IF NOT EXISTS conversations (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				is_pinned INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)
		`)
		if err != nil {
			return err
		}

		// Each message is stored as a JSON document plus the columns needed for ordering
		_, err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS messages (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL,
				position INTEGER NOT NULL,
				role TEXT NOT NULL CHECK(role IN ('user', 'assistant', 'system')),
				status TEXT NOT NULL,
				body TEXT NOT NULL,
				FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
			)
		`)
		if err != nil {
			return err
		}

		_, err = d.db.Exec(`
			CREATE TABLE IF NOT EXISTS feedback (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id TEXT NOT NULL,
				type TEXT NOT NULL CHECK(type IN ('like', 'dislike')),
				reason TEXT,
				comment TEXT,
				created_at DATETIME NOT NULL
			)
		`)
		if err != nil {
			return err
		}

		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, position)",
			"CREATE INDEX IF NOT EXISTS idx_feedback_message ON feedback(message_id)",
		}

		for _, idx := range indexes {
			if _, err := d.db.Exec(idx); err != nil {
				return err
			}
		}

		return d.addColumnIfMissing("conversations", "is_renamed", "INTEGER NOT NULL DEFAULT 0")
	})
}

// addColumnIfMissing upgrades databases created before a column existed
func (d *DB) addColumnIfMissing(table, column, definition string) error {
	rows, err := d.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return err
	}

	columnExists := false
	for rows.Next() {
		var cid int
		var name string
		var dataType string
		var notNull int
		var defaultValue any
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			rows.Close()
			return err
		}
		if name == column {
			columnExists = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if columnExists {
		return nil
	}

	_, err = d.db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + definition)
	return err
}
