package config

// Sample returns a complete configuration for the music catalog created by
// "batchload seed".
func Sample(driver, dsn string) *Config {
	cfg := New()
	if driver != "" {
		cfg.Database.Driver = driver
	}
	cfg.Database.DSN = dsn
	cfg.Plan = PlanConfig{
		Primary: PrimaryConfig{
			Name:     "artist",
			IDColumn: "id",
			KeyQuery: "SELECT id, name FROM artist",
			RowQuery: "SELECT id, name, country FROM artist WHERE id IN (:ids)",
			OrderBy:  []string{"name:asc"},
			Label:    "{{.name}} ({{.country}})",
		},
		Children: []ChildConfig{{
			Name:         "album",
			IDColumn:     "id",
			ParentColumn: "artist_id",
			Query:        "SELECT id, artist_id, title, year FROM album WHERE artist_id IN (:ids)",
			OrderBy:      []string{"year:asc", "title:asc"},
			Label:        "{{.year}} {{.title}}",
			Children: []ChildConfig{{
				Name:         "song",
				IDColumn:     "id",
				ParentColumn: "album_id",
				Query:        "SELECT id, album_id, track, title, seconds FROM song WHERE album_id IN (:ids)",
				OrderBy:      []string{"track:asc"},
				Label:        "{{.track}}. {{.title}}",
			}},
		}},
	}
	return cfg
}
