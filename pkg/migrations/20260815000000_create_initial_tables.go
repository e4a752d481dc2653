package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE image_sources (
				id TEXT PRIMARY KEY,
				created_at DATETIME NOT NULL,
				info_json_url TEXT NOT NULL,
				width INTEGER NOT NULL,
				height INTEGER NOT NULL,
				source_type TEXT NOT NULL,
				original_name TEXT
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE stories (
				id TEXT PRIMARY KEY,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				deleted_at DATETIME,
				title TEXT NOT NULL,
				author TEXT,
				description TEXT,
				attribution TEXT,
				image_url TEXT NOT NULL,
				image_width INTEGER NOT NULL,
				image_height INTEGER NOT NULL,
				image_source_id TEXT REFERENCES image_sources(id)
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_stories_image_source_id ON stories(image_source_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE annotations (
				id TEXT PRIMARY KEY,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				story_id TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
				text TEXT NOT NULL DEFAULT '',
				x REAL NOT NULL,
				y REAL NOT NULL,
				width REAL NOT NULL,
				height REAL NOT NULL,
				viewport_x REAL,
				viewport_y REAL,
				viewport_width REAL,
				viewport_height REAL,
				ordinal INTEGER NOT NULL
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_annotations_story_id ON annotations(story_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE annotation_images (
				id TEXT PRIMARY KEY,
				created_at DATETIME NOT NULL,
				annotation_id TEXT NOT NULL REFERENCES annotations(id) ON DELETE CASCADE,
				image_url TEXT NOT NULL,
				ordinal INTEGER NOT NULL
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX idx_annotation_images_annotation_id ON annotation_images(annotation_id)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"annotation_images", "annotations", "stories", "image_sources"} {
			if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
