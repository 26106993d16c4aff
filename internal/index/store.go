// Package index keeps a searchable catalog of locally uploaded or discovered
// subtitle files in sqlite, serving as the search fallback when the remote
// catalog is unreachable or has no hit.
package index

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	_ "modernc.org/sqlite"

	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/internal/subtitle"
	"github.com/sublayer/sublayer/internal/vfs"
	"github.com/sublayer/sublayer/pkg/file"
	"github.com/sublayer/sublayer/pkg/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS subtitles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_name TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	language TEXT NOT NULL,
	cue_count INTEGER NOT NULL,
	content TEXT NOT NULL,
	indexed_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subtitles_title ON subtitles(title);
`

// Record is one indexed subtitle. Content is only populated by Get.
type Record struct {
	ID        int64     `json:"id"`
	FileName  string    `json:"fileName"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	CueCount  int       `json:"cueCount"`
	Content   string    `json:"-"`
	IndexedAt time.Time `json:"indexedAt"`
}

// Store is the sqlite-backed subtitle index.
type Store struct {
	db *sql.DB
}

// NewStore opens (and creates) the index database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to create index directory", err).
			WithContext("path", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to open index database", err).
			WithContext("path", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode = WAL;", "PRAGMA busy_timeout = 5000;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errs.Wrap(errs.Internal, "failed to configure index database", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Internal, "failed to create index schema", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add parses and indexes one subtitle file, replacing any previous row for
// the same file name. The subtitle's language is detected from its text.
func (s *Store) Add(ctx context.Context, fileName, content string) (Record, error) {
	_, cues := subtitle.Parse(content)
	if len(cues) == 0 {
		return Record{}, errs.New(errs.Empty, "uploaded subtitle contains no cues").
			WithContext("fileName", fileName)
	}

	record := Record{
		FileName:  fileName,
		Title:     vfs.ExtractTitle(fileName),
		Language:  detectLanguage(cues),
		CueCount:  len(cues),
		Content:   content,
		IndexedAt: time.Now().UTC(),
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO subtitles (file_name, title, language, cue_count, content, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_name) DO UPDATE SET
			title=excluded.title,
			language=excluded.language,
			cue_count=excluded.cue_count,
			content=excluded.content,
			indexed_at=excluded.indexed_at`,
		record.FileName, record.Title, record.Language, record.CueCount, record.Content, record.IndexedAt)
	if err != nil {
		return Record{}, errs.Wrap(errs.Internal, "failed to index subtitle", err).
			WithContext("fileName", fileName)
	}

	if id, err := result.LastInsertId(); err == nil && id > 0 {
		record.ID = id
	} else {
		row := s.db.QueryRowContext(ctx, `SELECT id FROM subtitles WHERE file_name = ?`, record.FileName)
		_ = row.Scan(&record.ID)
	}

	log.Info("Indexed subtitle %s (%s, %d cues)", fileName, record.Language, record.CueCount)
	return record, nil
}

// detectLanguage samples the cue text. Detection per cue is noisy, so the
// first cues are joined into one document first.
func detectLanguage(cues []subtitle.Cue) string {
	var sb strings.Builder
	for i, cue := range cues {
		if i >= 40 {
			break
		}
		sb.WriteString(cue.Text)
		sb.WriteString("\n")
	}
	code := whatlanggo.DetectLang(sb.String()).Iso6391()
	if code == "" {
		return "und"
	}
	return code
}

// Search matches the query against indexed titles and file names.
func (s *Store) Search(ctx context.Context, query string) ([]Record, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, title, language, cue_count, indexed_at
		 FROM subtitles
		 WHERE lower(title) LIKE ? OR lower(file_name) LIKE ?
		 ORDER BY title ASC`,
		pattern, pattern)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "index search failed", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.FileName, &r.Title, &r.Language, &r.CueCount, &r.IndexedAt); err != nil {
			return nil, errs.Wrap(errs.Internal, "failed to read index row", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Internal, "index search failed", err)
	}
	return records, nil
}

// Get loads one record including its subtitle content.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, title, language, cue_count, content, indexed_at
		 FROM subtitles WHERE id = ?`, id)

	var r Record
	err := row.Scan(&r.ID, &r.FileName, &r.Title, &r.Language, &r.CueCount, &r.Content, &r.IndexedAt)
	if err == sql.ErrNoRows {
		return Record{}, errs.New(errs.BadInput, "subtitle is not in the index").
			WithContext("id", id)
	}
	if err != nil {
		return Record{}, errs.Wrap(errs.Internal, "failed to load index row", err)
	}
	return r, nil
}

// Count returns the number of indexed subtitles.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subtitles`).Scan(&n); err != nil {
		return 0, errs.Wrap(errs.Internal, "failed to count index rows", err)
	}
	return n, nil
}

// Rescan walks root and (re)indexes every subtitle file found. Unreadable
// files are skipped.
func (s *Store) Rescan(ctx context.Context, root string) (int, error) {
	if root == "" {
		return 0, nil
	}

	indexed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("Index rescan cannot read %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !file.IsSubtitle(d.Name()) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Index rescan cannot read %s: %v", path, err)
			return nil
		}
		if _, err := s.Add(ctx, d.Name(), string(data)); err != nil {
			log.Warn("Index rescan skipped %s: %v", path, err)
			return nil
		}
		indexed++
		return nil
	})
	if err != nil {
		return indexed, errs.Wrap(errs.Internal, "index rescan failed", err).
			WithContext("root", root)
	}

	log.Info("Index rescan finished, %d subtitles indexed under %s", indexed, root)
	return indexed, nil
}
