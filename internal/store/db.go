package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&ReferenceDoc{}, &Guideline{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_reference_docs_owner_topic ON reference_docs(owner, topic)",
		"CREATE INDEX IF NOT EXISTS idx_reference_docs_updated ON reference_docs(updated_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// SaveReference inserts a reference or, when the owner already has one from
// the same source, replaces its content. A reference without a source gets a
// generated one so it never collides.
func (d *Database) SaveReference(doc *ReferenceDoc) error {
	if doc == nil {
		return errors.New("reference is nil")
	}
	if strings.TrimSpace(doc.Content) == "" {
		return errors.New("reference content is empty")
	}
	if strings.TrimSpace(doc.Source) == "" {
		doc.Source = "manual:" + uuid.NewString()
	}
	doc.prepare()
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"topic", "title", "content", "chars", "updated_at"}),
	}).Create(doc).Error
	if err != nil {
		return err
	}
	// On conflict SQLite leaves the primary key unset; read it back.
	if doc.ID == 0 {
		var existing ReferenceDoc
		if err := d.gorm.Where("source_key = ?", doc.SourceKey).First(&existing).Error; err != nil {
			return err
		}
		doc.ID = existing.ID
	}
	return nil
}

// ReplaceReferences swaps every reference of owner for docs.
func (d *Database) ReplaceReferences(owner string, docs []ReferenceDoc) error {
	owner = strings.TrimSpace(owner)
	for i := range docs {
		docs[i].Owner = owner
		if strings.TrimSpace(docs[i].Source) == "" {
			docs[i].Source = "manual:" + uuid.NewString()
		}
		docs[i].prepare()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner = ?", owner).Delete(&ReferenceDoc{}).Error; err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		// Batch insert to stay under the SQLite variable limit.
		const batchSize = 100
		return tx.CreateInBatches(docs, batchSize).Error
	})
}

// ReferenceQuery encapsulates filters and pagination for listing references.
type ReferenceQuery struct {
	Owner  string
	Topic  string
	Query  string
	Offset int
	Limit  int
}

// ListReferences returns references newest first, with the unpaged total.
func (d *Database) ListReferences(opts ReferenceQuery) ([]ReferenceDoc, int64, error) {
	base := d.gorm.Model(&ReferenceDoc{})
	if owner := strings.TrimSpace(opts.Owner); owner != "" {
		base = base.Where("owner = ?", owner)
	}
	if topic := strings.TrimSpace(opts.Topic); topic != "" {
		base = base.Where("LOWER(topic) LIKE ?", "%"+strings.ToLower(topic)+"%")
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		like := fmt.Sprintf("%%%s%%", q)
		base = base.Where("title LIKE ? OR content LIKE ?", like, like)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := base.Order("updated_at DESC, id DESC").Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var rows []ReferenceDoc
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ReferenceTexts returns the content of an owner's references for a topic,
// falling back to all of the owner's references when none match the topic.
func (d *Database) ReferenceTexts(owner, topic string, limit int) ([]string, error) {
	rows, _, err := d.ListReferences(ReferenceQuery{Owner: owner, Topic: topic, Limit: limit})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 && strings.TrimSpace(topic) != "" {
		rows, _, err = d.ListReferences(ReferenceQuery{Owner: owner, Limit: limit})
		if err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Content)
	}
	return out, nil
}

// GetReference retrieves a reference by ID.
func (d *Database) GetReference(id uint) (*ReferenceDoc, error) {
	var doc ReferenceDoc
	if err := d.gorm.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// DeleteReference removes a reference by ID.
func (d *Database) DeleteReference(id uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.Delete(&ReferenceDoc{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountReferences returns the number of stored references.
func (d *Database) CountReferences() (int64, error) {
	var count int64
	if err := d.gorm.Model(&ReferenceDoc{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SaveGuideline inserts or replaces the summary for owner.
func (d *Database) SaveGuideline(owner, summary string) (*Guideline, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, errors.New("guideline owner is empty")
	}
	g := &Guideline{Owner: owner, Summary: strings.TrimSpace(summary)}
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "updated_at"}),
	}).Create(g).Error
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetGuideline returns the summary for owner.
func (d *Database) GetGuideline(owner string) (*Guideline, error) {
	var g Guideline
	if err := d.gorm.Where("owner = ?", strings.TrimSpace(owner)).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}
