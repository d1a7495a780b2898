package gateway

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Collections holds the collection IDs the application reads and writes.
type Collections struct {
	Users     string
	Resources string
	Subjects  string
	Downloads string
	Bookmarks string
}

// DefaultCollections uses the literal collection names.
func DefaultCollections() Collections {
	return Collections{
		Users:     "users",
		Resources: "resources",
		Subjects:  "subjects",
		Downloads: "downloads",
		Bookmarks: "bookmarks",
	}
}

// Bucket is one group of a CountBy aggregation.
type Bucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// DocumentStore is the document API of the gateway.
type DocumentStore interface {
	CreateDocument(ctx context.Context, collection string, doc interface{}) error
	GetDocument(ctx context.Context, collection, id string, dest interface{}) error
	UpdateDocument(ctx context.Context, collection, id string, data map[string]interface{}, dest interface{}) error
	DeleteDocument(ctx context.Context, collection, id string) error
	DeleteDocuments(ctx context.Context, collection string, queries ...Query) (int64, error)
	ListDocuments(ctx context.Context, collection string, dest interface{}, queries ...Query) (int64, error)
	CountDocuments(ctx context.Context, collection string, queries ...Query) (int64, error)
	IncrementAttribute(ctx context.Context, collection, id, attribute string, by int64) error
	CountBy(ctx context.Context, collection, attribute string, limit int, queries ...Query) ([]Bucket, error)
	SyncCount(ctx context.Context, collection, id, attribute, source string, queries ...Query) (before, after int64, err error)
	Transaction(ctx context.Context, fn func(tx DocumentStore) error) error
}

// Databases is the gorm backed DocumentStore. Collection IDs are table names.
type Databases struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewDatabases(db *gorm.DB) *Databases {
	return &Databases{db: db, validate: validator.New()}
}

// DB exposes the underlying connection for migrations and health checks.
func (d *Databases) DB() *gorm.DB {
	return d.db
}

func (d *Databases) table(ctx context.Context, collection string) *gorm.DB {
	return d.db.WithContext(ctx).Table(collection)
}

func (d *Databases) CreateDocument(ctx context.Context, collection string, doc interface{}) error {
	if err := d.table(ctx, collection).Create(doc).Error; err != nil {
		return Translate(err)
	}
	return nil
}

func (d *Databases) GetDocument(ctx context.Context, collection, id string, dest interface{}) error {
	if err := d.table(ctx, collection).Where("id = ?", id).Take(dest).Error; err != nil {
		return Translate(err)
	}
	return d.decode(collection, dest)
}

// UpdateDocument applies a partial update and reloads the document into dest.
func (d *Databases) UpdateDocument(ctx context.Context, collection, id string, data map[string]interface{}, dest interface{}) error {
	for attribute := range data {
		if !attributePattern.MatchString(attribute) {
			return invalidQuery("Invalid document structure: unknown attribute %q", attribute)
		}
	}

	result := d.table(ctx, collection).Where("id = ?", id).Updates(data)
	if result.Error != nil {
		return Translate(result.Error)
	}
	if result.RowsAffected == 0 {
		// Updates reports zero rows when values are unchanged on some drivers,
		// so confirm the document is really missing before failing.
		var count int64
		if err := d.table(ctx, collection).Where("id = ?", id).Count(&count).Error; err != nil {
			return Translate(err)
		}
		if count == 0 {
			return Translate(gorm.ErrRecordNotFound)
		}
	}

	if dest == nil {
		return nil
	}
	return d.GetDocument(ctx, collection, id, dest)
}

func (d *Databases) DeleteDocument(ctx context.Context, collection, id string) error {
	result := d.table(ctx, collection).Where("id = ?", id).Delete(nil)
	if result.Error != nil {
		return Translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return Translate(gorm.ErrRecordNotFound)
	}
	return nil
}

// DeleteDocuments removes every document matching the filter queries.
func (d *Databases) DeleteDocuments(ctx context.Context, collection string, queries ...Query) (int64, error) {
	if !hasFilter(queries) {
		return 0, invalidQuery("Invalid query: refusing to delete without a filter")
	}

	db, err := applyFilters(d.table(ctx, collection), queries)
	if err != nil {
		return 0, err
	}

	result := db.Delete(nil)
	if result.Error != nil {
		return 0, Translate(result.Error)
	}
	return result.RowsAffected, nil
}

// ListDocuments loads the matching page into dest (a pointer to a slice) and
// returns the total number of matches ignoring limit and offset.
func (d *Databases) ListDocuments(ctx context.Context, collection string, dest interface{}, queries ...Query) (int64, error) {
	filtered, err := applyFilters(d.table(ctx, collection), queries)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := filtered.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, Translate(err)
	}

	paged, err := applyWindow(filtered.Session(&gorm.Session{}), queries)
	if err != nil {
		return 0, err
	}
	if err := paged.Find(dest).Error; err != nil {
		return 0, Translate(err)
	}

	return total, d.decode(collection, dest)
}

// CountDocuments returns the number of documents matching the filter queries.
func (d *Databases) CountDocuments(ctx context.Context, collection string, queries ...Query) (int64, error) {
	filtered, err := applyFilters(d.table(ctx, collection), queries)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := filtered.Count(&total).Error; err != nil {
		return 0, Translate(err)
	}
	return total, nil
}

// IncrementAttribute adds by to a numeric attribute in a single UPDATE, so
// concurrent increments never overwrite each other.
func (d *Databases) IncrementAttribute(ctx context.Context, collection, id, attribute string, by int64) error {
	if !attributePattern.MatchString(attribute) {
		return invalidQuery("Invalid query: attribute %q is not a valid attribute name", attribute)
	}

	column := clause.Column{Name: attribute}
	result := d.table(ctx, collection).
		Where("id = ?", id).
		UpdateColumn(attribute, gorm.Expr("? + ?", column, by))
	if result.Error != nil {
		return Translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return Translate(gorm.ErrRecordNotFound)
	}
	return nil
}

// CountBy groups matching documents by attribute, largest groups first.
func (d *Databases) CountBy(ctx context.Context, collection, attribute string, limit int, queries ...Query) ([]Bucket, error) {
	if !attributePattern.MatchString(attribute) {
		return nil, invalidQuery("Invalid query: attribute %q is not a valid attribute name", attribute)
	}

	db, err := applyFilters(d.table(ctx, collection), queries)
	if err != nil {
		return nil, err
	}

	column := clause.Column{Name: attribute}
	db = db.Select("? AS value, COUNT(*) AS count", column).
		Group(attribute).
		Order("count DESC").
		Order(clause.OrderByColumn{Column: column})
	if limit > 0 {
		db = db.Limit(limit)
	}

	var buckets []Bucket
	if err := db.Scan(&buckets).Error; err != nil {
		return nil, Translate(err)
	}
	return buckets, nil
}

// SyncCount sets a numeric attribute of one document to the number of
// documents in source matching queries. The document row stays locked
// between the count and the write, so increments made by concurrent
// transactions wait and land on top of the recounted value.
func (d *Databases) SyncCount(ctx context.Context, collection, id, attribute, source string, queries ...Query) (int64, int64, error) {
	if !attributePattern.MatchString(attribute) {
		return 0, 0, invalidQuery("Invalid query: attribute %q is not a valid attribute name", attribute)
	}
	if !hasFilter(queries) {
		return 0, 0, invalidQuery("Invalid query: refusing to count %s without a filter", source)
	}

	var before, after int64
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []int64
		err := tx.Table(collection).
			Clauses(clause.Locking{Strength: "NO KEY UPDATE"}).
			Where("id = ?", id).
			Pluck(attribute, &current).Error
		if err != nil {
			return err
		}
		if len(current) == 0 {
			return gorm.ErrRecordNotFound
		}
		before = current[0]

		counted, err := applyFilters(tx.Table(source), queries)
		if err != nil {
			return err
		}
		if err := counted.Count(&after).Error; err != nil {
			return err
		}
		if after == before {
			return nil
		}
		return tx.Table(collection).Where("id = ?", id).UpdateColumn(attribute, after).Error
	})
	if err != nil {
		return 0, 0, Translate(err)
	}
	return before, after, nil
}

func (d *Databases) Transaction(ctx context.Context, fn func(tx DocumentStore) error) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Databases{db: tx, validate: d.validate})
	})
	if err != nil {
		return Translate(err)
	}
	return nil
}

// decode validates every document loaded into dest against its struct tags.
func (d *Databases) decode(collection string, dest interface{}) error {
	v := reflect.ValueOf(dest)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return d.validateDocument(collection, v)
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			item := v.Index(i)
			for item.Kind() == reflect.Pointer {
				item = item.Elem()
			}
			if item.Kind() != reflect.Struct {
				continue
			}
			if err := d.validateDocument(collection, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Databases) validateDocument(collection string, doc reflect.Value) error {
	if err := d.validate.Struct(doc.Interface()); err != nil {
		id := ""
		if f := doc.FieldByName("ID"); f.IsValid() {
			id = fmt.Sprint(f.Interface())
		}
		return NewError(http.StatusInternalServerError, TypeInvalidDocument,
			fmt.Sprintf("document %q in collection %q does not match its schema: %v", id, collection, err))
	}
	return nil
}

func hasFilter(queries []Query) bool {
	for _, q := range queries {
		if q.isFilter() {
			return true
		}
	}
	return false
}
