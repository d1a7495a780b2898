// Package gatewaytest provides in-process backends for the gateway: sqlite
// for documents, miniredis for sessions and a map for objects.
package gatewaytest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/utils/auth"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory sqlite database. A single connection
// keeps every statement on the same memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := gateway.Migrate(db, gateway.DefaultCollections()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// NewRedis starts a miniredis server for the duration of the test.
func NewRedis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// Mail is one captured message.
type Mail struct {
	Kind string
	To   string
	Name string
	Link string
}

// Mailer records sent links instead of delivering them.
type Mailer struct {
	mu   sync.Mutex
	Sent []Mail
	Err  error
}

func (m *Mailer) SendRecoveryEmail(ctx context.Context, to, name, link string) error {
	return m.record("recovery", to, name, link)
}

func (m *Mailer) SendVerificationEmail(ctx context.Context, to, name, link string) error {
	return m.record("verification", to, name, link)
}

func (m *Mailer) record(kind, to, name, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, Mail{Kind: kind, To: to, Name: name, Link: link})
	return nil
}

// Last returns the most recent mail, failing the test when none was sent.
func (m *Mailer) Last(t testing.TB) Mail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		t.Fatal("no mail was sent")
	}
	return m.Sent[len(m.Sent)-1]
}

// LinkParams returns userId and secret from the most recent link.
func (m *Mailer) LinkParams(t testing.TB) (string, string) {
	t.Helper()
	u, err := url.Parse(m.Last(t).Link)
	if err != nil {
		t.Fatalf("bad link: %v", err)
	}
	return u.Query().Get("userId"), u.Query().Get("secret")
}

type object struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// MemoryStore is an ObjectStore kept in a map.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]object
	// PutErr, when set, fails every Put.
	PutErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]object)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, metadata map[string]string) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: data, contentType: contentType, metadata: meta, modified: time.Now()}
	return nil
}

func (s *MemoryStore) Stat(ctx context.Context, key string) (*gateway.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, gateway.ErrObjectNotFound
	}
	return &gateway.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		Metadata:     obj.metadata,
		LastModified: obj.modified,
	}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return gateway.ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) PresignGet(ctx context.Context, key string, expiry time.Duration, disposition string) (string, error) {
	s.mu.Lock()
	_, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return "", gateway.ErrObjectNotFound
	}

	q := url.Values{}
	q.Set("expires", fmt.Sprint(int(expiry.Seconds())))
	q.Set("response-content-disposition", disposition)
	return "https://objects.test/" + key + "?" + q.Encode(), nil
}

// Bytes returns the stored content of key.
func (s *MemoryStore) Bytes(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return bytes.Clone(obj.data), ok
}

// Len is the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Backend bundles a complete in-process gateway.
type Backend struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Miniredis   *miniredis.Miniredis
	Databases   *gateway.Databases
	Account     *gateway.Account
	Objects     *MemoryStore
	Storage     *gateway.Storage
	Mailer      *Mailer
	Collections gateway.Collections
}

// New wires every gateway service onto in-process backends.
func New(t testing.TB) *Backend {
	t.Helper()

	auth.Cost = 4
	db := NewDB(t)
	rdb, mr := NewRedis(t)
	mailer := &Mailer{}
	objects := NewMemoryStore()

	return &Backend{
		DB:        db,
		Redis:     rdb,
		Miniredis: mr,
		Databases: gateway.NewDatabases(db),
		Account: gateway.NewAccount(db, rdb, mailer, gateway.AccountConfig{
			ProjectID: "test",
			Secret:    "test-secret",
		}),
		Objects:     objects,
		Storage:     gateway.NewStorage(objects, "resources", time.Hour),
		Mailer:      mailer,
		Collections: gateway.DefaultCollections(),
	}
}
