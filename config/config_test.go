package config

import (
	"errors"
	"testing"
)

func setGatewayEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GATEWAY_ENDPOINT", "http://localhost:9000")
	t.Setenv("GATEWAY_PROJECT_ID", "bca-library")
	t.Setenv("GATEWAY_DATABASE_ID", "library")
	t.Setenv("GATEWAY_STORAGE_BUCKET_ID", "resources")
}

func TestGetMissingRequiredVariable(t *testing.T) {
	for _, name := range requiredVariables {
		t.Run(name, func(t *testing.T) {
			setGatewayEnv(t)
			t.Setenv(name, "")

			_, err := Get()
			if err == nil {
				t.Fatalf("expected error when %s is unset", name)
			}

			var missing *MissingVariableError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingVariableError, got %T", err)
			}
			if missing.Name != name {
				t.Errorf("expected missing variable %s, got %s", name, missing.Name)
			}
			if err.Error() != "Missing required environment variable: "+name {
				t.Errorf("unexpected message %q", err.Error())
			}
		})
	}
}

func TestGetCollectionDefaults(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("GATEWAY_RESOURCES_COLLECTION_ID", "materials")

	env, err := Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if env.USERS_COLLECTION_ID != "users" {
		t.Errorf("users collection = %q", env.USERS_COLLECTION_ID)
	}
	if env.RESOURCES_COLLECTION_ID != "materials" {
		t.Errorf("resources collection = %q", env.RESOURCES_COLLECTION_ID)
	}
	if env.BOOKMARKS_COLLECTION_ID != "bookmarks" {
		t.Errorf("bookmarks collection = %q", env.BOOKMARKS_COLLECTION_ID)
	}
	if env.DB_NAME != "library" {
		t.Errorf("DB_NAME should default to the gateway database id, got %q", env.DB_NAME)
	}
	if env.MAX_UPLOAD_SIZE != MaxFileSize {
		t.Errorf("MAX_UPLOAD_SIZE = %d", env.MAX_UPLOAD_SIZE)
	}
}

func TestGetParsesUploadSize(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("MAX_UPLOAD_SIZE", "20MB")

	env, err := Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if env.MAX_UPLOAD_SIZE != 20*1024*1024 {
		t.Errorf("MAX_UPLOAD_SIZE = %d", env.MAX_UPLOAD_SIZE)
	}

	t.Setenv("MAX_UPLOAD_SIZE", "lots")
	if _, err := Get(); err == nil {
		t.Fatal("expected error for unparsable MAX_UPLOAD_SIZE")
	}
}

func TestCatalog(t *testing.T) {
	c, err := Catalog()
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}
	if len(c.Semesters) != MaxSemester {
		t.Fatalf("expected %d semesters, got %d", MaxSemester, len(c.Semesters))
	}
	for i := MinSemester; i <= MaxSemester; i++ {
		if n := len(c.SubjectNames(i)); n != 6 {
			t.Errorf("semester %d has %d subjects", i, n)
		}
	}
	if got := c.SubjectNames(1)[0]; got != "C Programming" {
		t.Errorf("first subject = %q", got)
	}
}

func TestParseCatalogRejectsDuplicates(t *testing.T) {
	data := []byte(`
semesters:
  - number: 1
    subjects:
      - {name: A, code: X1, credits: 4}
      - {name: B, code: X1, credits: 4}
`)
	if _, err := ParseCatalog(data); err == nil {
		t.Fatal("expected duplicate code error")
	}

	if _, err := ParseCatalog([]byte("semesters:\n  - number: 9\n")); err == nil {
		t.Fatal("expected out of range semester error")
	}
}
