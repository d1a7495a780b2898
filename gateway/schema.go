package gateway

import (
	"fmt"

	"github.com/sahilchouksey/bca-library/model"
	"gorm.io/gorm"
)

// Migrate creates or updates the identity tables and every collection table.
func Migrate(db *gorm.DB, collections Collections) error {
	if err := db.AutoMigrate(&model.Account{}, &model.AccountToken{}); err != nil {
		return fmt.Errorf("failed to migrate identity tables: %w", err)
	}

	tables := []struct {
		name  string
		model interface{}
	}{
		{collections.Users, &model.User{}},
		{collections.Resources, &model.Resource{}},
		{collections.Subjects, &model.Subject{}},
		{collections.Downloads, &model.Download{}},
		{collections.Bookmarks, &model.Bookmark{}},
	}

	for _, t := range tables {
		if err := db.Table(t.name).AutoMigrate(t.model); err != nil {
			return fmt.Errorf("failed to migrate collection %s: %w", t.name, err)
		}
	}

	return nil
}
