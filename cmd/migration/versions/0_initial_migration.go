package versions

import (
	"prodsync/syncengine/schema"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func initialMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "202608310001",
		Migrate: func(txn *gorm.DB) error {
			return txn.AutoMigrate(schema.AllModels()...)
		},
		Rollback: func(txn *gorm.DB) error {
			for _, model := range schema.AllModels() {
				if err := txn.Migrator().DropTable(model); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		initialMigration(),
	}
}
