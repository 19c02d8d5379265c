package repository

import (
	"licensing-service/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Store держит по одному *gorm.DB на партицию. Партиции разведены
// префиксом таблиц (test_licenses / prod_licenses), физически база одна.
type Store struct {
	partitions map[domain.Environment]*gorm.DB
}

// NewStore открывает обе партиции через переданный open и прогоняет миграции.
func NewStore(open func(cfg *gorm.Config) (*gorm.DB, error)) (*Store, error) {
	s := &Store{partitions: make(map[domain.Environment]*gorm.DB)}
	for _, env := range []domain.Environment{domain.EnvTest, domain.EnvProd} {
		db, err := open(&gorm.Config{
			NamingStrategy: schema.NamingStrategy{TablePrefix: env.TablePrefix()},
			TranslateError: true,
		})
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(&domain.License{}, &domain.DeviceActivation{}, &domain.TrialBlock{}); err != nil {
			return nil, err
		}
		// Составной уникальный ключ (license_id, device_id). Имя индекса
		// глобально для базы, поэтому несет префикс партиции.
		prefix := env.TablePrefix()
		if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS " + prefix + "idx_license_device ON " +
			prefix + "device_activations (license_id, device_id)").Error; err != nil {
			return nil, err
		}
		s.partitions[env] = db
	}
	return s, nil
}

func OpenPostgres(dsn string) (*Store, error) {
	return NewStore(func(cfg *gorm.Config) (*gorm.DB, error) {
		return gorm.Open(postgres.Open(dsn), cfg)
	})
}

func (s *Store) DB(env domain.Environment) *gorm.DB {
	if db, ok := s.partitions[env]; ok {
		return db
	}
	return s.partitions[domain.EnvTest]
}
