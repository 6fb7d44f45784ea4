package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	page   interfaces.PageStorage
	link   interfaces.LinkStorage
	job    interfaces.JobStorage
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		page:   NewPageStorage(db, logger),
		link:   NewLinkStorage(db, logger),
		job:    NewJobStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// PageStorage returns the Page storage interface
func (m *Manager) PageStorage() interfaces.PageStorage {
	return m.page
}

// LinkStorage returns the Link storage interface
func (m *Manager) LinkStorage() interfaces.LinkStorage {
	return m.link
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// DB returns the underlying database connection
func (m *Manager) DB() *BadgerDB {
	return m.db
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
