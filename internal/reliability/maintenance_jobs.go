// Package reliability runs scheduled database maintenance: WAL checkpoints
// to prevent bloat and periodic vacuum of the asset cache.
package reliability

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lmoraes/backfinance/internal/database"
)

// Maintenance owns the cron scheduler for background database upkeep.
type Maintenance struct {
	cron      *cron.Cron
	databases map[string]*database.DB
	cacheDB   *database.DB
	log       zerolog.Logger
}

// NewMaintenance creates the maintenance scheduler over the given databases.
// cacheDB additionally gets a daily vacuum (its contents are rebuilt from
// the embedded assets, so reclaiming space is always safe).
func NewMaintenance(databases map[string]*database.DB, cacheDB *database.DB, log zerolog.Logger) *Maintenance {
	return &Maintenance{
		cron:      cron.New(),
		databases: databases,
		cacheDB:   cacheDB,
		log:       log.With().Str("component", "maintenance").Logger(),
	}
}

// Start schedules the maintenance jobs: hourly WAL checkpoints on every
// database and a daily 3 AM vacuum of the cache database.
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc("@hourly", m.runWALCheckpoints); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc("0 3 * * *", m.runCacheVacuum); err != nil {
		return err
	}

	m.cron.Start()
	m.log.Info().Msg("Maintenance jobs scheduled")
	return nil
}

// Stop stops the scheduler, waiting for a running job to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info().Msg("Maintenance jobs stopped")
}

func (m *Maintenance) runWALCheckpoints() {
	for name, db := range m.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			// Not critical; the next checkpoint will try again
			m.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
			continue
		}
		m.log.Debug().Str("database", name).Msg("WAL checkpoint complete")
	}
}

func (m *Maintenance) runCacheVacuum() {
	if err := m.cacheDB.Vacuum(); err != nil {
		m.log.Warn().Err(err).Msg("Cache vacuum failed")
		return
	}
	m.log.Debug().Msg("Cache vacuum complete")
}
