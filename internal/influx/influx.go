// Package influx writes siege and mini-horde metrics to InfluxDB, falling
// back to a gzip line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/hordenight/siege/internal/config"
	"github.com/hordenight/siege/internal/hooks"
)

// Measurement names.
const (
	MeasurementSiegeEnd  = "siege_end"
	MeasurementMiniHorde = "mini_horde"
	MeasurementWaveStart = "wave_start"
)

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Config       config.InfluxConfig
	Logger       zerolog.Logger
	BackupPath   string

	mu         sync.Mutex
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Config:     cfg,
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB, or opens the backup file
// when the server does not answer.
func (m *Manager) Connect() error {
	if !m.Config.Enabled {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.Config.URL,
		m.Config.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.Logger.Info().Str("backupPath", m.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		return m.OpenBackup()
	}

	if err := m.setupOrganizationAndBucket(); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.Config.Bucket).Msg("InfluxDB client initialized")
	return nil
}

// OpenBackup starts writing points to the gzip backup file.
func (m *Manager) OpenBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := m.Config.Org

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.Config.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.Config.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.Config.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 365,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.Config.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.Config.Org, m.Config.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.Config.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	// PointToLineProtocol terminates the line itself.
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := io.WriteString(m.BackupWriter, lineProtocol); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// Subscribe records siege ends, wave starts and mini-hordes as points tagged
// with the world returned by world.
func (m *Manager) Subscribe(reg *hooks.Registry, world func() string) {
	reg.SiegeEnd.Subscribe("influx", func(ev hooks.SiegeEnd) error {
		return m.WritePoint(SiegeEndPoint(world(), ev, time.Now()))
	})
	reg.WaveStart.Subscribe("influx", func(ev hooks.WaveStart) error {
		return m.WritePoint(WaveStartPoint(world(), ev, time.Now()))
	})
	reg.MiniHorde.Subscribe("influx", func(ev hooks.MiniHorde) error {
		return m.WritePoint(MiniHordePoint(world(), ev, time.Now()))
	})
}

// SiegeEndPoint converts a finished siege into a point.
func SiegeEndPoint(world string, ev hooks.SiegeEnd, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementSiegeEnd,
		map[string]string{
			"world":     world,
			"direction": ev.Entry.Direction.String(),
		},
		map[string]interface{}{
			"siege":    ev.SiegeIndex,
			"day":      ev.Entry.Day,
			"kills":    ev.Entry.Kills,
			"bonus":    ev.Entry.Bonus,
			"specials": ev.Entry.Specials,
			"spawned":  ev.TotalSpawned,
			"target":   ev.Entry.Target,
			"total":    ev.TotalKills,
		},
		ts)
}

// WaveStartPoint converts a wave burst into a point.
func WaveStartPoint(world string, ev hooks.WaveStart, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementWaveStart,
		map[string]string{"world": world},
		map[string]interface{}{
			"wave":  ev.WaveIndex,
			"waves": ev.TotalWaves,
		},
		ts)
}

// MiniHordePoint converts a heat trigger into a point.
func MiniHordePoint(world string, ev hooks.MiniHorde, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementMiniHorde,
		map[string]string{
			"world":     world,
			"direction": ev.Direction.String(),
			"cell":      ev.CellKey.String(),
		},
		map[string]interface{}{
			"count": ev.Count,
			"heat":  ev.Heat,
		},
		ts)
}
