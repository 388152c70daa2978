package influx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/OCAP2/movement/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// MeasurementLeg holds one point per committed movement leg.
	MeasurementLeg = "movement_leg"
	// MeasurementRegionEvent holds one point per delivered region event.
	MeasurementRegionEvent = "region_event"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles InfluxDB connections and writes. A Manager that never
// connected drops every point.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Bucket       string
	Logger       zerolog.Logger
	BackupPath   string

	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		IsValid:    false,
		Bucket:     viper.GetString("influx.bucket"),
		Logger:     log,
		BackupPath: backupPath,
	}
}

// Connect establishes a connection to InfluxDB. When the server cannot be
// reached, points are written as line protocol to a gzip backup file instead.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}
	if m.Bucket == "" {
		m.Bucket = viper.GetString("influx.bucket")
	}

	m.Client = influxdb2.NewClientWithOptions(
		viper.GetString("influx.url"),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(context.Background())

	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")
			if err := m.openBackup(); err != nil {
				return err
			}
		}
	} else {
		m.IsValid = true
	}

	if m.IsValid {
		if err := m.setupOrganizationAndBucket(); err != nil {
			return err
		}
		m.createWriter()
		m.Logger.Info().Str("bucket", m.Bucket).Msg("InfluxDB client initialized")
	} else {
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
	}

	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupPath == "" {
		return errors.New("influxDB unreachable and no backup path configured")
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %v", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(viper.GetString("influx.org"), m.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// Enabled reports whether points are written anywhere.
func (m *Manager) Enabled() bool {
	return m.IsValid || m.BackupWriter != nil
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// RecordCommit writes one point for a committed leg. It is a no-op when the
// manager is not connected.
func (m *Manager) RecordCommit(_ context.Context, c *core.MovementCommit) error {
	if !m.Enabled() || c == nil {
		return nil
	}
	return m.WritePoint(LegPoint(c))
}

// RecordRegionEvent writes one point for a delivered region event.
func (m *Manager) RecordRegionEvent(_ context.Context, e *core.RegionEvent) error {
	if !m.Enabled() || e == nil {
		return nil
	}
	return m.WritePoint(RegionEventPoint(e))
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	m.IsValid = false
	return errors.Join(errs...)
}

// LegPoint builds the point for a committed leg. Impassable costs are stored
// as the largest finite float.
func LegPoint(c *core.MovementCommit) *influxdb2_write.Point {
	distance, cost := c.Totals()

	var spaces, diagonals int
	for _, w := range c.Waypoints {
		spaces += w.Spaces
		diagonals += w.Diagonals
	}

	point := influxdb2_write.NewPointWithMeasurement(MeasurementLeg).
		AddTag("tokenId", c.TokenID).
		AddTag("movementId", c.MovementID).
		AddTag("userId", c.UserID).
		AddTag("method", string(c.Method)).
		AddField("distance", distance).
		AddField("cost", core.Finite(cost)).
		AddField("spaces", spaces).
		AddField("diagonals", diagonals).
		AddField("waypoints", len(c.Waypoints)).
		AddField("pending", len(c.Pending)).
		SetTime(c.Time)

	if dest, ok := c.Destination(); ok {
		point.AddTag("action", dest.Action).
			AddField("x", dest.X).
			AddField("y", dest.Y).
			AddField("elevation", dest.Elevation)
	}
	return point
}

// RegionEventPoint builds the point for a region event.
func RegionEventPoint(e *core.RegionEvent) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementRegionEvent).
		AddTag("regionId", e.RegionID).
		AddTag("event", string(e.Name)).
		AddTag("userId", e.UserID).
		AddField("tokens", len(e.MovingObjectIDs)).
		SetTime(e.Time)
}
