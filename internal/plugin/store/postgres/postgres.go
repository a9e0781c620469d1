package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/resonancelabs/resonance-service/internal/config"
	"github.com/resonancelabs/resonance-service/internal/model"
	registrymigrate "github.com/resonancelabs/resonance-service/internal/registry/migrate"
	registrystore "github.com/resonancelabs/resonance-service/internal/registry/store"
	"github.com/resonancelabs/resonance-service/internal/resonance"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForceImport lets test code reference the package so the plugin init runs.
var ForceImport struct{}

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "postgres",
		Loader: func(ctx context.Context) (registrystore.MemoryStore, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.DBURL == "" {
				return nil, fmt.Errorf("postgres store: RESONANCE_DB_URL is required")
			}
			db, err := gorm.Open(postgres.Open(cfg.DBURL), &gorm.Config{})
			if err != nil {
				return nil, fmt.Errorf("failed to connect to postgres: %w", err)
			}
			sqlDB, err := db.DB()
			if err != nil {
				return nil, fmt.Errorf("failed to get underlying db: %w", err)
			}
			sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
			sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
			return NewStore(db, Options{RowLocking: true, IsDuplicate: isPgDuplicate}), nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &postgresMigrator{}})
}

func isPgDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type postgresMigrator struct{}

func (m *postgresMigrator) Name() string { return "postgres-schema" }
func (m *postgresMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart || cfg.DatastoreType != "postgres" {
		return nil
	}
	log.Info("Running migration", "name", m.Name())
	db, err := gorm.Open(postgres.Open(cfg.DBURL), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("migration: failed to connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if _, err := sqlDB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migration: failed to execute schema: %w", err)
	}
	return nil
}

// Options tune the shared store for its dialect.
type Options struct {
	// RowLocking adds FOR UPDATE clauses inside read-modify-write
	// transactions. Disabled for sqlite, which serializes writers natively
	// and rejects the syntax.
	RowLocking bool
	// IsDuplicate recognizes the dialect's uniqueness-violation error.
	IsDuplicate func(error) bool
}

// Store implements registrystore.MemoryStore using GORM. The sqlite plugin
// reuses it with a different dialector and Options.
type Store struct {
	db   *gorm.DB
	opts Options
}

// NewStore wraps an open gorm handle.
func NewStore(db *gorm.DB, opts Options) *Store {
	return &Store{db: db, opts: opts}
}

func (s *Store) locked(tx *gorm.DB) *gorm.DB {
	if s.opts.RowLocking {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (s *Store) isDuplicate(err error) bool {
	if s.opts.IsDuplicate != nil && s.opts.IsDuplicate(err) {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// CreateMemory inserts a new memory row, assigning id and timestamps.
func (s *Store) CreateMemory(ctx context.Context, m *model.Memory) error {
	if m.Content == "" {
		return &registrystore.ValidationError{Field: "content", Message: "must not be empty"}
	}
	if len([]rune(m.Content)) > model.MaxContentChars {
		return &registrystore.ValidationError{Field: "content", Message: fmt.Sprintf("exceeds %d characters", model.MaxContentChars)}
	}
	if m.ContentHash == "" {
		return &registrystore.ValidationError{Field: "contentHash", Message: "must not be empty"}
	}
	if !m.Tier.Valid() {
		return &registrystore.InvalidTierError{Tier: string(m.Tier)}
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.ResonancePhi = resonance.CapPhi(m.ResonancePhi)
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if s.isDuplicate(err) {
			return &registrystore.ConflictError{Message: fmt.Sprintf("memory with content hash %s already exists", m.ContentHash)}
		}
		return fmt.Errorf("create memory: %w", err)
	}
	return nil
}

// GetMemory returns the live row for id.
func (s *Store) GetMemory(ctx context.Context, id uuid.UUID) (*model.Memory, error) {
	var m model.Memory
	result := s.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		Limit(1).Find(&m)
	if result.Error != nil {
		return nil, fmt.Errorf("get memory: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, &registrystore.NotFoundError{Resource: "memory", ID: id.String()}
	}
	return &m, nil
}

// FindByContentHash returns the live row for the hash, or (nil, nil).
func (s *Store) FindByContentHash(ctx context.Context, hash string) (*model.Memory, error) {
	var m model.Memory
	result := s.db.WithContext(ctx).
		Where("content_hash = ? AND deleted_at IS NULL", hash).
		Limit(1).Find(&m)
	if result.Error != nil {
		return nil, fmt.Errorf("find by content hash: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &m, nil
}

// TouchAccess bumps access bookkeeping under row locking so concurrent
// touches never lose counts.
func (s *Store) TouchAccess(ctx context.Context, id uuid.UUID, conversationID string) (*model.Memory, error) {
	var out model.Memory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Memory
		result := s.locked(tx).Where("id = ? AND deleted_at IS NULL", id).Limit(1).Find(&m)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &registrystore.NotFoundError{Resource: "memory", ID: id.String()}
		}
		now := time.Now()
		m.AccessCount++
		m.LastAccessedAt = &now
		m.UpdatedAt = now
		if conversationID != "" && !m.SeenInConversation(conversationID) {
			m.AccessedInConversations = append(m.AccessedInConversations, conversationID)
		}
		// Map-based Updates skips the model's JSON serializer, so the
		// conversation set is marshalled by hand.
		conversations, err := json.Marshal(m.AccessedInConversations)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.Memory{}).Where("id = ?", id).Updates(map[string]interface{}{
			"access_count":              m.AccessCount,
			"last_accessed_at":          m.LastAccessedAt,
			"accessed_in_conversations": string(conversations),
			"updated_at":                m.UpdatedAt,
		}).Error; err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		var nf *registrystore.NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, fmt.Errorf("touch access: %w", err)
	}
	return &out, nil
}

// BoostPhi applies a phi delta as a locked read-modify-write, clamped to
// [0,5]. Last-writer-wins is not acceptable for phi accumulation.
func (s *Store) BoostPhi(ctx context.Context, id uuid.UUID, delta float64) (*model.Memory, error) {
	var out model.Memory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Memory
		result := s.locked(tx).Where("id = ? AND deleted_at IS NULL", id).Limit(1).Find(&m)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &registrystore.NotFoundError{Resource: "memory", ID: id.String()}
		}
		m.ResonancePhi = resonance.CapPhi(m.ResonancePhi + delta)
		m.UpdatedAt = time.Now()
		if err := tx.Model(&model.Memory{}).Where("id = ?", id).Updates(map[string]interface{}{
			"resonance_phi": m.ResonancePhi,
			"updated_at":    m.UpdatedAt,
		}).Error; err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		var nf *registrystore.NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, fmt.Errorf("boost phi: %w", err)
	}
	return &out, nil
}

// SetTier applies an automatic tier transition.
func (s *Store) SetTier(ctx context.Context, id uuid.UUID, tier model.Tier) error {
	if !tier.Valid() {
		return &registrystore.InvalidTierError{Tier: string(tier)}
	}
	result := s.db.WithContext(ctx).Model(&model.Memory{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{"tier": tier, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("set tier: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &registrystore.NotFoundError{Resource: "memory", ID: id.String()}
	}
	return nil
}

// OverrideTier applies a manual tier-set and records the reason.
func (s *Store) OverrideTier(ctx context.Context, id uuid.UUID, tier model.Tier, reason string) (*model.Memory, error) {
	if !tier.Valid() {
		return nil, &registrystore.InvalidTierError{Tier: string(tier)}
	}
	result := s.db.WithContext(ctx).Model(&model.Memory{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"tier":                 tier,
			"tier_overridden":      true,
			"tier_override_reason": reason,
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("override tier: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, &registrystore.NotFoundError{Resource: "memory", ID: id.String()}
	}
	return s.GetMemory(ctx, id)
}

// SoftDeleteMemory excludes the row from all future matching while keeping
// it for audit.
func (s *Store) SoftDeleteMemory(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&model.Memory{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{"deleted_at": time.Now(), "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("soft delete memory: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &registrystore.NotFoundError{Resource: "memory", ID: id.String()}
	}
	return nil
}

// ListByMinPhi returns live memories with phi >= min, highest phi first.
func (s *Store) ListByMinPhi(ctx context.Context, minPhi float64, limit int) ([]model.Memory, error) {
	var out []model.Memory
	err := s.db.WithContext(ctx).
		Where("deleted_at IS NULL AND resonance_phi >= ?", minPhi).
		Order("resonance_phi DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list by min phi: %w", err)
	}
	return out, nil
}

// ListLowAccess returns live memories with access_count < max, oldest first.
func (s *Store) ListLowAccess(ctx context.Context, maxAccess int, limit int) ([]model.Memory, error) {
	var out []model.Memory
	err := s.db.WithContext(ctx).
		Where("deleted_at IS NULL AND access_count < ?", maxAccess).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list low access: %w", err)
	}
	return out, nil
}

// CountMemories returns the per-tier census.
func (s *Store) CountMemories(ctx context.Context) (*registrystore.TierCounts, error) {
	var rows []struct {
		Tier  model.Tier
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&model.Memory{}).
		Select("tier, count(*) as count").
		Where("deleted_at IS NULL").
		Group("tier").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count memories: %w", err)
	}
	counts := &registrystore.TierCounts{}
	for _, r := range rows {
		switch r.Tier {
		case model.TierActive:
			counts.Active = r.Count
		case model.TierThread:
			counts.Thread = r.Count
		case model.TierStable:
			counts.Stable = r.Count
		case model.TierNetwork:
			counts.Network = r.Count
		}
	}
	if err := s.db.WithContext(ctx).Model(&model.Memory{}).
		Where("deleted_at IS NOT NULL").
		Count(&counts.Deleted).Error; err != nil {
		return nil, fmt.Errorf("count deleted memories: %w", err)
	}
	return counts, nil
}

// StrengthenAssociation applies the sub-linear co-occurrence increment
// s' = s + 1/(1+s) to the unordered edge, creating it at 1.0 when absent.
// The edge update is serialized by the same row-locking discipline as phi.
func (s *Store) StrengthenAssociation(ctx context.Context, a, b uuid.UUID, assocContext string) (*model.Association, error) {
	if a == b {
		return nil, &registrystore.ValidationError{Field: "memoryIds", Message: "cannot associate a memory with itself"}
	}
	a, b = model.NormalizePair(a, b)
	var out model.Association
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var edge model.Association
		result := s.locked(tx).
			Where("memory_a_id = ? AND memory_b_id = ?", a, b).
			Limit(1).Find(&edge)
		if result.Error != nil {
			return result.Error
		}
		now := time.Now()
		if result.RowsAffected == 0 {
			edge = model.Association{
				MemoryAID: a,
				MemoryBID: b,
				Strength:  1.0,
				Context:   assocContext,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&edge).Error; err != nil {
				if s.isDuplicate(err) {
					// Lost a concurrent find-or-create race; strengthen the
					// winner instead and report its state.
					if err := tx.Model(&model.Association{}).
						Where("memory_a_id = ? AND memory_b_id = ?", a, b).
						Updates(map[string]interface{}{
							"strength":   gorm.Expr("strength + 1.0/(1.0+strength)"),
							"updated_at": now,
						}).Error; err != nil {
						return err
					}
					return tx.Where("memory_a_id = ? AND memory_b_id = ?", a, b).
						First(&out).Error
				}
				return err
			}
			out = edge
			return nil
		}
		edge.Strength += 1.0 / (1.0 + edge.Strength)
		edge.UpdatedAt = now
		if err := tx.Model(&model.Association{}).
			Where("memory_a_id = ? AND memory_b_id = ?", a, b).
			Updates(map[string]interface{}{"strength": edge.Strength, "updated_at": now}).Error; err != nil {
			return err
		}
		out = edge
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("strengthen association: %w", err)
	}
	return &out, nil
}

// ManifestSynthesis is the fold pipeline's sole durable commit point: the
// new memory and its ancestor edges land in one transaction, so an aborted
// cycle leaves no partial state.
func (s *Store) ManifestSynthesis(ctx context.Context, m *model.Memory, ancestors []uuid.UUID, strength float64) error {
	if len(ancestors) == 0 {
		return &registrystore.ValidationError{Field: "ancestors", Message: "must not be empty"}
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.ResonancePhi = resonance.CapPhi(m.ResonancePhi)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			if s.isDuplicate(err) {
				return &registrystore.ConflictError{Message: fmt.Sprintf("memory with content hash %s already exists", m.ContentHash)}
			}
			return err
		}
		for _, ancestor := range ancestors {
			a, b := model.NormalizePair(m.ID, ancestor)
			var edge model.Association
			result := s.locked(tx).
				Where("memory_a_id = ? AND memory_b_id = ?", a, b).
				Limit(1).Find(&edge)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				edge = model.Association{
					MemoryAID: a,
					MemoryBID: b,
					Strength:  strength,
					Context:   model.AssociationContextSynthesis,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := tx.Create(&edge).Error; err != nil {
					return err
				}
				continue
			}
			if edge.Strength < strength {
				if err := tx.Model(&model.Association{}).
					Where("memory_a_id = ? AND memory_b_id = ?", a, b).
					Updates(map[string]interface{}{"strength": strength, "updated_at": now}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		var conflict *registrystore.ConflictError
		if errors.As(err, &conflict) {
			return err
		}
		return fmt.Errorf("manifest synthesis: %w", err)
	}
	return nil
}

// Neighbors returns the memories linked to id, strongest edge first.
func (s *Store) Neighbors(ctx context.Context, id uuid.UUID, minStrength float64, limit int) ([]registrystore.Neighbor, error) {
	var edges []model.Association
	err := s.db.WithContext(ctx).
		Where("(memory_a_id = ? OR memory_b_id = ?) AND strength >= ?", id, id, minStrength).
		Order("strength DESC").
		Limit(limit).
		Find(&edges).Error
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	neighbors := make([]registrystore.Neighbor, 0, len(edges))
	for _, edge := range edges {
		otherID := edge.MemoryAID
		if otherID == id {
			otherID = edge.MemoryBID
		}
		var m model.Memory
		result := s.db.WithContext(ctx).
			Where("id = ? AND deleted_at IS NULL", otherID).
			Limit(1).Find(&m)
		if result.Error != nil {
			return nil, fmt.Errorf("neighbors: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			continue // soft-deleted endpoint
		}
		neighbors = append(neighbors, registrystore.Neighbor{
			Memory:   m,
			Strength: edge.Strength,
			Context:  edge.Context,
		})
	}
	return neighbors, nil
}

// HubStats returns degree and strength sum for one memory.
func (s *Store) HubStats(ctx context.Context, id uuid.UUID) (*registrystore.HubStat, error) {
	var row struct {
		Degree      int64
		StrengthSum float64
	}
	err := s.db.WithContext(ctx).Model(&model.Association{}).
		Select("count(*) as degree, coalesce(sum(strength),0) as strength_sum").
		Where("memory_a_id = ? OR memory_b_id = ?", id, id).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("hub stats: %w", err)
	}
	return &registrystore.HubStat{MemoryID: id, Degree: row.Degree, StrengthSum: row.StrengthSum}, nil
}

// TopHubs ranks memories by summed edge strength.
func (s *Store) TopHubs(ctx context.Context, limit int) ([]registrystore.HubStat, error) {
	var rows []struct {
		MemoryID    uuid.UUID
		Degree      int64
		StrengthSum float64
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT memory_id, COUNT(*) AS degree, SUM(strength) AS strength_sum FROM (
			SELECT memory_a_id AS memory_id, strength FROM associations
			UNION ALL
			SELECT memory_b_id AS memory_id, strength FROM associations
		) endpoints
		GROUP BY memory_id
		ORDER BY strength_sum DESC
		LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top hubs: %w", err)
	}
	hubs := make([]registrystore.HubStat, len(rows))
	for i, r := range rows {
		hubs[i] = registrystore.HubStat{MemoryID: r.MemoryID, Degree: r.Degree, StrengthSum: r.StrengthSum}
	}
	return hubs, nil
}

// GraphStats summarizes the whole association graph.
func (s *Store) GraphStats(ctx context.Context, topHubs int) (*registrystore.GraphStats, error) {
	stats := &registrystore.GraphStats{}
	if err := s.db.WithContext(ctx).Model(&model.Memory{}).
		Where("deleted_at IS NULL").
		Count(&stats.Memories).Error; err != nil {
		return nil, fmt.Errorf("graph stats: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&model.Association{}).
		Count(&stats.Edges).Error; err != nil {
		return nil, fmt.Errorf("graph stats: %w", err)
	}
	if stats.Memories > 1 {
		stats.Density = float64(2*stats.Edges) / float64(stats.Memories*(stats.Memories-1))
	}
	hubs, err := s.TopHubs(ctx, topHubs)
	if err != nil {
		return nil, err
	}
	stats.TopHubs = hubs
	tiers, err := s.CountMemories(ctx)
	if err != nil {
		return nil, err
	}
	stats.Tiers = tiers
	return stats, nil
}

// CountEdgesAmong counts edges with both endpoints in ids.
func (s *Store) CountEdgesAmong(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) < 2 {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Association{}).
		Where("memory_a_id IN ? AND memory_b_id IN ?", ids, ids).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count edges among: %w", err)
	}
	return count, nil
}

// DecayAssociations applies the explicit decay policy: every strength is
// multiplied by factor, then edges below floor are dropped.
func (s *Store) DecayAssociations(ctx context.Context, factor, floor float64) (int64, int64, error) {
	if factor <= 0 || factor > 1 {
		return 0, 0, &registrystore.ValidationError{Field: "factor", Message: "must be in (0,1]"}
	}
	var decayed, dropped int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Association{}).
			Where("1 = 1").
			Updates(map[string]interface{}{
				"strength":   gorm.Expr("strength * ?", factor),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		decayed = result.RowsAffected
		del := tx.Where("strength < ?", floor).Delete(&model.Association{})
		if del.Error != nil {
			return del.Error
		}
		dropped = del.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("decay associations: %w", err)
	}
	return decayed, dropped, nil
}

// GetSetting returns the named setting, or (nil, nil) when unset.
func (s *Store) GetSetting(ctx context.Context, name string) (*model.Setting, error) {
	var setting model.Setting
	result := s.db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&setting)
	if result.Error != nil {
		return nil, fmt.Errorf("get setting: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &setting, nil
}

// PutSetting upserts a setting; the new value is visible to the next
// settings load, never to a cycle already in flight.
func (s *Store) PutSetting(ctx context.Context, setting model.Setting) error {
	if setting.Name == "" {
		return &registrystore.ValidationError{Field: "name", Message: "must not be empty"}
	}
	switch setting.ValueType {
	case model.SettingString, model.SettingNumber, model.SettingBoolean, model.SettingDuration:
	default:
		return &registrystore.ValidationError{Field: "valueType", Message: fmt.Sprintf("unknown type %q", setting.ValueType)}
	}
	setting.UpdatedAt = time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "value_type", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

// ListSettings returns all settings sorted by name.
func (s *Store) ListSettings(ctx context.Context) ([]model.Setting, error) {
	var out []model.Setting
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return out, nil
}
