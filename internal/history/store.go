package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"sentinelscan/internal/logger"
	"sentinelscan/pkg/models"
)

const (
	defaultDir    = "scan_history"
	defaultPrefix = "sentinel"
	scanTTL       = 30 * 24 * time.Hour
	maxHistory    = 50
)

// RedisConfig configures Redis access for scan history.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Config configures the history store.
type Config struct {
	Redis RedisConfig
	Dir   string
}

// Store persists terminal scans. Storage layers in priority order: Redis for
// fast shared reads, local JSON files as the durable fallback. Reads try
// Redis first and back-fill it on a miss; writes go to both. An unreachable
// Redis degrades the store to file-only operation.
type Store struct {
	client *redis.Client
	dir    string
	prefix string
}

// NewStore constructs the store, probing Redis once at startup.
func NewStore(cfg Config) *Store {
	dir := cfg.Dir
	if dir == "" {
		dir = defaultDir
	}
	prefix := strings.TrimSpace(cfg.Redis.KeyPrefix)
	if prefix == "" {
		prefix = defaultPrefix
	}

	s := &Store{dir: dir, prefix: prefix}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("Redis unavailable for scan history, falling back to JSON files: %v", err)
			client.Close()
		} else {
			s.client = client
		}
	}
	return s
}

// SaveScan persists a terminal scan to both layers and enforces the
// retention cap.
func (s *Store) SaveScan(ctx context.Context, scan *models.HistoricalScan) error {
	if scan == nil || scan.ScanID == "" {
		return fmt.Errorf("scan record is missing an id")
	}

	data, err := json.MarshalIndent(scan, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scan %s: %w", scan.ScanID, err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	path := filepath.Join(s.dir, scan.ScanID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write scan file: %w", err)
	}

	if s.client != nil {
		if err := s.client.Set(ctx, s.scanKey(scan.ScanID), data, scanTTL).Err(); err != nil {
			logger.Warnf("Redis write failed for scan %s: %v", scan.ScanID, err)
		}
		s.appendIndex(ctx, models.ScanSummary{
			ScanID:    scan.ScanID,
			Timestamp: scan.Timestamp,
			ScanStats: scan.Stats,
		})
	}

	s.pruneOldScans()
	return nil
}

// ListScans returns summaries of all persisted scans, newest first.
func (s *Store) ListScans(ctx context.Context) ([]models.ScanSummary, error) {
	if s.client != nil {
		raw, err := s.client.Get(ctx, s.indexKey()).Result()
		if err == nil && raw != "" {
			var index []models.ScanSummary
			if err := json.Unmarshal([]byte(raw), &index); err == nil {
				sortSummaries(index)
				return index, nil
			}
			logger.Warnf("Corrupt scan index in Redis, rebuilding from files")
		} else if err != nil && err != redis.Nil {
			logger.Warnf("Redis read failed for scan index: %v", err)
		}
	}

	paths, err := filepath.Glob(filepath.Join(s.dir, "scan-*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan history directory: %w", err)
	}

	summaries := make([]models.ScanSummary, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var scan models.HistoricalScan
		if err := json.Unmarshal(data, &scan); err != nil || scan.ScanID == "" {
			continue
		}
		summaries = append(summaries, models.ScanSummary{
			ScanID:    scan.ScanID,
			Timestamp: scan.Timestamp,
			ScanStats: scan.Stats,
		})
	}
	sortSummaries(summaries)

	if s.client != nil && len(summaries) > 0 {
		s.writeIndex(ctx, summaries)
	}
	return summaries, nil
}

// GetScan loads one full scan by id, or nil when it does not exist.
func (s *Store) GetScan(ctx context.Context, scanID string) (*models.HistoricalScan, error) {
	if s.client != nil {
		raw, err := s.client.Get(ctx, s.scanKey(scanID)).Result()
		if err == nil && raw != "" {
			var scan models.HistoricalScan
			if err := json.Unmarshal([]byte(raw), &scan); err == nil {
				return &scan, nil
			}
			logger.Warnf("Corrupt scan %s in Redis, falling back to file", scanID)
		} else if err != nil && err != redis.Nil {
			logger.Warnf("Redis read failed for scan %s: %v", scanID, err)
		}
	}

	path := filepath.Join(s.dir, scanID+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scan file: %w", err)
	}

	var scan models.HistoricalScan
	if err := json.Unmarshal(data, &scan); err != nil {
		return nil, fmt.Errorf("decode scan %s: %w", scanID, err)
	}

	if s.client != nil {
		if err := s.client.Set(ctx, s.scanKey(scanID), data, scanTTL).Err(); err != nil {
			logger.Warnf("Redis back-fill failed for scan %s: %v", scanID, err)
		}
	}
	return &scan, nil
}

// Close releases Redis resources.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) appendIndex(ctx context.Context, entry models.ScanSummary) {
	var index []models.ScanSummary
	raw, err := s.client.Get(ctx, s.indexKey()).Result()
	if err == nil && raw != "" {
		if err := json.Unmarshal([]byte(raw), &index); err != nil {
			index = nil
		}
	}

	replaced := false
	for i := range index {
		if index[i].ScanID == entry.ScanID {
			index[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		index = append(index, entry)
	}
	if len(index) > maxHistory {
		index = index[len(index)-maxHistory:]
	}
	s.writeIndex(ctx, index)
}

func (s *Store) writeIndex(ctx context.Context, index []models.ScanSummary) {
	data, err := json.Marshal(index)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, s.indexKey(), data, 0).Err(); err != nil {
		logger.Warnf("Redis write failed for scan index: %v", err)
	}
}

func (s *Store) pruneOldScans() {
	paths, err := filepath.Glob(filepath.Join(s.dir, "scan-*.json"))
	if err != nil || len(paths) <= maxHistory {
		return
	}
	sort.Strings(paths)
	for _, old := range paths[:len(paths)-maxHistory] {
		if err := os.Remove(old); err != nil {
			logger.Warnf("Failed to prune old scan file %s: %v", old, err)
		}
	}
}

func (s *Store) scanKey(scanID string) string {
	return s.prefix + ":scan:" + scanID
}

func (s *Store) indexKey() string {
	return s.prefix + ":scan_index"
}

func sortSummaries(summaries []models.ScanSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp > summaries[j].Timestamp
	})
}
