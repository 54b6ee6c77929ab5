package impl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"doom-loot/internal/model/lootmodel"
	"doom-loot/internal/pkg/i18n"
	"doom-loot/internal/pkg/log"
	"doom-loot/internal/pkg/metrics"
	"doom-loot/internal/pkg/validator"
	"doom-loot/internal/pkg/xerrors"
	"doom-loot/internal/repository/interfaces"
)

// 存储布局：<root>/doomlootlost/<player>/risked_loot.log
const (
	StorageFolder  = "doomlootlost"
	LogFileName    = "risked_loot.log"
	LegacyFileName = "risked_loot.json"
	backupInfix    = ".migrated."
	corruptInfix   = ".corrupt."

	// 单行上限，超过视为损坏
	maxLineBytes = 4 * 1024 * 1024
)

type riskedLootFileRepository struct {
	root      string
	logger    log.Logger
	validator *validator.RecordValidator
	metrics   *metrics.TrackerMetrics
	now       func() time.Time

	mu     sync.RWMutex
	player string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewRiskedLootFileRepository 创建基于 JSON Lines 文件的记录仓储
// root 为数据根目录；validator、metrics 可以为 nil
func NewRiskedLootFileRepository(root string, logger log.Logger, v *validator.RecordValidator, m *metrics.TrackerMetrics) interfaces.RiskedLootRepository {
	if logger == nil {
		logger = log.GetLogger()
	}
	if v == nil {
		v = validator.New()
	}
	return &riskedLootFileRepository{
		root:      filepath.Join(root, StorageFolder),
		logger:    logger.With("component", "risked_loot_repository"),
		validator: v,
		metrics:   m,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// SwitchPlayer 切换当前玩家
func (r *riskedLootFileRepository) SwitchPlayer(ctx context.Context, player string) (bool, error) {
	player = strings.TrimSpace(player)
	if player == "" || player == "." || player == ".." || strings.ContainsAny(player, `/\`) {
		return false, xerrors.NewValidationError("player", "invalid player folder name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.player != "" && i18n.EqualFold(r.player, player) {
		return false, nil
	}

	previous := r.player
	r.player = player
	r.logger.InfoContext(ctx, "active player switched",
		log.String("from", previous), log.String("to", player))
	return true, nil
}

// Player 当前玩家目录名
func (r *riskedLootFileRepository) Player() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.player
}

// Append 追加一条记录
func (r *riskedLootFileRepository) Append(ctx context.Context, record lootmodel.RiskedLootRecord) error {
	dir, err := r.playerDir("append")
	if err != nil {
		return err
	}

	lock := r.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	// 旧格式文件必须先迁移，否则新日志出现后旧记录再也不会被读取
	if _, err := r.migrateLocked(ctx, dir); err != nil {
		log.LogAppError(ctx, r.logger, "legacy migration before append failed", xerrors.Wrap(err, xerrors.CodeMigrationFailed, "legacy migration failed"))
		if xerrors.HasCode(err, xerrors.CodeMigrationFailed) {
			r.quarantineLegacy(ctx, dir)
		}
	}

	path := filepath.Join(dir, LogFileName)
	if err := appendLine(dir, path, record); err != nil {
		appErr := xerrors.NewStorageError("append", path, err)
		log.LogAppError(ctx, r.logger, "append risked loot record failed", appErr)
		r.metrics.RecordAppend(record.WasLost, false)
		return appErr
	}

	r.metrics.RecordAppend(record.WasLost, true)
	r.logger.DebugContext(ctx, "risked loot record appended",
		log.Int("wave", record.Wave),
		log.Int64("value", record.TotalValue),
		log.Bool("was_lost", record.WasLost))
	return nil
}

func appendLine(dir, path string, record lootmodel.RiskedLootRecord) error {
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadAll 加载全部有效记录
func (r *riskedLootFileRepository) LoadAll(ctx context.Context) ([]lootmodel.RiskedLootRecord, error) {
	report, err := r.LoadWithReport(ctx)
	if err != nil {
		return nil, err
	}
	return report.Records, nil
}

// LoadWithReport 加载全部有效记录并返回被跳过的行
func (r *riskedLootFileRepository) LoadWithReport(ctx context.Context) (*interfaces.LoadReport, error) {
	dir, err := r.playerDir("load")
	if err != nil {
		return nil, err
	}

	lock := r.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	report := &interfaces.LoadReport{Records: []lootmodel.RiskedLootRecord{}}

	migrated, err := r.migrateLocked(ctx, dir)
	if err != nil {
		// 迁移失败不影响读取已有日志
		log.LogAppError(ctx, r.logger, "legacy migration failed", xerrors.Wrap(err, xerrors.CodeMigrationFailed, "legacy migration failed"))
	}
	report.Migrated = migrated

	path := filepath.Join(dir, LogFileName)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return report, nil
	}
	if err != nil {
		appErr := xerrors.NewStorageError("load", path, err)
		log.LogAppError(ctx, r.logger, "open risked loot log failed", appErr)
		return nil, appErr
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec lootmodel.RiskedLootRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			r.skip(ctx, report, xerrors.NewRecordCorruptError(path, lineNo, err), lineNo, "corrupt")
			continue
		}
		if err := r.validator.ValidateRecord(rec); err != nil {
			r.skip(ctx, report, xerrors.NewRecordInvalidError(path, lineNo, errors.New(validator.Summary(err))), lineNo, "invalid")
			continue
		}
		report.Records = append(report.Records, rec)
	}
	if err := sc.Err(); err != nil {
		appErr := xerrors.NewStorageError("load", path, err)
		log.LogAppError(ctx, r.logger, "read risked loot log failed", appErr)
		return nil, appErr
	}

	r.logger.InfoContext(ctx, "risked loot history loaded",
		log.Int("records", len(report.Records)),
		log.Int("skipped", len(report.Skipped)))
	return report, nil
}

func (r *riskedLootFileRepository) skip(ctx context.Context, report *interfaces.LoadReport, appErr *xerrors.AppError, line int, reason string) {
	log.LogAppError(ctx, r.logger, "skipping risked loot line", appErr)
	r.metrics.RecordSkipped(reason)

	detail := ""
	if appErr.Err != nil {
		detail = appErr.Err.Error()
	}
	report.Skipped = append(report.Skipped, interfaces.SkippedLine{Line: line, Reason: reason, Detail: detail})
}

// MigrateLegacyFormat 迁移旧版 JSON 数组文件
func (r *riskedLootFileRepository) MigrateLegacyFormat(ctx context.Context) (bool, error) {
	dir, err := r.playerDir("migrate")
	if err != nil {
		return false, err
	}

	lock := r.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	return r.migrateLocked(ctx, dir)
}

// migrateLocked 将旧格式文件中的记录放到日志最前面，原文件改名备份。调用方需持有玩家目录锁
func (r *riskedLootFileRepository) migrateLocked(ctx context.Context, dir string) (bool, error) {
	logPath := filepath.Join(dir, LogFileName)
	legacyPath := filepath.Join(dir, LegacyFileName)

	data, err := os.ReadFile(legacyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, xerrors.NewStorageError("migrate", legacyPath, err)
	}

	var raw []json.RawMessage
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return false, xerrors.NewMigrationError(legacyPath, err)
		}
	}

	var buf bytes.Buffer
	converted := 0
	for i, elem := range raw {
		var rec lootmodel.RiskedLootRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			r.logger.WarnContext(ctx, "skipping corrupt legacy record",
				log.Int("index", i), log.Err(err))
			r.metrics.RecordSkipped("corrupt")
			continue
		}
		if err := r.validator.ValidateRecord(rec); err != nil {
			r.logger.WarnContext(ctx, "skipping invalid legacy record",
				log.Int("index", i), log.String("reason", validator.Summary(err)))
			r.metrics.RecordSkipped("invalid")
			continue
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return false, xerrors.NewMigrationError(legacyPath, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		converted++
	}

	// 旧记录更早，排在已有日志之前
	existing, err := os.ReadFile(logPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, xerrors.NewStorageError("migrate", logPath, err)
	}
	buf.Write(existing)

	tmpPath := logPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return false, xerrors.NewStorageError("migrate", tmpPath, err)
	}

	// 先备份旧文件再替换日志，任一步失败都不会留下会被重复导入的旧文件
	backupPath := legacyPath + backupInfix + strconv.FormatInt(r.now().UnixMilli(), 10)
	if err := os.Rename(legacyPath, backupPath); err != nil {
		_ = os.Remove(tmpPath)
		return false, xerrors.NewStorageError("migrate", backupPath, fmt.Errorf("backup legacy file: %w", err))
	}
	if err := os.Rename(tmpPath, logPath); err != nil {
		_ = os.Remove(tmpPath)
		_ = os.Rename(backupPath, legacyPath)
		return false, xerrors.NewStorageError("migrate", logPath, err)
	}

	r.logger.InfoContext(ctx, "legacy risked loot file migrated",
		log.Int("records", converted),
		log.Int("skipped", len(raw)-converted),
		log.Bool("merged_into_existing_log", len(existing) > 0),
		log.String("backup", filepath.Base(backupPath)))
	return true, nil
}

// quarantineLegacy 将无法解析的旧格式文件改名保留。
// 新日志创建后不再尝试迁移，原文件名下的记录会永远读不到
func (r *riskedLootFileRepository) quarantineLegacy(ctx context.Context, dir string) {
	legacyPath := filepath.Join(dir, LegacyFileName)
	corruptPath := legacyPath + corruptInfix + strconv.FormatInt(r.now().UnixMilli(), 10)
	if err := os.Rename(legacyPath, corruptPath); err != nil {
		log.LogAppError(ctx, r.logger, "unable to set aside corrupt legacy file",
			xerrors.NewStorageError("quarantine", legacyPath, err))
		return
	}
	r.logger.WarnContext(ctx, "corrupt legacy risked loot file set aside, repair and import it manually",
		log.String("path", corruptPath))
}

// DeleteAll 删除当前玩家的日志；旧格式文件一并删除，避免下次加载时被重新迁移
func (r *riskedLootFileRepository) DeleteAll(ctx context.Context) error {
	dir, err := r.playerDir("delete")
	if err != nil {
		return err
	}

	lock := r.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	for _, name := range []string{LogFileName, LegacyFileName} {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			appErr := xerrors.NewStorageError("delete", path, err)
			log.LogAppError(ctx, r.logger, "delete risked loot records failed", appErr)
			return appErr
		}
	}

	r.logger.InfoContext(ctx, "risked loot records deleted")
	return nil
}

func (r *riskedLootFileRepository) playerDir(operation string) (string, error) {
	player := r.Player()
	if player == "" {
		return "", xerrors.NewNoActivePlayerError(operation)
	}
	return filepath.Join(r.root, player), nil
}

// lockFor 每个玩家目录一把锁，只在单次读写期间持有
func (r *riskedLootFileRepository) lockFor(dir string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	l, ok := r.locks[dir]
	if !ok {
		l = &sync.Mutex{}
		r.locks[dir] = l
	}
	return l
}
