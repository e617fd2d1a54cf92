package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hr-access/backend/config"
	"hr-access/backend/internal/model"
	"hr-access/backend/internal/repository"
)

// CalendarRefreshReport 日历刷新统计
type CalendarRefreshReport struct {
	Organizations int   `json:"organizations"`
	Created       int64 `json:"created"`
	Holidays      int   `json:"holidays"`
}

// HolidaySource 返回节假日日历内容，nil 表示未配置
type HolidaySource func() (io.ReadCloser, error)

// CalendarService 工作日历维护
type CalendarService interface {
	// Refresh 为所有组织补齐 [today, today+horizon) 的日历日，已存在的日期保持不变
	Refresh(ctx context.Context, now time.Time) (*CalendarRefreshReport, error)
	// DayType 按节假日与工作时间配置推导日期类型
	DayType(date time.Time, workdays map[time.Weekday]bool, holidays map[string]string) string
}

type calendarService struct {
	repo        *repository.Repository
	horizonDays int
	concurrency int
	holidays    HolidaySource
	defaultLoc  *time.Location
	logger      *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(cfg *config.Config, repo *repository.Repository, holidays HolidaySource, logger *zap.Logger) CalendarService {
	loc, err := cfg.Attendance.Location()
	if err != nil {
		loc = time.UTC
	}
	horizon := cfg.Scheduler.CalendarHorizonDays
	if horizon <= 0 {
		horizon = 31
	}
	return &calendarService{
		repo:        repo,
		horizonDays: horizon,
		concurrency: cfg.Scheduler.OrgConcurrency,
		holidays:    holidays,
		defaultLoc:  loc,
		logger:      logger,
	}
}

// FileHolidaySource 基于配置路径的节假日来源，路径为空时返回 nil
func FileHolidaySource(path string) HolidaySource {
	if path == "" {
		return nil
	}
	return func() (io.ReadCloser, error) { return OpenHolidaySource(path) }
}

func (s *calendarService) Refresh(ctx context.Context, now time.Time) (*CalendarRefreshReport, error) {
	raw, err := s.loadHolidayFeed()
	if err != nil {
		// 节假日源不可用时仍按星期配置生成
		s.logger.Warn("读取节假日日历失败", zap.Error(err))
	}

	var created, orgs, holidayCount int64
	err = forEachOrganization(ctx, s.repo, s.concurrency, s.logger, "calendar_refresh", func(ctx context.Context, org *model.Organization) error {
		atomic.AddInt64(&orgs, 1)
		loc := org.Location(s.defaultLoc)
		from := startOfDay(now, loc)
		to := from.AddDate(0, 0, s.horizonDays)

		var holidays map[string]string
		if raw != nil {
			parsed, err := ParseHolidayICS(bytes.NewReader(raw), loc, from, to)
			if err != nil {
				s.logger.Warn("解析节假日日历失败", zap.Int64("org_id", org.ID), zap.Error(err))
			} else {
				holidays = parsed
			}
		}
		atomic.AddInt64(&holidayCount, int64(len(holidays)))

		n, err := s.refreshOrganization(ctx, org.ID, from, holidays)
		atomic.AddInt64(&created, n)
		return err
	})

	report := &CalendarRefreshReport{Organizations: int(orgs), Created: created, Holidays: int(holidayCount)}
	s.logger.Info("工作日历刷新完成",
		zap.Int("organizations", report.Organizations),
		zap.Int64("created", report.Created))
	return report, err
}

func (s *calendarService) refreshOrganization(ctx context.Context, orgID int64, from time.Time, holidays map[string]string) (int64, error) {
	configs, err := s.repo.WorkingDateConfig.ListByOrg(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("列出工作时间配置失败: %w", err)
	}
	workdays := make(map[time.Weekday]bool, len(configs))
	for _, c := range configs {
		workdays[time.Weekday(c.Weekday)] = true
	}

	days := make([]model.TableDate, 0, s.horizonDays)
	for i := 0; i < s.horizonDays; i++ {
		date := from.AddDate(0, 0, i)
		days = append(days, model.TableDate{
			OrganizationID: orgID,
			Date:           time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
			Type:           s.DayType(date, workdays, holidays),
		})
	}

	n, err := s.repo.TableDate.EnsureDays(ctx, days)
	if err != nil {
		return 0, fmt.Errorf("写入日历日失败: %w", err)
	}
	return n, nil
}

func (s *calendarService) DayType(date time.Time, workdays map[time.Weekday]bool, holidays map[string]string) string {
	if _, ok := holidays[date.Format(repository.DateLayout)]; ok {
		return model.DayTypeHoliday
	}
	if workdays[date.Weekday()] {
		return model.DayTypeWork
	}
	return model.DayTypeRest
}

func (s *calendarService) loadHolidayFeed() ([]byte, error) {
	if s.holidays == nil {
		return nil, nil
	}
	rc, err := s.holidays()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("读取节假日日历失败: %w", err)
	}
	return data, nil
}
