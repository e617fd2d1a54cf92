package scheduler

import (
	"context"
	"time"

	"hr-access/backend/internal/service"
)

// 任务名称，同时用于手动触发接口
const (
	JobDayClose        = "day_close"
	JobEnrollmentSweep = "enrollment_sweep"
	JobCalendarRefresh = "calendar_refresh"
)

// DayCloseJob 每日补签
func DayCloseJob(svc service.DayCloserService) Job {
	return NewJob(JobDayClose, func(ctx context.Context, now time.Time) error {
		_, err := svc.CloseDay(ctx, now)
		return err
	})
}

// EnrollmentSweepJob 登记夜间巡检
func EnrollmentSweepJob(svc service.EnrollmentService) Job {
	return NewJob(JobEnrollmentSweep, func(ctx context.Context, now time.Time) error {
		_, err := svc.Sweep(ctx, now)
		return err
	})
}

// CalendarRefreshJob 工作日历补齐
func CalendarRefreshJob(svc service.CalendarService) Job {
	return NewJob(JobCalendarRefresh, func(ctx context.Context, now time.Time) error {
		_, err := svc.Refresh(ctx, now)
		return err
	})
}
