package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"hr-access/backend/config"
	"hr-access/backend/internal/model"
)

func setupTestCalendarService(holidays HolidaySource) (CalendarService, *mockRepos) {
	repo, m := newMockRepos()
	m.org.orgs[1] = &model.Organization{ID: 1, Name: "总部", Timezone: "UTC"}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		m.config.configs = append(m.config.configs, model.WorkingDateConfig{
			ID: int64(wd), OrganizationID: 1, Weekday: int(wd), StartHour: 9, EndHour: 18,
		})
	}

	cfg := &config.Config{
		Attendance: config.AttendanceConfig{Timezone: "UTC"},
		Scheduler:  config.SchedulerConfig{CalendarHorizonDays: 7, OrgConcurrency: 1},
	}
	return NewCalendarService(cfg, repo, holidays, zap.NewNop()), m
}

func staticHolidays(content string) HolidaySource {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

func dayTypes(m *mockRepos) map[string]string {
	result := make(map[string]string)
	for _, d := range m.tableDate.days {
		result[d.Date.Format("2006-01-02")] = d.Type
	}
	return result
}

func TestCalendarService_Refresh(t *testing.T) {
	svc, m := setupTestCalendarService(staticHolidays(testHolidayICS))
	now := time.Date(2026, 3, 18, 0, 5, 0, 0, time.UTC) // 周三

	report, err := svc.Refresh(context.Background(), now)
	if err != nil {
		t.Fatalf("Refresh 失败: %v", err)
	}
	if report.Organizations != 1 || report.Created != 7 || report.Holidays != 3 {
		t.Errorf("刷新统计错误: %+v", report)
	}

	want := map[string]string{
		"2026-03-18": model.DayTypeWork,
		"2026-03-19": model.DayTypeWork,
		"2026-03-20": model.DayTypeHoliday,
		"2026-03-21": model.DayTypeHoliday,
		"2026-03-22": model.DayTypeHoliday,
		"2026-03-23": model.DayTypeWork,
		"2026-03-24": model.DayTypeWork,
	}
	got := dayTypes(m)
	for date, typ := range want {
		if got[date] != typ {
			t.Errorf("%s: 期望 %s，实际 %s", date, typ, got[date])
		}
	}

	again, err := svc.Refresh(context.Background(), now)
	if err != nil {
		t.Fatalf("第二次 Refresh 失败: %v", err)
	}
	if again.Created != 0 {
		t.Errorf("重复刷新不应创建日期，实际 %d", again.Created)
	}
}

func TestCalendarService_Refresh_KeepsExistingDays(t *testing.T) {
	svc, m := setupTestCalendarService(nil)
	m.tableDate.add(1, "2026-03-19", model.DayTypeRest)

	report, err := svc.Refresh(context.Background(), time.Date(2026, 3, 18, 0, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Refresh 失败: %v", err)
	}
	if report.Created != 6 {
		t.Errorf("期望创建 6 天，实际 %d", report.Created)
	}
	if got := dayTypes(m)["2026-03-19"]; got != model.DayTypeRest {
		t.Errorf("已存在的日期不应被改写，实际 %s", got)
	}
	if got := dayTypes(m)["2026-03-21"]; got != model.DayTypeRest {
		t.Errorf("无工作时间配置的周六应为 REST_DAY，实际 %s", got)
	}
}

func TestCalendarService_Refresh_HolidaySourceFailure(t *testing.T) {
	failing := func() (io.ReadCloser, error) { return nil, errors.New("feed unavailable") }
	svc, m := setupTestCalendarService(failing)

	report, err := svc.Refresh(context.Background(), time.Date(2026, 3, 18, 0, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("节假日源失败时应继续刷新: %v", err)
	}
	if report.Created != 7 {
		t.Errorf("期望创建 7 天，实际 %d", report.Created)
	}
	if got := dayTypes(m)["2026-03-20"]; got != model.DayTypeWork {
		t.Errorf("无节假日数据时周五应为 WORK_DAY，实际 %s", got)
	}
}

func TestCalendarService_DayType(t *testing.T) {
	svc, _ := setupTestCalendarService(nil)
	workdays := map[time.Weekday]bool{time.Monday: true}
	holidays := map[string]string{"2026-03-02": "Holiday"}

	if got := svc.DayType(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), workdays, holidays); got != model.DayTypeHoliday {
		t.Errorf("节假日优先，实际 %s", got)
	}
	if got := svc.DayType(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), workdays, holidays); got != model.DayTypeWork {
		t.Errorf("周一应为 WORK_DAY，实际 %s", got)
	}
	if got := svc.DayType(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), workdays, nil); got != model.DayTypeRest {
		t.Errorf("周二无配置应为 REST_DAY，实际 %s", got)
	}
}
