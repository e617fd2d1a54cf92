package service

import (
	"time"

	"hr-access/backend/internal/model"
)

// startOfDay loc 时区下 t 所在日期的 00:00
func startOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// nextMidnight t 之后最近的本地零点
func nextMidnight(t time.Time, loc *time.Location) time.Time {
	return startOfDay(t, loc).AddDate(0, 0, 1)
}

func floorMinutes(d time.Duration) int {
	return int(d / time.Minute)
}

// BuildSessions 将 prev(IN) 与 out(OUT) 配对为工作时段
//
//   - out 不晚于 prev 之后的第一个零点：一条 [prev, out)，归属 prev 的日历日
//   - 否则在该零点切分为 [prev, 零点) 与 [零点, out)，后者归属 out 的日历日
//
// prev 不是 IN、out 不是 OUT 或时间倒序时返回 nil
func BuildSessions(prev, out *model.UserTourniquet, loc *time.Location) []model.TourniquetTracker {
	if prev == nil || out == nil || prev.EmployeeID == nil {
		return nil
	}
	if prev.Direction != model.DirectionIn || out.Direction != model.DirectionOut {
		return nil
	}
	if out.EventTime.Before(prev.EventTime) {
		return nil
	}

	base := model.TourniquetTracker{
		OrganizationID: out.OrganizationID,
		EmployeeID:     *prev.EmployeeID,
		TourniquetID:   prev.TourniquetID,
		InEventID:      prev.ID,
		OutEventID:     out.ID,
	}

	midnight := nextMidnight(prev.EventTime, loc)
	if !out.EventTime.After(midnight) {
		s := base
		s.TableDateID = prev.TableDateID
		s.StartTime = prev.EventTime
		s.EndTime = out.EventTime
		s.DurationMinutes = floorMinutes(out.EventTime.Sub(prev.EventTime))
		return []model.TourniquetTracker{s}
	}

	first := base
	first.TableDateID = prev.TableDateID
	first.StartTime = prev.EventTime
	first.EndTime = midnight
	first.DurationMinutes = floorMinutes(midnight.Sub(prev.EventTime))

	second := base
	second.TourniquetID = out.TourniquetID
	second.TableDateID = out.TableDateID
	second.StartTime = midnight
	second.EndTime = out.EventTime
	second.DurationMinutes = floorMinutes(out.EventTime.Sub(midnight))

	return []model.TourniquetTracker{first, second}
}
