package service

import (
	"time"

	"hr-access/backend/internal/model"
)

// ClassifyDirection 判定事件方向
// 单向设备直接取设备模式；双向设备与上一条事件交替，没有上一条时为 IN
func ClassifyDirection(mode string, prior *model.UserTourniquet) string {
	switch mode {
	case model.TourniquetModeIn:
		return model.DirectionIn
	case model.TourniquetModeOut:
		return model.DirectionOut
	}
	if prior == nil || prior.Direction == model.DirectionOut {
		return model.DirectionIn
	}
	return model.DirectionOut
}

// ArrivalStatus 当日首次 IN 的到岗状态，本地时刻严格晚于 start_hour:00 即为迟到
// cfg 为 nil（该星期无工作时间配置）时返回空串
func ArrivalStatus(local time.Time, cfg *model.WorkingDateConfig) string {
	if cfg == nil {
		return ""
	}
	start := time.Date(local.Year(), local.Month(), local.Day(), cfg.StartHour, 0, 0, 0, local.Location())
	if local.After(start) {
		return model.ArrivalLate
	}
	return model.ArrivalOnTime
}
