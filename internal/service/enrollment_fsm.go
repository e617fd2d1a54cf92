package service

import "hr-access/backend/internal/model"

// EnrollmentEvent 驱动登记状态迁移的事件
type EnrollmentEvent string

const (
	EventRequestCreate    EnrollmentEvent = "RequestCreate"
	EventAckSuccess       EnrollmentEvent = "AckSuccess"
	EventAckFailure       EnrollmentEvent = "AckFailure"
	EventRetry            EnrollmentEvent = "Retry"
	EventDetailsChanged   EnrollmentEvent = "DetailsChanged"
	EventNightlySweep     EnrollmentEvent = "NightlySweep"
	EventBecameIneligible EnrollmentEvent = "BecameIneligible"
	EventMissingOnDevice  EnrollmentEvent = "MissingOnDevice"
)

type transitionKey struct {
	from  model.EnrollmentStatus
	event EnrollmentEvent
}

// enrollmentTransitions 登记状态迁移表，表外的 (状态, 事件) 一律不允许
var enrollmentTransitions = buildEnrollmentTransitions()

func buildEnrollmentTransitions() map[transitionKey]model.EnrollmentStatus {
	t := map[transitionKey]model.EnrollmentStatus{
		{model.EnrollmentNotExist, EventRequestCreate}: model.EnrollmentRequested,
		// DELETED 只能通过新的创建请求离开
		{model.EnrollmentDeleted, EventRequestCreate}:  model.EnrollmentRequested,

		{model.EnrollmentRequested, EventAckSuccess}:       model.EnrollmentActive,
		{model.EnrollmentRequested, EventAckFailure}:       model.EnrollmentRequestFailed,
		{model.EnrollmentRequestFailed, EventRetry}:        model.EnrollmentRequested,
		{model.EnrollmentActive, EventDetailsChanged}:      model.EnrollmentUpdateRequested,
		{model.EnrollmentUpdated, EventDetailsChanged}:     model.EnrollmentUpdateRequested,
		{model.EnrollmentActive, EventNightlySweep}:        model.EnrollmentActive,
		{model.EnrollmentUpdated, EventNightlySweep}:       model.EnrollmentActive,
		{model.EnrollmentUpdateRequested, EventAckSuccess}: model.EnrollmentUpdated,
		{model.EnrollmentUpdateRequested, EventAckFailure}: model.EnrollmentUpdateFailed,
		{model.EnrollmentUpdateFailed, EventRetry}:         model.EnrollmentUpdateRequested,

		{model.EnrollmentDeleteRequested, EventAckSuccess}: model.EnrollmentDeleted,
		{model.EnrollmentDeleteRequested, EventAckFailure}: model.EnrollmentDeleteFailed,
		{model.EnrollmentDeleteFailed, EventRetry}:         model.EnrollmentDeleteRequested,

		// *_FAILED 仍在拉取列表中，updater 执行后的回执照常生效；失败回执自环只刷新 last_error
		{model.EnrollmentRequestFailed, EventAckSuccess}: model.EnrollmentActive,
		{model.EnrollmentRequestFailed, EventAckFailure}: model.EnrollmentRequestFailed,
		{model.EnrollmentUpdateFailed, EventAckSuccess}:  model.EnrollmentUpdated,
		{model.EnrollmentUpdateFailed, EventAckFailure}:  model.EnrollmentUpdateFailed,
		{model.EnrollmentDeleteFailed, EventAckSuccess}:  model.EnrollmentDeleted,
		{model.EnrollmentDeleteFailed, EventAckFailure}:  model.EnrollmentDeleteFailed,

		// 从未下发到设备的记录无需删除
		{model.EnrollmentNotExist, EventBecameIneligible}: model.EnrollmentDeleted,
	}

	// 失去资格：请求删除。删除流程中的记录不再重新入队，DELETE_FAILED 只能由管理员重试
	for _, s := range []model.EnrollmentStatus{
		model.EnrollmentRequested,
		model.EnrollmentRequestFailed,
		model.EnrollmentActive,
		model.EnrollmentUpdateRequested,
		model.EnrollmentUpdateFailed,
		model.EnrollmentUpdated,
	} {
		t[transitionKey{s, EventBecameIneligible}] = model.EnrollmentDeleteRequested
	}

	// 设备对账发现缺失：重新下发创建
	for _, s := range []model.EnrollmentStatus{
		model.EnrollmentNotExist,
		model.EnrollmentRequestFailed,
		model.EnrollmentActive,
		model.EnrollmentUpdated,
		model.EnrollmentUpdateRequested,
		model.EnrollmentUpdateFailed,
	} {
		t[transitionKey{s, EventMissingOnDevice}] = model.EnrollmentRequested
	}
	return t
}

// NextEnrollmentStatus 查询迁移表，ok=false 表示该事件在当前状态下不允许
func NextEnrollmentStatus(from model.EnrollmentStatus, event EnrollmentEvent) (model.EnrollmentStatus, bool) {
	to, ok := enrollmentTransitions[transitionKey{from, event}]
	return to, ok
}
