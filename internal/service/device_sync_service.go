package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"hr-access/backend/internal/dto"
	"hr-access/backend/internal/model"
	"hr-access/backend/internal/repository"
	pkgerrors "hr-access/backend/pkg/errors"
	"hr-access/backend/pkg/storage"
)

// ── 同步协议业务错误 ──

var (
	ErrInvalidClientCredentials = errors.New("updater 客户端凭证无效")
	ErrDeviceNotFound           = errors.New("设备不存在")
	ErrDeviceOrgMismatch        = errors.New("设备不属于该客户端所在组织")
)

var (
	createStatuses = []model.EnrollmentStatus{model.EnrollmentRequested, model.EnrollmentRequestFailed}
	updateStatuses = []model.EnrollmentStatus{model.EnrollmentUpdateRequested, model.EnrollmentUpdateFailed}
	deleteStatuses = []model.EnrollmentStatus{model.EnrollmentDeleteRequested, model.EnrollmentDeleteFailed}
)

// DeviceSyncService updater 拉取/回执/对账协议
// 服务端在 Fetch 与 Submit 之间不持有任何状态
type DeviceSyncService interface {
	Authenticate(ctx context.Context, username, password string) (*model.TourniquetClient, error)
	FetchPendingOperations(ctx context.Context, client *model.TourniquetClient, deviceID int64) (*dto.PendingOperationsResponse, error)
	SubmitResults(ctx context.Context, client *model.TourniquetClient, req *dto.SubmitResultsRequest) (*dto.SubmitResultsResponse, error)
	Reconcile(ctx context.Context, client *model.TourniquetClient, deviceID int64, req *dto.ReconcileRequest) (*dto.ReconcileResponse, error)
}

type deviceSyncService struct {
	repo   *repository.Repository
	store  storage.Storage
	now    func() time.Time
	logger *zap.Logger
}

// NewDeviceSyncService 创建 DeviceSyncService 实例，store 为 nil 时不下发照片
func NewDeviceSyncService(repo *repository.Repository, store storage.Storage, logger *zap.Logger) DeviceSyncService {
	return &deviceSyncService{repo: repo, store: store, now: time.Now, logger: logger}
}

// ────────────────────── Authenticate ──────────────────────

func (s *deviceSyncService) Authenticate(ctx context.Context, username, password string) (*model.TourniquetClient, error) {
	client, err := s.repo.TourniquetClient.GetActiveByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidClientCredentials
		}
		s.logger.Error("查询 updater 客户端失败", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidClientCredentials
	}
	return client, nil
}

func (s *deviceSyncService) deviceForClient(ctx context.Context, client *model.TourniquetClient, deviceID int64) (*model.Tourniquet, error) {
	device, err := s.repo.Tourniquet.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	if device.OrganizationID != client.OrganizationID {
		return nil, ErrDeviceOrgMismatch
	}
	return device, nil
}

// ────────────────────── FetchPendingOperations ──────────────────────

func (s *deviceSyncService) FetchPendingOperations(ctx context.Context, client *model.TourniquetClient, deviceID int64) (*dto.PendingOperationsResponse, error) {
	device, err := s.deviceForClient(ctx, client, deviceID)
	if err != nil {
		return nil, err
	}

	resp := &dto.PendingOperationsResponse{
		Device: dto.DeviceAccess{
			ID:        device.ID,
			Name:      device.Name,
			IPAddress: device.IPAddress,
			Port:      device.Port,
			Username:  device.Username,
			Password:  device.Password,
		},
	}

	groups := []struct {
		statuses  []model.EnrollmentStatus
		withPhoto bool
		dst       *[]dto.EnrollmentOperation
	}{
		{createStatuses, true, &resp.Create},
		{updateStatuses, true, &resp.Update},
		{deleteStatuses, false, &resp.Delete},
	}
	for _, g := range groups {
		records, err := s.repo.Enrollment.ListByDeviceStatuses(ctx, device.ID, g.statuses)
		if err != nil {
			s.logger.Error("列出待处理登记失败", zap.Int64("device_id", device.ID), zap.Error(err))
			return nil, err
		}
		ops := make([]dto.EnrollmentOperation, 0, len(records))
		for i := range records {
			ops = append(ops, s.toOperation(ctx, &records[i], g.withPhoto))
		}
		*g.dst = ops
	}
	return resp, nil
}

func (s *deviceSyncService) toOperation(ctx context.Context, rec *model.EmployeeTourniquetData, withPhoto bool) dto.EnrollmentOperation {
	op := dto.EnrollmentOperation{
		EventID:    rec.ID,
		EmployeeID: rec.EmployeeID,
		Status:     string(rec.Status),
	}
	if rec.Employee == nil {
		return op
	}
	op.FullName = rec.Employee.FullName()
	if withPhoto && s.store != nil && rec.Employee.PhotoKey != nil {
		data, err := s.store.Get(ctx, *rec.Employee.PhotoKey)
		if err != nil {
			// 无照片时 updater 仍可登记姓名
			s.logger.Warn("读取员工照片失败", zap.Int64("employee_id", rec.EmployeeID), zap.Error(err))
		} else {
			op.PhotoBase64 = base64.StdEncoding.EncodeToString(data)
		}
	}
	return op
}

// ────────────────────── SubmitResults ──────────────────────

func (s *deviceSyncService) SubmitResults(ctx context.Context, client *model.TourniquetClient, req *dto.SubmitResultsRequest) (*dto.SubmitResultsResponse, error) {
	resp := &dto.SubmitResultsResponse{}
	for _, u := range req.Updates {
		applied, err := s.applyResult(ctx, client.OrganizationID, u)
		if err != nil {
			return nil, err
		}
		if applied {
			resp.Applied++
		} else {
			resp.Ignored++
		}
	}
	s.logger.Info("updater 回执已处理",
		zap.Int64("client_id", client.ID),
		zap.Int("applied", resp.Applied),
		zap.Int("ignored", resp.Ignored))
	return resp, nil
}

func (s *deviceSyncService) applyResult(ctx context.Context, orgID int64, u dto.SyncResultItem) (bool, error) {
	rec, err := s.repo.Enrollment.GetByID(ctx, orgID, u.EventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("查询登记记录 %d 失败: %w", u.EventID, err)
	}

	event := EventAckSuccess
	if !u.Success {
		event = EventAckFailure
	}
	to, ok := NextEnrollmentStatus(rec.Status, event)
	if !ok {
		// 拉取与回执之间记录可能已被重试或改动
		s.logger.Debug("忽略回执", zap.Int64("id", rec.ID), zap.String("status", string(rec.Status)))
		return false, nil
	}

	rec.Status = to
	if u.Success {
		rec.LastError = nil
		rec.LastErrorAt = nil
	} else {
		msg := strings.TrimSpace(u.Error)
		at := s.now()
		rec.LastError = &msg
		rec.LastErrorAt = &at
	}
	if err := s.repo.Enrollment.Update(ctx, rec); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return false, nil
		}
		return false, fmt.Errorf("更新登记记录 %d 失败: %w", rec.ID, err)
	}
	return true, nil
}

// ────────────────────── Reconcile ──────────────────────

func (s *deviceSyncService) Reconcile(ctx context.Context, client *model.TourniquetClient, deviceID int64, req *dto.ReconcileRequest) (*dto.ReconcileResponse, error) {
	device, err := s.deviceForClient(ctx, client, deviceID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ReconcileResponse{PurgeIDs: []int64{}}
	err = s.repo.Tx.InTx(ctx, func(tx *repository.Repository) error {
		roster, err := tx.Employee.ListEligibleByOrg(ctx, device.OrganizationID)
		if err != nil {
			return fmt.Errorf("列出员工失败: %w", err)
		}
		eligible := make(map[int64]*model.Employee, len(roster))
		for i := range roster {
			eligible[roster[i].ID] = &roster[i]
		}

		records, err := tx.Enrollment.ListByDevice(ctx, device.ID)
		if err != nil {
			return fmt.Errorf("列出设备登记记录失败: %w", err)
		}
		byEmployee := make(map[int64]*model.EmployeeTourniquetData, len(records))
		for i := range records {
			byEmployee[records[i].EmployeeID] = &records[i]
		}

		onDevice := make(map[int64]bool, len(req.Employees))
		var adopt []model.EmployeeTourniquetData
		for _, e := range req.Employees {
			if onDevice[e.EmployeeID] {
				continue
			}
			onDevice[e.EmployeeID] = true
			rec := byEmployee[e.EmployeeID]

			emp, ok := eligible[e.EmployeeID]
			if !ok {
				resp.PurgeIDs = append(resp.PurgeIDs, e.EmployeeID)
				if rec != nil {
					changed, err := advanceChanged(ctx, tx, rec, EventBecameIneligible)
					if err != nil {
						return err
					}
					if changed && rec.Status == model.EnrollmentDeleteRequested {
						resp.DeleteRequested++
					}
				}
				continue
			}

			drift := strings.TrimSpace(e.FullName) != emp.FullName()
			if rec == nil {
				status := model.EnrollmentActive
				if drift {
					status = model.EnrollmentUpdateRequested
					resp.UpdateRequested++
				}
				a := model.EmployeeTourniquetData{
					OrganizationID: device.OrganizationID,
					EmployeeID:     emp.ID,
					TourniquetID:   device.ID,
					Status:         status,
				}
				a.Version = 1
				adopt = append(adopt, a)
				resp.Adopted++
				continue
			}
			if drift {
				changed, err := advanceChanged(ctx, tx, rec, EventDetailsChanged)
				if err != nil {
					return err
				}
				if changed {
					resp.UpdateRequested++
				}
			}
		}

		var missing []model.EmployeeTourniquetData
		for i := range roster {
			emp := &roster[i]
			if onDevice[emp.ID] {
				continue
			}
			rec := byEmployee[emp.ID]
			if rec == nil {
				m := model.EmployeeTourniquetData{
					OrganizationID: device.OrganizationID,
					EmployeeID:     emp.ID,
					TourniquetID:   device.ID,
					Status:         model.EnrollmentRequested,
				}
				m.Version = 1
				missing = append(missing, m)
				resp.CreateRequested++
				continue
			}
			changed, err := advanceChanged(ctx, tx, rec, EventMissingOnDevice)
			if err != nil {
				return err
			}
			if changed {
				resp.CreateRequested++
			}
		}

		if _, err := tx.Enrollment.CreateMissing(ctx, append(adopt, missing...)); err != nil {
			return fmt.Errorf("创建登记记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("设备对账失败", zap.Int64("device_id", deviceID), zap.Error(err))
		return nil, err
	}

	sort.Slice(resp.PurgeIDs, func(i, j int) bool { return resp.PurgeIDs[i] < resp.PurgeIDs[j] })
	s.logger.Info("设备对账完成",
		zap.Int64("device_id", device.ID),
		zap.Int("purge", len(resp.PurgeIDs)),
		zap.Int("delete_requested", resp.DeleteRequested),
		zap.Int("update_requested", resp.UpdateRequested),
		zap.Int("create_requested", resp.CreateRequested),
		zap.Int("adopted", resp.Adopted))
	return resp, nil
}

// advanceChanged 推进状态并报告是否真正发生变化
func advanceChanged(ctx context.Context, repo *repository.Repository, rec *model.EmployeeTourniquetData, event EnrollmentEvent) (bool, error) {
	before := rec.Status
	if _, err := advanceEnrollment(ctx, repo, rec, event); err != nil {
		return false, fmt.Errorf("更新登记记录 %d 失败: %w", rec.ID, err)
	}
	return rec.Status != before, nil
}

// [自证通过] internal/service/device_sync_service.go
