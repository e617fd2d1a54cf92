package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"hr-access/backend/internal/model"
	"hr-access/backend/internal/repository"
	pkgerrors "hr-access/backend/pkg/errors"
	"hr-access/backend/pkg/storage"
)

// ── Mock OrganizationRepository ──

type mockOrgRepo struct {
	orgs map[int64]*model.Organization
}

func newMockOrgRepo() *mockOrgRepo {
	return &mockOrgRepo{orgs: make(map[int64]*model.Organization)}
}

func (m *mockOrgRepo) GetByID(_ context.Context, id int64) (*model.Organization, error) {
	if o, ok := m.orgs[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOrgRepo) ListAll(_ context.Context) ([]model.Organization, error) {
	result := make([]model.Organization, 0, len(m.orgs))
	for _, o := range m.orgs {
		result = append(result, *o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ── Mock EmployeeRepository ──

type mockEmployeeRepo struct {
	mu             sync.Mutex
	emps           map[int64]*model.Employee
	setAtOfficeErr error
}

func newMockEmployeeRepo() *mockEmployeeRepo {
	return &mockEmployeeRepo{emps: make(map[int64]*model.Employee)}
}

func (m *mockEmployeeRepo) get(id int64) *model.Employee {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.emps[id]; ok {
		cp := *e
		return &cp
	}
	return nil
}

func (m *mockEmployeeRepo) GetByID(_ context.Context, orgID, id int64) (*model.Employee, error) {
	e := m.get(id)
	if e == nil || e.OrganizationID != orgID {
		return nil, gorm.ErrRecordNotFound
	}
	return e, nil
}

func (m *mockEmployeeRepo) GetEligible(ctx context.Context, orgID, id int64) (*model.Employee, error) {
	e, err := m.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !e.Eligible() {
		return nil, gorm.ErrRecordNotFound
	}
	return e, nil
}

func (m *mockEmployeeRepo) list(orgID int64, onlyEligible bool) []model.Employee {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Employee
	for _, e := range m.emps {
		if e.OrganizationID != orgID {
			continue
		}
		if onlyEligible && !e.Eligible() {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockEmployeeRepo) ListByOrg(_ context.Context, orgID int64) ([]model.Employee, error) {
	return m.list(orgID, false), nil
}

func (m *mockEmployeeRepo) ListEligibleByOrg(_ context.Context, orgID int64) ([]model.Employee, error) {
	return m.list(orgID, true), nil
}

func (m *mockEmployeeRepo) SetAtOffice(_ context.Context, id int64, atOffice bool) error {
	if m.setAtOfficeErr != nil {
		return m.setAtOfficeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.emps[id]; ok {
		e.AtOffice = atOffice
	}
	return nil
}

// ── Mock VisitorRepository ──

type mockVisitorRepo struct {
	visitors []model.Visitor
}

func (m *mockVisitorRepo) GetActiveByToken(_ context.Context, orgID int64, token string) (*model.Visitor, error) {
	for _, v := range m.visitors {
		if v.OrganizationID == orgID && v.Token == token && v.IsActive {
			cp := v
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock TourniquetRepository ──

type mockTourniquetRepo struct {
	devices map[int64]*model.Tourniquet
	getErr  error
}

func newMockTourniquetRepo() *mockTourniquetRepo {
	return &mockTourniquetRepo{devices: make(map[int64]*model.Tourniquet)}
}

func (m *mockTourniquetRepo) GetByID(_ context.Context, id int64) (*model.Tourniquet, error) {
	if d, ok := m.devices[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTourniquetRepo) GetByName(_ context.Context, name string) (*model.Tourniquet, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, d := range m.devices {
		if d.Name == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTourniquetRepo) ListByOrg(_ context.Context, orgID int64) ([]model.Tourniquet, error) {
	var result []model.Tourniquet
	for _, d := range m.devices {
		if d.OrganizationID == orgID {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ── Mock TourniquetClientRepository ──

type mockClientRepo struct {
	clients map[string]*model.TourniquetClient
}

func (m *mockClientRepo) GetActiveByUsername(_ context.Context, username string) (*model.TourniquetClient, error) {
	if c, ok := m.clients[username]; ok && c.IsActive {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock TableDateRepository ──

type mockTableDateRepo struct {
	mu     sync.Mutex
	days   []model.TableDate
	nextID int64
}

func newMockTableDateRepo() *mockTableDateRepo {
	return &mockTableDateRepo{nextID: 100}
}

func (m *mockTableDateRepo) add(orgID int64, date string, typ string) *model.TableDate {
	d, _ := time.Parse(repository.DateLayout, date)
	m.mu.Lock()
	defer m.mu.Unlock()
	day := model.TableDate{ID: m.nextID, OrganizationID: orgID, Date: d, Type: typ}
	m.nextID++
	m.days = append(m.days, day)
	return &day
}

func (m *mockTableDateRepo) GetByDate(_ context.Context, orgID int64, date time.Time) (*model.TableDate, error) {
	key := date.Format(repository.DateLayout)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.days {
		if d.OrganizationID == orgID && d.Date.Format(repository.DateLayout) == key {
			cp := d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTableDateRepo) EnsureDays(_ context.Context, days []model.TableDate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var created int64
	for _, nd := range days {
		exists := false
		for _, d := range m.days {
			if d.OrganizationID == nd.OrganizationID && d.Date.Format(repository.DateLayout) == nd.Date.Format(repository.DateLayout) {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		nd.ID = m.nextID
		m.nextID++
		m.days = append(m.days, nd)
		created++
	}
	return created, nil
}

// ── Mock WorkingDateConfigRepository ──

type mockWorkingConfigRepo struct {
	configs []model.WorkingDateConfig
}

func (m *mockWorkingConfigRepo) GetByWeekday(_ context.Context, orgID int64, weekday time.Weekday) (*model.WorkingDateConfig, error) {
	for _, c := range m.configs {
		if c.OrganizationID == orgID && c.Weekday == int(weekday) {
			cp := c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkingConfigRepo) ListByOrg(_ context.Context, orgID int64) ([]model.WorkingDateConfig, error) {
	var result []model.WorkingDateConfig
	for _, c := range m.configs {
		if c.OrganizationID == orgID {
			result = append(result, c)
		}
	}
	return result, nil
}

// ── Mock UserTourniquetRepository ──

type mockEventRepo struct {
	mu        sync.Mutex
	events    []model.UserTourniquet
	nextID    int64
	createErr error
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{nextID: 1}
}

func matchSubject(ev *model.UserTourniquet, s repository.Subject) bool {
	if s.IsVisitor() {
		return ev.VisitorID != nil && *ev.VisitorID == s.VisitorID
	}
	return ev.EmployeeID != nil && *ev.EmployeeID == s.EmployeeID
}

// eventBefore 按 (event_time, id) 排序
func eventBefore(a, b *model.UserTourniquet) bool {
	if a.EventTime.Equal(b.EventTime) {
		return a.ID < b.ID
	}
	return a.EventTime.Before(b.EventTime)
}

func (m *mockEventRepo) Create(_ context.Context, ev *model.UserTourniquet) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = m.nextID
	m.nextID++
	ev.CreatedAt = time.Now()
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockEventRepo) ExistsInWindow(_ context.Context, orgID int64, s repository.Subject, from, to time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		ev := &m.events[i]
		if ev.OrganizationID == orgID && matchSubject(ev, s) &&
			!ev.EventTime.Before(from) && !ev.EventTime.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEventRepo) LatestBefore(_ context.Context, orgID int64, s repository.Subject, t time.Time) (*model.UserTourniquet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.UserTourniquet
	for i := range m.events {
		ev := &m.events[i]
		if ev.OrganizationID != orgID || !matchSubject(ev, s) || !ev.EventTime.Before(t) {
			continue
		}
		if best == nil || eventBefore(best, ev) {
			best = ev
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *mockEventRepo) NextAfter(_ context.Context, orgID int64, s repository.Subject, t time.Time) (*model.UserTourniquet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.UserTourniquet
	for i := range m.events {
		ev := &m.events[i]
		if ev.OrganizationID != orgID || !matchSubject(ev, s) || !ev.EventTime.After(t) {
			continue
		}
		if best == nil || eventBefore(ev, best) {
			best = ev
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *mockEventRepo) HasInOnDay(_ context.Context, orgID int64, s repository.Subject, tableDateID int64, t time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		ev := &m.events[i]
		if ev.OrganizationID == orgID && matchSubject(ev, s) && ev.TableDateID == tableDateID &&
			ev.Direction == model.DirectionIn && ev.EventTime.Before(t) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEventRepo) LatestPerEmployee(_ context.Context, orgID int64, t time.Time) ([]model.UserTourniquet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[int64]*model.UserTourniquet)
	for i := range m.events {
		ev := &m.events[i]
		if ev.OrganizationID != orgID || ev.EmployeeID == nil || ev.EventTime.After(t) {
			continue
		}
		if cur, ok := latest[*ev.EmployeeID]; !ok || eventBefore(cur, ev) {
			latest[*ev.EmployeeID] = ev
		}
	}
	result := make([]model.UserTourniquet, 0, len(latest))
	for _, ev := range latest {
		result = append(result, *ev)
	}
	sort.Slice(result, func(i, j int) bool { return *result[i].EmployeeID < *result[j].EmployeeID })
	return result, nil
}

// byEmployee 测试辅助：某员工的全部事件，按时间排序
func (m *mockEventRepo) byEmployee(employeeID int64) []model.UserTourniquet {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.UserTourniquet
	for _, ev := range m.events {
		if ev.EmployeeID != nil && *ev.EmployeeID == employeeID {
			result = append(result, ev)
		}
	}
	sort.Slice(result, func(i, j int) bool { return eventBefore(&result[i], &result[j]) })
	return result
}

// ── Mock TourniquetTrackerRepository ──

type mockTrackerRepo struct {
	mu       sync.Mutex
	trackers []model.TourniquetTracker
}

func (m *mockTrackerRepo) BatchCreate(_ context.Context, trackers []model.TourniquetTracker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range trackers {
		t.ID = int64(len(m.trackers) + 1)
		m.trackers = append(m.trackers, t)
	}
	return nil
}

func (m *mockTrackerRepo) ListByEmployeeDay(_ context.Context, orgID, employeeID, tableDateID int64) ([]model.TourniquetTracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.TourniquetTracker
	for _, t := range m.trackers {
		if t.OrganizationID == orgID && t.EmployeeID == employeeID && t.TableDateID == tableDateID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *mockTrackerRepo) all() []model.TourniquetTracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TourniquetTracker(nil), m.trackers...)
}

// ── Mock EnrollmentRepository ──

type mockEnrollmentRepo struct {
	mu        sync.Mutex
	recs      map[int64]*model.EmployeeTourniquetData
	nextID    int64
	employees *mockEmployeeRepo
	updateErr error
}

func newMockEnrollmentRepo(employees *mockEmployeeRepo) *mockEnrollmentRepo {
	return &mockEnrollmentRepo{recs: make(map[int64]*model.EmployeeTourniquetData), nextID: 1, employees: employees}
}

func (m *mockEnrollmentRepo) add(orgID, employeeID, deviceID int64, status model.EnrollmentStatus) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &model.EmployeeTourniquetData{
		ID:             m.nextID,
		OrganizationID: orgID,
		EmployeeID:     employeeID,
		TourniquetID:   deviceID,
		Status:         status,
	}
	rec.Version = 1
	m.recs[rec.ID] = rec
	m.nextID++
	return rec.ID
}

func (m *mockEnrollmentRepo) status(id int64) model.EnrollmentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recs[id]; ok {
		return r.Status
	}
	return ""
}

func (m *mockEnrollmentRepo) find(employeeID, deviceID int64) *model.EmployeeTourniquetData {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.EmployeeID == employeeID && r.TourniquetID == deviceID {
			cp := *r
			return &cp
		}
	}
	return nil
}

func (m *mockEnrollmentRepo) copyWithEmployee(r *model.EmployeeTourniquetData) model.EmployeeTourniquetData {
	cp := *r
	if m.employees != nil {
		cp.Employee = m.employees.get(r.EmployeeID)
	}
	return cp
}

func (m *mockEnrollmentRepo) filter(pred func(*model.EmployeeTourniquetData) bool) []model.EmployeeTourniquetData {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.EmployeeTourniquetData
	for _, r := range m.recs {
		if pred(r) {
			result = append(result, m.copyWithEmployee(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *mockEnrollmentRepo) GetByID(_ context.Context, orgID, id int64) (*model.EmployeeTourniquetData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recs[id]; ok && r.OrganizationID == orgID {
		cp := m.copyWithEmployee(r)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEnrollmentRepo) GetByPair(_ context.Context, employeeID, tourniquetID int64) (*model.EmployeeTourniquetData, error) {
	if r := m.find(employeeID, tourniquetID); r != nil {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEnrollmentRepo) ListByDeviceStatuses(_ context.Context, tourniquetID int64, statuses []model.EnrollmentStatus) ([]model.EmployeeTourniquetData, error) {
	return m.filter(func(r *model.EmployeeTourniquetData) bool {
		if r.TourniquetID != tourniquetID {
			return false
		}
		for _, s := range statuses {
			if r.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (m *mockEnrollmentRepo) ListByDevice(_ context.Context, tourniquetID int64) ([]model.EmployeeTourniquetData, error) {
	return m.filter(func(r *model.EmployeeTourniquetData) bool { return r.TourniquetID == tourniquetID }), nil
}

func (m *mockEnrollmentRepo) ListByEmployee(_ context.Context, orgID, employeeID int64) ([]model.EmployeeTourniquetData, error) {
	return m.filter(func(r *model.EmployeeTourniquetData) bool {
		return r.OrganizationID == orgID && r.EmployeeID == employeeID
	}), nil
}

func (m *mockEnrollmentRepo) ListByOrg(_ context.Context, orgID int64) ([]model.EmployeeTourniquetData, error) {
	return m.filter(func(r *model.EmployeeTourniquetData) bool { return r.OrganizationID == orgID }), nil
}

func (m *mockEnrollmentRepo) CreateMissing(_ context.Context, records []model.EmployeeTourniquetData) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var created int64
	for _, nr := range records {
		dup := false
		for _, r := range m.recs {
			if r.EmployeeID == nr.EmployeeID && r.TourniquetID == nr.TourniquetID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		rec := nr
		rec.ID = m.nextID
		rec.Employee = nil
		m.nextID++
		m.recs[rec.ID] = &rec
		created++
	}
	return created, nil
}

func (m *mockEnrollmentRepo) Update(_ context.Context, rec *model.EmployeeTourniquetData) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.recs[rec.ID]
	if !ok || stored.Version != rec.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Status = rec.Status
	stored.LastError = rec.LastError
	stored.LastErrorAt = rec.LastErrorAt
	stored.Version++
	rec.Version = stored.Version
	return nil
}

// ── Mock IngestResultRepository ──

type mockIngestResultRepo struct {
	mu        sync.Mutex
	results   []model.UserTourniquetResult
	createErr error
}

func (m *mockIngestResultRepo) Create(_ context.Context, res *model.UserTourniquetResult) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	res.ID = int64(len(m.results) + 1)
	res.CreatedAt = time.Now()
	m.results = append(m.results, *res)
	return nil
}

func (m *mockIngestResultRepo) List(_ context.Context, orgID int64, status string, offset, limit int) ([]model.UserTourniquetResult, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var filtered []model.UserTourniquetResult
	for _, r := range m.results {
		if r.OrganizationID == nil || *r.OrganizationID != orgID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		filtered = append(filtered, r)
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return []model.UserTourniquetResult{}, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

// ── Mock Transactor ──

// mockTransactor 直接在同一组 mock 上执行回调，记录使用过的锁 key
type mockTransactor struct {
	mu   sync.Mutex
	repo *repository.Repository
	keys []string
}

func (m *mockTransactor) InTx(_ context.Context, fn func(tx *repository.Repository) error) error {
	return fn(m.repo)
}

func (m *mockTransactor) WithSubjectLock(_ context.Context, key string, fn func(tx *repository.Repository) error) error {
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.mu.Unlock()
	return fn(m.repo)
}

// ── Mock Storage ──

type mockStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: make(map[string][]byte)}
}

func (m *mockStorage) Put(_ context.Context, key string, data []byte, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *mockStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.objects[key]; ok {
		return d, nil
	}
	return nil, storage.ErrNotFound
}

// ── 测试仓储装配 ──

type mockRepos struct {
	org        *mockOrgRepo
	employee   *mockEmployeeRepo
	visitor    *mockVisitorRepo
	device     *mockTourniquetRepo
	client     *mockClientRepo
	tableDate  *mockTableDateRepo
	config     *mockWorkingConfigRepo
	event      *mockEventRepo
	tracker    *mockTrackerRepo
	enrollment *mockEnrollmentRepo
	result     *mockIngestResultRepo
	tx         *mockTransactor
}

func newMockRepos() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		org:       newMockOrgRepo(),
		employee:  newMockEmployeeRepo(),
		visitor:   &mockVisitorRepo{},
		device:    newMockTourniquetRepo(),
		client:    &mockClientRepo{clients: make(map[string]*model.TourniquetClient)},
		tableDate: newMockTableDateRepo(),
		config:    &mockWorkingConfigRepo{},
		event:     newMockEventRepo(),
		tracker:   &mockTrackerRepo{},
		result:    &mockIngestResultRepo{},
	}
	m.enrollment = newMockEnrollmentRepo(m.employee)

	repo := &repository.Repository{
		Organization:      m.org,
		Employee:          m.employee,
		Visitor:           m.visitor,
		Tourniquet:        m.device,
		TourniquetClient:  m.client,
		TableDate:         m.tableDate,
		WorkingDateConfig: m.config,
		Event:             m.event,
		Tracker:           m.tracker,
		Enrollment:        m.enrollment,
		IngestResult:      m.result,
	}
	m.tx = &mockTransactor{repo: repo}
	repo.Tx = m.tx
	return repo, m
}

var errMockDB = errors.New("mock db error")

func int64Ptr(v int64) *int64 { return &v }
