package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambuplan/core/model"
	"ambuplan/core/scheduler"
	coretasks "ambuplan/core/tasks"
)

type fakeService struct {
	schedule    *model.Schedule
	runErr      error
	task        coretasks.Task
	submitErr   error
	taskErr     error
	gotAlg      scheduler.Algorithm
	gotCfg      scheduler.Config
	gotFleet    []model.Vehicle
	gotBookings []model.Booking
	gotTaskID   string
}

func (f *fakeService) RunSchedule(_ context.Context, fleet []model.Vehicle, bookings []model.Booking, alg scheduler.Algorithm, cfg scheduler.Config) (*model.Schedule, error) {
	f.gotFleet, f.gotBookings, f.gotAlg, f.gotCfg = fleet, bookings, alg, cfg
	return f.schedule, f.runErr
}

func (f *fakeService) SubmitSchedule(_ context.Context, fleet []model.Vehicle, bookings []model.Booking, alg scheduler.Algorithm, cfg scheduler.Config) (coretasks.Task, error) {
	f.gotFleet, f.gotBookings, f.gotAlg, f.gotCfg = fleet, bookings, alg, cfg
	return f.task, f.submitErr
}

func (f *fakeService) Task(_ context.Context, id string) (coretasks.Task, error) {
	f.gotTaskID = id
	return f.task, f.taskErr
}

func sampleRequest() ScheduleRequest {
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	return ScheduleRequest{
		Vehicles: []VehicleDTO{{
			ID:            "veh-1",
			Seats:         SeatsDTO{Regular: 3, Wheelchair: 1},
			HourlyRate:    100,
			StartLocation: "depot",
			StartTime:     day.Add(8 * time.Hour),
		}},
		Bookings: []BookingDTO{{
			ID:              "b-1",
			PickupTime:      day.Add(9 * time.Hour),
			PickupLocation:  "clinic",
			DropoffLocation: "home",
			RequiredSeats:   SeatsDTO{Regular: 1},
		}},
	}
}

func sampleSchedule() *model.Schedule {
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	return &model.Schedule{
		Trips: []model.Trip{{
			VehicleID: "veh-1",
			Stops: []model.Stop{
				{BookingID: "b-1", Role: model.RolePickup, Location: "clinic", At: day.Add(9 * time.Hour), Depart: day.Add(9*time.Hour + 5*time.Minute)},
				{BookingID: "b-1", Role: model.RoleDropoff, Location: "home", At: day.Add(9*time.Hour + 15*time.Minute), Depart: day.Add(9*time.Hour + 20*time.Minute)},
			},
		}},
		Unassigned: []model.Unassigned{{BookingID: "b-2", Reason: model.ReasonCapacity}},
		TotalCost:  133.33,
		Status:     model.StatusFeasible,
		Algorithm:  string(scheduler.AlgorithmGreedy),
	}
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScheduleSync(t *testing.T) {
	svc := &fakeService{schedule: sampleSchedule()}
	h := NewHandler(svc, scheduler.Config{ChainBookings: true}, nil).Router()

	rec := postJSON(t, h, "/api/schedule", sampleRequest())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 133.33, resp.TotalCost, 1e-9)
	assert.Equal(t, "FEASIBLE", resp.Status)
	require.Len(t, resp.Schedules, 1)
	assert.Equal(t, "veh-1", resp.Schedules[0].VehicleID)
	require.Len(t, resp.Schedules[0].Bookings, 1)
	got := resp.Schedules[0].Bookings[0]
	assert.Equal(t, "b-1", got.BookingID)
	assert.Equal(t, "clinic", got.PickupLocation)
	assert.Equal(t, "home", got.DropoffLocation)
	assert.True(t, got.DropoffTime.After(got.StartTime))
	require.Len(t, resp.Unassigned, 1)
	assert.Equal(t, "CAPACITY", resp.Unassigned[0].Reason)

	assert.Equal(t, scheduler.AlgorithmGreedy, svc.gotAlg)
	assert.True(t, svc.gotCfg.ChainBookings)
	assert.Equal(t, scheduler.ObjectiveDuration, svc.gotCfg.Objective)
	require.Len(t, svc.gotFleet, 1)
	assert.Equal(t, model.NewSeatVector(3, 1, 0), svc.gotFleet[0].Capacity)
}

func TestScheduleRequestOverrides(t *testing.T) {
	svc := &fakeService{schedule: sampleSchedule()}
	h := NewHandler(svc, scheduler.Config{}, nil).Router()

	off := false
	req := sampleRequest()
	req.Algorithm = "or_tools"
	req.BeforePickupTime = 600
	req.AfterPickupTime = 1200
	req.PickupLoadingTime = 180
	req.DropoffUnloadingTime = 240
	req.Optimization = &OptimizationDTO{
		ChainBookingsForSamePassenger: &off,
		MinimizeVehicles:              true,
	}

	rec := postJSON(t, h, "/api/schedule", req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, scheduler.AlgorithmConstraint, svc.gotAlg)
	assert.Equal(t, 10*time.Minute, svc.gotCfg.WindowBefore)
	assert.Equal(t, 20*time.Minute, svc.gotCfg.WindowAfter)
	assert.Equal(t, 3*time.Minute, svc.gotCfg.DefaultLoad)
	assert.Equal(t, 4*time.Minute, svc.gotCfg.DefaultUnload)
	assert.False(t, svc.gotCfg.ChainBookings)
	assert.Equal(t, scheduler.ObjectiveVehicles, svc.gotCfg.Objective)
}

func TestScheduleChainingFollowsServerConfig(t *testing.T) {
	svc := &fakeService{schedule: sampleSchedule()}
	h := NewHandler(svc, scheduler.Config{ChainBookings: false}, nil).Router()

	rec := postJSON(t, h, "/api/schedule", sampleRequest())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.gotCfg.ChainBookings)

	on := true
	req := sampleRequest()
	req.Optimization = &OptimizationDTO{ChainBookingsForSamePassenger: &on}
	rec = postJSON(t, h, "/api/schedule", req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.gotCfg.ChainBookings)
}

func TestScheduleRejectsBadPayloads(t *testing.T) {
	svc := &fakeService{schedule: sampleSchedule()}
	h := NewHandler(svc, scheduler.Config{}, nil).Router()

	req := httptest.NewRequest(http.MethodPost, "/api/schedule", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := sampleRequest()
	bad.Algorithm = "simulated-annealing"
	rec = postJSON(t, h, "/api/schedule", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	get := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestScheduleErrorMapping(t *testing.T) {
	svc := &fakeService{runErr: &scheduler.ValidationError{ID: "veh-1", Msg: "zero seat capacity"}}
	h := NewHandler(svc, scheduler.Config{}, nil).Router()

	rec := postJSON(t, h, "/api/schedule", sampleRequest())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Message, "veh-1")

	svc.runErr = &scheduler.InvariantError{VehicleID: "veh-1", Msg: "capacity exceeded"}
	rec = postJSON(t, h, "/api/schedule", sampleRequest())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestScheduleAsync(t *testing.T) {
	svc := &fakeService{task: coretasks.Task{ID: "task-1", Status: coretasks.StatusPending}}
	h := NewHandler(svc, scheduler.Config{}, nil).Router()

	rec := postJSON(t, h, "/api/schedule/async", sampleRequest())
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp CreateTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, "PENDING", resp.TaskStatus)
}

func TestScheduleAsyncQueueFull(t *testing.T) {
	svc := &fakeService{submitErr: coretasks.ErrQueueFull}
	h := NewHandler(svc, scheduler.Config{}, nil).Router()

	rec := postJSON(t, h, "/api/schedule/async", sampleRequest())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTaskPoll(t *testing.T) {
	svc := &fakeService{task: coretasks.Task{
		ID:     "task-1",
		Status: coretasks.StatusCompleted,
		Result: sampleSchedule(),
	}}
	h := NewHandler(svc, scheduler.Config{}, nil).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/task-1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "task-1", svc.gotTaskID)

	var env struct {
		Status string  `json:"status"`
		Data   TaskDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "COMPLETED", env.Data.TaskStatus)
	require.NotNil(t, env.Data.Result)
	assert.InDelta(t, 133.33, env.Data.Result.TotalCost, 1e-9)
}

func TestTaskPollFailedTask(t *testing.T) {
	svc := &fakeService{task: coretasks.Task{
		ID:     "task-2",
		Status: coretasks.StatusFailed,
		Error:  "fleet is empty",
	}}
	h := NewHandler(svc, scheduler.Config{}, nil).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/task-2", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "fleet is empty", env.Message)
}

func TestTaskPollNotFound(t *testing.T) {
	svc := &fakeService{taskErr: coretasks.ErrNotFound}
	h := NewHandler(svc, scheduler.Config{}, nil).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := NewHandler(&fakeService{}, scheduler.Config{}, nil).Router()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
