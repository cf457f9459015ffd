package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoteldex/hotel-admin/internal/artifact"
	"github.com/hoteldex/hotel-admin/internal/auth"
	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/internal/model"
	"github.com/hoteldex/hotel-admin/internal/permission"
	"github.com/hoteldex/hotel-admin/internal/store"
)

// ---------- fakes ----------

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*model.ExportJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]*model.ExportJob{}}
}

func (f *fakeJobs) Insert(ctx context.Context, job *model.ExportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobs) Get(ctx context.Context, id string) (*model.ExportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, errors.NewDBNotFoundError("job.get", "no rows")
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) GetOwned(ctx context.Context, id string, userID int64) (*model.ExportJob, error) {
	job, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, errors.NewDBNotFoundError("job.get_owned", "no rows")
	}
	return job, nil
}

func (f *fakeJobs) ListOwned(ctx context.Context, userID int64, limit, offset int) ([]*model.ExportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.ExportJob
	for _, job := range f.jobs {
		if job.UserID == userID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeJobs) MarkProcessing(ctx context.Context, id string, totalRecords int64, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status != model.JobPending {
		return errors.NewDBNotFoundError("job.mark_processing", "no pending row")
	}
	job.Status = model.JobProcessing
	job.TotalRecords = totalRecords
	job.StartedAt = &startedAt
	return nil
}

func (f *fakeJobs) UpdateProgress(ctx context.Context, id string, processedRecords int64, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status != model.JobProcessing {
		return errors.NewDBNotFoundError("job.update_progress", "no processing row")
	}
	if processedRecords > job.ProcessedRecords {
		job.ProcessedRecords = processedRecords
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	return nil
}

func (f *fakeJobs) MarkCompleted(ctx context.Context, id, filePath string, fileSize int64, completedAt, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status != model.JobProcessing {
		return errors.NewDBNotFoundError("job.mark_completed", "no processing row")
	}
	job.Status = model.JobCompleted
	job.Progress = 100
	job.ProcessedRecords = job.TotalRecords
	job.FilePath = &filePath
	job.FileSize = &fileSize
	job.ErrorMessage = nil
	job.CompletedAt = &completedAt
	job.ExpiresAt = &expiresAt
	return nil
}

func (f *fakeJobs) MarkFailed(ctx context.Context, id, errorMessage string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status.Terminal() {
		return errors.NewDBNotFoundError("job.mark_failed", "no active row")
	}
	job.Status = model.JobFailed
	job.ErrorMessage = &errorMessage
	job.FilePath = nil
	job.FileSize = nil
	job.CompletedAt = &completedAt
	return nil
}

func (f *fakeJobs) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]*model.ExportJob, error) {
	return nil, nil
}

func (f *fakeJobs) ClearArtifact(ctx context.Context, id string) error { return nil }

type fakeCatalog struct {
	estimate      int64
	batches       []*model.Batch
	failAt        int // fail Next after this many batches; 0 disables
	buildCalls    int
	estimateCalls int
	lastAllowed   []string
}

func (f *fakeCatalog) BuildQuery(kind model.Kind, filter model.FilterSpec, allowed []string) (*store.ScopedQuery, error) {
	f.buildCalls++
	f.lastAllowed = allowed
	return &store.ScopedQuery{Kind: kind, Where: "source_id = ANY($1)", Args: []any{allowed}}, nil
}

func (f *fakeCatalog) EstimateCount(ctx context.Context, q *store.ScopedQuery) (int64, error) {
	f.estimateCalls++
	return f.estimate, nil
}

func (f *fakeCatalog) Stream(ctx context.Context, q *store.ScopedQuery, batchSize int) (store.BatchIterator, error) {
	return &fakeIterator{batches: f.batches, failAt: f.failAt}, nil
}

type fakeIterator struct {
	batches []*model.Batch
	failAt  int
	served  int
}

func (it *fakeIterator) Next(ctx context.Context) (*model.Batch, error) {
	if it.failAt > 0 && it.served == it.failAt {
		return nil, fmt.Errorf("pq: connection reset by peer")
	}
	if it.served >= len(it.batches) {
		return nil, nil
	}
	b := it.batches[it.served]
	it.served++
	return b, nil
}

func (it *fakeIterator) Close() {}

type fakeSources struct {
	all      []string
	disabled []string
	grants   map[int64][]string
}

func (f *fakeSources) All(ctx context.Context) ([]string, error)      { return f.all, nil }
func (f *fakeSources) Disabled(ctx context.Context) ([]string, error) { return f.disabled, nil }
func (f *fakeSources) Granted(ctx context.Context, userID int64) ([]string, error) {
	return f.grants[userID], nil
}

type fakeCache struct {
	mu       sync.Mutex
	tasks    []model.ExportTask
	statuses map[string]model.JobState
	pushErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{statuses: map[string]model.JobState{}}
}

func (f *fakeCache) PushExportTask(ctx context.Context, task model.ExportTask) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeCache) PopExportTask(ctx context.Context, timeout time.Duration) (*model.ExportTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tasks) == 0 {
		return nil, nil
	}
	task := f.tasks[0]
	f.tasks = f.tasks[1:]
	return &task, nil
}

func (f *fakeCache) SetJobStatus(ctx context.Context, jobID string, state model.JobState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[jobID] = state
	return nil
}

func (f *fakeCache) GetJobStatus(ctx context.Context, jobID string) (*model.JobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.statuses[jobID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (f *fakeCache) Close() error { return nil }

type charge struct {
	userID  int64
	kind    model.Kind
	records int64
}

type fakeBilling struct {
	mu      sync.Mutex
	charges []charge
}

func (f *fakeBilling) ChargeExport(ctx context.Context, userID int64, kind model.Kind, records int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges = append(f.charges, charge{userID, kind, records})
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (f *fakeAudit) RecordExport(ctx context.Context, event AuditEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

// ---------- fixtures ----------

type fixture struct {
	jobs    *fakeJobs
	catalog *fakeCatalog
	cache   *fakeCache
	billing *fakeBilling
	audit   *fakeAudit
	orch    *Orchestrator
}

func newFixture(t *testing.T, catalog *fakeCatalog, sources *fakeSources, opts Options) *fixture {
	t.Helper()
	artifacts, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		jobs:    newFakeJobs(),
		catalog: catalog,
		cache:   newFakeCache(),
		billing: &fakeBilling{},
		audit:   &fakeAudit{},
	}
	f.orch = NewOrchestrator(
		f.jobs, f.catalog,
		permission.NewResolver(sources),
		f.cache, artifacts,
		f.billing, f.audit, nil, opts,
	)
	return f
}

func summaryRow(id int64, source, rating string) model.Row {
	return model.Row{
		ID:    id,
		Cells: []string{source, "10", "5", "3", rating},
		Doc:   map[string]any{"source": source},
	}
}

func summaryBatches(rows ...model.Row) []*model.Batch {
	return []*model.Batch{{Rows: rows}}
}

func adminSession(t *testing.T) *auth.Session {
	t.Helper()
	sess, err := auth.NewSession(42, auth.RoleAdmin)
	require.NoError(t, err)
	return sess
}

func viewerSession(t *testing.T, id int64) *auth.Session {
	t.Helper()
	sess, err := auth.NewSession(id, auth.RoleViewer)
	require.NoError(t, err)
	return sess
}

func summaryRequest() SubmitRequest {
	return SubmitRequest{Kind: model.KindSupplierSummary, Format: model.FormatCSV}
}

// ---------- submit ----------

func TestSubmitBelowThresholdRunsInline(t *testing.T) {
	catalog := &fakeCatalog{
		estimate: 2,
		batches:  summaryBatches(summaryRow(1, "booking", "4.2"), summaryRow(2, "expedia", "3.9")),
	}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking", "expedia"}}, Options{})

	res, err := f.orch.Submit(context.Background(), adminSession(t), summaryRequest())
	require.NoError(t, err)
	require.NotNil(t, res.Artifact)
	assert.Nil(t, res.Job)

	assert.Equal(t, int64(2), res.Artifact.Records)
	assert.Contains(t, string(res.Artifact.Data), "booking")
	assert.True(t, strings.HasSuffix(res.Artifact.FileName, ".csv"))

	assert.Empty(t, f.cache.tasks, "sync export must not enqueue a task")
	assert.Empty(t, f.jobs.jobs, "sync export must not create a job record")
	require.Len(t, f.billing.charges, 1)
	assert.Equal(t, charge{42, model.KindSupplierSummary, 2}, f.billing.charges[0])
}

func TestSubmitJustBelowThresholdStaysInline(t *testing.T) {
	catalog := &fakeCatalog{estimate: 4999}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking"}}, Options{})

	res, err := f.orch.Submit(context.Background(), adminSession(t), summaryRequest())
	require.NoError(t, err)
	require.NotNil(t, res.Artifact, "estimate below the threshold runs inline")
	assert.Zero(t, res.Artifact.Records, "estimate is advisory; the stream had no rows")
	assert.Empty(t, f.jobs.jobs)
}

func TestSubmitAtThresholdQueuesJob(t *testing.T) {
	catalog := &fakeCatalog{estimate: 5000}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking"}}, Options{})

	res, err := f.orch.Submit(context.Background(), adminSession(t), summaryRequest())
	require.NoError(t, err)
	require.NotNil(t, res.Job)
	assert.Nil(t, res.Artifact)

	job := res.Job
	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, int64(5000), job.TotalRecords)
	assert.NotEmpty(t, job.ID)

	require.Len(t, f.cache.tasks, 1)
	assert.Equal(t, job.ID, f.cache.tasks[0].JobID)
	assert.Equal(t, model.JobState{UserID: job.UserID, Status: model.JobPending}, f.cache.statuses[job.ID])
	assert.Empty(t, f.billing.charges, "queueing is not billable")
}

func TestSubmitRejectsOversizeEstimate(t *testing.T) {
	catalog := &fakeCatalog{estimate: 100001}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking"}}, Options{})

	_, err := f.orch.Submit(context.Background(), adminSession(t), summaryRequest())
	require.Error(t, err)
	assert.Equal(t, 400, errors.Code(err))
	assert.Empty(t, f.jobs.jobs)
	assert.Empty(t, f.cache.tasks)
}

func TestSubmitDeniesCallerWithoutSources(t *testing.T) {
	catalog := &fakeCatalog{estimate: 10}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking"}}, Options{})

	_, err := f.orch.Submit(context.Background(), viewerSession(t, 9), summaryRequest())
	require.Error(t, err)
	assert.Equal(t, 403, errors.Code(err))
	assert.Zero(t, catalog.buildCalls, "denial must precede any catalog access")
	assert.Zero(t, catalog.estimateCalls)
}

func TestSubmitDeniesRequestedForeignSource(t *testing.T) {
	catalog := &fakeCatalog{estimate: 10}
	f := newFixture(t, catalog, &fakeSources{
		all:    []string{"booking", "expedia"},
		grants: map[int64][]string{7: {"booking"}},
	}, Options{})

	sess, err := auth.NewSession(7, auth.RoleManager)
	require.NoError(t, err)

	req := summaryRequest()
	req.Filter.Sources = []string{"booking", "expedia"}
	_, err = f.orch.Submit(context.Background(), sess, req)
	require.Error(t, err)
	assert.Equal(t, 403, errors.Code(err))
	assert.Zero(t, catalog.buildCalls)
}

func TestSubmitScopesQueryToGrantedSources(t *testing.T) {
	catalog := &fakeCatalog{estimate: 1, batches: summaryBatches(summaryRow(1, "booking", "4.0"))}
	f := newFixture(t, catalog, &fakeSources{
		all:    []string{"booking", "expedia"},
		grants: map[int64][]string{7: {"booking"}},
	}, Options{})

	sess, err := auth.NewSession(7, auth.RoleManager)
	require.NoError(t, err)

	_, err = f.orch.Submit(context.Background(), sess, summaryRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"booking"}, catalog.lastAllowed)
}

func TestSubmitRejectsUnknownKindAndFormat(t *testing.T) {
	f := newFixture(t, &fakeCatalog{}, &fakeSources{all: []string{"booking"}}, Options{})

	_, err := f.orch.Submit(context.Background(), adminSession(t), SubmitRequest{
		Kind: "payroll", Format: model.FormatCSV,
	})
	assert.Equal(t, 400, errors.Code(err))

	_, err = f.orch.Submit(context.Background(), adminSession(t), SubmitRequest{
		Kind: model.KindHotels, Format: "parquet",
	})
	assert.Equal(t, 400, errors.Code(err))
}

func TestSubmitFailsJobWhenQueueUnavailable(t *testing.T) {
	catalog := &fakeCatalog{estimate: 9000}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking"}}, Options{})
	f.cache.pushErr = fmt.Errorf("redis gone")

	_, err := f.orch.Submit(context.Background(), adminSession(t), summaryRequest())
	require.Error(t, err)

	require.Len(t, f.jobs.jobs, 1)
	for _, job := range f.jobs.jobs {
		assert.Equal(t, model.JobFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
	}
}

// ---------- process ----------

func startedJob(t *testing.T, f *fixture, sess *auth.Session, req SubmitRequest) *model.ExportTask {
	t.Helper()
	res, err := f.orch.Submit(context.Background(), sess, req)
	require.NoError(t, err)
	require.NotNil(t, res.Job)
	task, err := f.cache.PopExportTask(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func TestProcessCompletesJob(t *testing.T) {
	catalog := &fakeCatalog{
		estimate: 6000,
		batches: summaryBatches(
			summaryRow(1, "booking", "4.2"),
			summaryRow(2, "expedia", "3.9"),
			summaryRow(3, "agoda", "4.8"),
		),
	}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking", "expedia", "agoda"}},
		Options{Retention: time.Hour})

	sess := adminSession(t)
	task := startedJob(t, f, sess, summaryRequest())

	require.NoError(t, f.orch.Process(context.Background(), task))

	job, err := f.jobs.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.FilePath)
	require.NotNil(t, job.FileSize)
	assert.Nil(t, job.ErrorMessage)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.ExpiresAt)
	assert.Equal(t, job.CompletedAt.Add(time.Hour), *job.ExpiresAt)

	data, err := os.ReadFile(*job.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "booking")
	assert.Equal(t, int64(len(data)), *job.FileSize)

	assert.Equal(t, model.JobState{UserID: task.UserID, Status: model.JobCompleted}, f.cache.statuses[task.JobID])
	require.Len(t, f.billing.charges, 1)
	assert.Equal(t, int64(3), f.billing.charges[0].records)

	require.NotEmpty(t, f.audit.events)
	last := f.audit.events[len(f.audit.events)-1]
	assert.Equal(t, OutcomeCompleted, last.Outcome)
	assert.Equal(t, ModeAsync, last.Mode)
}

func TestProcessStreamFailureLeavesFailedJob(t *testing.T) {
	catalog := &fakeCatalog{
		estimate: 6000,
		batches: []*model.Batch{
			{Rows: []model.Row{summaryRow(1, "booking", "4.2")}},
			{Rows: []model.Row{summaryRow(2, "expedia", "3.9")}},
		},
		failAt: 1,
	}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking", "expedia"}}, Options{})

	task := startedJob(t, f, adminSession(t), summaryRequest())
	require.Error(t, f.orch.Process(context.Background(), task))

	job, err := f.jobs.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Nil(t, job.FilePath, "failed job must not reference an artifact")
	require.NotNil(t, job.ErrorMessage)
	assert.NotContains(t, *job.ErrorMessage, "pq:", "raw driver errors must not leak to callers")

	assert.Empty(t, f.billing.charges, "failed exports are not billable")
	assert.Equal(t, model.JobFailed, f.cache.statuses[task.JobID].Status)
}

func TestProcessRevokedPermissionsFailJob(t *testing.T) {
	catalog := &fakeCatalog{estimate: 6000}
	sources := &fakeSources{all: []string{"booking"}, grants: map[int64][]string{7: {"booking"}}}
	f := newFixture(t, catalog, sources, Options{})

	sess, err := auth.NewSession(7, auth.RoleManager)
	require.NoError(t, err)
	task := startedJob(t, f, sess, summaryRequest())

	// Grant revoked between submit and pickup.
	sources.grants = map[int64][]string{}

	require.Error(t, f.orch.Process(context.Background(), task))
	job, err := f.jobs.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "no permitted data sources")
}

func TestProcessSkipsAlreadyClaimedJob(t *testing.T) {
	catalog := &fakeCatalog{estimate: 6000, batches: summaryBatches(summaryRow(1, "booking", "4.0"))}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking"}}, Options{})

	task := startedJob(t, f, adminSession(t), summaryRequest())
	require.NoError(t, f.orch.Process(context.Background(), task))

	// A second delivery of the same task is a no-op.
	require.NoError(t, f.orch.Process(context.Background(), task))
	job, err := f.jobs.Get(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Len(t, f.billing.charges, 1)
}

// ---------- status / download ----------

func TestStatusOwnershipIsolation(t *testing.T) {
	catalog := &fakeCatalog{estimate: 6000}
	f := newFixture(t, catalog, &fakeSources{
		all:    []string{"booking"},
		grants: map[int64][]string{7: {"booking"}},
	}, Options{})

	sess, err := auth.NewSession(7, auth.RoleManager)
	require.NoError(t, err)
	res, err := f.orch.Submit(context.Background(), sess, summaryRequest())
	require.NoError(t, err)

	// The owner and a privileged caller see the job.
	_, err = f.orch.Status(context.Background(), sess, res.Job.ID)
	assert.NoError(t, err)
	_, err = f.orch.Status(context.Background(), adminSession(t), res.Job.ID)
	assert.NoError(t, err)

	// A stranger gets not-found, never forbidden.
	other, err := auth.NewSession(8, auth.RoleManager)
	require.NoError(t, err)
	_, err = f.orch.Status(context.Background(), other, res.Job.ID)
	assert.Equal(t, 404, errors.Code(err))
}

func TestStateServedFromMirror(t *testing.T) {
	f := newFixture(t, &fakeCatalog{}, &fakeSources{all: []string{"booking"}}, Options{})
	f.cache.statuses["job-x"] = model.JobState{UserID: 7, Status: model.JobProcessing}

	st, err := f.orch.State(context.Background(), viewerSession(t, 7), "job-x")
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, st)

	st, err = f.orch.State(context.Background(), adminSession(t), "job-x")
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, st)
}

func TestStateOwnershipIsolation(t *testing.T) {
	catalog := &fakeCatalog{estimate: 6000}
	f := newFixture(t, catalog, &fakeSources{
		all:    []string{"booking"},
		grants: map[int64][]string{7: {"booking"}},
	}, Options{})

	sess, err := auth.NewSession(7, auth.RoleManager)
	require.NoError(t, err)
	res, err := f.orch.Submit(context.Background(), sess, summaryRequest())
	require.NoError(t, err)

	// A mirror hit must not leak a foreign job's status.
	other, err := auth.NewSession(8, auth.RoleManager)
	require.NoError(t, err)
	_, err = f.orch.State(context.Background(), other, res.Job.ID)
	assert.Equal(t, 404, errors.Code(err))

	// Same answer on the database fallback path.
	delete(f.cache.statuses, res.Job.ID)
	_, err = f.orch.State(context.Background(), other, res.Job.ID)
	assert.Equal(t, 404, errors.Code(err))

	st, err := f.orch.State(context.Background(), sess, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, st)
}

func TestDownloadLifecycle(t *testing.T) {
	catalog := &fakeCatalog{estimate: 6000, batches: summaryBatches(summaryRow(1, "booking", "4.0"))}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking"}}, Options{Retention: time.Hour})

	sess := adminSession(t)
	task := startedJob(t, f, sess, summaryRequest())

	// Not downloadable while pending.
	_, _, err := f.orch.Download(context.Background(), sess, task.JobID)
	assert.Equal(t, 400, errors.Code(err))

	require.NoError(t, f.orch.Process(context.Background(), task))

	rc, job, err := f.orch.Download(context.Background(), sess, task.JobID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Contains(t, string(data), "booking")
	assert.Equal(t, model.FormatCSV, job.Format)

	// Push the expiry into the past: the artifact is gone for callers.
	f.jobs.mu.Lock()
	past := time.Now().Add(-time.Minute)
	f.jobs.jobs[task.JobID].ExpiresAt = &past
	f.jobs.mu.Unlock()

	_, _, err = f.orch.Download(context.Background(), sess, task.JobID)
	assert.Equal(t, 410, errors.Code(err))
}

func TestDownloadFailedJob(t *testing.T) {
	catalog := &fakeCatalog{
		estimate: 6000,
		batches:  []*model.Batch{{Rows: []model.Row{summaryRow(1, "booking", "4.0")}}},
		failAt:   1,
	}
	f := newFixture(t, catalog, &fakeSources{all: []string{"booking"}}, Options{})

	sess := adminSession(t)
	task := startedJob(t, f, sess, summaryRequest())
	require.Error(t, f.orch.Process(context.Background(), task))

	_, _, err := f.orch.Download(context.Background(), sess, task.JobID)
	assert.Equal(t, 400, errors.Code(err))
}
