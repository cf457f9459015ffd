// Package export implements the content export engine: permission
// resolution, sync-or-async routing, streaming execution and artifact
// bookkeeping.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hoteldex/hotel-admin/internal/artifact"
	"github.com/hoteldex/hotel-admin/internal/auth"
	"github.com/hoteldex/hotel-admin/internal/cache"
	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/internal/export/writer"
	"github.com/hoteldex/hotel-admin/internal/metrics"
	"github.com/hoteldex/hotel-admin/internal/model"
	"github.com/hoteldex/hotel-admin/internal/permission"
	"github.com/hoteldex/hotel-admin/internal/store"
)

// Options tune the orchestrator. Zero values fall back to the defaults
// below.
type Options struct {
	// BatchSize is the number of rows fetched per streaming batch.
	BatchSize int
	// AsyncThreshold routes exports with an estimate at or above it to a
	// background job.
	AsyncThreshold int64
	// MaxRecords is the hard ceiling; larger estimates are rejected.
	MaxRecords int64
	// Retention is how long a completed artifact stays downloadable.
	Retention time.Duration
}

const (
	defaultBatchSize      = 1000
	defaultAsyncThreshold = 5000
	defaultMaxRecords     = 100000
	defaultRetention      = 72 * time.Hour
)

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.AsyncThreshold <= 0 {
		o.AsyncThreshold = defaultAsyncThreshold
	}
	if o.MaxRecords <= 0 {
		o.MaxRecords = defaultMaxRecords
	}
	if o.Retention <= 0 {
		o.Retention = defaultRetention
	}
	return o
}

// SubmitRequest is one validated export submission.
type SubmitRequest struct {
	Kind   model.Kind
	Format model.Format
	Filter model.FilterRequest
}

// SyncArtifact is the inline result of a small export.
type SyncArtifact struct {
	FileName string
	MIME     string
	Records  int64
	Data     []byte
}

// SubmitResult carries exactly one of Artifact (sync path) or Job
// (async path).
type SubmitResult struct {
	Artifact *SyncArtifact
	Job      *model.ExportJob
}

// Orchestrator routes export submissions, executes queued jobs and
// serves status and download lookups.
type Orchestrator struct {
	jobs      store.JobStore
	catalog   store.CatalogStore
	perms     *permission.Resolver
	queue     cache.Cache
	artifacts *artifact.Store
	billing   BillingLedger
	audit     AuditSink
	metrics   *metrics.Metrics
	opts      Options
	log       *slog.Logger
}

func NewOrchestrator(
	jobs store.JobStore,
	catalog store.CatalogStore,
	perms *permission.Resolver,
	queue cache.Cache,
	artifacts *artifact.Store,
	billing BillingLedger,
	audit AuditSink,
	m *metrics.Metrics,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		jobs:      jobs,
		catalog:   catalog,
		perms:     perms,
		queue:     queue,
		artifacts: artifacts,
		billing:   billing,
		audit:     audit,
		metrics:   m,
		opts:      opts.withDefaults(),
		log:       slog.Default().With("component", "export.orchestrator"),
	}
}

// Submit validates the request, resolves permissions and either runs the
// export inline or enqueues a background job. Permission failures are
// reported before any catalog query runs.
func (o *Orchestrator) Submit(ctx context.Context, sess *auth.Session, req SubmitRequest) (*SubmitResult, error) {
	if _, err := model.ParseKind(string(req.Kind)); err != nil {
		return nil, errors.Validation(err.Error(), errors.WithID("export.submit.invalid_kind"))
	}
	if _, err := model.ParseFormat(string(req.Format)); err != nil {
		return nil, errors.Validation(err.Error(), errors.WithID("export.submit.invalid_format"))
	}
	spec, err := req.Filter.Spec()
	if err != nil {
		return nil, errors.Validation(err.Error(), errors.WithID("export.submit.invalid_filter"))
	}
	criteria, err := json.Marshal(req.Filter)
	if err != nil {
		return nil, errors.Internal("unable to serialize export criteria", errors.WithCause(err))
	}

	res, err := o.perms.Resolve(ctx, sess, spec.RequestedSources())
	if err != nil {
		return nil, errors.Internal("unable to resolve source permissions", errors.WithCause(err))
	}
	if len(res.Denied) > 0 {
		return nil, errors.Forbidden("access denied for requested data sources",
			errors.WithID("export.submit.denied_sources"))
	}
	if len(res.Allowed) == 0 {
		return nil, errors.Forbidden("no permitted data sources for this export",
			errors.WithID("export.submit.no_allowed_sources"))
	}

	q, err := o.catalog.BuildQuery(req.Kind, spec, res.Allowed)
	if err != nil {
		return nil, errors.Validation(err.Error(), errors.WithID("export.submit.invalid_query"))
	}
	estimate, err := o.catalog.EstimateCount(ctx, q)
	if err != nil {
		return nil, errors.Internal("unable to estimate export size", errors.WithCause(err))
	}
	if estimate > o.opts.MaxRecords {
		return nil, errors.Validation(
			"export exceeds the maximum record count; narrow the filters or export in slices",
			errors.WithID("export.submit.too_large"))
	}

	if estimate < o.opts.AsyncThreshold {
		art, err := o.runSync(ctx, sess, req, q, criteria, estimate)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{Artifact: art}, nil
	}

	job, err := o.enqueue(ctx, sess, req, criteria, estimate)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Job: job}, nil
}

func (o *Orchestrator) runSync(ctx context.Context, sess *auth.Session, req SubmitRequest, q *store.ScopedQuery, criteria json.RawMessage, estimate int64) (*SyncArtifact, error) {
	now := time.Now().UTC()
	if o.metrics != nil {
		o.metrics.ExportsStarted.WithLabelValues(string(req.Kind), string(req.Format), ModeSync).Inc()
	}

	it, err := o.catalog.Stream(ctx, q, o.opts.BatchSize)
	if err != nil {
		o.finishMetrics(req.Kind, req.Format, ModeSync, OutcomeFailed)
		return nil, errors.Internal("unable to start export stream", errors.WithCause(err))
	}
	defer it.Close()

	w, err := writer.For(req.Format, model.SchemaFor(req.Kind))
	if err != nil {
		o.finishMetrics(req.Kind, req.Format, ModeSync, OutcomeFailed)
		return nil, errors.Internal("unable to initialize export writer", errors.WithCause(err))
	}

	src := &countingSource{it: it, metrics: o.metrics}
	var buf bytes.Buffer
	meta := writer.Metadata{
		Kind:         req.Kind,
		GeneratedAt:  now,
		RequestedBy:  sess.UserID(),
		Criteria:     criteria,
		TotalRecords: estimate,
	}
	if _, err := w.Write(ctx, src, &buf, meta); err != nil {
		o.finishMetrics(req.Kind, req.Format, ModeSync, OutcomeFailed)
		o.recordAudit(ctx, AuditEvent{
			UserID: sess.UserID(), Kind: req.Kind, Format: req.Format,
			Mode: ModeSync, Outcome: OutcomeFailed, Detail: err.Error(),
		})
		return nil, errors.Internal("export failed", errors.WithCause(err))
	}

	o.charge(ctx, sess.UserID(), req.Kind, src.processed)
	o.finishMetrics(req.Kind, req.Format, ModeSync, OutcomeCompleted)
	o.recordAudit(ctx, AuditEvent{
		UserID: sess.UserID(), Kind: req.Kind, Format: req.Format,
		Mode: ModeSync, Outcome: OutcomeCompleted,
	})
	o.log.Info("hotel_admin.export.sync_completed",
		"user_id", sess.UserID(), "kind", req.Kind, "format", req.Format,
		"records", src.processed, "bytes", buf.Len())

	name := string(req.Kind) + "-" + now.Format("20060102T150405Z") + "." + req.Format.Extension()
	return &SyncArtifact{
		FileName: name,
		MIME:     req.Format.MIME(),
		Records:  src.processed,
		Data:     buf.Bytes(),
	}, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, sess *auth.Session, req SubmitRequest, criteria json.RawMessage, estimate int64) (*model.ExportJob, error) {
	now := time.Now().UTC()
	job := &model.ExportJob{
		ID:           uuid.NewString(),
		UserID:       sess.UserID(),
		Kind:         req.Kind,
		Format:       req.Format,
		Criteria:     criteria,
		Status:       model.JobPending,
		TotalRecords: estimate,
		CreatedAt:    now,
	}
	if err := o.jobs.Insert(ctx, job); err != nil {
		return nil, errors.Internal("unable to create export job", errors.WithCause(err))
	}

	task := model.ExportTask{
		JobID:    job.ID,
		UserID:   sess.UserID(),
		Role:     sess.Role(),
		Kind:     req.Kind,
		Format:   req.Format,
		Criteria: criteria,
	}
	if err := o.queue.PushExportTask(ctx, task); err != nil {
		// The record exists but no worker will ever pick it up.
		if ferr := o.jobs.MarkFailed(ctx, job.ID, "export could not be queued", time.Now().UTC()); ferr != nil {
			o.log.Error("failed to mark unqueued job as failed", "job_id", job.ID, "error", ferr)
		}
		return nil, errors.Internal("unable to queue export job", errors.WithCause(err))
	}
	o.mirrorStatus(ctx, job.ID, sess.UserID(), model.JobPending)

	if o.metrics != nil {
		o.metrics.ExportsStarted.WithLabelValues(string(req.Kind), string(req.Format), ModeAsync).Inc()
	}
	o.log.Info("hotel_admin.export.job_queued",
		"job_id", job.ID, "user_id", sess.UserID(), "kind", req.Kind,
		"format", req.Format, "estimate", estimate)
	return job, nil
}

// Process executes one queued task. Workers call it; any failure leaves
// the job failed with a caller-safe message and no artifact.
func (o *Orchestrator) Process(ctx context.Context, task *model.ExportTask) error {
	log := o.log.With("job_id", task.JobID)

	sess, err := auth.NewSession(task.UserID, task.Role)
	if err != nil {
		return o.fail(ctx, task, errors.Internal("export task carries no valid session", errors.WithCause(err)))
	}
	var filter model.FilterRequest
	if err := json.Unmarshal(task.Criteria, &filter); err != nil {
		return o.fail(ctx, task, errors.Internal("export criteria are unreadable", errors.WithCause(err)))
	}
	spec, err := filter.Spec()
	if err != nil {
		return o.fail(ctx, task, errors.Validation(err.Error()))
	}

	// Permissions are re-resolved at execution time: a grant revoked
	// between submit and pickup must not leak rows.
	res, err := o.perms.Resolve(ctx, sess, spec.RequestedSources())
	if err != nil {
		return o.fail(ctx, task, errors.Internal("unable to resolve source permissions", errors.WithCause(err)))
	}
	if len(res.Allowed) == 0 {
		return o.fail(ctx, task, errors.Forbidden("no permitted data sources for this export"))
	}

	q, err := o.catalog.BuildQuery(task.Kind, spec, res.Allowed)
	if err != nil {
		return o.fail(ctx, task, errors.Validation(err.Error()))
	}
	estimate, err := o.catalog.EstimateCount(ctx, q)
	if err != nil {
		return o.fail(ctx, task, errors.Internal("unable to estimate export size", errors.WithCause(err)))
	}

	startedAt := time.Now().UTC()
	if err := o.jobs.MarkProcessing(ctx, task.JobID, estimate, startedAt); err != nil {
		var nf *errors.DBNotFoundError
		if errors.As(err, &nf) {
			// Not pending anymore: claimed twice or already terminal.
			log.Warn("job not claimable, skipping", "error", err)
			return nil
		}
		return o.fail(ctx, task, errors.Internal("unable to claim export job", errors.WithCause(err)))
	}
	o.mirrorStatus(ctx, task.JobID, task.UserID, model.JobProcessing)
	if o.metrics != nil {
		o.metrics.ActiveJobs.Inc()
		defer o.metrics.ActiveJobs.Dec()
	}
	log.Info("hotel_admin.export.job_started", "kind", task.Kind, "format", task.Format, "estimate", estimate)

	sink, err := o.artifacts.Allocate(task.JobID, task.Format)
	if err != nil {
		return o.fail(ctx, task, err)
	}
	it, err := o.catalog.Stream(ctx, q, o.opts.BatchSize)
	if err != nil {
		sink.Close()
		return o.fail(ctx, task, errors.Internal("unable to start export stream", errors.WithCause(err)))
	}
	defer it.Close()

	w, err := writer.For(task.Format, model.SchemaFor(task.Kind))
	if err != nil {
		sink.Close()
		return o.fail(ctx, task, errors.Internal("unable to initialize export writer", errors.WithCause(err)))
	}

	src := &progressSource{
		countingSource: countingSource{it: it, metrics: o.metrics},
		jobs:           o.jobs,
		jobID:          task.JobID,
		total:          estimate,
	}
	meta := writer.Metadata{
		Kind:         task.Kind,
		GeneratedAt:  startedAt,
		RequestedBy:  task.UserID,
		Criteria:     task.Criteria,
		TotalRecords: estimate,
	}
	_, werr := w.Write(ctx, src, sink, meta)
	cerr := sink.Close()
	if werr != nil {
		return o.fail(ctx, task, werr)
	}
	if cerr != nil {
		return o.fail(ctx, task, errors.Internal("unable to finalize artifact file", errors.WithCause(cerr)))
	}

	path, size, err := o.artifacts.Finalize(task.JobID, task.Format)
	if err != nil {
		return o.fail(ctx, task, err)
	}
	completedAt := time.Now().UTC()
	expiresAt := completedAt.Add(o.opts.Retention)
	if err := o.jobs.MarkCompleted(ctx, task.JobID, path, size, completedAt, expiresAt); err != nil {
		return o.fail(ctx, task, errors.Internal("unable to complete export job", errors.WithCause(err)))
	}
	o.mirrorStatus(ctx, task.JobID, task.UserID, model.JobCompleted)

	o.charge(ctx, task.UserID, task.Kind, src.processed)
	o.finishMetrics(task.Kind, task.Format, ModeAsync, OutcomeCompleted)
	o.recordAudit(ctx, AuditEvent{
		JobID: task.JobID, UserID: task.UserID, Kind: task.Kind,
		Format: task.Format, Mode: ModeAsync, Outcome: OutcomeCompleted,
	})
	log.Info("hotel_admin.export.job_completed",
		"records", src.processed, "bytes", size, "expires_at", expiresAt)
	return nil
}

// fail moves the job to its failed terminal state with a caller-safe
// message and removes any partial artifact. The original cause is
// returned for the worker's log.
func (o *Orchestrator) fail(ctx context.Context, task *model.ExportTask, cause error) error {
	msg := "export failed due to an internal error"
	var appErr *errors.AppError
	if errors.As(cause, &appErr) && appErr.StatusCode < 500 {
		msg = appErr.Message
	}

	now := time.Now().UTC()
	if err := o.jobs.MarkFailed(ctx, task.JobID, msg, now); err != nil {
		o.log.Error("failed to mark export job as failed", "job_id", task.JobID, "error", err)
	}
	if err := o.artifacts.Remove(task.JobID, task.Format); err != nil {
		o.log.Error("failed to remove partial artifact", "job_id", task.JobID, "error", err)
	}
	o.mirrorStatus(ctx, task.JobID, task.UserID, model.JobFailed)

	o.finishMetrics(task.Kind, task.Format, ModeAsync, OutcomeFailed)
	o.recordAudit(ctx, AuditEvent{
		JobID: task.JobID, UserID: task.UserID, Kind: task.Kind,
		Format: task.Format, Mode: ModeAsync, Outcome: OutcomeFailed, Detail: msg,
	})
	o.log.Error("hotel_admin.export.job_failed", "job_id", task.JobID, "error", cause)
	return cause
}

// Status loads a job record. Non-privileged callers only see their own
// jobs; a foreign job reads as not found.
func (o *Orchestrator) Status(ctx context.Context, sess *auth.Session, jobID string) (*model.ExportJob, error) {
	var (
		job *model.ExportJob
		err error
	)
	if sess.Privileged() {
		job, err = o.jobs.Get(ctx, jobID)
	} else {
		job, err = o.jobs.GetOwned(ctx, jobID, sess.UserID())
	}
	if err != nil {
		return nil, jobLookupError(err)
	}
	return job, nil
}

// State answers the lightweight status poll from the cache mirror,
// falling back to the job record on a miss. The mirror carries the
// owner, so a foreign job reads as not found here too.
func (o *Orchestrator) State(ctx context.Context, sess *auth.Session, jobID string) (model.JobStatus, error) {
	st, err := o.queue.GetJobStatus(ctx, jobID)
	if err != nil {
		o.log.Warn("status mirror unavailable", "job_id", jobID, "error", err)
	} else if st != nil {
		if sess.Privileged() || st.UserID == sess.UserID() {
			return st.Status, nil
		}
		return "", errors.NotFound("export job not found", errors.WithID("export.job.not_found"))
	}
	job, err := o.Status(ctx, sess, jobID)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// List returns the caller's jobs, newest first.
func (o *Orchestrator) List(ctx context.Context, sess *auth.Session, limit, offset int) ([]*model.ExportJob, error) {
	jobs, err := o.jobs.ListOwned(ctx, sess.UserID(), limit, offset)
	if err != nil {
		return nil, errors.Internal("unable to list export jobs", errors.WithCause(err))
	}
	return jobs, nil
}

// Download opens a completed, unexpired artifact for streaming.
func (o *Orchestrator) Download(ctx context.Context, sess *auth.Session, jobID string) (io.ReadCloser, *model.ExportJob, error) {
	job, err := o.Status(ctx, sess, jobID)
	if err != nil {
		return nil, nil, err
	}
	switch job.Status {
	case model.JobCompleted:
	case model.JobFailed:
		return nil, nil, errors.Validation("export failed and produced no artifact",
			errors.WithID("export.download.failed_job"))
	default:
		return nil, nil, errors.Validation("export is not finished yet",
			errors.WithID("export.download.not_ready"))
	}
	if job.Expired(time.Now().UTC()) || job.FilePath == nil {
		return nil, nil, errors.Expired("export artifact has expired",
			errors.WithID("export.download.expired"))
	}
	rc, err := o.artifacts.Open(*job.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return rc, job, nil
}

func (o *Orchestrator) charge(ctx context.Context, userID int64, kind model.Kind, records int64) {
	if o.billing == nil {
		return
	}
	if err := o.billing.ChargeExport(ctx, userID, kind, records); err != nil {
		o.log.Error("failed to charge export", "user_id", userID, "kind", kind, "error", err)
	}
}

func (o *Orchestrator) recordAudit(ctx context.Context, event AuditEvent) {
	if o.audit != nil {
		o.audit.RecordExport(ctx, event)
	}
}

func (o *Orchestrator) finishMetrics(kind model.Kind, format model.Format, mode, outcome string) {
	if o.metrics != nil {
		o.metrics.ExportsFinished.WithLabelValues(string(kind), string(format), mode, outcome).Inc()
	}
}

func (o *Orchestrator) mirrorStatus(ctx context.Context, jobID string, userID int64, status model.JobStatus) {
	if err := o.queue.SetJobStatus(ctx, jobID, model.JobState{UserID: userID, Status: status}); err != nil {
		o.log.Warn("failed to mirror job status", "job_id", jobID, "status", status, "error", err)
	}
}

func jobLookupError(err error) error {
	var nf *errors.DBNotFoundError
	if errors.As(err, &nf) {
		return errors.NotFound("export job not found", errors.WithID("export.job.not_found"))
	}
	return errors.Internal("unable to load export job", errors.WithCause(err))
}

// countingSource passes batches through while counting rows.
type countingSource struct {
	it        store.BatchIterator
	metrics   *metrics.Metrics
	processed int64
}

func (c *countingSource) Next(ctx context.Context) (*model.Batch, error) {
	b, err := c.it.Next(ctx)
	if err != nil || b == nil {
		return b, err
	}
	c.processed += int64(len(b.Rows))
	if c.metrics != nil {
		c.metrics.RowsStreamed.Add(float64(len(b.Rows)))
	}
	return b, nil
}

// progressSource additionally persists job progress at least every ten
// percentage points. A persistence failure does not abort the stream.
type progressSource struct {
	countingSource
	jobs      store.JobStore
	jobID     string
	total     int64
	persisted int
}

func (p *progressSource) Next(ctx context.Context) (*model.Batch, error) {
	b, err := p.countingSource.Next(ctx)
	if err != nil || b == nil {
		return b, err
	}
	prog := progressOf(p.processed, p.total)
	if prog-p.persisted >= 10 {
		if uerr := p.jobs.UpdateProgress(ctx, p.jobID, p.processed, prog); uerr == nil {
			p.persisted = prog
		}
	}
	return b, nil
}

// progressOf caps at 99: the estimate can undershoot the streamed total
// and 100 is reserved for the completed transition.
func progressOf(processed, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(processed * 100 / total)
	if p > 99 {
		p = 99
	}
	return p
}
