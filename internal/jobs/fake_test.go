package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mavedb/worker/internal/annotation"
	"github.com/mavedb/worker/internal/jobmodel"
	"github.com/mavedb/worker/internal/persistence"
	"github.com/mavedb/worker/internal/queue"
	"github.com/mavedb/worker/internal/scoreset"
)

// fakeStore is an in-memory stand-in for everything a job function's
// workerctx.Context needs from persistence: the JobRun table the Job
// Manager operates on, the opaque scoreset.Gateway domain surface, and the
// Annotation Status Manager's backing store. It satisfies persistence.Tx,
// scoreset.Gateway, and annotation.Gateway in one value, the way a real
// *postgres.txStore does against one underlying transaction.
type fakeStore struct {
	jobs        map[int64]*jobmodel.JobRun
	nextJobID   int64
	scoreSets   map[int64]*scoreset.ScoreSet
	variants    map[int64][]scoreset.Variant
	mapped      map[int64]*scoreset.MappedVariant
	nextMVID    int64
	targetGenes map[int64][]scoreset.TargetGene
	annotations []annotation.Record
	nextAnnID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:        map[int64]*jobmodel.JobRun{},
		scoreSets:   map[int64]*scoreset.ScoreSet{},
		variants:    map[int64][]scoreset.Variant{},
		mapped:      map[int64]*scoreset.MappedVariant{},
		targetGenes: map[int64][]scoreset.TargetGene{},
	}
}

// --- persistence.Gateway / persistence.Tx ---

func (s *fakeStore) GetJobByID(_ context.Context, id int64) (*jobmodel.JobRun, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, jobmodel.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeStore) GetJobByURN(_ context.Context, urn string) (*jobmodel.JobRun, error) {
	for _, job := range s.jobs {
		if job.URN == urn {
			cp := *job
			return &cp, nil
		}
	}
	return nil, jobmodel.ErrNotFound
}

func (s *fakeStore) GetPipeline(context.Context, int64) (*jobmodel.Pipeline, error) {
	return nil, jobmodel.ErrNotFound
}
func (s *fakeStore) ListPipelineJobs(context.Context, int64, ...jobmodel.JobStatus) ([]*jobmodel.JobRun, error) {
	return nil, nil
}
func (s *fakeStore) ListDependencies(context.Context, int64) ([]jobmodel.JobDependency, error) {
	return nil, nil
}
func (s *fakeStore) CountJobsByStatus(context.Context, int64) (jobmodel.StatusCounts, error) {
	return jobmodel.StatusCounts{}, nil
}

func (s *fakeStore) InsertJob(_ context.Context, job *jobmodel.JobRun) (int64, error) {
	s.nextJobID++
	cp := *job
	cp.ID = s.nextJobID
	s.jobs[cp.ID] = &cp
	return cp.ID, nil
}
func (s *fakeStore) InsertPipeline(context.Context, *jobmodel.Pipeline) (int64, error) { return 0, nil }
func (s *fakeStore) InsertDependency(context.Context, jobmodel.JobDependency) error    { return nil }

func (s *fakeStore) UpdateJob(_ context.Context, job *jobmodel.JobRun) error {
	if _, ok := s.jobs[job.ID]; !ok {
		return jobmodel.ErrNotFound
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}
func (s *fakeStore) UpdatePipeline(context.Context, *jobmodel.Pipeline) error { return nil }

func (s *fakeStore) BeginTx(context.Context) (persistence.Tx, error) { return fakeTx{s}, nil }

type fakeTx struct{ *fakeStore }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

// --- scoreset.Gateway ---

func (s *fakeStore) GetScoreSet(_ context.Context, scoreSetID int64) (*scoreset.ScoreSet, error) {
	ss, ok := s.scoreSets[scoreSetID]
	if !ok {
		return nil, fmt.Errorf("score set %d not found", scoreSetID)
	}
	cp := *ss
	return &cp, nil
}

func (s *fakeStore) UpdateScoreSet(_ context.Context, ss *scoreset.ScoreSet) error {
	cp := *ss
	s.scoreSets[ss.ID] = &cp
	return nil
}

func (s *fakeStore) ReplaceVariants(_ context.Context, scoreSetID int64, variants []scoreset.Variant) ([]scoreset.Variant, error) {
	out := make([]scoreset.Variant, len(variants))
	for i, v := range variants {
		v.ID = int64(i + 1)
		v.ScoreSetID = scoreSetID
		out[i] = v
	}
	s.variants[scoreSetID] = out
	return out, nil
}

func (s *fakeStore) ListVariants(_ context.Context, scoreSetID int64) ([]scoreset.Variant, error) {
	return s.variants[scoreSetID], nil
}

func (s *fakeStore) CurrentMappedVariant(_ context.Context, variantID int64) (*scoreset.MappedVariant, error) {
	for _, mv := range s.mapped {
		if mv.VariantID == variantID && mv.Current {
			cp := *mv
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no current mapped variant for variant %d", variantID)
}

func (s *fakeStore) ListCurrentMappedVariants(_ context.Context, scoreSetID int64) ([]scoreset.MappedVariant, error) {
	variantIDs := map[int64]bool{}
	for _, v := range s.variants[scoreSetID] {
		variantIDs[v.ID] = true
	}
	var out []scoreset.MappedVariant
	for _, mv := range s.mapped {
		if mv.Current && variantIDs[mv.VariantID] {
			out = append(out, *mv)
		}
	}
	return out, nil
}

func (s *fakeStore) AddMappedVariant(_ context.Context, mv *scoreset.MappedVariant) (int64, error) {
	s.nextMVID++
	cp := *mv
	cp.ID = s.nextMVID
	s.mapped[cp.ID] = &cp
	return cp.ID, nil
}

func (s *fakeStore) UpdateMappedVariantCAID(_ context.Context, mappedVariantID int64, caid string) error {
	mv, ok := s.mapped[mappedVariantID]
	if !ok {
		return fmt.Errorf("mapped variant %d not found", mappedVariantID)
	}
	mv.CAID = caid
	return nil
}

func (s *fakeStore) ListTargetGenes(_ context.Context, scoreSetID int64) ([]scoreset.TargetGene, error) {
	return s.targetGenes[scoreSetID], nil
}

func (s *fakeStore) UpdateTargetGeneRefMetadata(_ context.Context, targetGeneID int64, layer scoreset.AnnotationLayer, data json.RawMessage) error {
	for scoreSetID, genes := range s.targetGenes {
		for i, tg := range genes {
			if tg.ID == targetGeneID {
				if tg.RefMetadata == nil {
					tg.RefMetadata = map[scoreset.AnnotationLayer]json.RawMessage{}
				}
				tg.RefMetadata[layer] = data
				s.targetGenes[scoreSetID][i] = tg
				return nil
			}
		}
	}
	return fmt.Errorf("target gene %d not found", targetGeneID)
}

func (s *fakeStore) UpdateTargetGeneUniProtData(_ context.Context, targetGeneID int64, accession string, data json.RawMessage) error {
	for scoreSetID, genes := range s.targetGenes {
		for i, tg := range genes {
			if tg.ID == targetGeneID {
				tg.UniProtAccID = accession
				tg.UniProtData = data
				s.targetGenes[scoreSetID][i] = tg
				return nil
			}
		}
	}
	return fmt.Errorf("target gene %d not found", targetGeneID)
}

func (s *fakeStore) UpsertClinicalControl(_ context.Context, cc *scoreset.ClinicalControl) (int64, error) {
	return 1, nil
}

// --- annotation.Gateway ---

func (s *fakeStore) AddAnnotation(_ context.Context, rec *annotation.Record) (int64, error) {
	if rec.Current {
		for i, existing := range s.annotations {
			if existing.VariantID == rec.VariantID && existing.AnnotationType == rec.AnnotationType {
				s.annotations[i].Current = false
			}
		}
	}
	s.nextAnnID++
	cp := *rec
	cp.ID = s.nextAnnID
	s.annotations = append(s.annotations, cp)
	return cp.ID, nil
}

func (s *fakeStore) CurrentAnnotation(_ context.Context, variantID int64, annotationType annotation.Type) (*annotation.Record, error) {
	for i := len(s.annotations) - 1; i >= 0; i-- {
		rec := s.annotations[i]
		if rec.VariantID == variantID && rec.AnnotationType == annotationType && rec.Current {
			return &rec, nil
		}
	}
	return nil, nil
}

// newJob inserts a RUNNING job bound to jobFunction, returning its id.
func newJob(s *fakeStore, jobFunction string) int64 {
	id, _ := s.InsertJob(context.Background(), &jobmodel.JobRun{
		URN:         "urn:mavedb:job:test",
		JobFunction: jobFunction,
		Status:      jobmodel.JobRunning,
		MaxRetries:  3,
	})
	return id
}

// fakeQueue records every Enqueue call; Dequeue/Ack are unused by job
// functions directly (only chainJob enqueues) so they're no-ops.
type fakeQueue struct {
	enqueued []fakeEnqueueCall
	fail     bool
}

type fakeEnqueueCall struct {
	FunctionName string
	JobID        int64
	ClientJobID  string
	DeferBy      time.Duration
}

func (q *fakeQueue) Enqueue(_ context.Context, functionName string, jobID int64, clientJobID string, deferBy time.Duration) (bool, error) {
	if q.fail {
		return false, fmt.Errorf("fake queue: enqueue rejected")
	}
	q.enqueued = append(q.enqueued, fakeEnqueueCall{functionName, jobID, clientJobID, deferBy})
	return true, nil
}
func (q *fakeQueue) Dequeue(context.Context, string, time.Duration) (queue.Message, bool, error) {
	return queue.Message{}, false, nil
}
func (q *fakeQueue) Ack(context.Context, string, string) error { return nil }

// fakeDownloader serves pre-seeded object bytes by "bucket/key".
type fakeDownloader struct {
	objects map[string][]byte
}

func (d *fakeDownloader) Download(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := d.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return data, nil
}
