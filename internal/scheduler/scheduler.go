package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rohmanhakim/pyq-crawler/internal/api"
	"github.com/rohmanhakim/pyq-crawler/internal/cachestore"
	"github.com/rohmanhakim/pyq-crawler/internal/config"
	"github.com/rohmanhakim/pyq-crawler/internal/fetcher"
	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/internal/progress"
	"github.com/rohmanhakim/pyq-crawler/internal/storage"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
	"github.com/rohmanhakim/pyq-crawler/pkg/limiter"
	"github.com/rohmanhakim/pyq-crawler/pkg/retry"
	"github.com/rohmanhakim/pyq-crawler/pkg/timeutil"
)

/*
 Scheduler is the sole control-plane authority of a search.

 A search walks subject -> chapters -> questions:
 - ListingChapters: the chapter listing comes from the cache, or from the
   remote API on a miss. A fetched listing is cached even when empty.
 - ProcessingChapters: at most `concurrency` chapters run at once. Each
   chapter fetches its live question list, then its questions in listing
   order, cache first.
 - Done: every chapter task returned.

 Guarantees:
 - A question id is fetched at most once per run, even when chapters share it.
 - Every processed question is reported exactly once.
 - A failing or panicking chapter is recorded and never cancels its siblings.
 - A failed persist is recorded; the search goes on with the in-memory cache.

 Matches are not globally ordered across chapters.

 Metadata emission is observational only and MUST NOT influence
 scheduling, retries, or search termination.
*/

const DefaultConcurrency = 5

// RemoteAPI is the subset of api.Client a search needs.
type RemoteAPI interface {
	ListChapters(ctx context.Context, subjectID string) (json.RawMessage, failure.ClassifiedError)
	ChapterDetail(ctx context.Context, chapterID string) (api.ChapterDetail, failure.ClassifiedError)
	QuestionDetail(ctx context.Context, questionID string) (api.QuestionDetail, failure.ClassifiedError)
}

// CacheStore is the subset of cachestore.Store a search needs.
type CacheStore interface {
	Get(key string) (json.RawMessage, bool)
	Put(key string, value json.RawMessage)
	Persist(ctx context.Context) failure.ClassifiedError
}

// TotalSetter is implemented by reporters that can show a completion ratio.
type TotalSetter interface {
	SetTotal(total int)
}

type Scheduler struct {
	metadataSink   metadata.MetadataSink
	crawlFinalizer metadata.CrawlFinalizer
	remote         RemoteAPI
	cache          CacheStore
	storageSink    storage.Sink
	outputDir      string
	concurrency    int
	flight         singleflight.Group
}

// NewScheduler wires the production pipeline from cfg: a paced, retrying
// JSON fetcher behind the API client, the given cache, and a local output sink.
func NewScheduler(
	cfg config.Config,
	recorder *metadata.Recorder,
	cache *cachestore.Store,
) *Scheduler {
	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.BaseDelay())
	rateLimiter.SetJitter(cfg.Jitter())
	rateLimiter.SetRandomSeed(cfg.RandomSeed())

	retryParam := retry.NewRetryParam(
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			cfg.BackoffInitialDuration(),
			cfg.BackoffMultiplier(),
			cfg.BackoffMaxDuration(),
		),
	)
	jsonFetcher := fetcher.NewJSONFetcher(
		recorder,
		cfg.Timeout(),
		retryParam,
		fetcher.WithLimiter(rateLimiter),
	)
	client := api.NewClient(
		jsonFetcher,
		recorder,
		cfg.APIBaseURL(),
		cfg.QuestionsBaseURL(),
		cfg.APIToken(),
		cfg.UserAgent(),
	)

	return NewSchedulerWithDeps(
		recorder,
		recorder,
		client,
		cache,
		storage.NewLocalSink(recorder),
		cfg.OutputDir(),
		cfg.Concurrency(),
	)
}

// NewSchedulerWithDeps creates a Scheduler with injected dependencies.
// A non-positive concurrency falls back to DefaultConcurrency.
func NewSchedulerWithDeps(
	crawlFinalizer metadata.CrawlFinalizer,
	metadataSink metadata.MetadataSink,
	remote RemoteAPI,
	cache CacheStore,
	storageSink storage.Sink,
	outputDir string,
	concurrency int,
) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scheduler{
		metadataSink:   metadataSink,
		crawlFinalizer: crawlFinalizer,
		remote:         remote,
		cache:          cache,
		storageSink:    storageSink,
		outputDir:      outputDir,
		concurrency:    concurrency,
	}
}

// Search walks the subject's chapters and returns every question whose text
// contains param.Keyword, ignoring case. reporter receives one report per
// processed question; a nil reporter is allowed.
func (s *Scheduler) Search(
	ctx context.Context,
	param SearchParam,
	reporter progress.Reporter,
) (SearchExecution, error) {
	if strings.TrimSpace(param.Keyword) == "" {
		return SearchExecution{}, ErrEmptyKeyword
	}
	if reporter == nil {
		reporter = progress.Noop{}
	}

	searchStartTime := time.Now()
	execution := SearchExecution{Outcome: OutcomeCompleted}

	// Ensure final stats are recorded on every exit path
	defer func() {
		s.crawlFinalizer.RecordFinalCrawlStats(
			execution.TotalChapters,
			execution.TotalQuestions,
			len(execution.Matches),
			execution.TotalErrors,
			execution.Duration,
		)
	}()

	// 1. ListingChapters
	chapters, listingErrors := s.listChapters(ctx, param)
	execution.TotalErrors += listingErrors
	if len(chapters) == 0 {
		execution.Outcome = OutcomeNoChapters
		if ctx.Err() != nil {
			execution.Outcome = OutcomeCancelled
		}
		execution.Duration = time.Since(searchStartTime)
		return execution, nil
	}
	execution.TotalChapters = len(chapters)
	execution.AnnouncedQuestions = api.TotalQuestions(chapters)
	if ts, ok := reporter.(TotalSetter); ok {
		ts.SetTotal(execution.AnnouncedQuestions)
	}

	// 2. ProcessingChapters
	state := &searchState{param: param}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, chapter := range chapters {
		g.Go(func() error {
			s.processChapter(ctx, chapter, state, reporter)
			return nil
		})
	}
	// chapter tasks never return errors; failures are counted in state
	_ = g.Wait()

	// 3. Done
	state.mu.Lock()
	execution.Matches = state.matches
	execution.TotalQuestions = state.questions
	execution.TotalErrors += state.errorCount
	state.mu.Unlock()

	if ctx.Err() != nil {
		execution.Outcome = OutcomeCancelled
	}
	execution.Duration = time.Since(searchStartTime)
	return execution, nil
}

// listChapters returns the decoded listing and how many errors it hit.
func (s *Scheduler) listChapters(ctx context.Context, param SearchParam) ([]api.Chapter, int) {
	raw, cached := s.cache.Get(param.ChapterCacheKey)
	if !cached {
		fetched, err := s.remote.ListChapters(ctx, param.SubjectID)
		if err != nil {
			// already recorded by the fetcher; nothing is cached
			return nil, 1
		}
		s.cache.Put(param.ChapterCacheKey, fetched)
		s.persist(ctx)
		raw = fetched
	}

	chapters, err := api.DecodeChapters(raw)
	if err != nil {
		s.recordChapterError("Scheduler.listChapters", &ChapterError{
			Message: err.Error(),
			Cause:   ErrCauseListingCorrupt,
			Err:     err,
		}, param)
		return nil, 1
	}
	return chapters, 0
}

func (s *Scheduler) processChapter(
	ctx context.Context,
	chapter api.Chapter,
	state *searchState,
	reporter progress.Reporter,
) {
	defer func() {
		if r := recover(); r != nil {
			s.recordChapterError("Scheduler.processChapter", &ChapterError{
				Message:   fmt.Sprint(r),
				ChapterID: chapter.ID,
				Cause:     ErrCausePanic,
			}, state.param, metadata.NewAttr(metadata.AttrStack, string(debug.Stack())))
			state.addError()
		}
	}()

	if ctx.Err() != nil {
		return
	}

	detail, err := s.remote.ChapterDetail(ctx, chapter.ID)
	if err != nil {
		s.recordChapterError("Scheduler.processChapter", &ChapterError{
			Message:   err.Error(),
			ChapterID: chapter.ID,
			Cause:     ErrCauseDetailUnavailable,
			Err:       err,
		}, state.param)
		state.addError()
		return
	}

	// Casers keep state and are not safe for concurrent use
	caser := cases.Lower(language.Und)
	needle := caser.String(state.param.Keyword)

	for _, questionID := range detail.Questions() {
		if ctx.Err() != nil {
			return
		}

		question, ok := s.questionDetail(ctx, questionID)
		if ok && strings.Contains(caser.String(question.Text()), needle) {
			s.recordMatch(state, chapter, questionID, question)
		}

		state.mu.Lock()
		state.questions++
		if !ok {
			state.errorCount++
		}
		state.mu.Unlock()
		reporter.Report(1)
	}
}

func (s *Scheduler) recordMatch(
	state *searchState,
	chapter api.Chapter,
	questionID string,
	question api.QuestionDetail,
) {
	match := MatchRecord{
		SubjectID:    state.param.SubjectID,
		ChapterID:    chapter.ID,
		ChapterTitle: chapter.Title,
		QuestionID:   questionID,
		Detail:       question,
	}

	writeResult, err := s.storageSink.Write(s.outputDir, state.param.SubjectID, chapter.Title, question)
	state.mu.Lock()
	defer state.mu.Unlock()
	if err != nil {
		// recorded by the sink; the match still counts
		state.errorCount++
	} else {
		match.OutputPath = writeResult.Path()
	}
	state.matches = append(state.matches, match)
}

// questionDetail returns the cached document or fetches, caches and persists
// it. Concurrent lookups of one id share a single fetch.
func (s *Scheduler) questionDetail(ctx context.Context, questionID string) (api.QuestionDetail, bool) {
	key := cachestore.QuestionKey(questionID)
	if detail, ok := s.cachedQuestion(key); ok {
		return detail, true
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		// a flight that finished just before this one may have filled the cache
		if detail, ok := s.cachedQuestion(key); ok {
			return detail, nil
		}
		detail, fetchErr := s.remote.QuestionDetail(ctx, questionID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		s.cache.Put(key, detail.Raw())
		s.persist(ctx)
		return detail, nil
	})
	if err != nil {
		return api.QuestionDetail{}, false
	}
	return v.(api.QuestionDetail), true
}

func (s *Scheduler) cachedQuestion(key string) (api.QuestionDetail, bool) {
	raw, ok := s.cache.Get(key)
	if !ok {
		return api.QuestionDetail{}, false
	}
	detail := api.NewQuestionDetail(raw)
	if detail.IsEmpty() {
		return api.QuestionDetail{}, false
	}
	return detail, true
}

// persist flushes the cache; failures are recorded by the store.
func (s *Scheduler) persist(ctx context.Context) {
	_ = s.cache.Persist(ctx)
}

func (s *Scheduler) recordChapterError(action string, err *ChapterError, param SearchParam, extra ...metadata.Attribute) {
	attrs := []metadata.Attribute{
		metadata.NewAttr(metadata.AttrSubjectID, param.SubjectID),
		metadata.NewAttr(metadata.AttrChapterID, err.ChapterID),
	}
	s.metadataSink.RecordError(
		time.Now(),
		"scheduler",
		action,
		mapChapterErrorToMetadataCause(err),
		err.Error(),
		append(attrs, extra...),
	)
}
