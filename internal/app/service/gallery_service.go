package service

import (
	"context"
	"sync"
	"time"

	"nifty/internal/app/port"
	"nifty/internal/domain/entity"
	"nifty/internal/infrastructure/configloader"
	"nifty/internal/pkg/metrics"
	"nifty/internal/pkg/utils"

	"github.com/patrickmn/go-cache"
)

// GalleryServiceImpl implements port.GalleryService.
type GalleryServiceImpl struct {
	discovery         port.DiscoveryService
	resolution        port.ResolutionService
	chainProvider     port.ChainDefinitionProvider
	logger            port.Logger
	galleryCache      *cache.Cache
	discoveryTimeout  time.Duration
	resolutionTimeout time.Duration

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	state     entity.GalleryState
	cancelRun context.CancelFunc
}

// NewGalleryService creates a new instance of GalleryServiceImpl.
func NewGalleryService(
	ds port.DiscoveryService,
	rs port.ResolutionService,
	cp port.ChainDefinitionProvider,
	l port.Logger,
	cfg *configloader.Config,
) port.GalleryService {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	s := &GalleryServiceImpl{
		discovery:         ds,
		resolution:        rs,
		chainProvider:     cp,
		logger:            l,
		discoveryTimeout:  time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second,
		resolutionTimeout: time.Duration(cfg.Resolution.TimeoutSeconds) * time.Second,
		baseCtx:           baseCtx,
		baseCancel:        baseCancel,
		state:             entity.GalleryState{Tokens: []entity.TokenRecord{}, UpdatedAt: time.Now()},
	}
	if ttl := time.Duration(cfg.Cache.GalleryTTLMinutes) * time.Minute; ttl > 0 {
		s.galleryCache = cache.New(ttl, 2*ttl)
	}
	return s
}

// Query validates address, discovers its tokens and resolves their metadata.
// Invalid addresses fail before any network call.
func (s *GalleryServiceImpl) Query(ctx context.Context, address string) (*entity.Gallery, error) {
	checksummed, err := utils.ValidateAddress(address)
	if err != nil {
		s.logger.Debug("Rejected gallery query", "address", address, "error", err)
		return nil, err
	}

	if s.galleryCache != nil {
		if cached, found := s.galleryCache.Get(checksummed); found {
			s.logger.Debug("Gallery served from cache", "address", checksummed)
			g := cached.(entity.Gallery)
			return &g, nil
		}
	}

	start := time.Now()
	discoveryCtx, cancel := withOptionalTimeout(ctx, s.discoveryTimeout)
	discovered, err := s.discovery.Discover(discoveryCtx, checksummed)
	cancel()
	if err != nil {
		metrics.QueryDuration.WithLabelValues(metrics.OutcomeError).Observe(time.Since(start).Seconds())
		return nil, err
	}

	resolutionCtx, cancel := withOptionalTimeout(ctx, s.resolutionTimeout)
	tokens := s.resolution.Resolve(resolutionCtx, discovered.Tokens)
	resolutionCut := resolutionCtx.Err() != nil
	cancel()

	gallery := entity.Gallery{
		Address:     checksummed,
		Tokens:      tokens,
		ChainErrors: discovered.ChainErrors,
		ResolvedAt:  time.Now(),
	}
	metrics.QueryDuration.WithLabelValues(metrics.OutcomeSuccess).Observe(time.Since(start).Seconds())

	// partial galleries are not cached so a later query can pick up the failed chains
	// or the tokens that fell back to placeholders when resolution was cut short
	if s.galleryCache != nil && len(gallery.ChainErrors) == 0 && !resolutionCut {
		s.galleryCache.SetDefault(checksummed, gallery)
	}
	s.logger.Info("Gallery resolved", "address", checksummed, "tokens", len(tokens), "duration", time.Since(start).String())
	return &gallery, nil
}

// SetAddress moves the interactive gallery to a new epoch for address. Any run of a
// previous epoch is cancelled and its result will be discarded.
func (s *GalleryServiceImpl) SetAddress(address string) entity.GalleryState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}

	s.state = entity.GalleryState{
		Address:   address,
		Epoch:     s.state.Epoch + 1,
		Tokens:    []entity.TokenRecord{},
		UpdatedAt: time.Now(),
	}

	checksummed, err := utils.ValidateAddress(address)
	if err != nil {
		s.state.Error = err.Error()
		return s.snapshotLocked()
	}

	s.state.Address = checksummed
	s.state.Loading = true

	runCtx, cancel := context.WithCancel(s.baseCtx)
	s.cancelRun = cancel
	epoch := s.state.Epoch

	s.wg.Add(1)
	go s.run(runCtx, epoch, checksummed)

	return s.snapshotLocked()
}

func (s *GalleryServiceImpl) run(ctx context.Context, epoch uint64, address string) {
	defer s.wg.Done()
	s.logger.Debug("Gallery run started", "address", address, "epoch", epoch)

	gallery, err := s.Query(ctx, address)
	s.commit(epoch, gallery, err)
}

// commit publishes a run's result unless a newer epoch has started since.
func (s *GalleryServiceImpl) commit(epoch uint64, gallery *entity.Gallery, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Epoch != epoch {
		s.logger.Debug("Discarding stale gallery result", "epoch", epoch, "current_epoch", s.state.Epoch)
		return
	}

	s.state.Loading = false
	s.state.UpdatedAt = time.Now()
	s.cancelRun = nil
	if err != nil {
		s.logger.Warn("Gallery run failed", "address", s.state.Address, "epoch", epoch, "error", err)
		s.state.Tokens = []entity.TokenRecord{}
		s.state.Error = err.Error()
		return
	}
	s.state.Tokens = gallery.Tokens
	s.state.ChainErrors = gallery.ChainErrors
}

// State returns a snapshot of the interactive gallery.
func (s *GalleryServiceImpl) State() entity.GalleryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *GalleryServiceImpl) snapshotLocked() entity.GalleryState {
	snapshot := s.state
	snapshot.Tokens = append(make([]entity.TokenRecord, 0, len(s.state.Tokens)), s.state.Tokens...)
	if s.state.ChainErrors != nil {
		snapshot.ChainErrors = append([]entity.ChainError(nil), s.state.ChainErrors...)
	}
	return snapshot
}

// Chains lists the chains queried by the service.
func (s *GalleryServiceImpl) Chains() []entity.ChainEndpoint {
	return s.chainProvider.GetAllChains()
}

// Close cancels background runs and waits for them to finish.
func (s *GalleryServiceImpl) Close() {
	s.baseCancel()
	s.wg.Wait()
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
