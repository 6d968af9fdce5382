package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"nifty/internal/app/port"
	"nifty/internal/domain/entity"
	"nifty/internal/infrastructure/configloader"
	"nifty/internal/pkg/metrics"
	"nifty/internal/pkg/tokenuri"
	"nifty/internal/pkg/utils"

	"github.com/alitto/pond/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errMissingPointer = errors.New("metadata pointer unavailable")

// ResolutionServiceImpl implements port.ResolutionService.
type ResolutionServiceImpl struct {
	readers             port.ContractReaderProvider
	fetcher             port.MetadataFetcher
	logger              port.Logger
	gatewayHost         string
	rpcBatchSize        int
	maxConcurrentTokens int
}

// NewResolutionService creates a new instance of ResolutionServiceImpl.
func NewResolutionService(
	readers port.ContractReaderProvider,
	fetcher port.MetadataFetcher,
	l port.Logger,
	cfg *configloader.Config,
) port.ResolutionService {
	workers := cfg.Resolution.MaxConcurrentTokens
	if workers <= 0 {
		workers = 1
	}
	gateway := cfg.IPFS.GatewayHost
	if gateway == "" {
		gateway = tokenuri.DefaultGatewayHost
	}
	return &ResolutionServiceImpl{
		readers:             readers,
		fetcher:             fetcher,
		logger:              l,
		gatewayHost:         gateway,
		rpcBatchSize:        cfg.RPC.BatchSize,
		maxConcurrentTokens: workers,
	}
}

// Resolve attaches metadata to every token and returns the records in input order.
// Every returned record has metadata; failures degrade to the default placeholder.
func (s *ResolutionServiceImpl) Resolve(ctx context.Context, tokens []entity.TokenRecord) []entity.TokenRecord {
	out := make([]entity.TokenRecord, len(tokens))
	copy(out, tokens)
	if len(out) == 0 {
		return out
	}

	s.lookupPointers(ctx, out)

	pool := pond.NewPool(s.maxConcurrentTokens, pond.WithContext(ctx))
	for i := range out {
		pool.Submit(func() {
			s.resolveMetadata(ctx, &out[i])
		})
	}
	pool.StopAndWait()

	// tasks skipped by a cancelled pool still get placeholders
	for i := range out {
		if out[i].Metadata == nil {
			reason := errMissingPointer
			if err := ctx.Err(); err != nil {
				reason = err
			}
			s.degrade(&out[i], reason)
			s.normalizeImage(&out[i])
		}
	}
	return out
}

// lookupPointers reads tokenURI for every token, one JSON-RPC batch per chain and chunk.
func (s *ResolutionServiceImpl) lookupPointers(ctx context.Context, tokens []entity.TokenRecord) {
	byChain := make(map[string][]int)
	var chainOrder []string
	for i := range tokens {
		tokens[i].Stage = entity.StagePending
		tokens[i].Metadata = nil
		tokens[i].MetadataFetched = false
		tokens[i].ResolutionError = ""
		id := tokens[i].Chain.Identifier
		if _, ok := byChain[id]; !ok {
			chainOrder = append(chainOrder, id)
		}
		byChain[id] = append(byChain[id], i)
	}

	for _, id := range chainOrder {
		indexes := byChain[id]
		chain := tokens[indexes[0]].Chain

		reader, err := s.readers.GetReader(chain)
		if err != nil {
			s.logger.Warn("No contract reader for chain, metadata pointers unavailable", "chain", chain.Name, "error", err)
			for _, i := range indexes {
				s.markPointerMissing(&tokens[i], err)
			}
			continue
		}

		for _, batch := range utils.Chunk(indexes, s.rpcBatchSize) {
			requests := make([]entity.TokenURIRequest, len(batch))
			for j, i := range batch {
				requests[j] = entity.TokenURIRequest{
					ID:              strconv.Itoa(i),
					ContractAddress: tokens[i].ContractAddress,
					TokenID:         tokens[i].TokenID,
				}
			}

			results, err := reader.TokenURIs(ctx, requests)
			if err != nil {
				s.logger.Warn("tokenURI batch failed", "chain", chain.Name, "size", len(batch), "error", err)
				for _, i := range batch {
					s.markPointerMissing(&tokens[i], err)
				}
				continue
			}

			resolved := make(map[string]entity.TokenURIResult, len(results))
			for _, r := range results {
				resolved[r.RequestID] = r
			}
			for _, i := range batch {
				r, ok := resolved[strconv.Itoa(i)]
				switch {
				case !ok:
					s.markPointerMissing(&tokens[i], fmt.Errorf("no result returned for token %s", tokens[i].TokenID))
				case r.Error != nil:
					s.logger.Debug("tokenURI call failed", "chain", chain.Name, "contract", tokens[i].ContractAddress, "token_id", tokens[i].TokenID, "error", r.Error)
					s.markPointerMissing(&tokens[i], r.Error)
				case r.URI == "":
					s.markPointerMissing(&tokens[i], errMissingPointer)
				default:
					tokens[i].MetadataPointer = r.URI
					tokens[i].Stage = entity.StagePointerResolved
					metrics.PointerLookups.WithLabelValues(chain.Identifier, metrics.OutcomeSuccess).Inc()
				}
			}
		}
	}
}

func (s *ResolutionServiceImpl) markPointerMissing(token *entity.TokenRecord, err error) {
	token.Stage = entity.StagePointerMissing
	token.ResolutionError = err.Error()
	metrics.PointerLookups.WithLabelValues(token.Chain.Identifier, metrics.OutcomeError).Inc()
}

// resolveMetadata runs the metadata and image steps for a single token.
func (s *ResolutionServiceImpl) resolveMetadata(ctx context.Context, token *entity.TokenRecord) {
	defer s.normalizeImage(token)

	if token.Stage != entity.StagePointerResolved {
		s.degrade(token, errMissingPointer)
		return
	}

	pointer, err := tokenuri.Parse(tokenuri.ExpandTemplate(token.MetadataPointer, token.TokenID))
	if err != nil {
		metrics.MetadataResolutions.WithLabelValues("invalid", metrics.OutcomeError).Inc()
		s.degrade(token, err)
		return
	}

	var doc map[string]interface{}
	if pointer.Kind == tokenuri.KindInlineData {
		if !pointer.IsJSON() {
			err = fmt.Errorf("inline metadata has media type %q, want JSON", pointer.MediaType)
		} else if err = json.Unmarshal(pointer.Data, &doc); err == nil && doc == nil {
			err = fmt.Errorf("inline metadata is not a JSON object")
		}
	} else {
		doc, err = s.fetcher.FetchDocument(ctx, pointer.FetchURL(s.gatewayHost))
	}
	if err != nil {
		metrics.MetadataResolutions.WithLabelValues(pointer.Kind.String(), metrics.OutcomeError).Inc()
		s.logger.Debug("Metadata unavailable, using placeholder",
			"chain", token.Chain.Name,
			"contract", token.ContractAddress,
			"token_id", token.TokenID,
			"kind", pointer.Kind.String(),
			"error", err)
		s.degrade(token, err)
		return
	}

	metadata := entity.MetadataFromDocument(doc)
	token.Metadata = &metadata
	token.MetadataFetched = true
	token.Stage = entity.StageMetadataFetched
	metrics.MetadataResolutions.WithLabelValues(pointer.Kind.String(), metrics.OutcomeSuccess).Inc()
}

func (s *ResolutionServiceImpl) degrade(token *entity.TokenRecord, err error) {
	metadata := entity.DefaultMetadata()
	token.Metadata = &metadata
	token.MetadataFetched = false
	token.Stage = entity.StageMetadataDefault
	if token.ResolutionError == "" && err != nil {
		token.ResolutionError = err.Error()
	}
}

// normalizeImage rewrites content-addressed asset pointers to gateway URLs.
func (s *ResolutionServiceImpl) normalizeImage(token *entity.TokenRecord) {
	if token.Metadata == nil {
		return
	}
	if img := token.Metadata.Image; img != nil {
		rewritten := tokenuri.Rewrite(s.gatewayHost, *img)
		token.Metadata.Image = &rewritten
		token.Metadata.ImageMimeType = tokenuri.MediaType(rewritten)
	}
	if token.Metadata.AnimationURL != "" {
		token.Metadata.AnimationURL = tokenuri.Rewrite(s.gatewayHost, token.Metadata.AnimationURL)
	}
	token.Stage = entity.StageImageNormalized
}
