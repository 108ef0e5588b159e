package service

import (
	"go.uber.org/zap"

	"paygate/pkg/relay"
)

type usageStore interface {
	Finalize(id uint, status int, elapsedMs, size int64, success bool, errMsg string) error
}

type usageApiStore interface {
	RecordCall(id uint, elapsedMs int64) error
}

type usageProviderStore interface {
	IncrementCalls(id uint) error
}

// UsageService finalizes usage logs and maintains the rolling aggregates.
// Everything here is best-effort: the upstream call already completed, so a
// failed statistics write never aborts the client response.
type UsageService struct {
	usage     usageStore
	apis      usageApiStore
	providers usageProviderStore
	log       *zap.Logger
}

func NewUsageService(usage usageStore, apis usageApiStore, providers usageProviderStore, log *zap.Logger) *UsageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UsageService{usage: usage, apis: apis, providers: providers, log: log}
}

// Finalize writes the outcome onto the placeholder log, folds the latency
// into the API's rolling average, and bumps both call counters. The counter
// updates are independent; one failing does not stop the other.
func (s *UsageService) Finalize(usageLogID, apiID, providerID uint, out *relay.Outcome) {
	if err := s.usage.Finalize(usageLogID, out.Status, out.ElapsedMs, out.Size, out.Success(), out.ErrMessage); err != nil {
		s.log.Warn("finalize usage log", zap.Uint("usage_log_id", usageLogID), zap.Error(err))
	}
	if err := s.apis.RecordCall(apiID, out.ElapsedMs); err != nil {
		s.log.Warn("record api call", zap.Uint("api_id", apiID), zap.Error(err))
	}
	if err := s.providers.IncrementCalls(providerID); err != nil {
		s.log.Warn("increment provider calls", zap.Uint("provider_id", providerID), zap.Error(err))
	}
}
