package observer

import (
	"context"
	"time"
)

// ReadyRequester asks the Coordinator for this observer's origin tab
// id and initial projection, over CONTENT_SCRIPT_READY (spec §4.8
// "Tab-id bootstrap").
type ReadyRequester func(ctx context.Context) (originTabID int, ok bool, err error)

// Bootstrap implements the tab-id bootstrap with the 2s fetch timeout
// from spec §5 ("Tab-id fetch: 2s; on fail, observer operates with
// unknown tab id"). On success it sets the Sync's origin tab id via
// SetOriginTabID; on timeout or failure it leaves the Sync unscoped,
// so it keeps seeing the full pool client-side-filterable by the
// caller.
func Bootstrap(ctx context.Context, s *Sync, request ReadyRequester) {
	bootCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	originTabID, ok, err := request(bootCtx)
	if err != nil || !ok {
		s.logger.Warn("observer: tab-id bootstrap failed, operating unscoped")
		return
	}
	s.SetOriginTabID(originTabID)
}

// SetOriginTabID scopes this observer's projection to originTabID,
// e.g. once CONTENT_SCRIPT_READY resolves it (spec §4.8).
func (s *Sync) SetOriginTabID(tabID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.originTabID = &tabID
}
