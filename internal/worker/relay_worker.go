package worker

import (
	"github.com/harborview/support-service/internal/service"
)

// StartEventRelay registers the Redis stream relay handlers.
func StartEventRelay(relayService *service.RelayService) {
	if relayService == nil {
		return
	}
	relayService.RegisterHandlers()
}
