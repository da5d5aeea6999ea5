package handlers

import "time"

func (h *ServiceApiHandler) SetPolling(interval time.Duration, attempts int) {
	h.pollInterval = interval
	h.pollAttempts = attempts
}
